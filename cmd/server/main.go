package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gesture-sequencer/internal/cliploader"
	"gesture-sequencer/internal/platform/config"
	"gesture-sequencer/internal/platform/logger"
	"gesture-sequencer/internal/platform/metrics"
	"gesture-sequencer/internal/player"
	"gesture-sequencer/internal/sequencer"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// settings is the environment-derived configuration shared by all commands.
type settings struct {
	port       string
	logLevel   string
	logFormat  string
	blend      time.Duration
	fadeOut    time.Duration
	maxAvatars int
	clips      cliploader.Config
}

func loadSettings() settings {
	_ = config.Load()

	return settings{
		port:       config.GetEnv("PORT", "8080"),
		logLevel:   config.GetEnv("LOG_LEVEL", "info"),
		logFormat:  config.GetEnv("LOG_FORMAT", "json"),
		blend:      config.GetEnvDuration("BLEND_WINDOW_MS", sequencer.DefaultBlendWindow),
		fadeOut:    config.GetEnvDuration("FADE_OUT_WINDOW_MS", sequencer.DefaultFadeOutWindow),
		maxAvatars: config.GetEnvInt("MAX_AVATARS", 64),
		clips: cliploader.Config{
			Source:       config.GetEnv("CLIP_SOURCE", cliploader.SourceManifest),
			ManifestPath: config.GetEnv("CLIP_MANIFEST", "clips.yaml"),
			AssetDir:     config.GetEnv("CLIP_ASSET_DIR", ""),
			BaseURL:      config.GetEnv("CLIP_BASE_URL", ""),
			HTTPTimeout:  config.GetEnvDuration("CLIP_HTTP_TIMEOUT_MS", 5*time.Second),
			S3Bucket:     config.GetEnv("CLIP_S3_BUCKET", ""),
			S3Prefix:     config.GetEnv("CLIP_S3_PREFIX", "animations/"),
		},
	}
}

var rootCmd = &cobra.Command{
	Use:   "gesture-sequencer",
	Short: "Plays sign-language gesture sequences on 3D avatars",
	Long:  "gesture-sequencer resolves gloss sequences into animation clips and drives avatar playback with crossfades.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newPlayCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadSettings()
	log := logger.New(cfg.logLevel, cfg.logFormat)

	loader, err := cliploader.New(cmd.Context(), cfg.clips)
	if err != nil {
		return fmt.Errorf("clip source: %w", err)
	}

	met := metrics.New()
	hub := player.NewHub()
	cache := sequencer.NewClipCache(loader, met)
	registry := sequencer.NewRegistry(cache, func(avatar sequencer.AvatarID) sequencer.Player {
		return player.NewLogPlayer(log.With(slog.String("avatar_id", string(avatar))), hub.Player(avatar))
	}, sequencer.Options{
		BlendWindow:   cfg.blend,
		FadeOutWindow: cfg.fadeOut,
		Reporter:      sequencer.MultiReporter{sequencer.NewLogReporter(log), hub},
		Metrics:       met,
		Logger:        log,
		MaxAvatars:    cfg.maxAvatars,
	})
	h := sequencer.NewHandler(registry, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			met.SetCachedClips(cache.Len())
			met.SetActiveSequences(registry.ActiveCount())
		}).ServeHTTP(w, r)
	})
	r.Get("/avatars/{avatar_id}/stream", hub.ServeWS(log))
	h.Routes(r)

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: r}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	log.Info("server starting",
		"port", cfg.port,
		"clip_source", cfg.clips.Source,
		"blend_window_ms", cfg.blend.Milliseconds(),
		"fade_out_window_ms", cfg.fadeOut.Milliseconds(),
		"max_avatars", cfg.maxAvatars,
		"log_level", cfg.logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		log.Error("server error", "error", err)
		return err
	}

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped")
	return nil
}
