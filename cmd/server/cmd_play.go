package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gesture-sequencer/internal/cliploader"
	"gesture-sequencer/internal/platform/logger"
	"gesture-sequencer/internal/player"
	"gesture-sequencer/internal/sequencer"

	"github.com/spf13/cobra"
)

func newPlayCmd() *cobra.Command {
	var (
		avatar string
		text   string
		source string
	)

	cmd := &cobra.Command{
		Use:   "play [GLOSS...]",
		Short: "Play one gesture sequence locally, logging player commands",
		Long: "Resolve the given glosses (or --text, glossed word by word) with the configured clip source, " +
			"print the planned cue sheet and run the sequence in real time, logging every player command.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadSettings()
			if source != "" {
				cfg.clips.Source = source
			}
			log := logger.New(cfg.logLevel, "text")

			gestures := args
			if len(gestures) == 0 && text != "" {
				gestures = sequencer.GlossFromText(text)
			}
			if len(gestures) == 0 {
				return errors.New("nothing to play: pass glosses or --text")
			}

			loader, err := cliploader.New(cmd.Context(), cfg.clips)
			if err != nil {
				return fmt.Errorf("clip source: %w", err)
			}

			ctrl := sequencer.NewController(
				sequencer.AvatarID(avatar),
				sequencer.NewClipCache(loader, nil),
				player.NewLogPlayer(log, nil),
				sequencer.Options{
					BlendWindow:   cfg.blend,
					FadeOutWindow: cfg.fadeOut,
					Reporter:      sequencer.NewLogReporter(log),
					Logger:        log,
				},
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pb, err := ctrl.Play(ctx, gestures)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), pb.Timeline.String())

			if err := pb.Wait(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					_ = ctrl.Cancel()
					return nil
				}
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&avatar, "avatar", "local", "avatar id used in logs")
	cmd.Flags().StringVar(&text, "text", "", "free text to gloss word by word when no glosses are given")
	cmd.Flags().StringVar(&source, "source", "", "clip source override (manifest, http, s3)")
	return cmd
}
