package player

import (
	"log/slog"
	"time"

	"gesture-sequencer/internal/sequencer"
)

// LogPlayer logs every command and forwards it to an optional next player.
type LogPlayer struct {
	log  *slog.Logger
	next sequencer.Player
}

// NewLogPlayer returns a LogPlayer; next may be nil.
func NewLogPlayer(log *slog.Logger, next sequencer.Player) *LogPlayer {
	return &LogPlayer{log: log.With(slog.String("component", "player")), next: next}
}

func (p *LogPlayer) Start(clip *sequencer.Clip) {
	p.log.Info("start", slog.String("gesture", string(clip.ID)), slog.Float64("duration", clip.Seconds()))
	if p.next != nil {
		p.next.Start(clip)
	}
}

func (p *LogPlayer) CrossfadeTo(from, to *sequencer.Clip, window time.Duration) {
	p.log.Info("crossfade",
		slog.String("from", string(from.ID)),
		slog.String("gesture", string(to.ID)),
		slog.Float64("duration", to.Seconds()),
		slog.Float64("window", window.Seconds()))
	if p.next != nil {
		p.next.CrossfadeTo(from, to, window)
	}
}

func (p *LogPlayer) FadeOut(clip *sequencer.Clip, window time.Duration) {
	p.log.Info("fade out", slog.String("gesture", string(clip.ID)), slog.Float64("window", window.Seconds()))
	if p.next != nil {
		p.next.FadeOut(clip, window)
	}
}
