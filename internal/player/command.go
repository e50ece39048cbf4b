package player

import (
	"time"

	"gesture-sequencer/internal/sequencer"
)

// Command types sent to renderers.
const (
	CommandStart     = "start"
	CommandCrossfade = "crossfade"
	CommandFadeOut   = "fade_out"
	CommandStatus    = "status"
)

// ClipRef is the renderer-facing description of a clip.
type ClipRef struct {
	ID       sequencer.GestureID `json:"id"`
	Asset    string              `json:"asset"`
	Duration float64             `json:"duration"`
}

// Command is one message on an avatar's render stream.
type Command struct {
	Type   string             `json:"type"`
	Avatar sequencer.AvatarID `json:"avatar_id"`
	Clip   *ClipRef           `json:"clip,omitempty"`
	From   *ClipRef           `json:"from,omitempty"`
	Window float64            `json:"window,omitempty"` // seconds
	Status *sequencer.Status  `json:"status,omitempty"`
	At     time.Time          `json:"at"`
}

func refOf(c *sequencer.Clip) *ClipRef {
	if c == nil {
		return nil
	}
	return &ClipRef{ID: c.ID, Asset: c.Asset, Duration: c.Seconds()}
}
