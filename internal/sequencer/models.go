package sequencer

import (
	"strings"
	"time"
)

// AvatarID identifies one rendered avatar. Each avatar owns exactly one Controller.
type AvatarID string

// GestureID is a normalized gloss token naming one sign.
type GestureID string

// NormalizeGesture trims surrounding whitespace and upper-cases a raw token.
// It is the only place gesture tokens are case-folded.
func NormalizeGesture(raw string) GestureID {
	return GestureID(strings.ToUpper(strings.TrimSpace(raw)))
}

// NormalizeSequence normalizes every token of a raw sequence, keeping order
// and duplicates. Tokens that are blank after trimming are dropped.
func NormalizeSequence(raw []string) []GestureID {
	out := make([]GestureID, 0, len(raw))
	for _, s := range raw {
		if id := NormalizeGesture(s); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Clip is a loaded, playable animation. Once the cache holds a *Clip it is
// never modified.
type Clip struct {
	ID       GestureID     `json:"id"`
	Duration time.Duration `json:"-"`

	// Asset is the loader-specific reference the renderer fetches (file path,
	// URL or object key).
	Asset string `json:"asset"`
}

// Seconds returns the clip duration in seconds.
func (c *Clip) Seconds() float64 {
	return c.Duration.Seconds()
}

// Entry is one resolved position of a sequence: either a clip or the error
// that made it unavailable.
type Entry struct {
	// Step is the 1-based position in the requested sequence.
	Step int
	ID   GestureID
	Clip *Clip
	Err  error
}

// Playable reports whether the entry has a clip.
func (e Entry) Playable() bool {
	return e.Clip != nil
}

// State is the playback state of a Controller.
type State int

const (
	StateIdle State = iota
	StateResolving
	StatePlaying
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StatePlaying:
		return "playing"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a point-in-time copy of a Controller's state.
type Snapshot struct {
	Avatar     AvatarID  `json:"avatar_id"`
	State      State     `json:"state"`
	SequenceID string    `json:"sequence_id,omitempty"`
	Step       int       `json:"step,omitempty"`
	Total      int       `json:"total,omitempty"`
	Current    GestureID `json:"current,omitempty"`
}
