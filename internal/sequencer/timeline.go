package sequencer

import (
	"fmt"
	"strings"
	"time"
)

// Transition is how a step enters playback.
type Transition string

const (
	TransitionStart     Transition = "start"
	TransitionCrossfade Transition = "crossfade"
	TransitionSkip      Transition = "skip"
)

// Cue is one planned step of a sequence, with its offset from the start of
// the first clip.
type Cue struct {
	Step       int           `json:"step"`
	ID         GestureID     `json:"gesture"`
	Transition Transition    `json:"transition"`
	Offset     time.Duration `json:"-"`
	Duration   time.Duration `json:"-"`
	Reason     string        `json:"reason,omitempty"`
}

// Timeline is the planned schedule of a resolved sequence.
type Timeline struct {
	Cues      []Cue
	Blend     time.Duration
	FadeOut   time.Duration
	FadeOutAt time.Duration // when the last clip starts fading to rest
	End       time.Duration // when completion is reported
	Last      GestureID     // last playable gesture, empty if none
}

// BuildTimeline plans playback of entries: each clip starts when the previous
// one has run its full duration, crossfading over blend; unavailable entries
// take no time; entries after the last playable clip are skipped when that
// clip starts; the last clip fades out over fadeOut so that the fade ends at
// the clip's natural end. With no playable entry every cue is a skip at 0.
func BuildTimeline(entries []Entry, blend, fadeOut time.Duration) Timeline {
	tl := Timeline{Blend: blend, FadeOut: fadeOut, Cues: make([]Cue, 0, len(entries))}

	lastPlayable := -1
	for i, e := range entries {
		if e.Playable() {
			lastPlayable = i
		}
	}

	var cursor, lastStart time.Duration
	started := false
	for i, e := range entries {
		cue := Cue{Step: stepOf(e, i), ID: e.ID}
		switch {
		case !e.Playable():
			cue.Transition = TransitionSkip
			cue.Offset = cursor
			if lastPlayable >= 0 && i > lastPlayable {
				cue.Offset = lastStart
			}
			if e.Err != nil {
				cue.Reason = e.Err.Error()
			}
		default:
			cue.Transition = TransitionCrossfade
			if !started {
				cue.Transition = TransitionStart
				started = true
			}
			cue.Offset = cursor
			cue.Duration = e.Clip.Duration
			lastStart = cursor
			cursor += e.Clip.Duration
			if i == lastPlayable {
				tl.Last = e.ID
				tl.FadeOutAt = lastStart + fadeOutDelay(e.Clip.Duration, fadeOut)
				tl.End = tl.FadeOutAt + fadeOut
			}
		}
		tl.Cues = append(tl.Cues, cue)
	}

	return tl
}

// fadeOutDelay is how long after its start the last clip begins fading out.
func fadeOutDelay(d, fadeOut time.Duration) time.Duration {
	if d <= fadeOut {
		return 0
	}
	return d - fadeOut
}

func stepOf(e Entry, i int) int {
	if e.Step > 0 {
		return e.Step
	}
	return i + 1
}

// String renders the timeline as a cue sheet, one line per event with its
// offset in seconds.
func (tl Timeline) String() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("#SEQUENCE steps=%d blend=%.3f fade_out=%.3f\n",
		len(tl.Cues), tl.Blend.Seconds(), tl.FadeOut.Seconds()))

	for _, c := range tl.Cues {
		switch c.Transition {
		case TransitionSkip:
			b.WriteString(fmt.Sprintf("%.3f SKIP %s\n", c.Offset.Seconds(), c.ID))
		default:
			b.WriteString(fmt.Sprintf("%.3f %s %s %.3f\n",
				c.Offset.Seconds(), strings.ToUpper(string(c.Transition)), c.ID, c.Duration.Seconds()))
		}
	}

	if tl.Last != "" {
		b.WriteString(fmt.Sprintf("%.3f FADE_OUT %s\n", tl.FadeOutAt.Seconds(), tl.Last))
		b.WriteString(fmt.Sprintf("%.3f END\n", tl.End.Seconds()))
	}

	return b.String()
}
