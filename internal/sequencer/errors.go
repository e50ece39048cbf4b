package sequencer

import "errors"

var (
	// ErrClipUnavailable is returned when no clip could be produced for a
	// gesture. It wraps the loader's own error.
	ErrClipUnavailable = errors.New("clip unavailable")

	// ErrSequenceUnplayable is returned when every gesture of a request is
	// unavailable. No playback state is entered.
	ErrSequenceUnplayable = errors.New("sequence has no playable gestures")

	// ErrSequenceActive is returned when a sequence is requested while another
	// one is still resolving, playing or draining.
	ErrSequenceActive = errors.New("a sequence is already in progress")

	// ErrEmptySequence is returned for a request without any gesture.
	ErrEmptySequence = errors.New("sequence is empty")

	// ErrNotPlaying is returned by Cancel when there is nothing to cancel.
	ErrNotPlaying = errors.New("no sequence is playing")

	// ErrSequenceFinishing is returned by Cancel once the last clip has
	// started fading back to rest.
	ErrSequenceFinishing = errors.New("sequence is already fading out")

	// ErrTooManyAvatars is returned by Registry.Controller when the avatar
	// limit is reached.
	ErrTooManyAvatars = errors.New("too many avatars")
)

// ErrSequenceCanceled is reported by Playback.Err when a sequence was
// stopped through Controller.Cancel.
var ErrSequenceCanceled = errors.New("sequence canceled")
