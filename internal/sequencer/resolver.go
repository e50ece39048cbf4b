package sequencer

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Resolver resolves gestures to clips. *ClipCache implements it.
type Resolver interface {
	Resolve(ctx context.Context, id GestureID) (*Clip, error)
}

// ResolveAll resolves every gesture of seq concurrently and waits for all of
// them to settle. The result has the same length and order as seq; gestures
// that could not be resolved keep their position with Err set.
func ResolveAll(ctx context.Context, r Resolver, seq []GestureID) []Entry {
	entries := make([]Entry, len(seq))

	// Every goroutine reports its outcome in entries and returns nil, so Wait
	// never short-circuits on a failed gesture.
	var g errgroup.Group
	for i, id := range seq {
		i, id := i, id
		g.Go(func() error {
			clip, err := r.Resolve(ctx, id)
			entries[i] = Entry{Step: i + 1, ID: id, Clip: clip, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return entries
}

// CountPlayable returns how many entries have a clip.
func CountPlayable(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if e.Playable() {
			n++
		}
	}
	return n
}
