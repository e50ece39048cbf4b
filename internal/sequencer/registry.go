package sequencer

import (
	"fmt"
	"sort"
	"sync"
)

// PlayerFactory returns the Player that drives one avatar.
type PlayerFactory func(avatar AvatarID) Player

// Registry holds one Controller per avatar, created on first use. All
// controllers share the registry's ClipCache.
type Registry struct {
	mu          sync.RWMutex
	cache       *ClipCache
	newPlayer   PlayerFactory
	opts        Options
	controllers map[AvatarID]*Controller
}

// NewRegistry constructs an empty registry.
func NewRegistry(cache *ClipCache, newPlayer PlayerFactory, opts Options) *Registry {
	return &Registry{
		cache:       cache,
		newPlayer:   newPlayer,
		opts:        opts,
		controllers: make(map[AvatarID]*Controller),
	}
}

// Controller returns the controller for avatar, creating it if needed. It
// fails with ErrTooManyAvatars when creating one would exceed
// Options.MaxAvatars.
func (r *Registry) Controller(avatar AvatarID) (*Controller, error) {
	if c, ok := r.Lookup(avatar); ok {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.controllers[avatar]; ok {
		return c, nil
	}
	if r.opts.MaxAvatars > 0 && len(r.controllers) >= r.opts.MaxAvatars {
		return nil, fmt.Errorf("%w: limit is %d", ErrTooManyAvatars, r.opts.MaxAvatars)
	}
	c := NewController(avatar, r.cache, r.newPlayer(avatar), r.opts)
	r.controllers[avatar] = c
	return c, nil
}

// Len returns the number of avatars with a controller.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.controllers)
}

// Lookup returns the controller for avatar if one was created.
func (r *Registry) Lookup(avatar AvatarID) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.controllers[avatar]
	return c, ok
}

// Snapshots returns the state of every known avatar, sorted by id.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	ctrls := make([]*Controller, 0, len(r.controllers))
	for _, c := range r.controllers {
		ctrls = append(ctrls, c)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(ctrls))
	for _, c := range ctrls {
		out = append(out, c.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Avatar < out[j].Avatar })
	return out
}

// ActiveCount returns the number of avatars not idle.
func (r *Registry) ActiveCount() int {
	n := 0
	for _, s := range r.Snapshots() {
		if s.State != StateIdle {
			n++
		}
	}
	return n
}

// Cache returns the shared clip cache.
func (r *Registry) Cache() *ClipCache {
	return r.cache
}
