package sequencer

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"gesture-sequencer/internal/platform/metrics"

	"golang.org/x/sync/singleflight"
)

// ClipLoader produces playable clips from the clip source. Mapping a gesture
// to a concrete resource (file name, URL, object key) is the loader's concern.
type ClipLoader interface {
	Load(ctx context.Context, id GestureID) (Clip, error)
}

// LoaderFunc adapts a function to ClipLoader.
type LoaderFunc func(ctx context.Context, id GestureID) (Clip, error)

// Load implements ClipLoader.
func (f LoaderFunc) Load(ctx context.Context, id GestureID) (Clip, error) {
	return f(ctx, id)
}

// ClipCache maps gestures to loaded clips. Each gesture is loaded at most once
// while it is cached; concurrent resolutions of an uncached gesture share one
// load. Failures are not cached, so a later request retries the loader.
type ClipCache struct {
	mu      sync.RWMutex
	store   ClipStore
	loader  ClipLoader
	flight  singleflight.Group
	metrics *metrics.Metrics
}

// NewClipCache constructs a cache over loader with a default in-memory store.
// m may be nil to disable metric recording.
func NewClipCache(loader ClipLoader, m *metrics.Metrics) *ClipCache {
	return NewClipCacheWithStore(loader, NewInMemoryStore(), m)
}

// NewClipCacheWithStore constructs a cache that uses the given ClipStore.
func NewClipCacheWithStore(loader ClipLoader, store ClipStore, m *metrics.Metrics) *ClipCache {
	return &ClipCache{store: store, loader: loader, metrics: m}
}

// Resolve returns the clip for id, loading it on first use. The id is
// normalized before lookup. Errors wrap ErrClipUnavailable.
func (c *ClipCache) Resolve(ctx context.Context, id GestureID) (*Clip, error) {
	id = NormalizeGesture(string(id))
	if id == "" {
		return nil, fmt.Errorf("empty gesture: %w", ErrClipUnavailable)
	}

	if clip, ok := c.Get(id); ok {
		if c.metrics != nil {
			c.metrics.IncClipCacheHits()
		}
		return clip, nil
	}

	ch := c.flight.DoChan(string(id), func() (any, error) {
		return c.load(context.WithoutCancel(ctx), id)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Clip), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("gesture %s: %w: %w", id, ErrClipUnavailable, ctx.Err())
	}
}

// load runs inside the singleflight group. Its context carries no
// cancellation so that one caller giving up does not fail the others.
func (c *ClipCache) load(ctx context.Context, id GestureID) (*Clip, error) {
	// A load for id may have finished between the caller's miss and now.
	if clip, ok := c.Get(id); ok {
		return clip, nil
	}

	if c.metrics != nil {
		c.metrics.IncClipFetches()
	}
	loaded, err := c.loader.Load(ctx, id)
	if err == nil && loaded.Duration <= 0 {
		err = fmt.Errorf("non-positive duration %v", loaded.Duration)
	}
	if err != nil {
		if c.metrics != nil {
			c.metrics.IncClipFetchFailures()
		}
		return nil, fmt.Errorf("gesture %s: %w: %w", id, ErrClipUnavailable, err)
	}

	loaded.ID = id
	c.mu.Lock()
	stored := c.store.PutClip(&loaded)
	n := len(c.store.ListClips())
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.SetCachedClips(n)
	}
	return stored, nil
}

// Get returns the cached clip for id without loading.
func (c *ClipCache) Get(id GestureID) (*Clip, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.GetClip(NormalizeGesture(string(id)))
}

// Clips returns every cached clip, sorted by id.
func (c *ClipCache) Clips() []*Clip {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.ListClips()
}

// Len returns the number of cached clips.
func (c *ClipCache) Len() int {
	return len(c.Clips())
}

// DurationFromSeconds converts a loader-reported duration in seconds,
// rounding to the nearest nanosecond.
func DurationFromSeconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
