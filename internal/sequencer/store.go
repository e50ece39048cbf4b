package sequencer

import "sort"

// ClipStore is the storage abstraction behind the ClipCache.
// Implementations need not be safe for concurrent use; the cache serializes
// access. A stored clip is never replaced or removed.
type ClipStore interface {
	GetClip(id GestureID) (*Clip, bool)
	// PutClip stores c under c.ID unless a clip is already stored there, and
	// returns whichever clip is stored afterwards.
	PutClip(c *Clip) *Clip
	ListClips() []*Clip
}

// InMemoryStore is a map-backed ClipStore.
type InMemoryStore struct {
	clips map[GestureID]*Clip
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		clips: make(map[GestureID]*Clip),
	}
}

// GetClip implements ClipStore.GetClip.
func (s *InMemoryStore) GetClip(id GestureID) (*Clip, bool) {
	c, ok := s.clips[id]
	return c, ok
}

// PutClip implements ClipStore.PutClip.
func (s *InMemoryStore) PutClip(c *Clip) *Clip {
	if existing, ok := s.clips[c.ID]; ok {
		return existing
	}
	s.clips[c.ID] = c
	return c
}

// ListClips implements ClipStore.ListClips, sorted by id.
func (s *InMemoryStore) ListClips() []*Clip {
	out := make([]*Clip, 0, len(s.clips))
	for _, c := range s.clips {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
