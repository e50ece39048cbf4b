package player

import (
	"sync"
	"time"

	"gesture-sequencer/internal/sequencer"
)

const subscriberBuffer = 64

// Hub fans render commands and status updates out to the subscribers of
// each avatar. Sends never block: a subscriber that falls behind loses
// messages rather than stalling playback.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[sequencer.AvatarID]map[chan Command]struct{}
	now         func() time.Time
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[sequencer.AvatarID]map[chan Command]struct{}),
		now:         time.Now,
	}
}

// Subscribe registers a new listener for avatar.
func (h *Hub) Subscribe(avatar sequencer.AvatarID) chan Command {
	ch := make(chan Command, subscriberBuffer)
	h.mu.Lock()
	subs, ok := h.subscribers[avatar]
	if !ok {
		subs = make(map[chan Command]struct{})
		h.subscribers[avatar] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes ch.
func (h *Hub) Unsubscribe(avatar sequencer.AvatarID, ch chan Command) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subscribers[avatar]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(h.subscribers, avatar)
	}
}

// Subscribers returns the number of listeners for avatar.
func (h *Hub) Subscribers(avatar sequencer.AvatarID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[avatar])
}

// Publish delivers cmd to every subscriber of cmd.Avatar.
func (h *Hub) Publish(cmd Command) {
	if cmd.At.IsZero() {
		cmd.At = h.now()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers[cmd.Avatar] {
		select {
		case ch <- cmd:
		default:
			// Drop if the listener is slow.
		}
	}
}

// Report implements sequencer.StatusReporter, routing by avatar.
func (h *Hub) Report(s sequencer.Status) {
	h.Publish(Command{Type: CommandStatus, Avatar: s.Avatar, Status: &s, At: s.At})
}

// Player returns a sequencer.Player publishing to avatar's subscribers.
func (h *Hub) Player(avatar sequencer.AvatarID) sequencer.Player {
	return &hubPlayer{hub: h, avatar: avatar}
}

type hubPlayer struct {
	hub    *Hub
	avatar sequencer.AvatarID
}

func (p *hubPlayer) Start(clip *sequencer.Clip) {
	p.hub.Publish(Command{Type: CommandStart, Avatar: p.avatar, Clip: refOf(clip)})
}

func (p *hubPlayer) CrossfadeTo(from, to *sequencer.Clip, window time.Duration) {
	p.hub.Publish(Command{Type: CommandCrossfade, Avatar: p.avatar, From: refOf(from), Clip: refOf(to), Window: window.Seconds()})
}

func (p *hubPlayer) FadeOut(clip *sequencer.Clip, window time.Duration) {
	p.hub.Publish(Command{Type: CommandFadeOut, Avatar: p.avatar, Clip: refOf(clip), Window: window.Seconds()})
}
