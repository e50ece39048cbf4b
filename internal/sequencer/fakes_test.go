package sequencer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

var errNoClip = errors.New("no such animation")

// fakeLoader serves clips from a duration table and counts loads per gesture.
type fakeLoader struct {
	mu        sync.Mutex
	durations map[GestureID]time.Duration
	calls     map[GestureID]int
	gate      chan struct{}  // when set, loads block until it is closed
	started   chan GestureID // when set, receives each gesture as its load begins
}

func newFakeLoader(durations map[GestureID]time.Duration) *fakeLoader {
	if durations == nil {
		durations = make(map[GestureID]time.Duration)
	}
	return &fakeLoader{durations: durations, calls: make(map[GestureID]int)}
}

func (l *fakeLoader) Load(ctx context.Context, id GestureID) (Clip, error) {
	l.mu.Lock()
	l.calls[id]++
	gate, started := l.gate, l.started
	l.mu.Unlock()

	if started != nil {
		select {
		case started <- id:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Clip{}, ctx.Err()
		}
	}

	l.mu.Lock()
	d, ok := l.durations[id]
	l.mu.Unlock()
	if !ok {
		return Clip{}, errNoClip
	}
	return Clip{Duration: d, Asset: strings.ToLower(string(id)) + ".glb"}, nil
}

func (l *fakeLoader) set(id GestureID, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.durations[id] = d
}

func (l *fakeLoader) block() (release func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gate = make(chan struct{})
	l.started = make(chan GestureID, 64)
	gate := l.gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (l *fakeLoader) Calls(id GestureID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[id]
}

// playerCall is one command received by recordingPlayer, stamped with the
// mock clock's offset from the test start.
type playerCall struct {
	Op     string
	Clip   GestureID
	From   GestureID
	Window time.Duration
	At     time.Duration
}

type recordingPlayer struct {
	clock *clock.Mock
	t0    time.Time
	calls chan playerCall
}

func newRecordingPlayer(mock *clock.Mock) *recordingPlayer {
	return &recordingPlayer{clock: mock, t0: mock.Now(), calls: make(chan playerCall, 64)}
}

func (p *recordingPlayer) at() time.Duration {
	return p.clock.Now().Sub(p.t0)
}

func (p *recordingPlayer) Start(clip *Clip) {
	p.calls <- playerCall{Op: "start", Clip: clip.ID, At: p.at()}
}

func (p *recordingPlayer) CrossfadeTo(from, to *Clip, window time.Duration) {
	p.calls <- playerCall{Op: "crossfade", Clip: to.ID, From: from.ID, Window: window, At: p.at()}
}

func (p *recordingPlayer) FadeOut(clip *Clip, window time.Duration) {
	p.calls <- playerCall{Op: "fade_out", Clip: clip.ID, Window: window, At: p.at()}
}

func (p *recordingPlayer) next(t *testing.T) playerCall {
	t.Helper()
	select {
	case c := <-p.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a player command")
		return playerCall{}
	}
}

func (p *recordingPlayer) expectNone(t *testing.T) {
	t.Helper()
	select {
	case c := <-p.calls:
		t.Fatalf("unexpected player command %+v", c)
	case <-time.After(30 * time.Millisecond):
	}
}

type recordingReporter struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *recordingReporter) Report(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recordingReporter) all() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...)
}

func (r *recordingReporter) kinds() []StatusKind {
	var out []StatusKind
	for _, s := range r.all() {
		out = append(out, s.Kind)
	}
	return out
}

func (r *recordingReporter) last() Status {
	all := r.all()
	if len(all) == 0 {
		return Status{}
	}
	return all[len(all)-1]
}

func waitDone(t *testing.T, pb *Playback) {
	t.Helper()
	select {
	case <-pb.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sequence completion")
	}
}
