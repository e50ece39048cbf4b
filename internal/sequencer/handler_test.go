package sequencer

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"gesture-sequencer/internal/platform/metrics"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
)

func newTestHandler(t *testing.T) (*Handler, *clock.Mock) {
	t.Helper()
	f := newHandlerFixture(t, Options{}, nil)
	return f.handler, f.clock
}

type handlerFixture struct {
	handler *Handler
	clock   *clock.Mock

	mu      sync.Mutex
	players map[AvatarID]*recordingPlayer
}

func newHandlerFixture(t *testing.T, opts Options, m *metrics.Metrics) *handlerFixture {
	t.Helper()
	f := &handlerFixture{clock: clock.NewMock(), players: make(map[AvatarID]*recordingPlayer)}
	loader := newFakeLoader(map[GestureID]time.Duration{
		"HELLO": 1200 * time.Millisecond,
		"NAME":  900 * time.Millisecond,
	})
	opts.Clock = f.clock
	registry := NewRegistry(NewClipCache(loader, nil), func(avatar AvatarID) Player {
		p := newRecordingPlayer(f.clock)
		f.mu.Lock()
		f.players[avatar] = p
		f.mu.Unlock()
		return p
	}, opts)
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	f.handler = NewHandler(registry, log, m)
	return f
}

func (f *handlerFixture) player(avatar AvatarID) *recordingPlayer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.players[avatar]
}

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func doRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func near(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func TestHandler_PlaySequence(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	rec := doRequest(r, http.MethodPost, "/avatars/a1/sequences", `{"glosses":["hello","UNKNOWN_TOKEN","name"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp playbackResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SequenceID == "" || resp.AvatarID != "a1" {
		t.Errorf("unexpected ids: %+v", resp)
	}
	if len(resp.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(resp.Entries))
	}
	if e := resp.Entries[1]; e.Gesture != "UNKNOWN_TOKEN" || e.Available || e.Error == "" {
		t.Errorf("unexpected skipped entry %+v", e)
	}
	if e := resp.Entries[2]; !e.Available || !near(e.Offset, 1.2) || !near(e.Duration, 0.9) {
		t.Errorf("unexpected NAME entry %+v", e)
	}
	if !near(resp.FadeOutAt, 1.6) || !near(resp.End, 2.1) {
		t.Errorf("fade_out_at=%v end=%v", resp.FadeOutAt, resp.End)
	}
	if !strings.HasPrefix(resp.CueSheet, "#SEQUENCE steps=3") {
		t.Errorf("unexpected cue sheet %q", resp.CueSheet)
	}
}

func TestHandler_PlaySequence_from_text(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	rec := doRequest(r, http.MethodPost, "/avatars/a1/sequences", `{"text":"Hello, name!"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp playbackResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Entries) != 2 || resp.Entries[0].Gesture != "HELLO" || resp.Entries[1].Gesture != "NAME" {
		t.Errorf("unexpected entries %+v", resp.Entries)
	}
}

func TestHandler_PlaySequence_bad_request(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	cases := []struct {
		name string
		body string
	}{
		{"not_json", "not json"},
		{"unknown_field", `{"gestures":["HELLO"]}`},
		{"no_input", `{}`},
		{"wrong_type", `{"glosses":"HELLO"}`},
		{"empty_glosses", `{"glosses":[]}`},
		{"blank_text", `{"text":"  ...  "}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(r, http.MethodPost, "/avatars/a1/sequences", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_PlaySequence_conflict_while_playing(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	rec := doRequest(r, http.MethodPost, "/avatars/a1/sequences", `{"glosses":["HELLO"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("setup: expected 202, got %d", rec.Code)
	}

	rec = doRequest(r, http.MethodPost, "/avatars/a1/sequences", `{"glosses":["NAME"]}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var resp errorResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Status != "pending" {
		t.Errorf("expected pending status, got %+v", resp)
	}

	// Another avatar is independent.
	rec = doRequest(r, http.MethodPost, "/avatars/a2/sequences", `{"glosses":["NAME"]}`)
	if rec.Code != http.StatusAccepted {
		t.Errorf("expected 202 for a second avatar, got %d", rec.Code)
	}
}

func TestHandler_PlaySequence_unplayable(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	rec := doRequest(r, http.MethodPost, "/avatars/a1/sequences", `{"glosses":["X","Y"]}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}

	c, ok := h.registry.Lookup("a1")
	if !ok || c.State() != StateIdle {
		t.Error("avatar should exist and be idle after an unplayable request")
	}
}

func TestHandler_GetAvatar(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	if rec := doRequest(r, http.MethodGet, "/avatars/a1", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown avatar: expected 404, got %d", rec.Code)
	}

	doRequest(r, http.MethodPost, "/avatars/a1/sequences", `{"glosses":["HELLO","NAME"]}`)

	rec := doRequest(r, http.MethodGet, "/avatars/a1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snap map[string]any
	_ = json.NewDecoder(rec.Body).Decode(&snap)
	if snap["state"] != "playing" || snap["current"] != "HELLO" {
		t.Errorf("unexpected snapshot %v", snap)
	}

	rec = doRequest(r, http.MethodGet, "/avatars", "")
	var all []map[string]any
	_ = json.NewDecoder(rec.Body).Decode(&all)
	if len(all) != 1 || all[0]["avatar_id"] != "a1" {
		t.Errorf("unexpected avatar list %v", all)
	}
}

func TestHandler_CancelSequence(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	if rec := doRequest(r, http.MethodPost, "/avatars/a1/cancel", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown avatar: expected 404, got %d", rec.Code)
	}

	doRequest(r, http.MethodPost, "/avatars/a1/sequences", `{"glosses":["HELLO"]}`)

	rec := doRequest(r, http.MethodPost, "/avatars/a1/cancel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snap map[string]any
	_ = json.NewDecoder(rec.Body).Decode(&snap)
	if snap["state"] != "idle" {
		t.Errorf("expected idle after cancel, got %v", snap)
	}

	if rec := doRequest(r, http.MethodPost, "/avatars/a1/cancel", ""); rec.Code != http.StatusConflict {
		t.Errorf("cancel while idle: expected 409, got %d", rec.Code)
	}
}

func TestHandler_ListClips(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	doRequest(r, http.MethodPost, "/avatars/a1/sequences", `{"glosses":["NAME","HELLO"]}`)

	rec := doRequest(r, http.MethodGet, "/clips", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var clips []clipResponse
	_ = json.NewDecoder(rec.Body).Decode(&clips)
	if len(clips) != 2 || clips[0].ID != "HELLO" || !near(clips[0].Duration, 1.2) || clips[0].Asset != "hello.glb" {
		t.Errorf("unexpected clips %+v", clips)
	}
}

func TestHandler_CancelSequence_during_fade_out(t *testing.T) {
	f := newHandlerFixture(t, Options{}, nil)
	r := newTestRouter(f.handler)

	doRequest(r, http.MethodPost, "/avatars/a1/sequences", `{"glosses":["HELLO"]}`)
	p := f.player("a1")
	p.next(t)

	f.clock.Add(700 * time.Millisecond)
	if c := p.next(t); c.Op != "fade_out" {
		t.Fatalf("expected fade_out, got %+v", c)
	}

	rec := doRequest(r, http.MethodPost, "/avatars/a1/cancel", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var resp errorResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Status != "finishing" {
		t.Errorf("expected finishing status, got %+v", resp)
	}
	p.expectNone(t)
}

func TestHandler_PlaySequence_avatar_limit(t *testing.T) {
	f := newHandlerFixture(t, Options{MaxAvatars: 1}, nil)
	r := newTestRouter(f.handler)

	if rec := doRequest(r, http.MethodPost, "/avatars/a1/sequences", `{"glosses":["HELLO"]}`); rec.Code != http.StatusAccepted {
		t.Fatalf("first avatar: expected 202, got %d", rec.Code)
	}
	if rec := doRequest(r, http.MethodPost, "/avatars/a2/sequences", `{"glosses":["HELLO"]}`); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("over the limit: expected 503, got %d", rec.Code)
	}
	if _, ok := f.handler.registry.Lookup("a2"); ok {
		t.Error("a refused avatar must not get a controller")
	}
}

func TestHandler_PlaySequence_invalid_request_creates_no_controller(t *testing.T) {
	f := newHandlerFixture(t, Options{}, nil)
	r := newTestRouter(f.handler)

	for _, body := range []string{`{"glosses":[" "]}`, `{"text":"?!"}`, `not json`} {
		if rec := doRequest(r, http.MethodPost, "/avatars/ghost/sequences", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}
	if n := f.handler.registry.Len(); n != 0 {
		t.Errorf("invalid requests created %d controllers", n)
	}
}

func TestHandler_outcome_metrics(t *testing.T) {
	m := metrics.New()
	f := newHandlerFixture(t, Options{}, m)
	r := newTestRouter(f.handler)

	doRequest(r, http.MethodPost, "/avatars/a1/sequences", `{"glosses":["HELLO"]}`)
	doRequest(r, http.MethodPost, "/avatars/a1/sequences", `{"glosses":["NAME"]}`)
	doRequest(r, http.MethodPost, "/avatars/a2/sequences", `{"glosses":["X"]}`)
	doRequest(r, http.MethodPost, "/avatars/a2/sequences", `{}`)
	doRequest(r, http.MethodPost, "/avatars/a1/cancel", "")
	doRequest(r, http.MethodPost, "/avatars/a1/cancel", "")

	rec := httptest.NewRecorder()
	m.Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`gesture_handler_outcomes_total{action="play",outcome="accepted"} 1`,
		`gesture_handler_outcomes_total{action="play",outcome="pending"} 1`,
		`gesture_handler_outcomes_total{action="play",outcome="unplayable"} 1`,
		`gesture_handler_outcomes_total{action="play",outcome="invalid"} 1`,
		`gesture_handler_outcomes_total{action="cancel",outcome="canceled"} 1`,
		`gesture_handler_outcomes_total{action="cancel",outcome="not_playing"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in scrape output:\n%s", want, body)
		}
	}
}
