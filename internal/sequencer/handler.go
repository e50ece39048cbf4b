package sequencer

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"gesture-sequencer/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const maxRequestBody = 64 << 10

const sequenceRequestSchemaJSON = `{
	"type": "object",
	"properties": {
		"glosses": {
			"type": "array",
			"items": {"type": "string", "minLength": 1, "maxLength": 64},
			"maxItems": 128
		},
		"text": {"type": "string", "maxLength": 2000}
	},
	"additionalProperties": false,
	"anyOf": [
		{"required": ["glosses"]},
		{"required": ["text"]}
	]
}`

var sequenceRequestSchema = jsonschema.MustCompileString("sequence_request.json", sequenceRequestSchemaJSON)

// SequenceRequest is the body of POST /avatars/{avatar_id}/sequences.
// Glosses take precedence; Text is glossed word by word when Glosses is empty.
type SequenceRequest struct {
	Glosses []string `json:"glosses"`
	Text    string   `json:"text"`
}

type entryResponse struct {
	Step      int       `json:"step"`
	Gesture   GestureID `json:"gesture"`
	Available bool      `json:"available"`
	Duration  float64   `json:"duration,omitempty"`
	Offset    float64   `json:"offset"`
	Error     string    `json:"error,omitempty"`
}

type playbackResponse struct {
	SequenceID string          `json:"sequence_id"`
	AvatarID   AvatarID        `json:"avatar_id"`
	State      State           `json:"state"`
	Entries    []entryResponse `json:"entries"`
	FadeOutAt  float64         `json:"fade_out_at"`
	End        float64         `json:"end"`
	CueSheet   string          `json:"cue_sheet"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status,omitempty"`
}

type clipResponse struct {
	ID       GestureID `json:"id"`
	Duration float64   `json:"duration"`
	Asset    string    `json:"asset"`
}

// Handler exposes the sequencer over HTTP using go-chi.
type Handler struct {
	registry *Registry
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewHandler returns a Handler over registry. Metrics may be nil to disable
// metric recording (e.g. in tests).
func NewHandler(registry *Registry, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{registry: registry, log: log, metrics: m}
}

// Routes mounts the sequencer endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/clips", h.ListClips)
	r.Get("/avatars", h.ListAvatars)
	r.Route("/avatars/{avatar_id}", func(r chi.Router) {
		r.Get("/", h.GetAvatar)
		r.Post("/sequences", h.PlaySequence)
		r.Post("/cancel", h.CancelSequence)
	})
}

// PlaySequence handles POST /avatars/{avatar_id}/sequences.
// Body: { "glosses": ["HELLO", "NAME"] } or { "text": "hello name" }.
func (h *Handler) PlaySequence(w http.ResponseWriter, r *http.Request) {
	avatar := AvatarID(chi.URLParam(r, "avatar_id"))
	if avatar == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		h.count("play", "invalid")
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	req, err := decodeSequenceRequest(raw)
	if err != nil {
		h.log.Debug("invalid sequence body", slog.String("error", err.Error()))
		h.count("play", "invalid")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	gestures := req.Glosses
	if len(gestures) == 0 {
		gestures = GlossFromText(req.Text)
	}
	// Checked here as well as in Play so that an empty request never
	// creates a controller.
	if len(NormalizeSequence(gestures)) == 0 {
		h.count("play", "invalid")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ErrEmptySequence.Error()})
		return
	}

	c, err := h.registry.Controller(avatar)
	if err != nil {
		h.log.Warn("avatar refused", slog.String("avatar_id", string(avatar)), slog.String("error", err.Error()))
		h.count("play", "avatar_limit")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	pb, err := c.Play(r.Context(), gestures)
	if err != nil {
		switch {
		case errors.Is(err, ErrSequenceActive):
			h.log.Info("sequence rejected, avatar busy", slog.String("avatar_id", string(avatar)))
			h.count("play", "pending")
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Status: "pending"})
		case errors.Is(err, ErrEmptySequence):
			h.count("play", "invalid")
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		case errors.Is(err, ErrSequenceUnplayable):
			h.log.Info("sequence unplayable", slog.String("avatar_id", string(avatar)), slog.String("error", err.Error()))
			h.count("play", "unplayable")
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		default:
			h.log.Error("play sequence failed", slog.String("avatar_id", string(avatar)), slog.String("error", err.Error()))
			h.count("play", "error")
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}

	h.log.Info("sequence accepted",
		slog.String("avatar_id", string(avatar)),
		slog.String("sequence_id", pb.ID),
		slog.Int("gestures", len(pb.Entries)))
	h.count("play", "accepted")
	writeJSON(w, http.StatusAccepted, newPlaybackResponse(pb, c.State()))
}

// GetAvatar handles GET /avatars/{avatar_id}.
func (h *Handler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	avatar := AvatarID(chi.URLParam(r, "avatar_id"))
	c, ok := h.registry.Lookup(avatar)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

// ListAvatars handles GET /avatars.
func (h *Handler) ListAvatars(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Snapshots())
}

// CancelSequence handles POST /avatars/{avatar_id}/cancel.
func (h *Handler) CancelSequence(w http.ResponseWriter, r *http.Request) {
	avatar := AvatarID(chi.URLParam(r, "avatar_id"))
	c, ok := h.registry.Lookup(avatar)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if err := c.Cancel(); err != nil {
		switch {
		case errors.Is(err, ErrNotPlaying):
			h.count("cancel", "not_playing")
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		case errors.Is(err, ErrSequenceFinishing):
			h.count("cancel", "finishing")
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Status: "finishing"})
		default:
			h.log.Error("cancel failed", slog.String("avatar_id", string(avatar)), slog.String("error", err.Error()))
			h.count("cancel", "error")
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}

	h.log.Info("sequence canceled", slog.String("avatar_id", string(avatar)))
	h.count("cancel", "canceled")
	writeJSON(w, http.StatusOK, c.Snapshot())
}

// ListClips handles GET /clips: the vocabulary loaded so far.
func (h *Handler) ListClips(w http.ResponseWriter, r *http.Request) {
	clips := h.registry.Cache().Clips()
	out := make([]clipResponse, 0, len(clips))
	for _, c := range clips {
		out = append(out, clipResponse{ID: c.ID, Duration: c.Seconds(), Asset: c.Asset})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) count(action, outcome string) {
	if h.metrics != nil {
		h.metrics.IncHandlerOutcome(action, outcome)
	}
}

func decodeSequenceRequest(raw []byte) (SequenceRequest, error) {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return SequenceRequest{}, err
	}
	if err := sequenceRequestSchema.Validate(payload); err != nil {
		return SequenceRequest{}, err
	}
	var req SequenceRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return SequenceRequest{}, err
	}
	return req, nil
}

func newPlaybackResponse(pb *Playback, state State) playbackResponse {
	resp := playbackResponse{
		SequenceID: pb.ID,
		AvatarID:   pb.Avatar,
		State:      state,
		Entries:    make([]entryResponse, 0, len(pb.Entries)),
		FadeOutAt:  pb.Timeline.FadeOutAt.Seconds(),
		End:        pb.Timeline.End.Seconds(),
		CueSheet:   pb.Timeline.String(),
	}
	for i, e := range pb.Entries {
		er := entryResponse{Step: e.Step, Gesture: e.ID, Available: e.Playable()}
		if i < len(pb.Timeline.Cues) {
			er.Offset = pb.Timeline.Cues[i].Offset.Seconds()
		}
		if e.Playable() {
			er.Duration = e.Clip.Seconds()
		}
		if e.Err != nil {
			er.Error = e.Err.Error()
		}
		resp.Entries = append(resp.Entries, er)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
