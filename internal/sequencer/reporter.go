package sequencer

import (
	"context"
	"log/slog"
	"time"
)

// StatusKind classifies a progress update.
type StatusKind string

const (
	StatusStarted    StatusKind = "started"
	StatusSigning    StatusKind = "signing"
	StatusSkipped    StatusKind = "skipped"
	StatusFinished   StatusKind = "finished"
	StatusUnplayable StatusKind = "unplayable"
	StatusRejected   StatusKind = "rejected"
	StatusCanceled   StatusKind = "canceled"
)

// Status is one human-readable progress update.
type Status struct {
	Avatar     AvatarID   `json:"avatar_id"`
	SequenceID string     `json:"sequence_id,omitempty"`
	Kind       StatusKind `json:"kind"`
	Step       int        `json:"step,omitempty"`
	Total      int        `json:"total,omitempty"`
	Gesture    GestureID  `json:"gesture,omitempty"`
	Text       string     `json:"text"`
	At         time.Time  `json:"at"`
}

// StatusReporter receives progress updates. Report is called with the
// controller's lock held: it must not block and must not call back into the
// Controller.
type StatusReporter interface {
	Report(s Status)
}

// ReporterFunc adapts a function to StatusReporter.
type ReporterFunc func(s Status)

// Report implements StatusReporter.
func (f ReporterFunc) Report(s Status) { f(s) }

// MultiReporter fans a status out to several reporters in order.
type MultiReporter []StatusReporter

// Report implements StatusReporter.
func (m MultiReporter) Report(s Status) {
	for _, r := range m {
		if r != nil {
			r.Report(s)
		}
	}
}

// LogReporter writes every status as a structured log line.
type LogReporter struct {
	log *slog.Logger
}

// NewLogReporter returns a reporter logging to log.
func NewLogReporter(log *slog.Logger) *LogReporter {
	return &LogReporter{log: log}
}

// Report implements StatusReporter.
func (l *LogReporter) Report(s Status) {
	level := slog.LevelInfo
	switch s.Kind {
	case StatusSkipped, StatusRejected:
		level = slog.LevelWarn
	case StatusUnplayable:
		level = slog.LevelError
	case StatusSigning:
		level = slog.LevelDebug
	}
	l.log.Log(context.Background(), level, s.Text,
		slog.String("avatar_id", string(s.Avatar)),
		slog.String("sequence_id", s.SequenceID),
		slog.String("kind", string(s.Kind)),
		slog.Int("step", s.Step),
		slog.Int("total", s.Total),
		slog.String("gesture", string(s.Gesture)),
	)
}
