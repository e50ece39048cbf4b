package sequencer

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gesture-sequencer/internal/platform/logger"
)

func TestMultiReporter(t *testing.T) {
	var got []string
	m := MultiReporter{
		ReporterFunc(func(s Status) { got = append(got, "first:"+s.Text) }),
		nil,
		ReporterFunc(func(s Status) { got = append(got, "second:"+s.Text) }),
	}

	m.Report(Status{Kind: StatusFinished, Text: "Sequence finished."})

	if len(got) != 2 || got[0] != "first:Sequence finished." || got[1] != "second:Sequence finished." {
		t.Errorf("unexpected fan-out %v", got)
	}
}

func TestLogReporter_levels(t *testing.T) {
	var buf bytes.Buffer
	rep := NewLogReporter(logger.NewWithWriter(&buf, "info", "json"))

	rep.Report(Status{Avatar: "a1", Kind: StatusSigning, Step: 1, Total: 2, Gesture: "HELLO", Text: "Signing HELLO (1/2)"})
	rep.Report(Status{Avatar: "a1", Kind: StatusSkipped, Step: 2, Total: 2, Gesture: "X", Text: "Skipping X: animation not found"})
	rep.Report(Status{Avatar: "a1", Kind: StatusUnplayable, Text: "Could not find animations for: X."})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("signing updates are debug-level, expected 2 lines, got %d:\n%s", len(lines), buf.String())
	}

	var skipped, unplayable map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &skipped); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &unplayable); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if skipped["level"] != "WARN" || skipped["gesture"] != "X" || skipped["kind"] != "skipped" {
		t.Errorf("unexpected skip line %v", skipped)
	}
	if unplayable["level"] != "ERROR" || unplayable["msg"] != "Could not find animations for: X." {
		t.Errorf("unexpected unplayable line %v", unplayable)
	}
}
