package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "production", "INFO")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug().Msg("hidden")
	logger.Info().Int("files", 3).Msg("loaded")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line above debug level, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if rec["service"] != "loresmith" || rec["message"] != "loaded" || rec["files"].(float64) != 3 {
		t.Errorf("unexpected record %v", rec)
	}
	if _, ok := rec["time"]; !ok {
		t.Error("expected timestamp")
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "local", "debug")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug().Msg("console line")
	out := buf.String()
	if !strings.Contains(out, "console line") || strings.HasPrefix(out, "{") {
		t.Errorf("expected console output, got %q", out)
	}
}

func TestNew_BadLevel(t *testing.T) {
	if _, err := New(io.Discard, "local", "chatty"); err == nil {
		t.Error("expected error for unknown level")
	}
}
