package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestNewWritesJSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "json", Out: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info().Msg("hidden")
	Component(logger, "summary").Warn().Msg("slice failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if entry["component"] != "summary" || entry["message"] != "slice failed" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Fatalf("expected timestamp in %v", entry)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatal("expected level error")
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Format: "console", Out: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	logger.Info().Str("entity", "suppliers").Msg("loaded")
	if !strings.Contains(buf.String(), "loaded") || strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("expected console output, got %q", buf.String())
	}
}
