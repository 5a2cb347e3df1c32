package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNew_JSONIncludesFieldsAndSession(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	ctx := ContextWithSessionID(context.Background(), "sess-1")
	log.With(String("component", "loader")).Info(ctx, "dataset loaded", Int("rows", 42), Err(errors.New("boom")))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "dataset loaded" {
		t.Errorf("unexpected msg %v", entry["msg"])
	}
	if entry["component"] != "loader" {
		t.Errorf("expected component field, got %v", entry["component"])
	}
	if entry["rows"] != float64(42) {
		t.Errorf("expected rows=42, got %v", entry["rows"])
	}
	if entry["session_id"] != "sess-1" {
		t.Errorf("expected session_id, got %v", entry["session_id"])
	}
	if entry["error"] != "boom" {
		t.Errorf("expected error field, got %v", entry["error"])
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestNoop(t *testing.T) {
	log := Noop().With(String("k", "v"))
	log.Error(context.Background(), "ignored")
}

func TestSessionIDFromContext_Empty(t *testing.T) {
	if id := SessionIDFromContext(context.Background()); id != "" {
		t.Errorf("expected empty id, got %q", id)
	}
}
