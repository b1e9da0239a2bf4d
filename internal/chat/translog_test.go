package chat

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			return string(data)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no transcript line appeared at %s", path)
	return ""
}

func TestTranscriptLoggerWritesPerUserNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewTranscriptLogger(TranscriptLogConfig{
		Enabled:   true,
		Dir:       dir,
		QueueSize: 16,
	}, nil)
	if err != nil {
		t.Fatalf("NewTranscriptLogger failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Log(TranscriptEvent{
		UserID:    "user-1",
		Direction: "outbound",
		Kind:      "message",
		Text:      "hello there",
	})

	path := filepath.Join(dir, "user-1.ndjson")
	line := waitForLogLine(t, path)

	var got TranscriptEvent
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal transcript line: %v", err)
	}
	if got.Text != "hello there" {
		t.Fatalf("unexpected text: %q", got.Text)
	}
	if got.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be populated")
	}
}

func TestTranscriptLoggerDisabledIsNoop(t *testing.T) {
	t.Parallel()

	logger, err := NewTranscriptLogger(TranscriptLogConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("NewTranscriptLogger failed: %v", err)
	}
	// Must not panic or block.
	logger.Log(TranscriptEvent{UserID: "user-1", Text: "ignored"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestTranscriptLoggerGlobalFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	global := filepath.Join(dir, "all.ndjson")
	logger, err := NewTranscriptLogger(TranscriptLogConfig{
		Enabled:       true,
		Dir:           dir,
		GlobalEnabled: true,
		GlobalPath:    global,
		QueueSize:     16,
	}, nil)
	if err != nil {
		t.Fatalf("NewTranscriptLogger failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Log(TranscriptEvent{UserID: "user-2", Direction: "inbound", Kind: "message", Text: "hi"})

	if line := waitForLogLine(t, global); line == "" {
		t.Fatal("expected global transcript line")
	}
	if line := waitForLogLine(t, filepath.Join(dir, "user-2.ndjson")); line == "" {
		t.Fatal("expected per-user transcript line")
	}
}
