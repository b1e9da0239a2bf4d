package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TranscriptEvent is one chat message as recorded in the transcript log.
type TranscriptEvent struct {
	Timestamp time.Time `json:"ts"`
	UserID    string    `json:"user_id"`
	Direction string    `json:"direction"` // "inbound", "outbound"
	Kind      string    `json:"kind"`      // "message", "edit"
	Text      string    `json:"text"`
}

// TranscriptLogConfig controls transcript logging.
type TranscriptLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// TranscriptLogger appends chat messages to per-user NDJSON files, and
// optionally to one global file. Writes happen on a background goroutine so
// logging never blocks message handling; events are dropped when the queue
// is full.
type TranscriptLogger struct {
	cfg    TranscriptLogConfig
	logger *slog.Logger
	queue  chan TranscriptEvent
	wg     sync.WaitGroup
	once   sync.Once
}

// NewTranscriptLogger creates a transcript logger. A disabled config yields
// a logger whose Log is a no-op.
func NewTranscriptLogger(cfg TranscriptLogConfig, logger *slog.Logger) (*TranscriptLogger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &TranscriptLogger{cfg: cfg, logger: logger}
	if !cfg.Enabled && !cfg.GlobalEnabled {
		return t, nil
	}

	if cfg.Enabled {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("create transcript dir: %w", err)
		}
	}
	if cfg.GlobalEnabled {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0755); err != nil {
			return nil, fmt.Errorf("create global transcript dir: %w", err)
		}
	}

	size := cfg.QueueSize
	if size <= 0 {
		size = 1000
	}
	t.queue = make(chan TranscriptEvent, size)
	t.wg.Add(1)
	go t.drain()
	return t, nil
}

// Log enqueues an event for writing. Never blocks.
func (t *TranscriptLogger) Log(event TranscriptEvent) {
	if t == nil || t.queue == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case t.queue <- event:
	default:
		t.logger.Warn("transcript queue full, dropping event", "user_id", event.UserID)
	}
}

// Close stops the writer goroutine after draining queued events.
func (t *TranscriptLogger) Close() error {
	if t == nil || t.queue == nil {
		return nil
	}
	t.once.Do(func() { close(t.queue) })
	t.wg.Wait()
	return nil
}

func (t *TranscriptLogger) drain() {
	defer t.wg.Done()
	for event := range t.queue {
		line, err := json.Marshal(event)
		if err != nil {
			t.logger.Warn("failed to encode transcript event", "error", err)
			continue
		}
		line = append(line, '\n')

		if t.cfg.Enabled {
			path := filepath.Join(t.cfg.Dir, event.UserID+".ndjson")
			t.append(path, line)
		}
		if t.cfg.GlobalEnabled {
			t.append(t.cfg.GlobalPath, line)
		}
	}
}

func (t *TranscriptLogger) append(path string, line []byte) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		t.logger.Warn("failed to open transcript file", "path", path, "error", err)
		return
	}
	if _, err := f.Write(line); err != nil {
		t.logger.Warn("failed to write transcript line", "path", path, "error", err)
	}
	if err := f.Close(); err != nil {
		t.logger.Warn("failed to close transcript file", "path", path, "error", err)
	}
}
