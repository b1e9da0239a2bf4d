package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Frame is the JSON wire format exchanged over the chat WebSocket.
type Frame struct {
	Type        string   `json:"type"` // "message", "edit"
	ID          string   `json:"id,omitempty"`
	Text        string   `json:"text,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

type connEntry struct {
	conn      *websocket.Conn
	lastMsgID string
}

// Hub tracks active chat connections per user and implements Messenger on
// top of them. A user with no active connection is treated as deliverable
// but absent: the message is logged and dropped.
type Hub struct {
	mu         sync.RWMutex
	active     map[string]*connEntry
	transcript *TranscriptLogger
}

// NewHub creates an empty connection hub.
func NewHub(transcript *TranscriptLogger) *Hub {
	return &Hub{
		active:     make(map[string]*connEntry),
		transcript: transcript,
	}
}

// Register adds a WebSocket connection for a user, replacing any previous one.
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.active[userID]; ok && existing.conn != conn {
		_ = existing.conn.Close(websocket.StatusNormalClosure, "session replaced")
	}
	h.active[userID] = &connEntry{conn: conn}
	slog.Info("Chat session registered", "user_id", userID)
}

// Unregister removes a WebSocket connection for a user.
func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.active[userID]; ok && current.conn == conn {
		delete(h.active, userID)
		slog.Info("Chat session unregistered", "user_id", userID)
	}
}

// CloseSession forcefully terminates the active session for a user.
func (h *Hub) CloseSession(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if entry, ok := h.active[userID]; ok {
		_ = entry.conn.Close(websocket.StatusNormalClosure, "session closed")
		delete(h.active, userID)
		slog.Info("Chat session closed", "user_id", userID)
	}
}

// Send delivers a new message to the user.
func (h *Hub) Send(ctx context.Context, userID, text string, opts *SendOptions) error {
	frame := Frame{Type: "message", ID: uuid.NewString(), Text: text}
	if opts != nil {
		frame.Suggestions = opts.Suggestions
	}

	h.transcript.Log(TranscriptEvent{
		UserID:    userID,
		Direction: "outbound",
		Kind:      frame.Type,
		Text:      text,
	})

	h.mu.Lock()
	entry, ok := h.active[userID]
	if ok {
		entry.lastMsgID = frame.ID
	}
	h.mu.Unlock()

	if !ok {
		slog.Debug("Dropping message for offline user", "user_id", userID)
		return nil
	}
	return h.write(ctx, userID, entry.conn, frame)
}

// EditLast replaces the text of the most recent message sent to the user.
func (h *Hub) EditLast(ctx context.Context, userID, text string) error {
	h.mu.RLock()
	entry, ok := h.active[userID]
	var lastID string
	if ok {
		lastID = entry.lastMsgID
	}
	h.mu.RUnlock()

	h.transcript.Log(TranscriptEvent{
		UserID:    userID,
		Direction: "outbound",
		Kind:      "edit",
		Text:      text,
	})

	if !ok {
		slog.Debug("Dropping edit for offline user", "user_id", userID)
		return nil
	}
	if lastID == "" {
		// Nothing to edit yet, fall back to a fresh message.
		return h.Send(ctx, userID, text, nil)
	}
	return h.write(ctx, userID, entry.conn, Frame{Type: "edit", ID: lastID, Text: text})
}

func (h *Hub) write(ctx context.Context, userID string, conn *websocket.Conn, frame Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("write frame to %s: %w", userID, err)
	}
	return nil
}
