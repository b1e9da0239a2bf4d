package chat

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/mzaitsev/tastebot/internal/identity"
	"github.com/mzaitsev/tastebot/internal/store"
)

// MessageHandler consumes one inbound chat message. Calls for the same user
// are made sequentially in arrival order; the handler must not be invoked
// again for a user until the previous call returned.
type MessageHandler func(ctx context.Context, userID, username, text string)

// WebSocketHandler upgrades chat connections and pumps inbound messages into
// the dispatcher.
type WebSocketHandler struct {
	repo          store.Repository
	hub           *Hub
	transcript    *TranscriptLogger
	handle        MessageHandler
	botToken      string
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates the chat WebSocket handler.
func NewWebSocketHandler(repo store.Repository, hub *Hub, transcript *TranscriptLogger, handle MessageHandler, botToken, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		repo:          repo,
		hub:           hub,
		transcript:    transcript,
		handle:        handle,
		botToken:      botToken,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

type inboundFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	username := identity.UsernameFromContext(r.Context())
	slog.Info("Chat connection request", "user_id", userID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	if !h.checkToken(r) {
		http.Error(w, "invalid bot token", http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.hub.Register(userID, ws)
	defer h.hub.Unregister(userID, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The identity middleware already ensured the user record exists.
	if err := h.repo.TouchActivity(ctx, userID, time.Now()); err != nil {
		slog.Warn("Failed to touch user on connect", "user_id", userID, "error", err)
	}

	h.readLoop(ctx, ws, userID, username)
	slog.Info("Chat session ended", "user_id", userID)
}

// readLoop pumps inbound frames into the dispatcher one at a time, which
// gives each user the single-conversation-thread ordering the workflow
// engine relies on.
func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, userID, username string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			// Fall back to treating the payload as plain text.
			frame = inboundFrame{Type: "message", Text: string(message)}
		}
		if frame.Type != "" && frame.Type != "message" {
			continue
		}
		if frame.Text == "" {
			continue
		}

		h.transcript.Log(TranscriptEvent{
			UserID:    userID,
			Direction: "inbound",
			Kind:      "message",
			Text:      frame.Text,
		})

		h.handle(ctx, userID, username, frame.Text)
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) checkToken(r *http.Request) bool {
	if h.botToken == "" {
		return true
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("X-Bot-Token")
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.botToken)) == 1
}
