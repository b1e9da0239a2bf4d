// Package api provides the REST read surface: health, taste profiles,
// battle history and the leaderboard. All chat interaction goes through the
// WebSocket transport; this surface exists for the web frontend's views.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mzaitsev/tastebot/internal/identity"
	"github.com/mzaitsev/tastebot/internal/store"
)

// Handler provides common handler utilities.
type Handler struct {
	repo store.Repository
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository) *Handler {
	return &Handler{repo: repo}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Health reports service liveness and repository connectivity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		Error(w, http.StatusServiceUnavailable, "repository unavailable")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Profile returns the caller's saved analysis and achievements.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "no identity")
		return
	}

	analysis, err := h.repo.GetAnalysis(r.Context(), userID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if analysis == nil {
		Error(w, http.StatusNotFound, "no analysis yet")
		return
	}

	achievements, err := h.repo.ListAchievements(r.Context(), userID)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load achievements")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      userID,
		"username":     identity.UsernameFromContext(r.Context()),
		"analysis":     analysis,
		"achievements": achievements,
	})
}

// History returns the caller's most recent battles.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "no identity")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			Error(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	history, err := h.repo.BattleHistory(r.Context(), userID, limit)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"battles": history})
}

// Leaderboard returns the top battle winners.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.repo.Leaderboard(r.Context(), 10)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}
	if entries == nil {
		entries = []store.LeaderboardEntry{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"leaderboard": entries})
}
