package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mzaitsev/tastebot/internal/domain"
	"github.com/mzaitsev/tastebot/internal/identity"
	"github.com/mzaitsev/tastebot/internal/store"
)

func newRequest(t *testing.T, userID, username, target string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if userID != "" {
		req = req.WithContext(identity.WithIdentity(req.Context(), userID, username))
	}
	return req
}

func TestHealth(t *testing.T) {
	t.Parallel()

	h := NewHandler(store.NewMemory())
	rec := httptest.NewRecorder()
	h.Health(rec, newRequest(t, "", "", "/api/health"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %q, want ok", body["status"])
	}
}

func TestProfileRequiresIdentity(t *testing.T) {
	t.Parallel()

	h := NewHandler(store.NewMemory())
	rec := httptest.NewRecorder()
	h.Profile(rec, newRequest(t, "", "", "/api/profile"))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestProfileNotFoundWithoutAnalysis(t *testing.T) {
	t.Parallel()

	h := NewHandler(store.NewMemory())
	rec := httptest.NewRecorder()
	h.Profile(rec, newRequest(t, "u1", "alice", "/api/profile"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestProfileReturnsAnalysis(t *testing.T) {
	t.Parallel()

	repo := store.NewMemory()
	err := repo.SaveAnalysis(context.Background(), "u1", &domain.Analysis{
		Mood:       "energetic",
		Energy:     0.8,
		TrackCount: 12,
		AnalyzedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("SaveAnalysis: %v", err)
	}

	h := NewHandler(repo)
	rec := httptest.NewRecorder()
	h.Profile(rec, newRequest(t, "u1", "alice", "/api/profile"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		UserID   string           `json:"user_id"`
		Username string           `json:"username"`
		Analysis *domain.Analysis `json:"analysis"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.UserID != "u1" || body.Username != "alice" {
		t.Fatalf("identity = %s/%s, want u1/alice", body.UserID, body.Username)
	}
	if body.Analysis == nil || body.Analysis.Mood != "energetic" {
		t.Fatalf("analysis = %+v, want the saved one", body.Analysis)
	}
}

func TestHistoryLimitValidation(t *testing.T) {
	t.Parallel()

	h := NewHandler(store.NewMemory())
	for _, raw := range []string{"0", "-1", "101", "abc"} {
		rec := httptest.NewRecorder()
		h.History(rec, newRequest(t, "u1", "alice", "/api/history?limit="+raw))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: status = %d, want 400", raw, rec.Code)
		}
	}
}

func TestLeaderboardEmpty(t *testing.T) {
	t.Parallel()

	h := NewHandler(store.NewMemory())
	rec := httptest.NewRecorder()
	h.Leaderboard(rec, newRequest(t, "", "", "/api/leaderboard"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Leaderboard []store.LeaderboardEntry `json:"leaderboard"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Leaderboard == nil {
		t.Fatal("leaderboard field absent, want empty array")
	}
}

func TestLeaderboardRanksWinners(t *testing.T) {
	t.Parallel()

	repo := store.NewMemory()
	ctx := context.Background()
	now := time.Now()
	for _, u := range []struct{ id, name string }{{"u1", "alice"}, {"u2", "bob"}} {
		err := repo.UpsertUser(ctx, &domain.User{
			UserID: u.id, Username: u.name,
			LastSeenAt: now, CreatedAt: now, UpdatedAt: now,
		})
		if err != nil {
			t.Fatalf("UpsertUser: %v", err)
		}
	}
	err := repo.RecordBattle(ctx, &domain.BattleRecord{
		ChallengeID: "c1", IssuerID: "u1", TargetID: "u2", WinnerID: "u1",
		IssuerScore: 3, TargetScore: 1, Title: "taste guru", ResolvedAt: now,
	})
	if err != nil {
		t.Fatalf("RecordBattle: %v", err)
	}

	h := NewHandler(repo)
	rec := httptest.NewRecorder()
	h.Leaderboard(rec, newRequest(t, "", "", "/api/leaderboard"))

	var body struct {
		Leaderboard []store.LeaderboardEntry `json:"leaderboard"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body.Leaderboard) == 0 || body.Leaderboard[0].Username != "alice" {
		t.Fatalf("leaderboard = %+v, want alice on top", body.Leaderboard)
	}
}
