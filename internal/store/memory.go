package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mzaitsev/tastebot/internal/domain"
)

// MemoryStore is an in-memory Repository used in tests and as a fallback
// when no database path is configured.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[string]*domain.User
	analyses     map[string]*domain.Analysis
	achievements map[string]map[string]time.Time
	battles      []*domain.BattleRecord
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string]*domain.User),
		analyses:     make(map[string]*domain.Analysis),
		achievements: make(map[string]map[string]time.Time),
	}
}

// GetUser retrieves a user by their user ID.
func (m *MemoryStore) GetUser(_ context.Context, userID string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// UpsertUser creates or updates a user record.
func (m *MemoryStore) UpsertUser(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	m.users[user.UserID] = &cp
	return nil
}

// FindUserByUsername loosely resolves a chat handle to a user.
func (m *MemoryStore) FindUserByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *domain.User
	for _, u := range m.users {
		if !strings.EqualFold(u.Username, username) {
			continue
		}
		if best == nil || u.LastSeenAt.After(best.LastSeenAt) {
			best = u
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

// TouchActivity updates the last_seen_at timestamp for a user.
func (m *MemoryStore) TouchActivity(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.LastSeenAt = at
		u.UpdatedAt = time.Now()
	}
	return nil
}

// GetAnalysis retrieves the saved playlist analysis for a user.
func (m *MemoryStore) GetAnalysis(_ context.Context, userID string) (*domain.Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.analyses[userID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// SaveAnalysis creates or replaces the playlist analysis for a user.
func (m *MemoryStore) SaveAnalysis(_ context.Context, userID string, analysis *domain.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *analysis
	m.analyses[userID] = &cp
	return nil
}

// AwardAchievement grants an achievement to a user.
func (m *MemoryStore) AwardAchievement(_ context.Context, userID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.achievements[userID]; !ok {
		m.achievements[userID] = make(map[string]time.Time)
	}
	if _, exists := m.achievements[userID][key]; !exists {
		m.achievements[userID][key] = time.Now()
	}
	return nil
}

// ListAchievements returns all achievements granted to a user.
func (m *MemoryStore) ListAchievements(_ context.Context, userID string) ([]domain.Achievement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Achievement
	for key, at := range m.achievements[userID] {
		out = append(out, domain.Achievement{Key: key, AwardedAt: at})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AwardedAt.Before(out[j].AwardedAt) })
	return out, nil
}

// RecordBattle persists a resolved battle outcome.
func (m *MemoryStore) RecordBattle(_ context.Context, rec *domain.BattleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.battles {
		if b.ChallengeID == rec.ChallengeID {
			return nil
		}
	}
	cp := *rec
	m.battles = append(m.battles, &cp)
	return nil
}

// BattleHistory returns the most recent battles involving a user.
func (m *MemoryStore) BattleHistory(_ context.Context, userID string, limit int) ([]*domain.BattleRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.BattleRecord
	for _, b := range m.battles {
		if b.IssuerID == userID || b.TargetID == userID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResolvedAt.After(out[j].ResolvedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Leaderboard returns users ranked by battle wins.
func (m *MemoryStore) Leaderboard(_ context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]*LeaderboardEntry)
	entry := func(userID string) *LeaderboardEntry {
		if e, ok := counts[userID]; ok {
			return e
		}
		e := &LeaderboardEntry{UserID: userID}
		if u, ok := m.users[userID]; ok {
			e.Username = u.Username
		}
		counts[userID] = e
		return e
	}

	for _, b := range m.battles {
		entry(b.IssuerID).Battles++
		entry(b.TargetID).Battles++
		if b.WinnerID != "" {
			entry(b.WinnerID).Wins++
		}
	}

	out := make([]LeaderboardEntry, 0, len(counts))
	for _, e := range counts {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].Battles < out[j].Battles
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
