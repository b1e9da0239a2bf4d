// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/mzaitsev/tastebot/internal/domain"
)

// LeaderboardEntry is one row of the battle leaderboard.
type LeaderboardEntry struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Battles  int    `json:"battles"`
}

// Repository defines the interface for persisting user profiles, playlist
// analyses, achievements and battle outcomes.
type Repository interface {
	// GetUser retrieves a user by their user ID. Returns nil, nil when the
	// user is unknown.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// FindUserByUsername loosely resolves a chat handle to a user: matching
	// is case-insensitive and the most recently seen match wins. Returns
	// nil, nil when no user carries the handle.
	FindUserByUsername(ctx context.Context, username string) (*domain.User, error)

	// TouchActivity updates the last_seen_at timestamp for a user.
	TouchActivity(ctx context.Context, userID string, at time.Time) error

	// GetAnalysis retrieves the saved playlist analysis for a user.
	// Returns nil, nil when no analysis exists.
	GetAnalysis(ctx context.Context, userID string) (*domain.Analysis, error)

	// SaveAnalysis creates or replaces the playlist analysis for a user.
	SaveAnalysis(ctx context.Context, userID string, analysis *domain.Analysis) error

	// AwardAchievement grants an achievement to a user. Granting the same
	// key twice is a no-op.
	AwardAchievement(ctx context.Context, userID, key string) error

	// ListAchievements returns all achievements granted to a user.
	ListAchievements(ctx context.Context, userID string) ([]domain.Achievement, error)

	// RecordBattle persists a resolved battle outcome.
	RecordBattle(ctx context.Context, rec *domain.BattleRecord) error

	// BattleHistory returns the most recent battles involving a user.
	BattleHistory(ctx context.Context, userID string, limit int) ([]*domain.BattleRecord, error)

	// Leaderboard returns users ranked by battle wins.
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
