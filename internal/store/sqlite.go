package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mzaitsev/tastebot/internal/domain"
	"github.com/mzaitsev/tastebot/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db         *sql.DB
	analysisMu sync.Mutex // serializes analysis writes to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_last_seen ON users(last_seen_at);

	CREATE TABLE IF NOT EXISTS analyses (
		user_id TEXT PRIMARY KEY,
		analysis_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS achievements (
		user_id TEXT NOT NULL,
		key TEXT NOT NULL,
		awarded_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, key)
	);

	CREATE TABLE IF NOT EXISTS battles (
		challenge_id TEXT PRIMARY KEY,
		issuer_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		winner_id TEXT NOT NULL,
		issuer_score INTEGER NOT NULL,
		target_score INTEGER NOT NULL,
		title TEXT NOT NULL,
		resolved_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_battles_issuer ON battles(issuer_id, resolved_at);
	CREATE INDEX IF NOT EXISTS idx_battles_target ON battles(target_id, resolved_at);
	CREATE INDEX IF NOT EXISTS idx_battles_winner ON battles(winner_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.Username,
		user.LastSeenAt.Unix(), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// FindUserByUsername loosely resolves a chat handle to a user.
func (s *SQLiteStore) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE LOWER(username) = LOWER(?)
		ORDER BY last_seen_at DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, username)

	var user domain.User
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// TouchActivity updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) TouchActivity(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, at.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("touch activity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("TouchActivity affected 0 rows", "user_id", userID)
	}

	return nil
}

// GetAnalysis retrieves the saved playlist analysis for a user.
func (s *SQLiteStore) GetAnalysis(ctx context.Context, userID string) (*domain.Analysis, error) {
	query := `SELECT analysis_json FROM analyses WHERE user_id = ?`

	var raw string
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan analysis row: %w", err)
	}

	var analysis domain.Analysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &analysis, nil
}

// SaveAnalysis creates or replaces the playlist analysis for a user.
func (s *SQLiteStore) SaveAnalysis(ctx context.Context, userID string, analysis *domain.Analysis) error {
	s.analysisMu.Lock()
	defer s.analysisMu.Unlock()

	raw, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}

	now := time.Now().Unix()
	query := `
	INSERT INTO analyses (user_id, analysis_json, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		analysis_json = excluded.analysis_json,
		updated_at = excluded.updated_at`

	return s.withBusyRetry(ctx, "save analysis", func() error {
		if _, err := s.db.ExecContext(ctx, query, userID, string(raw), now, now); err != nil {
			return fmt.Errorf("upsert analysis: %w", err)
		}
		return nil
	})
}

// AwardAchievement grants an achievement to a user.
func (s *SQLiteStore) AwardAchievement(ctx context.Context, userID, key string) error {
	query := `
	INSERT INTO achievements (user_id, key, awarded_at)
	VALUES (?, ?, ?)
	ON CONFLICT(user_id, key) DO NOTHING`

	return s.withBusyRetry(ctx, "award achievement", func() error {
		if _, err := s.db.ExecContext(ctx, query, userID, key, time.Now().Unix()); err != nil {
			return fmt.Errorf("award achievement: %w", err)
		}
		return nil
	})
}

// ListAchievements returns all achievements granted to a user.
func (s *SQLiteStore) ListAchievements(ctx context.Context, userID string) ([]domain.Achievement, error) {
	query := `SELECT key, awarded_at FROM achievements WHERE user_id = ? ORDER BY awarded_at`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query achievements: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close achievements rows", "error", closeErr)
		}
	}()

	var out []domain.Achievement
	for rows.Next() {
		var a domain.Achievement
		var awardedAt int64
		if err := rows.Scan(&a.Key, &awardedAt); err != nil {
			return nil, fmt.Errorf("scan achievement row: %w", err)
		}
		a.AwardedAt = time.Unix(awardedAt, 0)
		out = append(out, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate achievements: %w", err)
	}

	return out, nil
}

// RecordBattle persists a resolved battle outcome.
func (s *SQLiteStore) RecordBattle(ctx context.Context, rec *domain.BattleRecord) error {
	query := `
	INSERT INTO battles (challenge_id, issuer_id, target_id, winner_id,
		issuer_score, target_score, title, resolved_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(challenge_id) DO NOTHING`

	return s.withBusyRetry(ctx, "record battle", func() error {
		if _, err := s.db.ExecContext(ctx, query,
			rec.ChallengeID, rec.IssuerID, rec.TargetID, rec.WinnerID,
			rec.IssuerScore, rec.TargetScore, rec.Title, rec.ResolvedAt.Unix(),
		); err != nil {
			return fmt.Errorf("insert battle: %w", err)
		}
		return nil
	})
}

// BattleHistory returns the most recent battles involving a user.
func (s *SQLiteStore) BattleHistory(ctx context.Context, userID string, limit int) ([]*domain.BattleRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT challenge_id, issuer_id, target_id, winner_id,
		       issuer_score, target_score, title, resolved_at
		FROM battles
		WHERE issuer_id = ? OR target_id = ?
		ORDER BY resolved_at DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query battle history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close battle history rows", "error", closeErr)
		}
	}()

	var out []*domain.BattleRecord
	for rows.Next() {
		var rec domain.BattleRecord
		var resolvedAt int64
		if err := rows.Scan(
			&rec.ChallengeID, &rec.IssuerID, &rec.TargetID, &rec.WinnerID,
			&rec.IssuerScore, &rec.TargetScore, &rec.Title, &resolvedAt,
		); err != nil {
			return nil, fmt.Errorf("scan battle row: %w", err)
		}
		rec.ResolvedAt = time.Unix(resolvedAt, 0)
		out = append(out, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate battle history: %w", err)
	}

	return out, nil
}

// Leaderboard returns users ranked by battle wins.
func (s *SQLiteStore) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT u.user_id, u.username,
		       COUNT(CASE WHEN b.winner_id = u.user_id THEN 1 END) AS wins,
		       COUNT(b.challenge_id) AS battles
		FROM users u
		JOIN battles b ON b.issuer_id = u.user_id OR b.target_id = u.user_id
		GROUP BY u.user_id, u.username
		ORDER BY wins DESC, battles ASC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close leaderboard rows", "error", closeErr)
		}
	}()

	var out []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Wins, &e.Battles); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}

	return out, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// withBusyRetry runs op with exponential backoff on SQLite concurrency errors.
func (s *SQLiteStore) withBusyRetry(ctx context.Context, name string, op func() error) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = op()
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) || i == maxRetries-1 {
			return err
		}
		delay := baseDelay * time.Duration(1<<i)
		slog.Debug("SQLite busy, retrying", "op", name, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
