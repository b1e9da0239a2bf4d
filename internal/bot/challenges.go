package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mzaitsev/tastebot/internal/domain"
)

// ChallengeRegistry owns all live battle challenges. Every mutation of a
// challenge runs under that challenge's own lock, so concurrent updates from
// both parties serialize instead of clobbering each other.
type ChallengeRegistry struct {
	mu      sync.Mutex
	entries map[string]*challengeEntry
	logger  *slog.Logger
}

type challengeEntry struct {
	mu        sync.Mutex
	challenge *domain.Challenge
	removed   bool
}

// NewChallengeRegistry creates an empty challenge registry.
func NewChallengeRegistry(logger *slog.Logger) *ChallengeRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChallengeRegistry{
		entries: make(map[string]*challengeEntry),
		logger:  logger,
	}
}

// Create registers a new waiting challenge and returns a snapshot of it.
func (r *ChallengeRegistry) Create(issuerID, issuerName, targetHandle string) domain.Challenge {
	ch := &domain.Challenge{
		ID:           uuid.NewString(),
		IssuerID:     issuerID,
		IssuerName:   issuerName,
		TargetHandle: targetHandle,
		Status:       domain.ChallengeWaiting,
		CreatedAt:    time.Now(),
	}
	r.mu.Lock()
	r.entries[ch.ID] = &challengeEntry{challenge: ch}
	r.mu.Unlock()
	return *ch
}

// With runs fn on the identified challenge under its lock. Returns
// ErrNotFound when the challenge does not exist or was removed while
// waiting for the lock.
func (r *ChallengeRegistry) With(id string, fn func(*domain.Challenge) error) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return ErrNotFound
	}
	return fn(e.challenge)
}

// Remove drops a challenge from the registry.
func (r *ChallengeRegistry) Remove(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()
}

// Len returns the number of live challenges.
func (r *ChallengeRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep expires challenges older than ttl that never reached a terminal
// status and returns snapshots of the expired ones for notification.
func (r *ChallengeRegistry) Sweep(ttl time.Duration) []domain.Challenge {
	r.mu.Lock()
	stale := make([]*challengeEntry, 0)
	for _, e := range r.entries {
		stale = append(stale, e)
	}
	r.mu.Unlock()

	var expired []domain.Challenge
	cutoff := time.Now().Add(-ttl)
	for _, e := range stale {
		e.mu.Lock()
		if !e.removed && !e.challenge.Terminal() && e.challenge.CreatedAt.Before(cutoff) {
			e.challenge.Status = domain.ChallengeExpired
			expired = append(expired, *e.challenge)
		}
		e.mu.Unlock()
	}
	for _, ch := range expired {
		r.Remove(ch.ID)
	}
	return expired
}

// StartSweeper expires stale challenges on a fixed interval until ctx is
// cancelled, invoking onExpire for each one.
func (r *ChallengeRegistry) StartSweeper(ctx context.Context, interval, ttl time.Duration, onExpire func(domain.Challenge)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				expired := r.Sweep(ttl)
				if len(expired) == 0 {
					continue
				}
				r.logger.Info("expired stale challenges", "count", len(expired))
				if onExpire != nil {
					for _, ch := range expired {
						onExpire(ch)
					}
				}
			}
		}
	}()
}
