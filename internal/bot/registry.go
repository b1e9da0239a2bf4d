package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mzaitsev/tastebot/internal/domain"
)

// ConversationRegistry tracks live conversation state per user. All reads
// return snapshots; mutation goes through Update so that cross-user writes
// (a battle invite landing in another user's conversation) stay serialized.
type ConversationRegistry struct {
	mu     sync.RWMutex
	states map[string]*domain.ConversationState
	logger *slog.Logger
}

// NewConversationRegistry creates an empty registry.
func NewConversationRegistry(logger *slog.Logger) *ConversationRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationRegistry{
		states: make(map[string]*domain.ConversationState),
		logger: logger,
	}
}

// Get returns a snapshot of the user's conversation, creating the default
// state on first contact.
func (r *ConversationRegistry) Get(userID string) domain.ConversationState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.getLocked(userID)
	cp := *st
	cp.StageData = make(map[string]string, len(st.StageData))
	for k, v := range st.StageData {
		cp.StageData[k] = v
	}
	return cp
}

// Update mutates the user's conversation under the registry lock.
func (r *ConversationRegistry) Update(userID string, fn func(*domain.ConversationState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.getLocked(userID))
}

// EnterWith moves the user to stage and seeds the fresh StageData map.
func (r *ConversationRegistry) EnterWith(userID string, stage domain.Stage, data map[string]string) {
	r.Update(userID, func(st *domain.ConversationState) {
		st.Enter(stage)
		for k, v := range data {
			st.StageData[k] = v
		}
	})
}

// Reset drops the user's conversation entirely. Their next message starts a
// fresh one at the action menu.
func (r *ConversationRegistry) Reset(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, userID)
}

// Len returns the number of tracked conversations.
func (r *ConversationRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}

func (r *ConversationRegistry) getLocked(userID string) *domain.ConversationState {
	st, ok := r.states[userID]
	if !ok {
		st = domain.NewConversationState(userID)
		r.states[userID] = st
	}
	return st
}

// Sweep removes conversations idle for at least ttl and returns how many
// were cleared.
func (r *ConversationRegistry) Sweep(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cleared := 0
	for userID, st := range r.states {
		if st.ExpiredAfter(ttl) {
			delete(r.states, userID)
			cleared++
		}
	}
	return cleared
}

// StartSweeper clears idle conversations on a fixed interval until ctx is
// cancelled.
func (r *ConversationRegistry) StartSweeper(ctx context.Context, interval, ttl time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(ttl); n > 0 {
					r.logger.Info("cleared idle conversations", "count", n)
				}
			}
		}
	}()
}
