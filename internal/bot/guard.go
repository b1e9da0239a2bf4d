package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/mzaitsev/tastebot/internal/chat"
	"github.com/mzaitsev/tastebot/internal/domain"
)

// StageUnchanged tells the dispatcher to keep the user's current stage.
const StageUnchanged = domain.Stage(-1)

// WithTimeout runs op under a hard deadline measured from invocation. On
// expiry the caller gets ErrTimedOut; the operation itself is not killed,
// but its eventual result is discarded.
func WithTimeout[T any](ctx context.Context, d time.Duration, op func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		val, err := op(ctx)
		ch <- result{val: val, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimedOut
		}
		return zero, ctx.Err()
	case r := <-ch:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return r.val, ErrTimedOut
		}
		return r.val, r.err
	}
}

// Boundary converts stage-handler failures into user-visible messages. No
// failure kind passes through it: a guarded handler always yields either a
// valid next stage or StageUnchanged.
type Boundary struct {
	messenger chat.Messenger
	logger    *slog.Logger
}

// NewBoundary creates an error boundary reporting through messenger.
func NewBoundary(messenger chat.Messenger, logger *slog.Logger) *Boundary {
	if logger == nil {
		logger = slog.Default()
	}
	return &Boundary{messenger: messenger, logger: logger}
}

// Guard runs handler and swallows any failure. Timeouts get the fixed
// apology message; everything else gets a truncated diagnostic. Either way
// the user stays in their current stage.
func (b *Boundary) Guard(ctx context.Context, name, userID string, handler func(context.Context) (domain.Stage, error)) domain.Stage {
	next, err := handler(ctx)
	if err == nil {
		return next
	}

	if errors.Is(err, ErrTimedOut) {
		b.logger.Warn("handler timed out", "handler", name, "user_id", userID)
		b.send(ctx, userID, msgTimeout)
		return StageUnchanged
	}

	b.logger.Error("handler failed", "handler", name, "user_id", userID, "error", err)
	b.send(ctx, userID, "Something went wrong: "+truncate(err.Error(), 100))
	return StageUnchanged
}

func (b *Boundary) send(ctx context.Context, userID, text string) {
	// Reporting is best effort: a failing messenger must not crash the
	// boundary that exists to contain failures.
	if err := b.messenger.Send(ctx, userID, text, nil); err != nil {
		b.logger.Warn("failed to report error to user", "user_id", userID, "error", err)
	}
}

// truncate caps s at n bytes without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
