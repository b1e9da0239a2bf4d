// Package bot implements the conversational workflow engine: per-user
// conversation tracking, the two-party battle protocol, scoring, and
// message dispatch.
package bot

import (
	"errors"
	"fmt"
)

var (
	// ErrTimedOut means a stage exceeded its allotted deadline.
	ErrTimedOut = errors.New("operation timed out")

	// ErrNotFound means a challenge or profile was absent.
	ErrNotFound = errors.New("not found")
)

// ValidationError marks malformed user input. It is always handled locally
// by re-prompting within the same stage and never reaches the error boundary.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}
