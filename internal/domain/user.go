// Package domain contains core domain types for the tastebot application.
package domain

import (
	"time"
)

// User represents a chat user known to the bot.
type User struct {
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// InactiveFor reports whether the user has been silent for at least ttl.
func (u *User) InactiveFor(ttl time.Duration) bool {
	return time.Since(u.LastSeenAt) >= ttl
}
