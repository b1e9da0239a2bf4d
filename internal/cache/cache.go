// Package cache provides time-bounded memoization for expensive lookups.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache is a TTL-bounded byte cache keyed by request fingerprint.
type Cache interface {
	// Get returns the cached value for key, with ok=false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key for at most ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases any underlying resources.
	Close() error
}

// Fingerprint derives a deterministic cache key from a resource locator.
func Fingerprint(locator string) string {
	norm := strings.ToLower(strings.TrimSpace(locator))
	sum := sha256.Sum256([]byte(norm))
	return "playlist:" + hex.EncodeToString(sum[:])
}
