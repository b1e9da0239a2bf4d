// Package catalog fetches and normalizes playlist data from external music
// catalogs.
package catalog

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/mzaitsev/tastebot/internal/domain"
)

var (
	// ErrNotFound means the locator resolved to no playlist.
	ErrNotFound = errors.New("playlist not found")
	// ErrTooLarge means the catalog refused to return the playlist.
	ErrTooLarge = errors.New("playlist too large")
	// ErrUnreachable means the catalog service could not be reached.
	ErrUnreachable = errors.New("catalog unreachable")
)

// Fetcher retrieves the tracks of a playlist identified by a resource locator.
type Fetcher interface {
	FetchTracks(ctx context.Context, locator string) ([]domain.TrackRef, error)
}

var locatorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://open\.spotify\.com/playlist/[a-zA-Z0-9]+`),
	regexp.MustCompile(`^https?://music\.yandex\.ru/users/[^/]+/playlists/\d+`),
	regexp.MustCompile(`^https?://music\.yandex\.ru/album/\d+/tracks`),
	regexp.MustCompile(`^https?://music\.apple\.com/.*/playlist/.*`),
}

// ValidLocator reports whether the locator matches a supported playlist URL.
func ValidLocator(locator string) bool {
	for _, p := range locatorPatterns {
		if p.MatchString(locator) {
			return true
		}
	}
	return false
}

// LooksLikeLocator reports whether free text is plausibly a playlist
// reference: it carries a URL scheme or a known-service substring.
func LooksLikeLocator(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range []string{"http", "spotify", "music.yandex", "apple"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IdentifyService names the music service behind a locator.
func IdentifyService(locator string) string {
	switch {
	case strings.Contains(locator, "spotify"):
		return "spotify"
	case strings.Contains(locator, "yandex"):
		return "yandex"
	case strings.Contains(locator, "apple"):
		return "apple"
	default:
		return "unknown"
	}
}
