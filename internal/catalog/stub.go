package catalog

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/mzaitsev/tastebot/internal/domain"
)

// StubFetcher synthesizes a deterministic track list from the locator. It is
// used in development when no catalog gateway is configured, and in tests.
type StubFetcher struct {
	// TrackCount is the number of tracks to synthesize per playlist.
	TrackCount int
}

// FetchTracks returns a synthetic track list derived from the locator.
// Free-text input is still parsed normally so manual track entry works.
func (s *StubFetcher) FetchTracks(_ context.Context, locator string) ([]domain.TrackRef, error) {
	if IdentifyService(locator) == "unknown" {
		return ParseTracks(locator), nil
	}

	n := s.TrackCount
	if n <= 0 {
		n = 12
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(locator))
	seed := h.Sum32()

	tracks := make([]domain.TrackRef, n)
	for i := range tracks {
		tracks[i] = domain.TrackRef{
			Artist: fmt.Sprintf("Artist %d", (seed+uint32(i))%97),
			Title:  fmt.Sprintf("Track %d", (seed/7+uint32(i))%211),
			Source: "stub",
		}
	}
	return tracks, nil
}
