package catalog

import (
	"strings"

	"github.com/mzaitsev/tastebot/internal/domain"
)

// ParseTracks extracts tracks from free text of the form
// "Artist - Title, Artist2 - Title2". Entries without a dash are skipped.
func ParseTracks(text string) []domain.TrackRef {
	var tracks []domain.TrackRef
	for _, line := range strings.Split(text, ",") {
		artist, title, found := strings.Cut(line, "-")
		if !found {
			continue
		}
		artist = strings.TrimSpace(artist)
		title = strings.TrimSpace(title)
		if artist == "" || title == "" {
			continue
		}
		tracks = append(tracks, domain.TrackRef{
			Artist: artist,
			Title:  title,
			Source: "manual",
		})
	}
	return tracks
}
