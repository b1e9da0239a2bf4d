package analysis

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"github.com/mzaitsev/tastebot/internal/domain"
)

var genrePool = []string{"pop", "rock", "hiphop", "electronic", "jazz", "indie"}

var moodByEnergy = []struct {
	threshold float64
	mood      string
}{
	{0.75, "energetic"},
	{0.55, "happy"},
	{0.35, "calm"},
	{0.0, "romantic"},
}

// Analyzer produces playlist profiles from fetched track lists.
type Analyzer struct {
	extractor Extractor
}

// NewAnalyzer creates an Analyzer on top of the given feature extractor.
func NewAnalyzer(extractor Extractor) *Analyzer {
	return &Analyzer{extractor: extractor}
}

// Analyze builds a playlist profile for the given tracks.
func (a *Analyzer) Analyze(ctx context.Context, tracks []domain.TrackRef) (*domain.Analysis, error) {
	vec, err := a.extractor.Extract(ctx, tracks)
	if err != nil {
		return nil, fmt.Errorf("extract features: %w", err)
	}

	result := &domain.Analysis{
		Mood:         moodFor(vec[ParamEnergy]),
		Energy:       vec[ParamEnergy],
		Danceability: vec[ParamDanceability],
		Popularity:   vec[ParamPopularity],
		GenreVariety: vec[ParamGenreVariety],
		Exclusivity:  vec[ParamExclusivity],
		TopGenres:    genreBreakdown(tracks),
		TopArtist:    topArtist(tracks),
		TrackCount:   len(tracks),
		AnalyzedAt:   time.Now(),
	}
	if len(tracks) > 0 {
		result.TopTrack = tracks[0].Artist + " - " + tracks[0].Title
	}
	return result, nil
}

// Vector rebuilds the feature vector of a saved analysis, for comparisons
// against freshly extracted submissions.
func Vectorize(a *domain.Analysis) Vector {
	return Vector{a.Energy, a.Danceability, a.Popularity, a.GenreVariety, a.Exclusivity}
}

// Recommend derives track suggestions from a saved analysis. Deterministic
// placeholder for a real recommendation pipeline.
func Recommend(a *domain.Analysis, limit int) []string {
	if limit <= 0 {
		limit = 5
	}
	genre := "pop"
	if len(a.TopGenres) > 0 {
		genre = a.TopGenres[0].Genre
	}

	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s|%s|%d", genre, a.Mood, a.TrackCount)
	seed := h.Sum32()

	out := make([]string, limit)
	for i := range out {
		out[i] = fmt.Sprintf("%s pick #%d (%s mood)", capitalize(genre), (seed+uint32(i))%90+10, a.Mood)
	}
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func moodFor(energy float64) string {
	for _, m := range moodByEnergy {
		if energy >= m.threshold {
			return m.mood
		}
	}
	return "calm"
}

func topArtist(tracks []domain.TrackRef) string {
	counts := make(map[string]int)
	for _, t := range tracks {
		counts[t.Artist]++
	}
	best, bestN := "", 0
	for artist, n := range counts {
		if n > bestN || (n == bestN && artist < best) {
			best, bestN = artist, n
		}
	}
	return best
}

func genreBreakdown(tracks []domain.TrackRef) []domain.GenreShare {
	counts := make(map[string]int)
	for _, t := range tracks {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.ToLower(t.Artist)))
		counts[genrePool[h.Sum32()%uint32(len(genrePool))]]++
	}

	shares := make([]domain.GenreShare, 0, len(counts))
	for genre, n := range counts {
		shares = append(shares, domain.GenreShare{
			Genre: genre,
			Share: float64(n) / float64(len(tracks)),
		})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Share != shares[j].Share {
			return shares[i].Share > shares[j].Share
		}
		return shares[i].Genre < shares[j].Genre
	})
	if len(shares) > 3 {
		shares = shares[:3]
	}
	return shares
}
