// Package analysis turns track lists into feature vectors and playlist
// profiles. The extraction pipeline is a deterministic placeholder; only its
// contract (a 5-parameter [0,1] vector per submission) is load-bearing.
package analysis

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/mzaitsev/tastebot/internal/domain"
)

// Parameter indices of a feature Vector, in comparison order.
const (
	ParamEnergy = iota
	ParamDanceability
	ParamPopularity
	ParamGenreVariety
	ParamExclusivity
	NumParams
)

// ParamNames maps parameter indices to their wire/report names.
var ParamNames = [NumParams]string{
	"energy",
	"danceability",
	"popularity",
	"genre_variety",
	"exclusivity",
}

// Vector is a fixed set of scalar features, each in [0,1].
type Vector [NumParams]float64

// Valid reports whether every parameter lies in [0,1].
func (v Vector) Valid() bool {
	for _, x := range v {
		if x < 0 || x > 1 {
			return false
		}
	}
	return true
}

// Extractor expands a track submission into a feature Vector.
type Extractor interface {
	Extract(ctx context.Context, tracks []domain.TrackRef) (Vector, error)
}

// HashExtractor derives pseudo-features from a stable hash of the track
// list. It replaces the real audio-feature pipeline while keeping output
// deterministic for a given submission.
type HashExtractor struct{}

// Ranges mirror the spread of the simulated source data per parameter.
var paramRanges = [NumParams][2]float64{
	{0.5, 1.0}, // energy
	{0.3, 0.9}, // danceability
	{0.4, 1.0}, // popularity
	{0.2, 0.8}, // genre_variety
	{0.1, 0.7}, // exclusivity
}

// Extract returns a deterministic feature vector for the given tracks.
func (HashExtractor) Extract(_ context.Context, tracks []domain.TrackRef) (Vector, error) {
	if len(tracks) == 0 {
		return Vector{}, fmt.Errorf("no tracks to extract features from")
	}

	var v Vector
	for i := 0; i < NumParams; i++ {
		h := fnv.New64a()
		_, _ = fmt.Fprintf(h, "%s|", ParamNames[i])
		for _, t := range tracks {
			_, _ = fmt.Fprintf(h, "%s-%s;", strings.ToLower(t.Artist), strings.ToLower(t.Title))
		}
		unit := float64(h.Sum64()%10000) / 10000
		lo, hi := paramRanges[i][0], paramRanges[i][1]
		v[i] = lo + unit*(hi-lo)
	}
	return v, nil
}

// FixedExtractor always returns the same vector. Used in tests.
type FixedExtractor struct {
	Vector Vector
	Err    error
}

// Extract returns the configured vector or error.
func (f FixedExtractor) Extract(context.Context, []domain.TrackRef) (Vector, error) {
	return f.Vector, f.Err
}
