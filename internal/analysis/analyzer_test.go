package analysis

import (
	"context"
	"testing"

	"github.com/mzaitsev/tastebot/internal/domain"
)

func testTracks() []domain.TrackRef {
	return []domain.TrackRef{
		{Artist: "Queen", Title: "Bohemian Rhapsody"},
		{Artist: "Queen", Title: "Don't Stop Me Now"},
		{Artist: "ABBA", Title: "SOS"},
	}
}

func TestHashExtractorDeterministicAndInRange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var ex HashExtractor

	a, err := ex.Extract(ctx, testTracks())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	b, err := ex.Extract(ctx, testTracks())
	if err != nil {
		t.Fatalf("second Extract failed: %v", err)
	}
	if a != b {
		t.Fatalf("extraction is not deterministic: %v vs %v", a, b)
	}
	if !a.Valid() {
		t.Fatalf("vector out of range: %v", a)
	}
	for i := 0; i < NumParams; i++ {
		if a[i] < paramRanges[i][0] || a[i] > paramRanges[i][1] {
			t.Errorf("param %s out of its range: %v", ParamNames[i], a[i])
		}
	}
}

func TestHashExtractorRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	var ex HashExtractor
	if _, err := ex.Extract(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty track list")
	}
}

func TestAnalyzeBuildsProfile(t *testing.T) {
	t.Parallel()

	a := NewAnalyzer(FixedExtractor{Vector: Vector{0.9, 0.8, 0.7, 0.6, 0.5}})
	got, err := a.Analyze(context.Background(), testTracks())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if got.Energy != 0.9 || got.Danceability != 0.8 {
		t.Fatalf("unexpected feature values: %+v", got)
	}
	if got.Mood != "energetic" {
		t.Fatalf("expected energetic mood for energy 0.9, got %q", got.Mood)
	}
	if got.TopArtist != "Queen" {
		t.Fatalf("expected Queen as top artist, got %q", got.TopArtist)
	}
	if got.TrackCount != 3 {
		t.Fatalf("expected track count 3, got %d", got.TrackCount)
	}
	if got.TopTrack != "Queen - Bohemian Rhapsody" {
		t.Fatalf("unexpected top track: %q", got.TopTrack)
	}
	if len(got.TopGenres) == 0 {
		t.Fatal("expected genre breakdown")
	}

	if v := Vectorize(got); v != (Vector{0.9, 0.8, 0.7, 0.6, 0.5}) {
		t.Fatalf("Vectorize mismatch: %v", v)
	}
}

func TestRecommendDeterministic(t *testing.T) {
	t.Parallel()

	analysis := &domain.Analysis{
		Mood:      "happy",
		TopGenres: []domain.GenreShare{{Genre: "rock", Share: 0.5}},
	}
	a := Recommend(analysis, 3)
	b := Recommend(analysis, 3)
	if len(a) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("recommendations are not deterministic: %v vs %v", a, b)
		}
	}
}
