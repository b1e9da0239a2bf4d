package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValidLocator(t *testing.T) {
	t.Parallel()

	valid := []string{
		"https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
		"https://music.yandex.ru/users/someone/playlists/1005",
		"https://music.yandex.ru/album/123/tracks",
		"https://music.apple.com/us/playlist/top-100/pl.abc",
	}
	for _, loc := range valid {
		if !ValidLocator(loc) {
			t.Errorf("expected valid locator: %s", loc)
		}
	}

	invalid := []string{
		"https://example.com/playlist/123",
		"open.spotify.com/playlist/x", // no scheme
		"just some text",
	}
	for _, loc := range invalid {
		if ValidLocator(loc) {
			t.Errorf("expected invalid locator: %s", loc)
		}
	}
}

func TestLooksLikeLocator(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"check out https://example.com",
		"SPOTIFY playlist",
		"music.yandex something",
		"apple music",
	} {
		if !LooksLikeLocator(text) {
			t.Errorf("expected locator-shaped: %q", text)
		}
	}
	for _, text := range []string{"hello there", "what can you do?"} {
		if LooksLikeLocator(text) {
			t.Errorf("expected plain text: %q", text)
		}
	}
}

func TestParseTracks(t *testing.T) {
	t.Parallel()

	tracks := ParseTracks("Queen - Bohemian Rhapsody, Daft Punk - Around the World, garbage, - , ABBA - SOS")
	if len(tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d: %+v", len(tracks), tracks)
	}
	if tracks[0].Artist != "Queen" || tracks[0].Title != "Bohemian Rhapsody" {
		t.Fatalf("unexpected first track: %+v", tracks[0])
	}
	if tracks[2].Artist != "ABBA" || tracks[2].Source != "manual" {
		t.Fatalf("unexpected last track: %+v", tracks[2])
	}
}

func TestClientFetchTracks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("playlist") {
		case "https://open.spotify.com/playlist/good":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"tracks":[{"artist":"A","title":"T1"},{"artist":"B","title":"T2"}]}`))
		case "https://open.spotify.com/playlist/missing":
			w.WriteHeader(http.StatusNotFound)
		case "https://open.spotify.com/playlist/huge":
			w.WriteHeader(http.StatusRequestEntityTooLarge)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx := context.Background()

	tracks, err := c.FetchTracks(ctx, "https://open.spotify.com/playlist/good")
	if err != nil {
		t.Fatalf("FetchTracks failed: %v", err)
	}
	if len(tracks) != 2 || tracks[0].Source != "spotify" {
		t.Fatalf("unexpected tracks: %+v", tracks)
	}

	if _, err := c.FetchTracks(ctx, "https://open.spotify.com/playlist/missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := c.FetchTracks(ctx, "https://open.spotify.com/playlist/huge"); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	if _, err := c.FetchTracks(ctx, "https://open.spotify.com/playlist/boom"); !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}

	// Free text bypasses the gateway entirely.
	manual, err := c.FetchTracks(ctx, "Artist - Song")
	if err != nil {
		t.Fatalf("manual FetchTracks failed: %v", err)
	}
	if len(manual) != 1 || manual[0].Source != "manual" {
		t.Fatalf("unexpected manual tracks: %+v", manual)
	}
}

func TestStubFetcherDeterministic(t *testing.T) {
	t.Parallel()

	s := &StubFetcher{TrackCount: 5}
	ctx := context.Background()

	a, err := s.FetchTracks(ctx, "https://open.spotify.com/playlist/abc")
	if err != nil {
		t.Fatalf("FetchTracks failed: %v", err)
	}
	b, _ := s.FetchTracks(ctx, "https://open.spotify.com/playlist/abc")
	if len(a) != 5 {
		t.Fatalf("expected 5 tracks, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("stub output is not deterministic at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}
