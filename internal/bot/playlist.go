package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mzaitsev/tastebot/internal/analysis"
	"github.com/mzaitsev/tastebot/internal/cache"
	"github.com/mzaitsev/tastebot/internal/catalog"
	"github.com/mzaitsev/tastebot/internal/chat"
	"github.com/mzaitsev/tastebot/internal/config"
	"github.com/mzaitsev/tastebot/internal/domain"
	"github.com/mzaitsev/tastebot/internal/store"
)

// PlaylistWorkflow drives the analyze-playlist conversation: prompt for a
// locator, fetch tracks (through the cache), analyze them and persist the
// resulting profile.
type PlaylistWorkflow struct {
	repo      store.Repository
	cache     cache.Cache
	fetcher   catalog.Fetcher
	analyzer  *analysis.Analyzer
	messenger chat.Messenger
	maxSize   int
	cacheTTL  time.Duration
	timeouts  config.Timeouts
	logger    *slog.Logger
}

// NewPlaylistWorkflow wires the playlist analysis workflow.
func NewPlaylistWorkflow(
	repo store.Repository,
	c cache.Cache,
	fetcher catalog.Fetcher,
	analyzer *analysis.Analyzer,
	messenger chat.Messenger,
	cfg *config.Config,
	logger *slog.Logger,
) *PlaylistWorkflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaylistWorkflow{
		repo:      repo,
		cache:     c,
		fetcher:   fetcher,
		analyzer:  analyzer,
		messenger: messenger,
		maxSize:   cfg.MaxPlaylistSize,
		cacheTTL:  cfg.CacheTTL,
		timeouts:  cfg.Timeouts,
		logger:    logger,
	}
}

// RequestPlaylist prompts the user for a playlist locator.
func (w *PlaylistWorkflow) RequestPlaylist(ctx context.Context, userID string) (domain.Stage, error) {
	w.say(ctx, userID, msgEnterPlaylist, cancelKeyboard)
	return domain.StageEnterPlaylist, nil
}

// ReceivePlaylist handles the user's locator (or manual track list), runs
// the analysis pipeline and reports the resulting taste profile. Malformed
// input re-prompts in place; catalog unavailability propagates to the error
// boundary.
func (w *PlaylistWorkflow) ReceivePlaylist(ctx context.Context, userID, text string) (domain.Stage, error) {
	if normalizeText(text) == "cancel" {
		w.say(ctx, userID, msgCancelled, mainMenuKeyboard)
		return domain.StageSelectingAction, nil
	}

	var manual []domain.TrackRef
	locator := strings.TrimSpace(text)
	if !catalog.ValidLocator(locator) {
		// URL-ish text that fails validation is a typo, not a track list.
		if catalog.LooksLikeLocator(locator) {
			w.say(ctx, userID, msgInvalidLocator, cancelKeyboard)
			return StageUnchanged, nil
		}
		manual = catalog.ParseTracks(text)
		if len(manual) == 0 {
			w.say(ctx, userID, msgInvalidLocator, cancelKeyboard)
			return StageUnchanged, nil
		}
	}

	w.say(ctx, userID, msgAnalyzing, nil)

	tracks := manual
	if tracks == nil {
		var err error
		tracks, err = WithTimeout(ctx, w.timeouts.Fetch, func(ctx context.Context) ([]domain.TrackRef, error) {
			return w.fetchTracks(ctx, locator)
		})
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			w.edit(ctx, userID, msgPlaylistNotFound)
			return StageUnchanged, nil
		case errors.Is(err, catalog.ErrTooLarge):
			w.edit(ctx, userID, fmt.Sprintf("That playlist is too big for me (max %d tracks).", w.maxSize))
			return StageUnchanged, nil
		case err != nil:
			return StageUnchanged, err
		}
	}

	if len(tracks) == 0 {
		w.edit(ctx, userID, msgPlaylistEmpty)
		return StageUnchanged, nil
	}
	if len(tracks) > w.maxSize {
		w.edit(ctx, userID, fmt.Sprintf("That playlist is too big for me (max %d tracks).", w.maxSize))
		return StageUnchanged, nil
	}

	result, err := w.analyzer.Analyze(ctx, tracks)
	if err != nil {
		return StageUnchanged, fmt.Errorf("analyzing playlist: %w", err)
	}

	previous, err := w.repo.GetAnalysis(ctx, userID)
	if err != nil {
		return StageUnchanged, fmt.Errorf("loading previous analysis: %w", err)
	}
	if err := w.repo.SaveAnalysis(ctx, userID, result); err != nil {
		return StageUnchanged, fmt.Errorf("saving analysis: %w", err)
	}
	if previous == nil {
		if err := w.repo.AwardAchievement(ctx, userID, AchievementFirstAnalysis); err != nil {
			w.logger.Warn("failed to award achievement", "user_id", userID, "error", err)
		}
	}

	w.edit(ctx, userID, renderAnalysis(result))
	if previous == nil {
		w.say(ctx, userID, "🏅 Achievement unlocked: first analysis!", afterAnalysisKeyboard)
	} else {
		w.say(ctx, userID, "What's next?", afterAnalysisKeyboard)
	}
	return domain.StageViewingAnalysis, nil
}

// fetchTracks resolves a locator through the cache, hitting the catalog
// gateway only on a miss.
func (w *PlaylistWorkflow) fetchTracks(ctx context.Context, locator string) ([]domain.TrackRef, error) {
	key := cache.Fingerprint(locator)
	if raw, ok, err := w.cache.Get(ctx, key); err != nil {
		w.logger.Warn("cache get failed", "error", err)
	} else if ok {
		var tracks []domain.TrackRef
		if err := json.Unmarshal(raw, &tracks); err == nil {
			return tracks, nil
		}
		w.logger.Warn("dropping corrupt cache entry", "key", key)
	}

	tracks, err := w.fetcher.FetchTracks(ctx, locator)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(tracks); err == nil {
		if err := w.cache.Set(ctx, key, raw, w.cacheTTL); err != nil {
			w.logger.Warn("cache set failed", "error", err)
		}
	}
	return tracks, nil
}

func (w *PlaylistWorkflow) say(ctx context.Context, userID, text string, suggestions []string) {
	var opts *chat.SendOptions
	if len(suggestions) > 0 {
		opts = &chat.SendOptions{Suggestions: suggestions}
	}
	if err := w.messenger.Send(ctx, userID, text, opts); err != nil {
		w.logger.Warn("send failed", "user_id", userID, "error", err)
	}
}

func (w *PlaylistWorkflow) edit(ctx context.Context, userID, text string) {
	if err := w.messenger.EditLast(ctx, userID, text); err != nil {
		w.logger.Warn("edit failed", "user_id", userID, "error", err)
	}
}

func renderAnalysis(a *domain.Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎧 Your taste profile (%d tracks)\n\n", a.TrackCount)
	fmt.Fprintf(&b, "Mood: %s\n", a.Mood)
	fmt.Fprintf(&b, "Energy: %.0f%%\n", a.Energy*100)
	fmt.Fprintf(&b, "Danceability: %.0f%%\n", a.Danceability*100)
	fmt.Fprintf(&b, "Exclusivity: %.0f%%\n", a.Exclusivity*100)
	if len(a.TopGenres) > 0 {
		names := make([]string, 0, len(a.TopGenres))
		for _, g := range a.TopGenres {
			names = append(names, g.Genre)
		}
		fmt.Fprintf(&b, "Top genres: %s\n", strings.Join(names, ", "))
	}
	if a.TopArtist != "" {
		fmt.Fprintf(&b, "Top artist: %s\n", a.TopArtist)
	}
	if a.TopTrack != "" {
		fmt.Fprintf(&b, "Standout track: %s\n", a.TopTrack)
	}
	return strings.TrimRight(b.String(), "\n")
}
