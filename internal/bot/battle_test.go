package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mzaitsev/tastebot/internal/analysis"
	"github.com/mzaitsev/tastebot/internal/cache"
	"github.com/mzaitsev/tastebot/internal/catalog"
	"github.com/mzaitsev/tastebot/internal/config"
	"github.com/mzaitsev/tastebot/internal/domain"
	"github.com/mzaitsev/tastebot/internal/store"
)

// vectorByFirstTrack maps a submission to a fixed vector keyed by its first
// track title, so each battle side gets a distinct deterministic score.
type vectorByFirstTrack struct {
	vectors map[string]analysis.Vector
}

func (e vectorByFirstTrack) Extract(_ context.Context, tracks []domain.TrackRef) (analysis.Vector, error) {
	if len(tracks) == 0 {
		return analysis.Vector{}, nil
	}
	if v, ok := e.vectors[tracks[0].Title]; ok {
		return v, nil
	}
	return analysis.Vector{0.5, 0.5, 0.5, 0.5, 0.5}, nil
}

type testBot struct {
	dispatcher    *Dispatcher
	protocol      *ChallengeProtocol
	conversations *ConversationRegistry
	challenges    *ChallengeRegistry
	repo          *store.MemoryStore
	messenger     *recordingMessenger
}

func newTestBot(t *testing.T, extractor analysis.Extractor) *testBot {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := store.NewMemory()
	messenger := &recordingMessenger{}
	conversations := NewConversationRegistry(logger)
	challenges := NewChallengeRegistry(logger)

	cfg := &config.Config{
		MaxPlaylistSize: 200,
		CacheTTL:        time.Hour,
		Timeouts: config.Timeouts{
			Dispatch: 2 * time.Second,
			Issue:    2 * time.Second,
			Accept:   2 * time.Second,
			Compare:  2 * time.Second,
			Fetch:    2 * time.Second,
		},
	}

	if extractor == nil {
		extractor = analysis.HashExtractor{}
	}
	protocol := NewChallengeProtocol(conversations, challenges, repo, messenger, extractor, cfg.Timeouts, logger)

	c := cache.NewMemory()
	t.Cleanup(func() { _ = c.Close() })
	playlist := NewPlaylistWorkflow(repo, c, &catalog.StubFetcher{}, analysis.NewAnalyzer(analysis.HashExtractor{}), messenger, cfg, logger)
	profile := NewProfileWorkflow(repo, messenger, logger)
	boundary := NewBoundary(messenger, logger)
	dispatcher := NewDispatcher(conversations, boundary, playlist, protocol, profile, messenger, repo, cfg.Timeouts, logger)

	return &testBot{
		dispatcher:    dispatcher,
		protocol:      protocol,
		conversations: conversations,
		challenges:    challenges,
		repo:          repo,
		messenger:     messenger,
	}
}

func seedUser(t *testing.T, repo store.Repository, userID, username string) {
	t.Helper()
	now := time.Now()
	err := repo.UpsertUser(context.Background(), &domain.User{
		UserID:     userID,
		Username:   username,
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("seeding user %s: %v", userID, err)
	}
}

func seedProfile(t *testing.T, repo store.Repository, userID string) {
	t.Helper()
	err := repo.SaveAnalysis(context.Background(), userID, &domain.Analysis{
		Mood:       "energetic",
		Energy:     0.8,
		TrackCount: 12,
		AnalyzedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seeding profile for %s: %v", userID, err)
	}
}

func TestBattleEndToEnd(t *testing.T) {
	t.Parallel()

	extractor := vectorByFirstTrack{vectors: map[string]analysis.Vector{
		"Song A": {0.9, 0.8, 0.9, 0.7, 0.6},
		"Song X": {0.5, 0.5, 0.5, 0.5, 0.5},
	}}
	tb := newTestBot(t, extractor)
	ctx := context.Background()

	seedUser(t, tb.repo, "1", "alice")
	seedUser(t, tb.repo, "2", "bob")
	seedProfile(t, tb.repo, "1")
	seedProfile(t, tb.repo, "2")

	tb.dispatcher.HandleMessage(ctx, "1", "Alice", "battle @bob")

	bobState := tb.conversations.Get("2")
	if bobState.Stage != domain.StageWaitingBattleResponse {
		t.Fatalf("bob's stage = %v, want waiting battle response", bobState.Stage)
	}
	if bobState.StageData["challenge_id"] == "" {
		t.Fatal("bob's conversation carries no challenge ID")
	}
	if !strings.Contains(tb.messenger.lastSentTo(t, "2"), "Alice") {
		t.Fatal("invite does not name the challenger")
	}

	tb.dispatcher.HandleMessage(ctx, "2", "bob", "yes")
	if st := tb.conversations.Get("2"); st.Stage != domain.StageSelectingBattleTracks {
		t.Fatalf("bob's stage after accept = %v, want selecting battle tracks", st.Stage)
	}

	tb.dispatcher.HandleMessage(ctx, "2", "bob", "Song X, Song Y, Song Z")
	if st := tb.conversations.Get("1"); st.Stage != domain.StageSelectingBattleTracks {
		t.Fatalf("alice's stage after bob submits = %v, want selecting battle tracks", st.Stage)
	}

	tb.dispatcher.HandleMessage(ctx, "1", "Alice", "Song A, Song B, Song C")

	aliceReport := tb.messenger.lastSentTo(t, "1")
	if !strings.Contains(aliceReport, "5 — 0") {
		t.Fatalf("report missing 5:0 score: %q", aliceReport)
	}
	if !strings.Contains(aliceReport, "dance master") {
		t.Fatalf("report missing title: %q", aliceReport)
	}
	if bobReport := tb.messenger.lastSentTo(t, "2"); bobReport != aliceReport {
		t.Fatal("parties received different battle reports")
	}

	history, err := tb.repo.BattleHistory(ctx, "1", 10)
	if err != nil {
		t.Fatalf("BattleHistory: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("recorded %d battles, want 1", len(history))
	}
	rec := history[0]
	if rec.WinnerID != "1" || rec.IssuerScore != 5 || rec.TargetScore != 0 {
		t.Fatalf("record = winner %s %d:%d, want alice 5:0", rec.WinnerID, rec.IssuerScore, rec.TargetScore)
	}
	if rec.Title != "dance master" {
		t.Fatalf("recorded title = %q, want dance master", rec.Title)
	}

	achievements, err := tb.repo.ListAchievements(ctx, "1")
	if err != nil {
		t.Fatalf("ListAchievements: %v", err)
	}
	found := false
	for _, a := range achievements {
		if a.Key == AchievementBattleChampion {
			found = true
		}
	}
	if !found {
		t.Fatal("winner missing battle champion achievement")
	}

	if tb.challenges.Len() != 0 {
		t.Fatalf("challenge registry holds %d entries after resolution, want 0", tb.challenges.Len())
	}
}

func TestBattleTieResolvesTowardTarget(t *testing.T) {
	t.Parallel()

	extractor := vectorByFirstTrack{vectors: map[string]analysis.Vector{
		"Song A": {0.9, 0.2, 0.9, 0.2, 0.5},
		"Song X": {0.2, 0.9, 0.2, 0.9, 0.52},
	}}
	tb := newTestBot(t, extractor)
	ctx := context.Background()

	seedUser(t, tb.repo, "1", "alice")
	seedUser(t, tb.repo, "2", "bob")
	seedProfile(t, tb.repo, "1")
	seedProfile(t, tb.repo, "2")

	tb.dispatcher.HandleMessage(ctx, "1", "Alice", "battle @bob")
	tb.dispatcher.HandleMessage(ctx, "2", "bob", "yes")
	tb.dispatcher.HandleMessage(ctx, "2", "bob", "Song X, Song Y, Song Z")
	tb.dispatcher.HandleMessage(ctx, "1", "Alice", "Song A, Song B, Song C")

	history, err := tb.repo.BattleHistory(ctx, "2", 10)
	if err != nil {
		t.Fatalf("BattleHistory: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("recorded %d battles, want 1", len(history))
	}
	if history[0].WinnerID != "2" {
		t.Fatalf("tied battle winner = %s, want the target", history[0].WinnerID)
	}
}

// faultyExtractor delegates to inner but rejects submissions led by failTitle.
type faultyExtractor struct {
	inner     vectorByFirstTrack
	failTitle string
}

func (e faultyExtractor) Extract(ctx context.Context, tracks []domain.TrackRef) (analysis.Vector, error) {
	if len(tracks) > 0 && tracks[0].Title == e.failTitle {
		return analysis.Vector{}, errors.New("feature source rejected the submission")
	}
	return e.inner.Extract(ctx, tracks)
}

func TestFailedResolutionAllowsResubmission(t *testing.T) {
	t.Parallel()

	inner := vectorByFirstTrack{vectors: map[string]analysis.Vector{
		"Song A": {0.9, 0.8, 0.9, 0.7, 0.6},
		"Song X": {0.5, 0.5, 0.5, 0.5, 0.5},
	}}
	tb := newTestBot(t, faultyExtractor{inner: inner, failTitle: "Broken Song"})
	ctx := context.Background()

	seedUser(t, tb.repo, "1", "alice")
	seedUser(t, tb.repo, "2", "bob")
	seedProfile(t, tb.repo, "1")
	seedProfile(t, tb.repo, "2")

	tb.dispatcher.HandleMessage(ctx, "1", "Alice", "battle @bob")
	tb.dispatcher.HandleMessage(ctx, "2", "bob", "yes")
	tb.dispatcher.HandleMessage(ctx, "2", "bob", "Song X, Song Y, Song Z")

	id := tb.conversations.Get("1").StageData["challenge_id"]
	tb.dispatcher.HandleMessage(ctx, "1", "Alice", "Broken Song, Song B, Song C")

	if got := tb.messenger.lastSentTo(t, "1"); !strings.HasPrefix(got, "Something went wrong") {
		t.Fatalf("alice got %q, want a failure diagnostic", got)
	}
	if st := tb.conversations.Get("1"); st.Stage != domain.StageSelectingBattleTracks {
		t.Fatalf("alice's stage after failed resolution = %v, want selecting battle tracks", st.Stage)
	}

	var snap domain.Challenge
	if err := tb.challenges.With(id, func(c *domain.Challenge) error {
		snap = *c
		return nil
	}); err != nil {
		t.Fatalf("challenge gone after failed resolution: %v", err)
	}
	if snap.Status != domain.ChallengeCollectingData {
		t.Fatalf("status after failed resolution = %s, want collecting data", snap.Status)
	}
	if snap.SubmittingID != "1" {
		t.Fatalf("submitting ID after failed resolution = %q, want the issuer", snap.SubmittingID)
	}
	if len(snap.IssuerTracks) != 0 {
		t.Fatalf("failed submission left issuer tracks behind: %v", snap.IssuerTracks)
	}
	if len(snap.TargetTracks) != domain.BattleTrackCount {
		t.Fatalf("rollback dropped the opponent's tracks: %v", snap.TargetTracks)
	}

	tb.dispatcher.HandleMessage(ctx, "1", "Alice", "Song A, Song B, Song C")

	for _, text := range tb.messenger.sentTo("1") {
		if text == msgNotYourTurn {
			t.Fatal("retry after failed resolution was rejected as out of turn")
		}
	}
	if report := tb.messenger.lastSentTo(t, "1"); !strings.Contains(report, "5 — 0") {
		t.Fatalf("retry did not resolve the battle: %q", report)
	}
	history, err := tb.repo.BattleHistory(ctx, "1", 10)
	if err != nil {
		t.Fatalf("BattleHistory: %v", err)
	}
	if len(history) != 1 || history[0].WinnerID != "1" {
		t.Fatalf("history after retry = %+v, want one battle won by alice", history)
	}
	if tb.challenges.Len() != 0 {
		t.Fatalf("challenge registry holds %d entries after resolution, want 0", tb.challenges.Len())
	}
}

func TestSubmitRejectsWrongTrackCount(t *testing.T) {
	t.Parallel()

	tb := newTestBot(t, nil)
	ctx := context.Background()

	seedUser(t, tb.repo, "1", "alice")
	seedUser(t, tb.repo, "2", "bob")
	seedProfile(t, tb.repo, "1")
	seedProfile(t, tb.repo, "2")

	tb.dispatcher.HandleMessage(ctx, "1", "Alice", "battle @bob")
	tb.dispatcher.HandleMessage(ctx, "2", "bob", "yes")

	id := tb.conversations.Get("2").StageData["challenge_id"]
	tb.dispatcher.HandleMessage(ctx, "2", "bob", "Only One, Track Two")

	if got := tb.messenger.lastSentTo(t, "2"); got != msgNeedThreeTracks {
		t.Fatalf("rejection message = %q, want re-prompt", got)
	}
	if st := tb.conversations.Get("2"); st.Stage != domain.StageSelectingBattleTracks {
		t.Fatalf("stage after rejection = %v, want selecting battle tracks", st.Stage)
	}

	var snap domain.Challenge
	if err := tb.challenges.With(id, func(c *domain.Challenge) error {
		snap = *c
		return nil
	}); err != nil {
		t.Fatalf("challenge gone after rejected submission: %v", err)
	}
	if len(snap.TargetTracks) != 0 || snap.Status != domain.ChallengeCollectingData {
		t.Fatalf("rejected submission mutated the challenge: %+v", snap)
	}
}

func TestAcceptWithoutProfileLeavesChallengeWaiting(t *testing.T) {
	t.Parallel()

	tb := newTestBot(t, nil)
	ctx := context.Background()

	seedUser(t, tb.repo, "1", "alice")
	seedUser(t, tb.repo, "2", "bob")
	seedProfile(t, tb.repo, "1")
	// bob has no profile.

	tb.dispatcher.HandleMessage(ctx, "1", "Alice", "battle @bob")
	id := tb.conversations.Get("2").StageData["challenge_id"]

	tb.dispatcher.HandleMessage(ctx, "2", "bob", "yes")

	if got := tb.messenger.lastSentTo(t, "2"); got != msgNeedProfileFirst {
		t.Fatalf("bob got %q, want the profile prompt", got)
	}

	var status domain.ChallengeStatus
	if err := tb.challenges.With(id, func(c *domain.Challenge) error {
		status = c.Status
		return nil
	}); err != nil {
		t.Fatalf("challenge gone after failed accept: %v", err)
	}
	if status != domain.ChallengeWaiting {
		t.Fatalf("status after failed accept = %s, want waiting", status)
	}
}

func TestDeclineNotifiesIssuer(t *testing.T) {
	t.Parallel()

	tb := newTestBot(t, nil)
	ctx := context.Background()

	seedUser(t, tb.repo, "1", "alice")
	seedUser(t, tb.repo, "2", "bob")
	seedProfile(t, tb.repo, "1")

	tb.dispatcher.HandleMessage(ctx, "1", "Alice", "battle @bob")
	tb.dispatcher.HandleMessage(ctx, "2", "bob", "no")

	found := false
	for _, text := range tb.messenger.sentTo("1") {
		if text == msgChallengeDeclined {
			found = true
		}
	}
	if !found {
		t.Fatal("issuer never notified of the decline")
	}
	if tb.challenges.Len() != 0 {
		t.Fatalf("declined challenge still registered (%d entries)", tb.challenges.Len())
	}
}

func TestIssueRequiresIssuerProfile(t *testing.T) {
	t.Parallel()

	tb := newTestBot(t, nil)
	ctx := context.Background()

	seedUser(t, tb.repo, "1", "alice")
	seedUser(t, tb.repo, "2", "bob")

	tb.dispatcher.HandleMessage(ctx, "1", "Alice", "battle @bob")

	if got := tb.messenger.lastSentTo(t, "1"); got != msgNeedProfileFirst {
		t.Fatalf("issuer got %q, want the profile prompt", got)
	}
	if tb.challenges.Len() != 0 {
		t.Fatalf("challenge created without issuer profile (%d entries)", tb.challenges.Len())
	}
}

func TestSelfChallengeRejected(t *testing.T) {
	t.Parallel()

	tb := newTestBot(t, nil)
	ctx := context.Background()

	seedUser(t, tb.repo, "1", "alice")
	seedProfile(t, tb.repo, "1")

	tb.dispatcher.HandleMessage(ctx, "1", "Alice", "battle @alice")

	if got := tb.messenger.lastSentTo(t, "1"); got != msgSelfChallenge {
		t.Fatalf("got %q, want the self-challenge rejection", got)
	}
	if tb.challenges.Len() != 0 {
		t.Fatalf("self-challenge was registered (%d entries)", tb.challenges.Len())
	}
}

func TestExpiredChallengeNotifiesBothParties(t *testing.T) {
	t.Parallel()

	tb := newTestBot(t, nil)
	ctx := context.Background()

	seedUser(t, tb.repo, "1", "alice")
	seedUser(t, tb.repo, "2", "bob")
	seedProfile(t, tb.repo, "1")

	tb.dispatcher.HandleMessage(ctx, "1", "Alice", "battle @bob")

	stale := tb.conversations.Get("2").StageData["challenge_id"]
	_ = tb.challenges.With(stale, func(c *domain.Challenge) error {
		c.CreatedAt = time.Now().Add(-time.Hour)
		return nil
	})

	for _, ch := range tb.challenges.Sweep(30 * time.Minute) {
		tb.protocol.NotifyExpired(ctx, ch)
	}

	if got := tb.messenger.lastSentTo(t, "1"); got != msgChallengeExpired {
		t.Fatalf("issuer got %q, want expiry notice", got)
	}
	if got := tb.messenger.lastSentTo(t, "2"); got != msgChallengeExpired {
		t.Fatalf("target got %q, want expiry notice", got)
	}
}
