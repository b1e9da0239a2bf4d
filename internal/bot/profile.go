package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mzaitsev/tastebot/internal/analysis"
	"github.com/mzaitsev/tastebot/internal/chat"
	"github.com/mzaitsev/tastebot/internal/domain"
	"github.com/mzaitsev/tastebot/internal/store"
)

// ProfileWorkflow serves the read-only views: taste profile, battle stats,
// recommendations, history and the leaderboard.
type ProfileWorkflow struct {
	repo      store.Repository
	messenger chat.Messenger
	logger    *slog.Logger
}

// NewProfileWorkflow wires the profile views.
func NewProfileWorkflow(repo store.Repository, messenger chat.Messenger, logger *slog.Logger) *ProfileWorkflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileWorkflow{repo: repo, messenger: messenger, logger: logger}
}

// ShowProfile reports the user's saved analysis and achievements.
func (w *ProfileWorkflow) ShowProfile(ctx context.Context, userID string) (domain.Stage, error) {
	a, err := w.repo.GetAnalysis(ctx, userID)
	if err != nil {
		return StageUnchanged, fmt.Errorf("loading analysis: %w", err)
	}
	if a == nil {
		w.say(ctx, userID, msgNoProfileYet, mainMenuKeyboard)
		return domain.StageSelectingAction, nil
	}

	var b strings.Builder
	b.WriteString(renderAnalysis(a))
	fmt.Fprintf(&b, "\n\nAnalyzed %s", a.AnalyzedAt.Format("2 Jan 2006"))

	achievements, err := w.repo.ListAchievements(ctx, userID)
	if err != nil {
		return StageUnchanged, fmt.Errorf("loading achievements: %w", err)
	}
	if len(achievements) > 0 {
		b.WriteString("\n\n🏅 Achievements:")
		for _, a := range achievements {
			fmt.Fprintf(&b, "\n• %s", achievementLabel(a.Key))
		}
	}

	w.say(ctx, userID, b.String(), profileKeyboard)
	return domain.StageViewingProfile, nil
}

// ShowStats reports the user's battle record.
func (w *ProfileWorkflow) ShowStats(ctx context.Context, userID string) (domain.Stage, error) {
	history, err := w.repo.BattleHistory(ctx, userID, 100)
	if err != nil {
		return StageUnchanged, fmt.Errorf("loading battle history: %w", err)
	}
	if len(history) == 0 {
		w.say(ctx, userID, msgNoBattlesYet, battleMenuKeyboard)
		return domain.StageSelectingAction, nil
	}

	wins := 0
	for _, rec := range history {
		if rec.WinnerID == userID {
			wins++
		}
	}
	text := fmt.Sprintf("📊 Your battle record:\nBattles: %d\nWins: %d\nLosses: %d",
		len(history), wins, len(history)-wins)
	w.say(ctx, userID, text, battleMenuKeyboard)
	return domain.StageSelectingAction, nil
}

// ShowRecommendations suggests tracks derived from the saved profile.
func (w *ProfileWorkflow) ShowRecommendations(ctx context.Context, userID string) (domain.Stage, error) {
	a, err := w.repo.GetAnalysis(ctx, userID)
	if err != nil {
		return StageUnchanged, fmt.Errorf("loading analysis: %w", err)
	}
	if a == nil {
		w.say(ctx, userID, msgNoProfileYet, mainMenuKeyboard)
		return domain.StageSelectingAction, nil
	}

	picks := analysis.Recommend(a, 5)
	var b strings.Builder
	b.WriteString("🎁 Based on your taste, try these:\n")
	for _, p := range picks {
		fmt.Fprintf(&b, "\n• %s", p)
	}
	w.say(ctx, userID, b.String(), backKeyboard)
	return domain.StageViewingRecommendations, nil
}

// ShowHistory lists the user's most recent battles.
func (w *ProfileWorkflow) ShowHistory(ctx context.Context, userID string) (domain.Stage, error) {
	history, err := w.repo.BattleHistory(ctx, userID, 10)
	if err != nil {
		return StageUnchanged, fmt.Errorf("loading battle history: %w", err)
	}
	if len(history) == 0 {
		w.say(ctx, userID, msgNoBattlesYet, battleMenuKeyboard)
		return domain.StageSelectingAction, nil
	}

	var b strings.Builder
	b.WriteString("📜 Recent battles:")
	for _, rec := range history {
		verdict := "lost"
		if rec.WinnerID == userID {
			verdict = "won"
		}
		fmt.Fprintf(&b, "\n• %s — %s %d:%d (%s)",
			rec.ResolvedAt.Format("2 Jan"), verdict, rec.IssuerScore, rec.TargetScore, rec.Title)
	}
	w.say(ctx, userID, b.String(), battleMenuKeyboard)
	return domain.StageSelectingAction, nil
}

// ShowLeaderboard reports the top battle winners.
func (w *ProfileWorkflow) ShowLeaderboard(ctx context.Context, userID string) (domain.Stage, error) {
	entries, err := w.repo.Leaderboard(ctx, 10)
	if err != nil {
		return StageUnchanged, fmt.Errorf("loading leaderboard: %w", err)
	}
	if len(entries) == 0 {
		w.say(ctx, userID, msgNoBattlesYet, battleMenuKeyboard)
		return domain.StageSelectingAction, nil
	}

	var b strings.Builder
	b.WriteString("🏆 Leaderboard:")
	for i, e := range entries {
		name := e.Username
		if name == "" {
			name = e.UserID
		}
		fmt.Fprintf(&b, "\n%d. %s — %d wins (%d battles)", i+1, name, e.Wins, e.Battles)
	}
	w.say(ctx, userID, b.String(), battleMenuKeyboard)
	return domain.StageSelectingAction, nil
}

func (w *ProfileWorkflow) say(ctx context.Context, userID, text string, suggestions []string) {
	var opts *chat.SendOptions
	if len(suggestions) > 0 {
		opts = &chat.SendOptions{Suggestions: suggestions}
	}
	if err := w.messenger.Send(ctx, userID, text, opts); err != nil {
		w.logger.Warn("send failed", "user_id", userID, "error", err)
	}
}

func achievementLabel(key string) string {
	switch key {
	case AchievementFirstAnalysis:
		return "First analysis"
	case AchievementBattleChampion:
		return "Battle champion"
	default:
		return key
	}
}
