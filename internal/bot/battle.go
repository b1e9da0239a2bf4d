package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mzaitsev/tastebot/internal/analysis"
	"github.com/mzaitsev/tastebot/internal/chat"
	"github.com/mzaitsev/tastebot/internal/config"
	"github.com/mzaitsev/tastebot/internal/domain"
	"github.com/mzaitsev/tastebot/internal/store"
)

// Achievement keys awarded by the workflows.
const (
	AchievementBattleChampion = "battle_champion"
	AchievementFirstAnalysis  = "first_analysis"
)

// ChallengeProtocol drives the two-party battle negotiation: issue, respond,
// track submission from both sides, and resolution.
type ChallengeProtocol struct {
	conversations *ConversationRegistry
	challenges    *ChallengeRegistry
	repo          store.Repository
	messenger     chat.Messenger
	extractor     analysis.Extractor
	timeouts      config.Timeouts
	logger        *slog.Logger
}

// NewChallengeProtocol wires the battle protocol.
func NewChallengeProtocol(
	conversations *ConversationRegistry,
	challenges *ChallengeRegistry,
	repo store.Repository,
	messenger chat.Messenger,
	extractor analysis.Extractor,
	timeouts config.Timeouts,
	logger *slog.Logger,
) *ChallengeProtocol {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChallengeProtocol{
		conversations: conversations,
		challenges:    challenges,
		repo:          repo,
		messenger:     messenger,
		extractor:     extractor,
		timeouts:      timeouts,
		logger:        logger,
	}
}

// Issue creates a challenge against targetHandle and invites the target if
// they are known. An unresolved handle still leaves a waiting record; the
// sweeper expires it eventually.
func (p *ChallengeProtocol) Issue(ctx context.Context, issuerID, issuerName, targetHandle string) (domain.Stage, error) {
	return WithTimeout(ctx, p.timeouts.Issue, func(ctx context.Context) (domain.Stage, error) {
		handle := strings.TrimPrefix(strings.TrimSpace(targetHandle), "@")
		if handle == "" {
			p.say(ctx, issuerID, msgBattleHowTo, backKeyboard)
			return StageUnchanged, nil
		}

		profile, err := p.repo.GetAnalysis(ctx, issuerID)
		if err != nil {
			return StageUnchanged, fmt.Errorf("loading issuer profile: %w", err)
		}
		if profile == nil {
			p.say(ctx, issuerID, msgNeedProfileFirst, mainMenuKeyboard)
			return domain.StageSelectingAction, nil
		}

		target, err := p.repo.FindUserByUsername(ctx, handle)
		if err != nil {
			return StageUnchanged, fmt.Errorf("resolving handle %q: %w", handle, err)
		}
		if target != nil && target.UserID == issuerID {
			p.say(ctx, issuerID, msgSelfChallenge, mainMenuKeyboard)
			return domain.StageSelectingAction, nil
		}

		ch := p.challenges.Create(issuerID, issuerName, handle)
		if target == nil {
			p.say(ctx, issuerID, fmt.Sprintf("I don't know @%s yet. The challenge will wait until they show up, or expire.", handle), mainMenuKeyboard)
			return domain.StageSelectingAction, nil
		}

		_ = p.challenges.With(ch.ID, func(c *domain.Challenge) error {
			c.TargetID = target.UserID
			return nil
		})
		p.conversations.EnterWith(target.UserID, domain.StageWaitingBattleResponse, map[string]string{
			"challenge_id": ch.ID,
		})
		p.say(ctx, target.UserID, fmt.Sprintf("⚔️ %s challenges you to a music battle! Accept?", issuerName), inviteKeyboard)
		p.say(ctx, issuerID, fmt.Sprintf("Challenge sent to @%s. Waiting for their answer...", handle), mainMenuKeyboard)
		return domain.StageSelectingAction, nil
	})
}

// Respond handles the target's yes/no answer to a pending invite. A failed
// acceptance (either party missing a profile) leaves the challenge waiting
// so it can be retried before it expires.
func (p *ChallengeProtocol) Respond(ctx context.Context, responderID, text string, state domain.ConversationState) (domain.Stage, error) {
	id := state.StageData["challenge_id"]
	if id == "" {
		return domain.StageSelectingAction, nil
	}

	answer := normalizeText(text)
	accept := answer == "yes" || answer == "y" || answer == "accept" || answer == "✅"
	decline := answer == "no" || answer == "n" || answer == "decline" || answer == "❌"
	if !accept && !decline {
		p.say(ctx, responderID, msgAnswerYesNo, inviteKeyboard)
		return StageUnchanged, nil
	}

	var snap domain.Challenge
	err := p.challenges.With(id, func(c *domain.Challenge) error {
		snap = *c
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		p.say(ctx, responderID, msgChallengeGone, mainMenuKeyboard)
		return domain.StageSelectingAction, nil
	}
	if err != nil {
		return StageUnchanged, err
	}
	if snap.TargetID != "" && snap.TargetID != responderID {
		p.say(ctx, responderID, msgChallengeGone, mainMenuKeyboard)
		return domain.StageSelectingAction, nil
	}

	if decline {
		_ = p.challenges.With(id, func(c *domain.Challenge) error {
			c.Status = domain.ChallengeDeclined
			return nil
		})
		p.challenges.Remove(id)
		p.say(ctx, snap.IssuerID, msgChallengeDeclined, mainMenuKeyboard)
		p.say(ctx, responderID, "Okay, declined.", mainMenuKeyboard)
		return domain.StageSelectingAction, nil
	}

	return WithTimeout(ctx, p.timeouts.Accept, func(ctx context.Context) (domain.Stage, error) {
		mine, err := p.repo.GetAnalysis(ctx, responderID)
		if err != nil {
			return StageUnchanged, fmt.Errorf("loading responder profile: %w", err)
		}
		if mine == nil {
			p.say(ctx, responderID, msgNeedProfileFirst, mainMenuKeyboard)
			return domain.StageSelectingAction, nil
		}
		theirs, err := p.repo.GetAnalysis(ctx, snap.IssuerID)
		if err != nil {
			return StageUnchanged, fmt.Errorf("loading issuer profile: %w", err)
		}
		if theirs == nil {
			p.say(ctx, responderID, msgOpponentNeedsProfile, mainMenuKeyboard)
			return domain.StageSelectingAction, nil
		}

		err = p.challenges.With(id, func(c *domain.Challenge) error {
			if c.Status != domain.ChallengeWaiting {
				return &ValidationError{Reason: "challenge already answered"}
			}
			c.Status = domain.ChallengeAccepted
			c.TargetID = responderID
			c.Status = domain.ChallengeCollectingData
			c.SubmittingID = responderID
			return nil
		})
		if errors.Is(err, ErrNotFound) {
			p.say(ctx, responderID, msgChallengeGone, mainMenuKeyboard)
			return domain.StageSelectingAction, nil
		}
		var verr *ValidationError
		if errors.As(err, &verr) {
			p.say(ctx, responderID, msgChallengeGone, mainMenuKeyboard)
			return domain.StageSelectingAction, nil
		}
		if err != nil {
			return StageUnchanged, err
		}

		p.say(ctx, snap.IssuerID, fmt.Sprintf("@%s accepted your challenge! They're picking tracks now.", snap.TargetHandle), backKeyboard)
		p.conversations.EnterWith(responderID, domain.StageSelectingBattleTracks, map[string]string{
			"challenge_id": id,
		})
		p.say(ctx, responderID, msgSubmitTracks, cancelKeyboard)
		return StageUnchanged, nil
	})
}

// SubmitTracks records one party's battle tracks. When the target submits
// first the turn passes to the issuer; when both sides are in, the battle
// resolves. A malformed list re-prompts without touching the challenge.
func (p *ChallengeProtocol) SubmitTracks(ctx context.Context, submitterID, text string, state domain.ConversationState) (domain.Stage, error) {
	id := state.StageData["challenge_id"]
	if id == "" {
		return domain.StageSelectingAction, nil
	}

	if normalizeText(text) == "cancel" {
		p.abandon(ctx, id, submitterID)
		p.say(ctx, submitterID, msgCancelled, mainMenuKeyboard)
		return domain.StageSelectingAction, nil
	}

	tracks := splitTracks(text)
	if len(tracks) != domain.BattleTrackCount {
		p.say(ctx, submitterID, msgNeedThreeTracks, cancelKeyboard)
		return StageUnchanged, nil
	}

	var (
		snap        domain.Challenge
		notYourTurn bool
		gone        bool
		resolveNow  bool
	)
	err := p.challenges.With(id, func(c *domain.Challenge) error {
		if c.Status != domain.ChallengeCollectingData {
			gone = true
			return nil
		}
		if c.SubmittingID != submitterID {
			notYourTurn = true
			return nil
		}
		if submitterID == c.TargetID {
			c.TargetTracks = tracks
			c.SubmittingID = c.IssuerID
		} else {
			c.IssuerTracks = tracks
			c.SubmittingID = ""
		}
		// The Scored transition happens here, under the challenge lock, so
		// resolution runs exactly once even if both parties race.
		if c.BothSubmitted() {
			c.Status = domain.ChallengeScored
			resolveNow = true
		}
		snap = *c
		return nil
	})
	if errors.Is(err, ErrNotFound) || gone {
		p.say(ctx, submitterID, msgChallengeGone, mainMenuKeyboard)
		return domain.StageSelectingAction, nil
	}
	if err != nil {
		return StageUnchanged, err
	}
	if notYourTurn {
		p.say(ctx, submitterID, msgNotYourTurn, cancelKeyboard)
		return StageUnchanged, nil
	}

	if !resolveNow {
		p.conversations.EnterWith(snap.SubmittingID, domain.StageSelectingBattleTracks, map[string]string{
			"challenge_id": id,
		})
		p.say(ctx, snap.SubmittingID, fmt.Sprintf("@%s submitted their tracks. Your turn!\n\n%s", snap.TargetHandle, msgSubmitTracks), cancelKeyboard)
		p.say(ctx, submitterID, msgWaitingForOpponent, backKeyboard)
		return domain.StageSelectingAction, nil
	}

	if err := p.resolve(ctx, snap); err != nil {
		// Roll back the last submission: hand the turn back to its author
		// and drop their tracks so resubmitting retries the comparison.
		_ = p.challenges.With(id, func(c *domain.Challenge) error {
			c.Status = domain.ChallengeCollectingData
			c.SubmittingID = submitterID
			if submitterID == c.TargetID {
				c.TargetTracks = nil
			} else {
				c.IssuerTracks = nil
			}
			return nil
		})
		return StageUnchanged, err
	}
	return domain.StageSelectingAction, nil
}

// resolve scores a fully-submitted challenge, reports to both parties,
// awards the champion achievement and persists the outcome.
func (p *ChallengeProtocol) resolve(ctx context.Context, ch domain.Challenge) error {
	report, err := WithTimeout(ctx, p.timeouts.Compare, func(ctx context.Context) (domain.ScoreReport, error) {
		issuerVec, err := p.extractor.Extract(ctx, battleRefs(ch.IssuerTracks))
		if err != nil {
			return domain.ScoreReport{}, fmt.Errorf("extracting issuer features: %w", err)
		}
		targetVec, err := p.extractor.Extract(ctx, battleRefs(ch.TargetTracks))
		if err != nil {
			return domain.ScoreReport{}, fmt.Errorf("extracting target features: %w", err)
		}
		return Compare(issuerVec, targetVec), nil
	})
	if err != nil {
		return err
	}

	winnerID := ch.TargetID
	if report.Winner == domain.OutcomeIssuer {
		winnerID = ch.IssuerID
	}

	text := renderBattleReport(ch, report)
	p.say(ctx, ch.IssuerID, text, mainMenuKeyboard)
	p.say(ctx, ch.TargetID, text, mainMenuKeyboard)

	if err := p.repo.AwardAchievement(ctx, winnerID, AchievementBattleChampion); err != nil {
		p.logger.Warn("failed to award achievement", "user_id", winnerID, "error", err)
	}
	rec := &domain.BattleRecord{
		ChallengeID: ch.ID,
		IssuerID:    ch.IssuerID,
		TargetID:    ch.TargetID,
		WinnerID:    winnerID,
		IssuerScore: report.IssuerScore,
		TargetScore: report.TargetScore,
		Title:       report.Title,
		ResolvedAt:  time.Now(),
	}
	if err := p.repo.RecordBattle(ctx, rec); err != nil {
		p.logger.Warn("failed to record battle", "challenge_id", ch.ID, "error", err)
	}

	p.challenges.Remove(ch.ID)
	p.logger.Info("battle resolved",
		"challenge_id", ch.ID,
		"winner_id", winnerID,
		"issuer_score", report.IssuerScore,
		"target_score", report.TargetScore,
		"title", report.Title,
	)
	return nil
}

// NotifyExpired tells both parties their challenge timed out. Used as the
// challenge sweeper callback.
func (p *ChallengeProtocol) NotifyExpired(ctx context.Context, ch domain.Challenge) {
	p.say(ctx, ch.IssuerID, msgChallengeExpired, mainMenuKeyboard)
	if ch.TargetID != "" {
		p.say(ctx, ch.TargetID, msgChallengeExpired, mainMenuKeyboard)
	}
}

func (p *ChallengeProtocol) abandon(ctx context.Context, id, byID string) {
	var issuerID string
	err := p.challenges.With(id, func(c *domain.Challenge) error {
		c.Status = domain.ChallengeDeclined
		issuerID = c.IssuerID
		return nil
	})
	if err != nil {
		return
	}
	p.challenges.Remove(id)
	if issuerID != "" && issuerID != byID {
		p.say(ctx, issuerID, "Your opponent backed out of the battle.", mainMenuKeyboard)
	}
}

func (p *ChallengeProtocol) say(ctx context.Context, userID, text string, suggestions []string) {
	var opts *chat.SendOptions
	if len(suggestions) > 0 {
		opts = &chat.SendOptions{Suggestions: suggestions}
	}
	if err := p.messenger.Send(ctx, userID, text, opts); err != nil {
		p.logger.Warn("send failed", "user_id", userID, "error", err)
	}
}

func renderBattleReport(ch domain.Challenge, report domain.ScoreReport) string {
	issuer := ch.IssuerName
	if issuer == "" {
		issuer = "challenger"
	}
	target := "@" + ch.TargetHandle
	if ch.TargetHandle == "" {
		target = "opponent"
	}

	winner := target
	if report.Winner == domain.OutcomeIssuer {
		winner = issuer
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⚔️ Battle result: 🔵 %s vs 🟡 %s\n\n", issuer, target)
	b.WriteString(RenderBars(report))
	fmt.Fprintf(&b, "\n\nScore: %d — %d", report.IssuerScore, report.TargetScore)
	if n := report.Draws(); n > 0 {
		fmt.Fprintf(&b, " (%d drawn)", n)
	}
	fmt.Fprintf(&b, "\n🏆 %s wins the title of %s!", winner, report.Title)
	return b.String()
}

func battleRefs(tracks []string) []domain.TrackRef {
	refs := make([]domain.TrackRef, 0, len(tracks))
	for _, t := range tracks {
		artist, title, ok := strings.Cut(t, " - ")
		if !ok {
			artist, title = "", t
		}
		refs = append(refs, domain.TrackRef{
			Artist: strings.TrimSpace(artist),
			Title:  strings.TrimSpace(title),
			Source: "battle",
		})
	}
	return refs
}

func splitTracks(text string) []string {
	parts := strings.Split(text, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func normalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
