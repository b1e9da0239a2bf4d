package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mzaitsev/tastebot/internal/catalog"
	"github.com/mzaitsev/tastebot/internal/chat"
	"github.com/mzaitsev/tastebot/internal/config"
	"github.com/mzaitsev/tastebot/internal/domain"
	"github.com/mzaitsev/tastebot/internal/store"
)

// Dispatcher routes every inbound chat message: commands first, then the
// handler owning the user's current conversation stage. All handlers run
// behind the error boundary, so dispatch never fails outward.
type Dispatcher struct {
	conversations *ConversationRegistry
	boundary      *Boundary
	playlist      *PlaylistWorkflow
	battles       *ChallengeProtocol
	profile       *ProfileWorkflow
	messenger     chat.Messenger
	repo          store.Repository
	timeouts      config.Timeouts
	logger        *slog.Logger
}

// NewDispatcher wires the message dispatcher.
func NewDispatcher(
	conversations *ConversationRegistry,
	boundary *Boundary,
	playlist *PlaylistWorkflow,
	battles *ChallengeProtocol,
	profile *ProfileWorkflow,
	messenger chat.Messenger,
	repo store.Repository,
	timeouts config.Timeouts,
	logger *slog.Logger,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		conversations: conversations,
		boundary:      boundary,
		playlist:      playlist,
		battles:       battles,
		profile:       profile,
		messenger:     messenger,
		repo:          repo,
		timeouts:      timeouts,
		logger:        logger,
	}
}

// HandleMessage processes one inbound message for one user. It satisfies
// chat.MessageHandler; the transport delivers one message at a time per
// user, so per-user ordering is already guaranteed.
func (d *Dispatcher) HandleMessage(ctx context.Context, userID, username, text string) {
	state := d.conversations.Get(userID)
	d.logger.Debug("dispatching message", "user_id", userID, "stage", state.Stage.String())

	next := d.boundary.Guard(ctx, "dispatch", userID, func(ctx context.Context) (domain.Stage, error) {
		return d.dispatch(ctx, userID, username, text, state)
	})

	d.conversations.Update(userID, func(st *domain.ConversationState) {
		// A handler that installed its own stage data (battle turns) wins
		// over the stage it returned.
		if next == StageUnchanged || st.Stage != state.Stage {
			st.Touch()
			return
		}
		st.Enter(next)
	})

	if err := d.repo.TouchActivity(ctx, userID, time.Now()); err != nil {
		d.logger.Warn("failed to touch activity", "user_id", userID, "error", err)
	}
}

// dispatch resolves text to a handler. Global commands are reachable from
// any stage; anything else falls through to the current stage's handler.
func (d *Dispatcher) dispatch(ctx context.Context, userID, username, text string, state domain.ConversationState) (domain.Stage, error) {
	cmd := normalizeText(strings.TrimPrefix(normalizeText(text), "/"))

	// Commands are quick by construction; they share one dispatch deadline.
	quick := func(fn func(context.Context) (domain.Stage, error)) (domain.Stage, error) {
		return WithTimeout(ctx, d.timeouts.Dispatch, fn)
	}

	switch {
	case cmd == "start" || cmd == "main menu" || cmd == "menu":
		return quick(func(ctx context.Context) (domain.Stage, error) {
			d.say(ctx, userID, msgWelcome, mainMenuKeyboard)
			return domain.StageSelectingAction, nil
		})
	case cmd == "help":
		return quick(func(ctx context.Context) (domain.Stage, error) {
			d.say(ctx, userID, msgHelp, mainMenuKeyboard)
			return domain.StageSelectingAction, nil
		})
	case cmd == "cancel":
		return quick(func(ctx context.Context) (domain.Stage, error) {
			d.conversations.Reset(userID)
			d.say(ctx, userID, msgCancelled, mainMenuKeyboard)
			return domain.StageSelectingAction, nil
		})
	case cmd == "analyze playlist" || cmd == "analyze":
		return d.playlist.RequestPlaylist(ctx, userID)
	case cmd == "my profile" || cmd == "profile":
		return quick(func(ctx context.Context) (domain.Stage, error) {
			return d.profile.ShowProfile(ctx, userID)
		})
	case cmd == "recommendations" || cmd == "recommend":
		return quick(func(ctx context.Context) (domain.Stage, error) {
			return d.profile.ShowRecommendations(ctx, userID)
		})
	case cmd == "stats":
		return quick(func(ctx context.Context) (domain.Stage, error) {
			return d.profile.ShowStats(ctx, userID)
		})
	case cmd == "history":
		return quick(func(ctx context.Context) (domain.Stage, error) {
			return d.profile.ShowHistory(ctx, userID)
		})
	case cmd == "leaderboard":
		return quick(func(ctx context.Context) (domain.Stage, error) {
			return d.profile.ShowLeaderboard(ctx, userID)
		})
	case cmd == "battles" || cmd == "battle":
		return quick(func(ctx context.Context) (domain.Stage, error) {
			d.say(ctx, userID, msgBattleMenu, battleMenuKeyboard)
			return domain.StageSelectingAction, nil
		})
	case cmd == "challenge a friend":
		return quick(func(ctx context.Context) (domain.Stage, error) {
			d.say(ctx, userID, msgBattleHowTo, backKeyboard)
			return domain.StageSelectingAction, nil
		})
	case strings.HasPrefix(cmd, "battle "):
		return d.battles.Issue(ctx, userID, username, strings.TrimSpace(cmd[len("battle "):]))
	}

	switch state.Stage {
	case domain.StageEnterPlaylist:
		return d.playlist.ReceivePlaylist(ctx, userID, text)
	case domain.StageWaitingBattleResponse:
		return d.battles.Respond(ctx, userID, text, state)
	case domain.StageSelectingBattleTracks:
		return d.battles.SubmitTracks(ctx, userID, text, state)
	default:
		// A pasted playlist link works from the menu too.
		if catalog.LooksLikeLocator(text) {
			return d.playlist.ReceivePlaylist(ctx, userID, text)
		}
		return quick(func(ctx context.Context) (domain.Stage, error) {
			d.say(ctx, userID, msgNotUnderstood, mainMenuKeyboard)
			return StageUnchanged, nil
		})
	}
}

func (d *Dispatcher) say(ctx context.Context, userID, text string, suggestions []string) {
	var opts *chat.SendOptions
	if len(suggestions) > 0 {
		opts = &chat.SendOptions{Suggestions: suggestions}
	}
	if err := d.messenger.Send(ctx, userID, text, opts); err != nil {
		d.logger.Warn("send failed", "user_id", userID, "error", err)
	}
}
