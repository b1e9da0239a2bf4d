package bot

import (
	"context"
	"strings"
	"testing"

	"github.com/mzaitsev/tastebot/internal/domain"
)

func TestDispatcherUnknownTextSendsOneMessage(t *testing.T) {
	t.Parallel()

	tb := newTestBot(t, nil)
	ctx := context.Background()
	seedUser(t, tb.repo, "1", "alice")

	tb.dispatcher.HandleMessage(ctx, "1", "alice", "what is this")

	sent := tb.messenger.sentTo("1")
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want exactly 1", len(sent))
	}
	if sent[0] != msgNotUnderstood {
		t.Fatalf("sent %q, want the fallback", sent[0])
	}
	if st := tb.conversations.Get("1"); st.Stage != domain.StageSelectingAction {
		t.Fatalf("fallback changed stage to %v", st.Stage)
	}
}

func TestDispatcherStartShowsMenu(t *testing.T) {
	t.Parallel()

	tb := newTestBot(t, nil)
	ctx := context.Background()
	seedUser(t, tb.repo, "1", "alice")

	tb.dispatcher.HandleMessage(ctx, "1", "alice", "/start")

	if got := tb.messenger.lastSentTo(t, "1"); got != msgWelcome {
		t.Fatalf("got %q, want the welcome", got)
	}
	last := tb.messenger.sends[len(tb.messenger.sends)-1]
	if last.Opts == nil || len(last.Opts.Suggestions) == 0 {
		t.Fatal("welcome carries no menu suggestions")
	}
}

func TestDispatcherCommandsWorkFromAnyStage(t *testing.T) {
	t.Parallel()

	tb := newTestBot(t, nil)
	ctx := context.Background()
	seedUser(t, tb.repo, "1", "alice")

	tb.dispatcher.HandleMessage(ctx, "1", "alice", "analyze playlist")
	if st := tb.conversations.Get("1"); st.Stage != domain.StageEnterPlaylist {
		t.Fatalf("stage = %v, want enter playlist", st.Stage)
	}

	// "help" must short-circuit the playlist stage.
	tb.dispatcher.HandleMessage(ctx, "1", "alice", "help")
	if got := tb.messenger.lastSentTo(t, "1"); got != msgHelp {
		t.Fatalf("got %q, want help", got)
	}
	if st := tb.conversations.Get("1"); st.Stage != domain.StageSelectingAction {
		t.Fatalf("stage after help = %v, want selecting action", st.Stage)
	}
}

func TestDispatcherCancelResetsConversation(t *testing.T) {
	t.Parallel()

	tb := newTestBot(t, nil)
	ctx := context.Background()
	seedUser(t, tb.repo, "1", "alice")

	tb.dispatcher.HandleMessage(ctx, "1", "alice", "analyze playlist")
	tb.dispatcher.HandleMessage(ctx, "1", "alice", "cancel")

	if st := tb.conversations.Get("1"); st.Stage != domain.StageSelectingAction {
		t.Fatalf("stage after cancel = %v, want selecting action", st.Stage)
	}
	if got := tb.messenger.lastSentTo(t, "1"); got != msgCancelled {
		t.Fatalf("got %q, want the cancel acknowledgement", got)
	}
}

func TestDispatcherRoutesPastedLinkFromMenu(t *testing.T) {
	t.Parallel()

	tb := newTestBot(t, nil)
	ctx := context.Background()
	seedUser(t, tb.repo, "1", "alice")

	tb.dispatcher.HandleMessage(ctx, "1", "alice", "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M")

	if st := tb.conversations.Get("1"); st.Stage != domain.StageViewingAnalysis {
		t.Fatalf("stage = %v, want viewing analysis", st.Stage)
	}
	found := false
	for _, text := range tb.messenger.sentTo("1") {
		if strings.Contains(text, "taste profile") {
			found = true
		}
	}
	for _, e := range tb.messenger.edits {
		if e.UserID == "1" && strings.Contains(e.Text, "taste profile") {
			found = true
		}
	}
	if !found {
		t.Fatal("pasted link produced no analysis report")
	}
}

func TestDispatcherTouchesActivity(t *testing.T) {
	t.Parallel()

	tb := newTestBot(t, nil)
	ctx := context.Background()
	seedUser(t, tb.repo, "1", "alice")

	before, err := tb.repo.GetUser(ctx, "1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}

	tb.dispatcher.HandleMessage(ctx, "1", "alice", "help")

	after, err := tb.repo.GetUser(ctx, "1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !after.LastSeenAt.After(before.LastSeenAt) && !after.LastSeenAt.Equal(before.LastSeenAt) {
		t.Fatal("dispatch did not touch last seen")
	}
}
