package bot

// Fixed user-facing texts and suggestion keyboards. Handlers compose
// dynamic reports separately; everything verbatim lives here.

const (
	msgWelcome = "Hey! I'm TasteBot 🎧 I analyze playlists, build taste profiles and run music battles between friends.\n\nWhat do you want to do?"

	msgHelp = "Here's what I can do:\n" +
		"• analyze playlist — paste a playlist link and get a taste profile\n" +
		"• my profile — your latest analysis and achievements\n" +
		"• recommendations — picks based on your profile\n" +
		"• battles — challenge a friend to a music battle\n" +
		"• stats — your battle record\n\n" +
		"Type 'cancel' at any point to return to the menu."

	msgTimeout = "Sorry, that took too long. Please try again."

	msgNotUnderstood = "I didn't get that. Pick an option from the menu or type 'help'."

	msgEnterPlaylist = "Send me a playlist link (Spotify, Yandex or Apple Music) — or just list tracks as 'Artist - Title, Artist - Title, ...'."

	msgInvalidLocator = "That doesn't look like a playlist link I can read. Try a Spotify, Yandex or Apple Music link, or type 'cancel'."

	msgAnalyzing = "Analyzing playlist... 🎶"

	msgPlaylistNotFound = "I couldn't find that playlist. Check the link and try again."

	msgPlaylistEmpty = "That playlist looks empty. Try another one."

	msgCancelled = "Okay, cancelled. Back to the menu."

	msgBattleMenu = "⚔️ Music battles: prove whose taste is sharper. What do you want to see?"

	msgBattleHowTo = "To challenge someone, type: battle @username"

	msgNeedProfileFirst = "You need a taste profile first — analyze a playlist, then come back."

	msgOpponentNeedsProfile = "Your opponent doesn't have a taste profile yet. Ask them to analyze a playlist, then the challenge can proceed."

	msgChallengeGone = "That challenge is no longer active."

	msgSelfChallenge = "You can't battle yourself — find a friend!"

	msgAnswerYesNo = "Please answer 'yes' or 'no'."

	msgNotYourTurn = "It's not your turn to submit tracks for this battle."

	msgSubmitTracks = "Send me your 3 battle tracks, comma separated:\nTrack One, Track Two, Track Three"

	msgNeedThreeTracks = "I need exactly 3 tracks, comma separated. Try again."

	msgWaitingForOpponent = "Got it! Waiting for your opponent's tracks... ⏳"

	msgChallengeDeclined = "Your challenge was declined. Maybe next time!"

	msgChallengeExpired = "A battle challenge expired without an answer."

	msgNoBattlesYet = "No battles yet. Challenge someone!"

	msgNoProfileYet = "No profile yet — analyze a playlist first."
)

var (
	mainMenuKeyboard = []string{
		"analyze playlist",
		"my profile",
		"recommendations",
		"battles",
		"stats",
		"help",
	}

	battleMenuKeyboard = []string{
		"challenge a friend",
		"history",
		"leaderboard",
		"main menu",
	}

	inviteKeyboard = []string{"yes", "no"}

	cancelKeyboard = []string{"cancel"}

	afterAnalysisKeyboard = []string{
		"my profile",
		"recommendations",
		"battles",
		"main menu",
	}

	profileKeyboard = []string{
		"stats",
		"recommendations",
		"main menu",
	}

	backKeyboard = []string{"main menu"}
)
