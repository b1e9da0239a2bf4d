package domain

import (
	"time"
)

// Stage identifies the current position of a user's conversation. The active
// stage determines which handler owns the user's next free-text message.
type Stage int

const (
	StageSelectingAction Stage = iota
	StageEnterPlaylist
	StageViewingAnalysis
	StageWaitingBattleResponse
	StageSelectingBattleTracks
	StageViewingProfile
	StageViewingRecommendations
)

// String returns a log-friendly stage name.
func (s Stage) String() string {
	switch s {
	case StageSelectingAction:
		return "selecting_action"
	case StageEnterPlaylist:
		return "enter_playlist"
	case StageViewingAnalysis:
		return "viewing_analysis"
	case StageWaitingBattleResponse:
		return "waiting_battle_response"
	case StageSelectingBattleTracks:
		return "selecting_battle_tracks"
	case StageViewingProfile:
		return "viewing_profile"
	case StageViewingRecommendations:
		return "viewing_recommendations"
	default:
		return "unknown"
	}
}

// ConversationState holds the live conversation position for a single user.
// At most one exists per user at a time; StageData is owned exclusively by
// the handler of the current stage and is replaced, never merged, on stage
// re-entry.
type ConversationState struct {
	UserID         string
	Stage          Stage
	StageData      map[string]string
	LastActivityAt time.Time
}

// NewConversationState returns the default state for a first-time user.
func NewConversationState(userID string) *ConversationState {
	return &ConversationState{
		UserID:         userID,
		Stage:          StageSelectingAction,
		StageData:      make(map[string]string),
		LastActivityAt: time.Now(),
	}
}

// Enter moves the conversation to stage and hands it a fresh StageData map.
func (c *ConversationState) Enter(stage Stage) {
	c.Stage = stage
	c.StageData = make(map[string]string)
	c.LastActivityAt = time.Now()
}

// Touch records activity without changing the stage.
func (c *ConversationState) Touch() {
	c.LastActivityAt = time.Now()
}

// ExpiredAfter reports whether the conversation has been idle for at least ttl.
func (c *ConversationState) ExpiredAfter(ttl time.Duration) bool {
	return time.Since(c.LastActivityAt) >= ttl
}
