package domain

import (
	"time"
)

// TrackRef identifies a single track fetched from a music catalog.
type TrackRef struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Source string `json:"source"`
}

// GenreShare is one entry of a genre breakdown.
type GenreShare struct {
	Genre string  `json:"genre"`
	Share float64 `json:"share"`
}

// Analysis is the saved result of analyzing a user's playlist.
type Analysis struct {
	Mood         string       `json:"mood"`
	Energy       float64      `json:"energy"`
	Danceability float64      `json:"danceability"`
	Popularity   float64      `json:"popularity"`
	GenreVariety float64      `json:"genre_variety"`
	Exclusivity  float64      `json:"exclusivity"`
	TopGenres    []GenreShare `json:"top_genres"`
	TopArtist    string       `json:"top_artist"`
	TopTrack     string       `json:"top_track"`
	TrackCount   int          `json:"track_count"`
	AnalyzedAt   time.Time    `json:"analyzed_at"`
}

// Achievement is an award granted to a user.
type Achievement struct {
	Key       string    `json:"key"`
	AwardedAt time.Time `json:"awarded_at"`
}

// BattleRecord is one resolved battle, persisted for history and leaderboard.
type BattleRecord struct {
	ChallengeID string    `json:"challenge_id"`
	IssuerID    string    `json:"issuer_id"`
	TargetID    string    `json:"target_id"`
	WinnerID    string    `json:"winner_id"`
	IssuerScore int       `json:"issuer_score"`
	TargetScore int       `json:"target_score"`
	Title       string    `json:"title"`
	ResolvedAt  time.Time `json:"resolved_at"`
}
