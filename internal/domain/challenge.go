package domain

import (
	"time"
)

// ChallengeStatus tracks where a battle challenge is in its life cycle.
type ChallengeStatus string

const (
	ChallengeWaiting        ChallengeStatus = "waiting"
	ChallengeAccepted       ChallengeStatus = "accepted"
	ChallengeCollectingData ChallengeStatus = "collecting_data"
	ChallengeScored         ChallengeStatus = "scored"
	ChallengeDeclined       ChallengeStatus = "declined"
	ChallengeExpired        ChallengeStatus = "expired"
)

// BattleTrackCount is the number of tracks each party submits for a battle.
const BattleTrackCount = 3

// Challenge is a two-party battle negotiation record. It is owned exclusively
// by the challenge registry; conversation state holds only the challenge ID.
type Challenge struct {
	ID           string
	IssuerID     string
	IssuerName   string
	TargetHandle string
	TargetID     string
	Status       ChallengeStatus
	CreatedAt    time.Time

	// Submitted track titles, exactly BattleTrackCount entries once present.
	IssuerTracks []string
	TargetTracks []string

	// SubmittingID is the user whose submission is currently expected.
	SubmittingID string
}

// BothSubmitted reports whether both parties have a complete submission.
func (c *Challenge) BothSubmitted() bool {
	return len(c.IssuerTracks) == BattleTrackCount && len(c.TargetTracks) == BattleTrackCount
}

// Terminal reports whether the challenge has reached a final status.
func (c *Challenge) Terminal() bool {
	switch c.Status {
	case ChallengeScored, ChallengeDeclined, ChallengeExpired:
		return true
	default:
		return false
	}
}

// ParamOutcome names the winner of a single compared parameter.
type ParamOutcome string

const (
	OutcomeIssuer ParamOutcome = "issuer"
	OutcomeTarget ParamOutcome = "target"
	OutcomeDraw   ParamOutcome = "draw"
)

// ParamResult is the outcome of one compared parameter.
type ParamResult struct {
	Param   string
	Outcome ParamOutcome
	Issuer  float64
	Target  float64
}

// ScoreReport is the resolved outcome of a battle. It is produced once per
// challenge and consumed immediately by reporting and achievement award.
type ScoreReport struct {
	Results     []ParamResult
	IssuerScore int
	TargetScore int
	Winner      ParamOutcome
	Title       string
}

// Draws returns the number of drawn parameters.
func (r *ScoreReport) Draws() int {
	n := 0
	for _, pr := range r.Results {
		if pr.Outcome == OutcomeDraw {
			n++
		}
	}
	return n
}
