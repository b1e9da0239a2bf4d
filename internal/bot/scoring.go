package bot

import (
	"fmt"
	"math"
	"strings"

	"github.com/mzaitsev/tastebot/internal/analysis"
	"github.com/mzaitsev/tastebot/internal/domain"
)

// drawThreshold is the maximum absolute difference at which a parameter is
// declared a draw.
const drawThreshold = 0.1

// Compare scores two feature vectors parameter by parameter. Each compared
// parameter is worth exactly one point: the winner takes it, a draw splits
// nothing and both halves count it as covered. An equal total resolves the
// battle toward the target.
func Compare(issuer, target analysis.Vector) domain.ScoreReport {
	report := domain.ScoreReport{
		Results: make([]domain.ParamResult, 0, analysis.NumParams),
	}

	var issuerWon [analysis.NumParams]bool
	for i := 0; i < analysis.NumParams; i++ {
		pr := domain.ParamResult{
			Param:  analysis.ParamNames[i],
			Issuer: issuer[i],
			Target: target[i],
		}
		switch {
		case math.Abs(issuer[i]-target[i]) < drawThreshold:
			pr.Outcome = domain.OutcomeDraw
		case issuer[i] > target[i]:
			pr.Outcome = domain.OutcomeIssuer
			report.IssuerScore++
			issuerWon[i] = true
		default:
			pr.Outcome = domain.OutcomeTarget
			report.TargetScore++
		}
		report.Results = append(report.Results, pr)
	}

	if report.IssuerScore > report.TargetScore {
		report.Winner = domain.OutcomeIssuer
	} else {
		report.Winner = domain.OutcomeTarget
	}
	report.Title = titleFor(issuerWon)
	return report
}

// titleFor picks the battle title from the parameters the issuer took
// outright. The table is checked in priority order.
func titleFor(issuerWon [analysis.NumParams]bool) string {
	switch {
	case issuerWon[analysis.ParamEnergy] && issuerWon[analysis.ParamDanceability]:
		return "dance master"
	case issuerWon[analysis.ParamPopularity]:
		return "hitmaker"
	case issuerWon[analysis.ParamExclusivity]:
		return "underground hero"
	default:
		return "taste guru"
	}
}

// Bar rendering widths. A decided parameter shows a 10/5 split toward the
// winner; a draw shows a 7/7 centered split.
const (
	barWin  = 10
	barLose = 5
	barDraw = 7
)

var paramLabels = [analysis.NumParams]string{
	"Energy",
	"Danceability",
	"Popularity",
	"Variety",
	"Exclusivity",
}

// RenderBars formats the per-parameter comparison as aligned text bars,
// issuer on the left.
func RenderBars(report domain.ScoreReport) string {
	var b strings.Builder
	for i, pr := range report.Results {
		var left, right string
		switch pr.Outcome {
		case domain.OutcomeIssuer:
			left = strings.Repeat("█", barWin)
			right = strings.Repeat("░", barLose)
		case domain.OutcomeTarget:
			left = strings.Repeat("░", barLose)
			right = strings.Repeat("█", barWin)
		default:
			left = strings.Repeat("█", barDraw)
			right = strings.Repeat("█", barDraw)
		}
		fmt.Fprintf(&b, "%-13s 🔵 %s  🟡 %s\n", paramLabels[i]+":", left, right)
	}
	return strings.TrimRight(b.String(), "\n")
}
