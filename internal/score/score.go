// Package score maps reputation scores to display tiers and bar magnitudes.
// Tier and magnitude are computed independently; a display change to one
// must never move the other.
package score

import (
	"math"

	"github.com/MikeSquared-Agency/roster/internal/persona"
)

// Kind selects which running score a value belongs to.
type Kind string

const (
	Professionalism Kind = "professionalism"
	Quality         Kind = "quality"
)

// Tier is the human-readable label for a score band.
type Tier string

const (
	TierIssues    Tier = "Issues"
	TierStandard  Tier = "Standard"
	TierSenior    Tier = "Senior"
	TierElite     Tier = "Elite"
	TierUltraMega Tier = "Ultra Mega"
	TierMaster    Tier = "Master"
)

// Band lower bounds, inclusive.
const (
	SeniorFloor = 10.0
	EliteFloor  = 25.0
	TopFloor    = 100.0
)

// MagnitudeScale is the score at which the display bar is full.
const MagnitudeScale = 25.0

// TierFor classifies score. Negative scores (and NaN) are Issues; the top
// band's label depends on kind.
func TierFor(score float64, kind Kind) Tier {
	switch {
	case math.IsNaN(score) || score < 0:
		return TierIssues
	case score < SeniorFloor:
		return TierStandard
	case score < EliteFloor:
		return TierSenior
	case score < TopFloor:
		return TierElite
	}
	if kind == Quality {
		return TierMaster
	}
	return TierUltraMega
}

// NormalizedMagnitude clamps score/25 into [0, 1].
func NormalizedMagnitude(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	return clamp(score / MagnitudeScale)
}

// Reputation is the display summary of a persona's two scores.
type Reputation struct {
	PersonaID                string  `json:"persona_id"`
	ProfessionalismScore     float64 `json:"professionalism_score"`
	ProfessionalismTier      Tier    `json:"professionalism_tier"`
	ProfessionalismMagnitude float64 `json:"professionalism_magnitude"`
	QualityScore             float64 `json:"quality_score"`
	QualityTier              Tier    `json:"quality_tier"`
	QualityMagnitude         float64 `json:"quality_magnitude"`
}

// Summarize builds the Reputation view for p.
func Summarize(p persona.ProjectPersona) Reputation {
	return Reputation{
		PersonaID:                p.ID.String(),
		ProfessionalismScore:     p.ProfessionalismScore,
		ProfessionalismTier:      TierFor(p.ProfessionalismScore, Professionalism),
		ProfessionalismMagnitude: NormalizedMagnitude(p.ProfessionalismScore),
		QualityScore:             p.QualityScore,
		QualityTier:              TierFor(p.QualityScore, Quality),
		QualityMagnitude:         NormalizedMagnitude(p.QualityScore),
	}
}

func clamp(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}
