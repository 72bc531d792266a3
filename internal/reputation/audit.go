package reputation

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/roster/internal/persona"
	"github.com/MikeSquared-Agency/roster/internal/quota"
	"github.com/MikeSquared-Agency/roster/internal/score"
	"github.com/MikeSquared-Agency/roster/internal/store"
)

// scoreTolerance absorbs float summation order differences between the
// running score and a SUM over the ledger.
const scoreTolerance = 1e-6

// Audit compares a persona's stored scores with its ledger.
type Audit struct {
	PersonaID            uuid.UUID    `json:"persona_id"`
	ProfessionalismScore float64      `json:"professionalism_score"`
	QualityScore         float64      `json:"quality_score"`
	Ledger               store.Totals `json:"ledger"`
	Consistent           bool         `json:"consistent"`
}

// Verify returns ErrInconsistent, alongside the audit, when the persona's
// scores differ from the sum of its ledger deltas.
func (e *Engine) Verify(ctx context.Context, personaID uuid.UUID) (*Audit, error) {
	unlock := e.locks.Lock(personaID)
	defer unlock()

	p, err := e.store.GetPersona(ctx, personaID)
	if err != nil {
		return nil, err
	}
	totals, err := e.ledger.Totals(ctx, personaID)
	if err != nil {
		return nil, err
	}

	a := &Audit{
		PersonaID:            personaID,
		ProfessionalismScore: p.ProfessionalismScore,
		QualityScore:         p.QualityScore,
		Ledger:               totals,
		Consistent: closeEnough(p.ProfessionalismScore, totals.Professionalism) &&
			closeEnough(p.QualityScore, totals.Quality),
	}
	if !a.Consistent {
		e.logger.Error("persona scores disagree with ledger",
			"persona_id", personaID,
			"professionalism", p.ProfessionalismScore, "ledger_professionalism", totals.Professionalism,
			"quality", p.QualityScore, "ledger_quality", totals.Quality)
		return a, fmt.Errorf("persona %s: %w", personaID, persona.ErrInconsistent)
	}
	return a, nil
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) <= scoreTolerance*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// Standing is a persona's presentation view: tiers, magnitudes and what is
// left of today's feedback quota.
type Standing struct {
	score.Reputation
	DailyLimit     int       `json:"daily_limit"`
	KudosRemaining int       `json:"kudos_remaining"`
	WtfRemaining   int       `json:"wtf_remaining"`
	QuotaResetsAt  time.Time `json:"quota_resets_at"`
}

func (e *Engine) Standing(ctx context.Context, personaID uuid.UUID) (*Standing, error) {
	m, err := e.store.GetMember(ctx, personaID)
	if err != nil {
		return nil, err
	}
	limit := m.TemplateKudosQuota
	return &Standing{
		Reputation:     score.Summarize(m.ProjectPersona),
		DailyLimit:     limit,
		KudosRemaining: e.quota.Remaining(m.ProjectPersona, quota.Kudos, limit),
		WtfRemaining:   e.quota.Remaining(m.ProjectPersona, quota.Wtf, limit),
		QuotaResetsAt:  e.quota.NextReset(m.ProjectPersona),
	}, nil
}
