package reputation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/roster/internal/persona"
	"github.com/MikeSquared-Agency/roster/internal/score"
)

func TestVerify(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := f.kudos(t, 0.1, -0.3, nil)
		require.NoError(t, err)
	}
	audit, err := f.engine.Verify(ctx, f.pid)
	require.NoError(t, err)
	assert.True(t, audit.Consistent)
	assert.Equal(t, 4, audit.Ledger.Entries)

	// A score change that bypasses the ledger is detected.
	_, _, err = f.store.Mutate(ctx, f.pid, func(p *persona.ProjectPersona) (*persona.Activity, error) {
		p.QualityScore += 1
		return nil, nil
	})
	require.NoError(t, err)

	audit, err = f.engine.Verify(ctx, f.pid)
	assert.ErrorIs(t, err, persona.ErrInconsistent)
	require.NotNil(t, audit)
	assert.False(t, audit.Consistent)
}

func TestVerify_UnknownPersona(t *testing.T) {
	f := newFixture(t, 10)
	_, err := f.engine.Verify(context.Background(), f.pid)
	require.NoError(t, err)

	f.pid[0] ^= 0xff
	_, err = f.engine.Verify(context.Background(), f.pid)
	assert.ErrorIs(t, err, persona.ErrNotFound)
}

func TestStanding(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	_, err := f.kudos(t, 30, 10, nil)
	require.NoError(t, err)
	_, _, err = f.engine.RecordEvent(ctx, Event{PersonaID: f.pid, Type: persona.ActivityWtfReceived, QualityDelta: -11})
	require.NoError(t, err)

	st, err := f.engine.Standing(ctx, f.pid)
	require.NoError(t, err)
	assert.Equal(t, score.TierElite, st.ProfessionalismTier)
	assert.Equal(t, score.TierIssues, st.QualityTier)
	assert.Equal(t, 1.0, st.ProfessionalismMagnitude)
	assert.Equal(t, 0.0, st.QualityMagnitude)
	assert.Equal(t, 3, st.DailyLimit)
	assert.Equal(t, 2, st.KudosRemaining)
	assert.Equal(t, 2, st.WtfRemaining)
	assert.Equal(t, f.clock.Now().Add(24*time.Hour), st.QuotaResetsAt)

	f.clock.Advance(72 * time.Hour)
	st, err = f.engine.Standing(ctx, f.pid)
	require.NoError(t, err)
	assert.Equal(t, 3, st.KudosRemaining)
	assert.Equal(t, f.clock.Now().Add(24*time.Hour), st.QuotaResetsAt)
	assert.True(t, st.QuotaResetsAt.After(f.clock.Now()))
}
