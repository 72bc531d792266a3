package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/roster/internal/persona"
)

// runStoreSuite exercises the behaviour every backend must share. Names are
// suffixed so the suite can run against a shared database.
func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	t.Run("templates", func(t *testing.T) { testTemplates(t, open(t)) })
	t.Run("personas", func(t *testing.T) { testPersonas(t, open(t)) })
	t.Run("update profile", func(t *testing.T) { testUpdateProfile(t, open(t)) })
	t.Run("mutate", func(t *testing.T) { testMutate(t, open(t)) })
	t.Run("mutate rollback", func(t *testing.T) { testMutateRollback(t, open(t)) })
	t.Run("activities", func(t *testing.T) { testActivities(t, open(t)) })
	t.Run("actions", func(t *testing.T) { testActions(t, open(t)) })
}

func testNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func newTemplate(name string, system bool) *persona.Template {
	now := testNow()
	return &persona.Template{
		ID:                 uuid.New(),
		Name:               name,
		RoleType:           persona.RoleDeveloper,
		Description:        name + " description",
		Capabilities:       []string{"code", "review"},
		ToolRestrictions:   []string{},
		AutomationTriggers: []string{"on_assign"},
		KudosQuotaDaily:    10,
		IsSystem:           system,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func newPersona(projectID, templateID uuid.UUID) *persona.ProjectPersona {
	now := testNow()
	return &persona.ProjectPersona{
		ID:             uuid.New(),
		ProjectID:      projectID,
		TemplateID:     templateID,
		IsActive:       true,
		LastQuotaReset: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func seedPersona(t *testing.T, s Store, name string) (*persona.Template, *persona.ProjectPersona) {
	t.Helper()
	ctx := context.Background()
	tmpl := newTemplate(name+"-"+uuid.NewString()[:8], false)
	require.NoError(t, s.CreateTemplate(ctx, tmpl))
	p := newPersona(uuid.New(), tmpl.ID)
	require.NoError(t, s.CreatePersona(ctx, p))
	return tmpl, p
}

func testTemplates(t *testing.T, s Store) {
	ctx := context.Background()
	suffix := uuid.NewString()[:8]

	custom := newTemplate("a-custom-"+suffix, false)
	sysB := newTemplate("b-system-"+suffix, true)
	sysA := newTemplate("a-system-"+suffix, true)
	for _, tmpl := range []*persona.Template{custom, sysB, sysA} {
		require.NoError(t, s.CreateTemplate(ctx, tmpl))
	}

	dup := newTemplate(custom.Name, false)
	err := s.CreateTemplate(ctx, dup)
	assert.ErrorIs(t, err, persona.ErrConflict)

	got, err := s.GetTemplate(ctx, custom.ID)
	require.NoError(t, err)
	assert.Equal(t, custom.Name, got.Name)
	assert.Equal(t, []string{"code", "review"}, got.Capabilities)
	assert.Equal(t, []string{}, got.ToolRestrictions)
	assert.True(t, custom.CreatedAt.Equal(got.CreatedAt))

	_, err = s.GetTemplate(ctx, uuid.New())
	assert.ErrorIs(t, err, persona.ErrNotFound)

	all, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	var order []uuid.UUID
	for _, tmpl := range all {
		if tmpl.ID == custom.ID || tmpl.ID == sysA.ID || tmpl.ID == sysB.ID {
			order = append(order, tmpl.ID)
		}
	}
	assert.Equal(t, []uuid.UUID{sysA.ID, sysB.ID, custom.ID}, order)
}

func testPersonas(t *testing.T, s Store) {
	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	project := uuid.New()

	dev := newTemplate("Developer-"+suffix, true)
	arch := newTemplate("Architect-"+suffix, true)
	require.NoError(t, s.CreateTemplate(ctx, dev))
	require.NoError(t, s.CreateTemplate(ctx, arch))

	pDev := newPersona(project, dev.ID)
	name := "Dev Lead"
	pDev.CustomName = &name
	require.NoError(t, s.CreatePersona(ctx, pDev))

	pArch := newPersona(project, arch.ID)
	pArch.IsActive = false
	require.NoError(t, s.CreatePersona(ctx, pArch))

	err := s.CreatePersona(ctx, newPersona(project, dev.ID))
	assert.ErrorIs(t, err, persona.ErrConflict)

	err = s.CreatePersona(ctx, newPersona(project, uuid.New()))
	assert.ErrorIs(t, err, persona.ErrNotFound)

	// Same template in another project is fine.
	require.NoError(t, s.CreatePersona(ctx, newPersona(uuid.New(), dev.ID)))

	m, err := s.GetMember(ctx, pDev.ID)
	require.NoError(t, err)
	assert.Equal(t, dev.Name, m.TemplateName)
	assert.Equal(t, "Dev Lead", m.DisplayName())
	assert.Equal(t, 10, m.TemplateKudosQuota)

	_, err = s.GetPersona(ctx, uuid.New())
	assert.ErrorIs(t, err, persona.ErrNotFound)

	all, err := s.ListMembers(ctx, project, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, pArch.ID, all[0].ID)
	assert.Equal(t, pDev.ID, all[1].ID)

	active, err := s.ListMembers(ctx, project, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, pDev.ID, active[0].ID)
}

func testUpdateProfile(t *testing.T, s Store) {
	ctx := context.Background()
	_, p := seedPersona(t, s, "update")

	name := "Renamed"
	updated, err := s.UpdateProfile(ctx, p.ProjectID, p.ID, persona.Patch{CustomName: &name})
	require.NoError(t, err)
	require.NotNil(t, updated.CustomName)
	assert.Equal(t, "Renamed", *updated.CustomName)
	assert.True(t, updated.IsActive)

	inactive := false
	updated, err = s.UpdateProfile(ctx, p.ProjectID, p.ID, persona.Patch{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	require.NotNil(t, updated.CustomName)
	assert.Equal(t, "Renamed", *updated.CustomName)

	_, err = s.UpdateProfile(ctx, uuid.New(), p.ID, persona.Patch{CustomName: &name})
	assert.ErrorIs(t, err, persona.ErrNotFound)
}

func testMutate(t *testing.T, s Store) {
	ctx := context.Background()
	_, p := seedPersona(t, s, "mutate")
	at := testNow()

	act := &persona.Activity{
		ID:                   uuid.New(),
		PersonaID:            p.ID,
		Type:                 persona.ActivityKudosReceived,
		Description:          "nice",
		ProfessionalismDelta: 5,
		QualityDelta:         2,
		TaskSize:             persona.TaskStandard,
		Metadata:             json.RawMessage(`{"from":"alice"}`),
		WorkItem:             &persona.WorkItemRef{ID: uuid.New(), Title: "Fix login", Size: persona.TaskStandard},
		CreatedAt:            at,
	}
	got, gotAct, err := s.Mutate(ctx, p.ID, func(cur *persona.ProjectPersona) (*persona.Activity, error) {
		cur.ProfessionalismScore += 5
		cur.QualityScore += 2
		cur.KudosQuotaUsed++
		cur.UpdatedAt = at
		return act, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.ProfessionalismScore)
	assert.Equal(t, act.ID, gotAct.ID)

	stored, err := s.GetPersona(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, stored.ProfessionalismScore)
	assert.Equal(t, 2.0, stored.QualityScore)
	assert.Equal(t, 1, stored.KudosQuotaUsed)

	list, err := s.ListActivities(ctx, p.ID, ActivityFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.JSONEq(t, `{"from":"alice"}`, string(list[0].Metadata))
	require.NotNil(t, list[0].WorkItem)
	assert.Equal(t, "Fix login", list[0].WorkItem.Title)
	assert.Equal(t, persona.TaskStandard, list[0].WorkItem.Size)
	assert.Equal(t, persona.TaskStandard, list[0].TaskSize)
	assert.True(t, at.Equal(list[0].CreatedAt))

	_, _, err = s.Mutate(ctx, uuid.New(), func(*persona.ProjectPersona) (*persona.Activity, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, persona.ErrNotFound)
}

func testMutateRollback(t *testing.T, s Store) {
	ctx := context.Background()
	_, p := seedPersona(t, s, "rollback")
	boom := errors.New("boom")

	_, _, err := s.Mutate(ctx, p.ID, func(cur *persona.ProjectPersona) (*persona.Activity, error) {
		cur.ProfessionalismScore = 99
		cur.KudosQuotaUsed = 7
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := s.GetPersona(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.ProfessionalismScore)
	assert.Zero(t, stored.KudosQuotaUsed)

	totals, err := s.ActivityTotals(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, totals.Entries)
}

func testActivities(t *testing.T, s Store) {
	ctx := context.Background()
	_, p := seedPersona(t, s, "activities")
	base := testNow()

	types := []persona.ActivityType{
		persona.ActivityKudosReceived,
		persona.ActivityWtfReceived,
		persona.ActivityKudosReceived,
		persona.ActivityScoreAdjustment,
	}
	var ids []uuid.UUID
	for i, typ := range types {
		act := &persona.Activity{
			ID:                   uuid.New(),
			PersonaID:            p.ID,
			Type:                 typ,
			ProfessionalismDelta: float64(i + 1),
			QualityDelta:         -0.5,
			CreatedAt:            base.Add(time.Duration(i) * time.Second),
		}
		ids = append(ids, act.ID)
		_, _, err := s.Mutate(ctx, p.ID, func(cur *persona.ProjectPersona) (*persona.Activity, error) {
			cur.ProfessionalismScore += act.ProfessionalismDelta
			cur.QualityScore += act.QualityDelta
			return act, nil
		})
		require.NoError(t, err)
	}

	all, err := s.ListActivities(ctx, p.ID, ActivityFilter{Limit: 50})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, ids[3], all[0].ID)
	assert.Equal(t, ids[0], all[3].ID)
	assert.Nil(t, all[0].WorkItem)
	assert.Empty(t, all[0].Metadata)
	assert.Equal(t, persona.TaskSmall, all[0].TaskSize, "unsized entries are stored as small")

	limited, err := s.ListActivities(ctx, p.ID, ActivityFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, ids[3], limited[0].ID)

	kudos, err := s.ListActivities(ctx, p.ID, ActivityFilter{Type: persona.ActivityKudosReceived, Limit: 50})
	require.NoError(t, err)
	require.Len(t, kudos, 2)
	assert.Equal(t, ids[2], kudos[0].ID)

	totals, err := s.ActivityTotals(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, totals.Professionalism)
	assert.Equal(t, -2.0, totals.Quality)
	assert.Equal(t, 4, totals.Entries)

	stored, err := s.GetPersona(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, totals.Professionalism, stored.ProfessionalismScore)
	assert.Equal(t, totals.Quality, stored.QualityScore)
}

func newAction(personaID uuid.UUID, typ persona.ActionType, at time.Time) *persona.Action {
	cat, _ := typ.Category()
	return &persona.Action{
		ID:           uuid.New(),
		PersonaID:    personaID,
		Type:         typ,
		Category:     cat,
		ResultStatus: persona.ResultSuccess,
		CreatedAt:    at,
	}
}

func testActions(t *testing.T, s Store) {
	ctx := context.Background()
	_, p := seedPersona(t, s, "actions")
	_, other := seedPersona(t, s, "actions-other")
	base := testNow()

	act := &persona.Activity{ID: uuid.New(), PersonaID: p.ID, Type: persona.ActivityTaskCompleted, CreatedAt: base}
	_, _, err := s.Mutate(ctx, p.ID, func(*persona.ProjectPersona) (*persona.Activity, error) { return act, nil })
	require.NoError(t, err)

	tool := "bash"
	elapsed := int64(1250)
	first := newAction(p.ID, persona.ActionBashCommand, base)
	first.ToolName = &tool
	first.Parameters = json.RawMessage(`{"cmd":"go test ./..."}`)
	first.ResultStatus = persona.ResultFailure
	first.ExecutionTimeMs = &elapsed
	first.Description = "ran the suite"
	first.ActivityID = &act.ID
	require.NoError(t, s.CreateAction(ctx, first))

	second := newAction(p.ID, persona.ActionGitCommit, base.Add(time.Second))
	require.NoError(t, s.CreateAction(ctx, second))
	third := newAction(p.ID, persona.ActionFileEdit, base.Add(2*time.Second))
	require.NoError(t, s.CreateAction(ctx, third))

	path := "internal/app.go"
	before, after := "old", "new"
	size := int64(3)
	diff := &persona.Artifact{
		ID: uuid.New(), ActionID: first.ID, Type: persona.ArtifactFileChange,
		FilePath: &path, ContentBefore: &before, ContentAfter: &after, SizeBytes: &size,
		CreatedAt: base,
	}
	output := &persona.Artifact{
		ID: uuid.New(), ActionID: first.ID, Type: persona.ArtifactCommandOutput,
		OutputData: json.RawMessage(`{"exit":1}`), CreatedAt: base.Add(time.Second),
	}
	require.NoError(t, s.CreateArtifact(ctx, output))
	require.NoError(t, s.CreateArtifact(ctx, diff))

	list, err := s.ListActions(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, third.ID, list[0].ID)
	assert.Equal(t, first.ID, list[2].ID)
	assert.Empty(t, list[0].Artifacts)
	assert.NotNil(t, list[0].Artifacts)

	got := list[2]
	assert.Equal(t, persona.CategoryToolUsage, got.Category)
	assert.Equal(t, persona.ResultFailure, got.ResultStatus)
	require.NotNil(t, got.ToolName)
	assert.Equal(t, "bash", *got.ToolName)
	require.NotNil(t, got.ExecutionTimeMs)
	assert.Equal(t, int64(1250), *got.ExecutionTimeMs)
	require.NotNil(t, got.ActivityID)
	assert.Equal(t, act.ID, *got.ActivityID)
	assert.Nil(t, got.WorkItemID)
	assert.JSONEq(t, `{"cmd":"go test ./..."}`, string(got.Parameters))
	assert.True(t, base.Equal(got.CreatedAt))

	require.Len(t, got.Artifacts, 2)
	assert.Equal(t, diff.ID, got.Artifacts[0].ID, "artifacts oldest first")
	require.NotNil(t, got.Artifacts[0].ContentAfter)
	assert.Equal(t, "new", *got.Artifacts[0].ContentAfter)
	require.NotNil(t, got.Artifacts[0].SizeBytes)
	assert.Equal(t, int64(3), *got.Artifacts[0].SizeBytes)
	assert.Nil(t, got.Artifacts[0].GitHash)
	assert.JSONEq(t, `{"exit":1}`, string(got.Artifacts[1].OutputData))

	limited, err := s.ListActions(ctx, p.ID, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, third.ID, limited[0].ID)

	none, err := s.ListActions(ctx, other.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	err = s.CreateAction(ctx, newAction(uuid.New(), persona.ActionFileRead, base))
	assert.ErrorIs(t, err, persona.ErrNotFound)

	missing := uuid.New()
	dangling := newAction(p.ID, persona.ActionFileRead, base)
	dangling.ActivityID = &missing
	assert.ErrorIs(t, s.CreateAction(ctx, dangling), persona.ErrNotFound)

	foreign := newAction(other.ID, persona.ActionFileRead, base)
	foreign.ActivityID = &act.ID
	assert.ErrorIs(t, s.CreateAction(ctx, foreign), persona.ErrInvalidInput)

	err = s.CreateArtifact(ctx, &persona.Artifact{
		ID: uuid.New(), ActionID: uuid.New(), Type: persona.ArtifactGitDiff, CreatedAt: base,
	})
	assert.ErrorIs(t, err, persona.ErrNotFound)
}
