package catalog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/roster/internal/persona"
	"github.com/MikeSquared-Agency/roster/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NotEmpty(t, c.Templates)

	var pm *TemplateSpec
	for i := range c.Templates {
		if c.Templates[i].RoleType == persona.RolePM {
			pm = &c.Templates[i]
		}
	}
	require.NotNil(t, pm, "default catalog must ship a PM template")
	assert.Equal(t, persona.UnlimitedQuota, pm.Template(persona.SystemClock{}).KudosQuotaDaily)

	prof, qual, ok := c.Rules().Points(persona.ActivityKudosReceived, persona.TaskStandard)
	assert.True(t, ok)
	assert.Equal(t, 5.0, prof)
	assert.Equal(t, 2.0, qual)
}

func TestRulesPoints(t *testing.T) {
	c, err := Parse([]byte(`
scoring_rules:
  - {activity_type: task_completed, task_size: small, professionalism_points: 2, quality_points: 1}
`))
	require.NoError(t, err)
	rules := c.Rules()

	tests := []struct {
		name     string
		typ      persona.ActivityType
		size     persona.TaskSize
		wantProf float64
		wantQual float64
		wantOK   bool
	}{
		{"exact match", persona.ActivityTaskCompleted, persona.TaskSmall, 2, 1, true},
		{"empty size is small", persona.ActivityTaskCompleted, "", 2, 1, true},
		{"missing size", persona.ActivityTaskCompleted, persona.TaskStandard, 0, 0, false},
		{"missing type", persona.ActivityTaskFailed, persona.TaskSmall, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prof, qual, ok := rules.Points(tt.typ, tt.size)
			assert.Equal(t, tt.wantProf, prof)
			assert.Equal(t, tt.wantQual, qual)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad yaml", "templates: [unterminated"},
		{"missing name", "templates:\n  - role_type: developer\n"},
		{"unknown role", "templates:\n  - name: X\n    role_type: wizard\n"},
		{"duplicate name", "templates:\n  - {name: X, role_type: developer}\n  - {name: X, role_type: architect}\n"},
		{"quota below -1", "templates:\n  - {name: X, role_type: developer, kudos_quota_daily: -2}\n"},
		{"unknown activity", "scoring_rules:\n  - {activity_type: high_five, task_size: small}\n"},
		{"unknown size", "scoring_rules:\n  - {activity_type: kudos_received, task_size: huge}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestTemplateDefaults(t *testing.T) {
	c, err := Parse([]byte("templates:\n  - {name: Helper, role_type: specialist}\n"))
	require.NoError(t, err)
	tmpl := c.Templates[0].Template(persona.SystemClock{})
	assert.Equal(t, DefaultKudosQuota, tmpl.KudosQuotaDaily)
	assert.True(t, tmpl.IsSystem)
	assert.Equal(t, []string{}, tmpl.Capabilities)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("templates:\n  - {name: Only, role_type: developer}\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Len(t, c.Templates, 1)
	assert.Equal(t, "Only", c.Templates[0].Name)

	c, err = Load("")
	require.NoError(t, err)
	assert.Greater(t, len(c.Templates), 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSeed_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	c, err := Default()
	require.NoError(t, err)

	n, err := c.Seed(ctx, s, nil, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, len(c.Templates), n)

	n, err = c.Seed(ctx, s, nil, discardLogger())
	require.NoError(t, err)
	assert.Zero(t, n)

	all, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(c.Templates))
	for _, tmpl := range all {
		assert.True(t, tmpl.IsSystem)
	}
}
