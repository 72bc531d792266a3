// Package catalog loads the system persona templates and scoring rules from
// YAML and seeds them into a store.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/roster/internal/persona"
)

//go:embed default.yaml
var defaultYAML []byte

// DefaultKudosQuota applies to templates that do not set kudos_quota_daily.
const DefaultKudosQuota = 10

type TemplateSpec struct {
	Name                string           `yaml:"name"`
	RoleType            persona.RoleType `yaml:"role_type"`
	Description         string           `yaml:"description"`
	DefaultInstructions string           `yaml:"default_instructions"`
	Capabilities        []string         `yaml:"capabilities"`
	ToolRestrictions    []string         `yaml:"tool_restrictions"`
	AutomationTriggers  []string         `yaml:"automation_triggers"`
	KudosQuotaDaily     *int             `yaml:"kudos_quota_daily"`
}

type Catalog struct {
	Templates    []TemplateSpec        `yaml:"templates"`
	ScoringRules []persona.ScoringRule `yaml:"scoring_rules"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultYAML)
}

// Load reads a catalog file, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

func Parse(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	names := make(map[string]bool, len(c.Templates))
	for i, t := range c.Templates {
		if t.Name == "" {
			return fmt.Errorf("template %d: name is required: %w", i, persona.ErrInvalidInput)
		}
		if names[t.Name] {
			return fmt.Errorf("template %q listed twice: %w", t.Name, persona.ErrInvalidInput)
		}
		names[t.Name] = true
		if !t.RoleType.Valid() {
			return fmt.Errorf("template %q: unknown role type %q: %w", t.Name, t.RoleType, persona.ErrInvalidInput)
		}
		if t.KudosQuotaDaily != nil && *t.KudosQuotaDaily < persona.UnlimitedQuota {
			return fmt.Errorf("template %q: kudos_quota_daily must be >= -1: %w", t.Name, persona.ErrInvalidInput)
		}
	}
	for _, r := range c.ScoringRules {
		if !r.ActivityType.Valid() {
			return fmt.Errorf("scoring rule: unknown activity type %q: %w", r.ActivityType, persona.ErrInvalidInput)
		}
		if r.TaskSize != persona.TaskSmall && r.TaskSize != persona.TaskStandard {
			return fmt.Errorf("scoring rule %s: unknown task size %q: %w", r.ActivityType, r.TaskSize, persona.ErrInvalidInput)
		}
	}
	return nil
}

// Template materialises s as a system template with a fresh id.
func (s TemplateSpec) Template(clock persona.Clock) persona.Template {
	quota := DefaultKudosQuota
	if s.KudosQuotaDaily != nil {
		quota = *s.KudosQuotaDaily
	}
	ts := clock.Now().UTC()
	return persona.Template{
		ID:                  uuid.New(),
		Name:                s.Name,
		RoleType:            s.RoleType,
		Description:         s.Description,
		DefaultInstructions: s.DefaultInstructions,
		Capabilities:        nonNil(s.Capabilities),
		ToolRestrictions:    nonNil(s.ToolRestrictions),
		AutomationTriggers:  nonNil(s.AutomationTriggers),
		KudosQuotaDaily:     quota,
		IsSystem:            true,
		CreatedAt:           ts,
		UpdatedAt:           ts,
	}
}

// TemplateWriter is the store method Seed needs.
type TemplateWriter interface {
	CreateTemplate(ctx context.Context, t *persona.Template) error
}

// Seed inserts every catalog template, skipping names the store already
// has. It returns how many were created.
func (c *Catalog) Seed(ctx context.Context, w TemplateWriter, clock persona.Clock, logger *slog.Logger) (int, error) {
	if clock == nil {
		clock = persona.SystemClock{}
	}
	created := 0
	for _, spec := range c.Templates {
		t := spec.Template(clock)
		err := w.CreateTemplate(ctx, &t)
		if errors.Is(err, persona.ErrConflict) {
			logger.Debug("template already seeded", "name", spec.Name)
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed template %q: %w", spec.Name, err)
		}
		created++
	}
	return created, nil
}

// Rules indexes the scoring rules by activity type and task size.
func (c *Catalog) Rules() Rules {
	r := make(Rules, len(c.ScoringRules))
	for _, rule := range c.ScoringRules {
		r[ruleKey{rule.ActivityType, rule.TaskSize}] = rule
	}
	return r
}

type ruleKey struct {
	typ  persona.ActivityType
	size persona.TaskSize
}

type Rules map[ruleKey]persona.ScoringRule

// Points returns the deltas for typ at size. A missing rule scores zero.
func (r Rules) Points(typ persona.ActivityType, size persona.TaskSize) (professionalism, quality float64, ok bool) {
	if size == "" {
		size = persona.TaskSmall
	}
	rule, ok := r[ruleKey{typ, size}]
	if !ok {
		return 0, 0, false
	}
	return rule.ProfessionalismPoints, rule.QualityPoints, true
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
