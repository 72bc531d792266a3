// Package roster manages which personas a project has: template catalog
// reads, instantiation, bulk default import and profile edits.
package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/roster/internal/assign"
	"github.com/MikeSquared-Agency/roster/internal/hermes"
	"github.com/MikeSquared-Agency/roster/internal/persona"
	"github.com/MikeSquared-Agency/roster/internal/reputation"
	"github.com/MikeSquared-Agency/roster/internal/store"
)

const (
	importTemplate = "template_instantiation"
	importBulk     = "bulk_default_import"
)

type Service struct {
	store        store.Store
	engine       *reputation.Engine
	pub          reputation.Publisher
	clock        persona.Clock
	logger       *slog.Logger
	defaultQuota int
}

type Options struct {
	Publisher reputation.Publisher
	Clock     persona.Clock
	Logger    *slog.Logger
	// DefaultDailyQuota is given to custom templates created without one.
	DefaultDailyQuota int
}

func New(s store.Store, e *reputation.Engine, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = persona.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		store:        s,
		engine:       e,
		pub:          opts.Publisher,
		clock:        opts.Clock,
		logger:       opts.Logger,
		defaultQuota: opts.DefaultDailyQuota,
	}
}

func (s *Service) Templates(ctx context.Context) ([]persona.Template, error) {
	out, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []persona.Template{}
	}
	return out, nil
}

func (s *Service) Template(ctx context.Context, id uuid.UUID) (*persona.Template, error) {
	return s.store.GetTemplate(ctx, id)
}

// TemplateInput describes a custom (non-system) template.
type TemplateInput struct {
	Name                string           `json:"name"`
	RoleType            persona.RoleType `json:"role_type"`
	Description         string           `json:"description"`
	DefaultInstructions string           `json:"default_instructions"`
	Capabilities        []string         `json:"capabilities"`
	ToolRestrictions    []string         `json:"tool_restrictions"`
	AutomationTriggers  []string         `json:"automation_triggers"`
	KudosQuotaDaily     *int             `json:"kudos_quota_daily,omitempty"`
}

func (s *Service) CreateTemplate(ctx context.Context, in TemplateInput) (*persona.Template, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("template name is required: %w", persona.ErrInvalidInput)
	}
	if !in.RoleType.Valid() {
		return nil, fmt.Errorf("role type %q: %w", in.RoleType, persona.ErrInvalidInput)
	}
	quota := s.defaultQuota
	if in.KudosQuotaDaily != nil {
		quota = *in.KudosQuotaDaily
	}
	if quota < persona.UnlimitedQuota {
		return nil, fmt.Errorf("kudos_quota_daily %d: %w", quota, persona.ErrInvalidInput)
	}

	now := s.clock.Now().UTC()
	t := &persona.Template{
		ID:                  uuid.New(),
		Name:                name,
		RoleType:            in.RoleType,
		Description:         in.Description,
		DefaultInstructions: in.DefaultInstructions,
		Capabilities:        orEmpty(in.Capabilities),
		ToolRestrictions:    orEmpty(in.ToolRestrictions),
		AutomationTriggers:  orEmpty(in.AutomationTriggers),
		KudosQuotaDaily:     quota,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.store.CreateTemplate(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("template created", "template_id", t.ID, "name", t.Name)
	return t, nil
}

// Instantiate adds templateID to projectID's roster with zeroed scores and
// records the import in the new persona's ledger.
func (s *Service) Instantiate(ctx context.Context, projectID, templateID uuid.UUID, customName, customInstructions *string) (*persona.Member, error) {
	tmpl, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	return s.instantiate(ctx, projectID, tmpl, customName, customInstructions, importTemplate,
		"Persona imported to project")
}

// ImportDefaults instantiates every system template not already on the
// project's roster and returns the personas it created.
func (s *Service) ImportDefaults(ctx context.Context, projectID uuid.UUID) ([]persona.Member, error) {
	templates, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	created := []persona.Member{}
	for i := range templates {
		tmpl := &templates[i]
		if !tmpl.IsSystem {
			continue
		}
		m, err := s.instantiate(ctx, projectID, tmpl, nil, nil, importBulk,
			fmt.Sprintf("Default persona %s imported to project", tmpl.Name))
		if errors.Is(err, persona.ErrConflict) {
			s.logger.Debug("default persona already on roster", "project_id", projectID, "template", tmpl.Name)
			continue
		}
		if err != nil {
			return created, fmt.Errorf("import %s: %w", tmpl.Name, err)
		}
		created = append(created, *m)
	}
	s.logger.Info("imported default personas", "project_id", projectID, "count", len(created))
	return created, nil
}

func (s *Service) instantiate(ctx context.Context, projectID uuid.UUID, tmpl *persona.Template, customName, customInstructions *string, importType, description string) (*persona.Member, error) {
	now := s.clock.Now().UTC()
	p := &persona.ProjectPersona{
		ID:                 uuid.New(),
		ProjectID:          projectID,
		TemplateID:         tmpl.ID,
		CustomName:         blankToNil(customName),
		CustomInstructions: blankToNil(customInstructions),
		IsActive:           true,
		LastQuotaReset:     now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.CreatePersona(ctx, p); err != nil {
		return nil, err
	}

	meta, _ := json.Marshal(map[string]string{
		"import_type": importType,
		"template_id": tmpl.ID.String(),
	})
	_, _, err := s.engine.RecordScored(ctx, reputation.ScoredEvent{
		PersonaID:   p.ID,
		Type:        persona.ActivityImported,
		Size:        persona.TaskSmall,
		Description: description,
		Metadata:    meta,
	})
	if err != nil {
		s.logger.Warn("failed to record import activity", "persona_id", p.ID, "template", tmpl.Name, "error", err)
	}

	m := &persona.Member{
		ProjectPersona:      *p,
		TemplateName:        tmpl.Name,
		TemplateRoleType:    tmpl.RoleType,
		TemplateDescription: tmpl.Description,
		TemplateKudosQuota:  tmpl.KudosQuotaDaily,
	}
	s.publish(hermes.SubjectPersonaRegistered, hermes.PersonaRegistered{
		PersonaID:    p.ID.String(),
		ProjectID:    projectID.String(),
		TemplateID:   tmpl.ID.String(),
		TemplateName: tmpl.Name,
		RoleType:     string(tmpl.RoleType),
		DisplayName:  m.DisplayName(),
	})
	return m, nil
}

// Update applies patch to the persona's profile. Deactivation keeps the
// persona and its ledger; there is no delete.
func (s *Service) Update(ctx context.Context, projectID, personaID uuid.UUID, patch persona.Patch) (*persona.ProjectPersona, error) {
	p, err := s.store.UpdateProfile(ctx, projectID, personaID, patch)
	if err != nil {
		return nil, err
	}
	if patch.IsActive != nil {
		s.logger.Info("persona active flag changed", "persona_id", personaID, "active", *patch.IsActive)
	}
	return p, nil
}

// Members lists the project's roster ordered by template name.
func (s *Service) Members(ctx context.Context, projectID uuid.UUID, activeOnly bool) ([]persona.Member, error) {
	out, err := s.store.ListMembers(ctx, projectID, activeOnly)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []persona.Member{}
	}
	return out, nil
}

// DefaultAssignee resolves the project's default assignee for new work.
func (s *Service) DefaultAssignee(ctx context.Context, projectID uuid.UUID) (*persona.Member, error) {
	members, err := s.store.ListMembers(ctx, projectID, true)
	if err != nil {
		return nil, err
	}
	id, ok := assign.DefaultAssignee(members)
	if !ok {
		return nil, fmt.Errorf("no default assignee in project %s: %w", projectID, persona.ErrNotFound)
	}
	for i := range members {
		if members[i].ID == id {
			return &members[i], nil
		}
	}
	return nil, fmt.Errorf("persona %s: %w", id, persona.ErrNotFound)
}

func (s *Service) publish(subject string, payload any) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(subject, payload); err != nil {
		s.logger.Warn("publish failed", "subject", subject, "error", err)
	}
}

func blankToNil(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return v
}

func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
