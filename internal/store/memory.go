package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/roster/internal/persona"
)

// Memory is an in-process Store for tests and ephemeral runs. Values are
// copied in and out so callers never alias stored state.
type Memory struct {
	mu         sync.RWMutex
	templates  map[uuid.UUID]persona.Template
	personas   map[uuid.UUID]persona.ProjectPersona
	activities map[uuid.UUID][]persona.Activity
	locks      map[uuid.UUID]*sync.Mutex

	actions     map[uuid.UUID][]persona.Action
	actionOwner map[uuid.UUID]uuid.UUID
	artifacts   map[uuid.UUID][]persona.Artifact
}

func NewMemory() *Memory {
	return &Memory{
		templates:  make(map[uuid.UUID]persona.Template),
		personas:   make(map[uuid.UUID]persona.ProjectPersona),
		activities: make(map[uuid.UUID][]persona.Activity),
		locks:      make(map[uuid.UUID]*sync.Mutex),

		actions:     make(map[uuid.UUID][]persona.Action),
		actionOwner: make(map[uuid.UUID]uuid.UUID),
		artifacts:   make(map[uuid.UUID][]persona.Artifact),
	}
}

func (m *Memory) Migrate(context.Context) error { return nil }

func (m *Memory) Close() {}

func (m *Memory) CreateTemplate(_ context.Context, t *persona.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.templates {
		if existing.Name == t.Name {
			return fmt.Errorf("template %q: %w", t.Name, persona.ErrConflict)
		}
	}
	m.templates[t.ID] = copyTemplate(*t)
	return nil
}

func (m *Memory) GetTemplate(_ context.Context, id uuid.UUID) (*persona.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", id, persona.ErrNotFound)
	}
	c := copyTemplate(t)
	return &c, nil
}

func (m *Memory) ListTemplates(context.Context) ([]persona.Template, error) {
	m.mu.RLock()
	out := make([]persona.Template, 0, len(m.templates))
	for _, t := range m.templates {
		out = append(out, copyTemplate(t))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].IsSystem != out[j].IsSystem {
			return out[i].IsSystem
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *Memory) CreatePersona(_ context.Context, p *persona.ProjectPersona) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[p.TemplateID]; !ok {
		return fmt.Errorf("template %s: %w", p.TemplateID, persona.ErrNotFound)
	}
	for _, existing := range m.personas {
		if existing.ProjectID == p.ProjectID && existing.TemplateID == p.TemplateID {
			return fmt.Errorf("persona for template %s in project %s: %w", p.TemplateID, p.ProjectID, persona.ErrConflict)
		}
	}
	m.personas[p.ID] = copyPersona(*p)
	m.locks[p.ID] = &sync.Mutex{}
	return nil
}

func (m *Memory) GetPersona(_ context.Context, id uuid.UUID) (*persona.ProjectPersona, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.personas[id]
	if !ok {
		return nil, fmt.Errorf("persona %s: %w", id, persona.ErrNotFound)
	}
	c := copyPersona(p)
	return &c, nil
}

func (m *Memory) GetMember(_ context.Context, id uuid.UUID) (*persona.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.personas[id]
	if !ok {
		return nil, fmt.Errorf("persona %s: %w", id, persona.ErrNotFound)
	}
	mem := m.member(p)
	return &mem, nil
}

func (m *Memory) ListMembers(_ context.Context, projectID uuid.UUID, activeOnly bool) ([]persona.Member, error) {
	m.mu.RLock()
	var out []persona.Member
	for _, p := range m.personas {
		if p.ProjectID != projectID || (activeOnly && !p.IsActive) {
			continue
		}
		out = append(out, m.member(p))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].TemplateName != out[j].TemplateName {
			return out[i].TemplateName < out[j].TemplateName
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// member must be called with mu held.
func (m *Memory) member(p persona.ProjectPersona) persona.Member {
	t := m.templates[p.TemplateID]
	return persona.Member{
		ProjectPersona:      copyPersona(p),
		TemplateName:        t.Name,
		TemplateRoleType:    t.RoleType,
		TemplateDescription: t.Description,
		TemplateKudosQuota:  t.KudosQuotaDaily,
	}
}

func (m *Memory) UpdateProfile(_ context.Context, projectID, personaID uuid.UUID, patch persona.Patch) (*persona.ProjectPersona, error) {
	lock, err := m.lockFor(personaID)
	if err != nil {
		return nil, err
	}
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.personas[personaID]
	if !ok || p.ProjectID != projectID {
		return nil, fmt.Errorf("persona %s in project %s: %w", personaID, projectID, persona.ErrNotFound)
	}
	if patch.CustomName != nil {
		v := *patch.CustomName
		p.CustomName = &v
	}
	if patch.CustomInstructions != nil {
		v := *patch.CustomInstructions
		p.CustomInstructions = &v
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}
	p.UpdatedAt = time.Now().UTC()
	m.personas[personaID] = p
	c := copyPersona(p)
	return &c, nil
}

func (m *Memory) Mutate(_ context.Context, personaID uuid.UUID, fn MutateFunc) (*persona.ProjectPersona, *persona.Activity, error) {
	lock, err := m.lockFor(personaID)
	if err != nil {
		return nil, nil, err
	}
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	current, ok := m.personas[personaID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("persona %s: %w", personaID, persona.ErrNotFound)
	}

	working := copyPersona(current)
	act, err := fn(&working)
	if err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	m.personas[personaID] = copyPersona(working)
	if act != nil {
		stored := copyActivity(*act)
		if stored.TaskSize == "" {
			stored.TaskSize = persona.TaskSmall
		}
		m.activities[personaID] = append(m.activities[personaID], stored)
	}
	m.mu.Unlock()

	out := copyPersona(working)
	return &out, act, nil
}

func (m *Memory) lockFor(id uuid.UUID) (*sync.Mutex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lock, ok := m.locks[id]
	if !ok {
		return nil, fmt.Errorf("persona %s: %w", id, persona.ErrNotFound)
	}
	return lock, nil
}

func (m *Memory) ListActivities(_ context.Context, personaID uuid.UUID, f ActivityFilter) ([]persona.Activity, error) {
	m.mu.RLock()
	entries := m.activities[personaID]
	out := make([]persona.Activity, 0, len(entries))
	// Walk backwards so equal timestamps keep newest-appended first.
	for i := len(entries) - 1; i >= 0; i-- {
		if f.Type != "" && entries[i].Type != f.Type {
			continue
		}
		out = append(out, copyActivity(entries[i]))
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *Memory) ActivityTotals(_ context.Context, personaID uuid.UUID) (Totals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var t Totals
	for _, a := range m.activities[personaID] {
		t.Professionalism += a.ProfessionalismDelta
		t.Quality += a.QualityDelta
		t.Entries++
	}
	return t, nil
}

func (m *Memory) CreateAction(_ context.Context, a *persona.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.personas[a.PersonaID]; !ok {
		return fmt.Errorf("persona %s: %w", a.PersonaID, persona.ErrNotFound)
	}
	if a.ActivityID != nil {
		if err := checkActivityOwner(*a.ActivityID, m.activityOwner(*a.ActivityID), a.PersonaID); err != nil {
			return err
		}
	}
	stored := copyAction(*a)
	stored.Artifacts = nil
	m.actions[a.PersonaID] = append(m.actions[a.PersonaID], stored)
	m.actionOwner[a.ID] = a.PersonaID
	return nil
}

// activityOwner must be called with mu held.
func (m *Memory) activityOwner(id uuid.UUID) uuid.NullUUID {
	for personaID, entries := range m.activities {
		for _, e := range entries {
			if e.ID == id {
				return uuid.NullUUID{UUID: personaID, Valid: true}
			}
		}
	}
	return uuid.NullUUID{}
}

func (m *Memory) CreateArtifact(_ context.Context, a *persona.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.actionOwner[a.ActionID]; !ok {
		return fmt.Errorf("action %s: %w", a.ActionID, persona.ErrNotFound)
	}
	m.artifacts[a.ActionID] = append(m.artifacts[a.ActionID], copyArtifact(*a))
	return nil
}

func (m *Memory) ListActions(_ context.Context, personaID uuid.UUID, limit int) ([]persona.Action, error) {
	m.mu.RLock()
	entries := m.actions[personaID]
	out := make([]persona.Action, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, copyAction(entries[i]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		arts := make([]persona.Artifact, 0, len(m.artifacts[out[i].ID]))
		for _, art := range m.artifacts[out[i].ID] {
			arts = append(arts, copyArtifact(art))
		}
		sort.SliceStable(arts, func(x, y int) bool {
			return arts[x].CreatedAt.Before(arts[y].CreatedAt)
		})
		out[i].Artifacts = arts
	}
	m.mu.RUnlock()
	return out, nil
}

func copyTemplate(t persona.Template) persona.Template {
	t.Capabilities = append([]string{}, t.Capabilities...)
	t.ToolRestrictions = append([]string{}, t.ToolRestrictions...)
	t.AutomationTriggers = append([]string{}, t.AutomationTriggers...)
	return t
}

func copyPersona(p persona.ProjectPersona) persona.ProjectPersona {
	if p.CustomName != nil {
		v := *p.CustomName
		p.CustomName = &v
	}
	if p.CustomInstructions != nil {
		v := *p.CustomInstructions
		p.CustomInstructions = &v
	}
	if p.ImportedFromProjectID != nil {
		v := *p.ImportedFromProjectID
		p.ImportedFromProjectID = &v
	}
	if p.ImportedAt != nil {
		v := *p.ImportedAt
		p.ImportedAt = &v
	}
	return p
}

func copyActivity(a persona.Activity) persona.Activity {
	if a.Metadata != nil {
		a.Metadata = append(json.RawMessage(nil), a.Metadata...)
	}
	if a.WorkItem != nil {
		ref := *a.WorkItem
		a.WorkItem = &ref
	}
	return a
}

func copyAction(a persona.Action) persona.Action {
	if a.WorkItemID != nil {
		v := *a.WorkItemID
		a.WorkItemID = &v
	}
	if a.ActivityID != nil {
		v := *a.ActivityID
		a.ActivityID = &v
	}
	if a.ToolName != nil {
		v := *a.ToolName
		a.ToolName = &v
	}
	if a.ExecutionTimeMs != nil {
		v := *a.ExecutionTimeMs
		a.ExecutionTimeMs = &v
	}
	if a.Parameters != nil {
		a.Parameters = append(json.RawMessage(nil), a.Parameters...)
	}
	return a
}

func copyArtifact(a persona.Artifact) persona.Artifact {
	for _, s := range []**string{&a.FilePath, &a.ContentBefore, &a.ContentAfter, &a.GitHash} {
		if *s != nil {
			v := **s
			*s = &v
		}
	}
	if a.SizeBytes != nil {
		v := *a.SizeBytes
		a.SizeBytes = &v
	}
	if a.OutputData != nil {
		a.OutputData = append(json.RawMessage(nil), a.OutputData...)
	}
	return a
}
