// Package store is the persistence boundary for templates, personas and the
// activity ledger. Every backend gives Mutate all-or-nothing semantics keyed
// by persona id.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/roster/internal/persona"
)

// MutateFunc edits a locked persona in place and returns the ledger entry to
// commit with it. Returning an error aborts the unit with nothing written.
type MutateFunc func(p *persona.ProjectPersona) (*persona.Activity, error)

// ActivityFilter narrows ListActivities. A zero Type matches every type.
type ActivityFilter struct {
	Type  persona.ActivityType
	Limit int
}

// Totals is the sum of a persona's ledger deltas.
type Totals struct {
	Professionalism float64 `json:"professionalism"`
	Quality         float64 `json:"quality"`
	Entries         int     `json:"entries"`
}

type Store interface {
	Migrate(ctx context.Context) error

	CreateTemplate(ctx context.Context, t *persona.Template) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*persona.Template, error)
	ListTemplates(ctx context.Context) ([]persona.Template, error)

	CreatePersona(ctx context.Context, p *persona.ProjectPersona) error
	GetPersona(ctx context.Context, id uuid.UUID) (*persona.ProjectPersona, error)
	GetMember(ctx context.Context, id uuid.UUID) (*persona.Member, error)
	ListMembers(ctx context.Context, projectID uuid.UUID, activeOnly bool) ([]persona.Member, error)
	UpdateProfile(ctx context.Context, projectID, personaID uuid.UUID, patch persona.Patch) (*persona.ProjectPersona, error)

	// Mutate loads the persona under a per-persona lock, applies fn, and
	// commits the updated persona together with the returned activity.
	Mutate(ctx context.Context, personaID uuid.UUID, fn MutateFunc) (*persona.ProjectPersona, *persona.Activity, error)

	// ListActivities returns entries newest first.
	ListActivities(ctx context.Context, personaID uuid.UUID, f ActivityFilter) ([]persona.Activity, error)
	ActivityTotals(ctx context.Context, personaID uuid.UUID) (Totals, error)

	// CreateAction appends to a persona's action log. A linked activity must
	// exist and belong to the same persona.
	CreateAction(ctx context.Context, a *persona.Action) error
	// CreateArtifact attaches output to an existing action.
	CreateArtifact(ctx context.Context, a *persona.Artifact) error
	// ListActions returns actions newest first, each carrying its artifacts
	// oldest first.
	ListActions(ctx context.Context, personaID uuid.UUID, limit int) ([]persona.Action, error)

	Close()
}

// Open connects the backend named by driver: "postgres", "sqlite" or "memory".
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgres(ctx, dsn)
	case "sqlite":
		return NewSQLite(ctx, dsn)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, persona.ErrPersistence, err)
}
