// Package ledger builds and reads a persona's append-only activity history.
// Entries are written by the store inside the reputation engine's atomic
// unit; nothing here updates or deletes them.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/roster/internal/persona"
	"github.com/MikeSquared-Agency/roster/internal/store"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Reader is the slice of store.Store the ledger reads from.
type Reader interface {
	ListActivities(ctx context.Context, personaID uuid.UUID, f store.ActivityFilter) ([]persona.Activity, error)
	ActivityTotals(ctx context.Context, personaID uuid.UUID) (store.Totals, error)
}

// Draft is the caller-supplied part of a ledger entry.
type Draft struct {
	PersonaID            uuid.UUID
	Type                 persona.ActivityType
	Description          string
	ProfessionalismDelta float64
	QualityDelta         float64
	// TaskSize falls back to the work item's size, then to small.
	TaskSize persona.TaskSize
	Metadata json.RawMessage
	WorkItem *persona.WorkItemRef
}

type Ledger struct {
	reader Reader
	clock  persona.Clock
	newID  func() uuid.UUID
}

func New(r Reader, clock persona.Clock) *Ledger {
	if clock == nil {
		clock = persona.SystemClock{}
	}
	return &Ledger{reader: r, clock: clock, newID: uuid.New}
}

// Append stamps d with a fresh id and the current time. The returned entry
// is not durable until the store commits it.
func (l *Ledger) Append(d Draft) persona.Activity {
	a := persona.Activity{
		ID:                   l.newID(),
		PersonaID:            d.PersonaID,
		Type:                 d.Type,
		Description:          d.Description,
		ProfessionalismDelta: d.ProfessionalismDelta,
		QualityDelta:         d.QualityDelta,
		CreatedAt:            l.clock.Now().UTC(),
	}
	if len(d.Metadata) > 0 {
		a.Metadata = append(json.RawMessage(nil), d.Metadata...)
	}
	size := d.TaskSize
	if size == "" && d.WorkItem != nil {
		size = d.WorkItem.Size
	}
	if size == "" {
		size = persona.TaskSmall
	}
	a.TaskSize = size
	if d.WorkItem != nil {
		ref := *d.WorkItem
		if ref.Size == "" {
			ref.Size = size
		}
		a.WorkItem = &ref
	}
	return a
}

// ListRecent returns up to limit entries, newest first. A non-positive limit
// means DefaultLimit.
func (l *Ledger) ListRecent(ctx context.Context, personaID uuid.UUID, limit int) ([]persona.Activity, error) {
	return l.list(ctx, personaID, "", limit)
}

// ListRecentOfType is ListRecent restricted to one activity type.
func (l *Ledger) ListRecentOfType(ctx context.Context, personaID uuid.UUID, typ persona.ActivityType, limit int) ([]persona.Activity, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("activity type %q: %w", typ, persona.ErrInvalidInput)
	}
	return l.list(ctx, personaID, typ, limit)
}

func (l *Ledger) list(ctx context.Context, personaID uuid.UUID, typ persona.ActivityType, limit int) ([]persona.Activity, error) {
	out, err := l.reader.ListActivities(ctx, personaID, store.ActivityFilter{Type: typ, Limit: clampLimit(limit)})
	if err != nil {
		return nil, fmt.Errorf("list activities for %s: %w", personaID, err)
	}
	if out == nil {
		out = []persona.Activity{}
	}
	return out, nil
}

// Totals sums every delta ever recorded for the persona.
func (l *Ledger) Totals(ctx context.Context, personaID uuid.UUID) (store.Totals, error) {
	t, err := l.reader.ActivityTotals(ctx, personaID)
	if err != nil {
		return store.Totals{}, fmt.Errorf("ledger totals for %s: %w", personaID, err)
	}
	return t, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
