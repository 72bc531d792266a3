// Package reputation applies activity events to persona scores. Each event
// is one atomic unit: quota check, score update and ledger append commit
// together or not at all.
package reputation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/roster/internal/catalog"
	"github.com/MikeSquared-Agency/roster/internal/hermes"
	"github.com/MikeSquared-Agency/roster/internal/ledger"
	"github.com/MikeSquared-Agency/roster/internal/persona"
	"github.com/MikeSquared-Agency/roster/internal/quota"
	"github.com/MikeSquared-Agency/roster/internal/score"
	"github.com/MikeSquared-Agency/roster/internal/store"
)

const (
	DefaultMaxAttempts  = 3
	DefaultRetryBackoff = 50 * time.Millisecond
)

// Publisher is satisfied by *hermes.Client.
type Publisher interface {
	Publish(subject string, data any) error
}

type Options struct {
	QuotaWindow  time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
	Clock        persona.Clock
	Rules        catalog.Rules
	Publisher    Publisher
	Logger       *slog.Logger
}

type Engine struct {
	store       store.Store
	ledger      *ledger.Ledger
	quota       *quota.Tracker
	rules       catalog.Rules
	pub         Publisher
	logger      *slog.Logger
	clock       persona.Clock
	locks       *keyedMutex
	maxAttempts int
	backoff     time.Duration
}

func New(s store.Store, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = persona.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryBackoff < 0 {
		opts.RetryBackoff = 0
	}
	return &Engine{
		store:       s,
		ledger:      ledger.New(s, opts.Clock),
		quota:       quota.New(opts.QuotaWindow, opts.Clock),
		rules:       opts.Rules,
		pub:         opts.Publisher,
		logger:      opts.Logger,
		clock:       opts.Clock,
		locks:       newKeyedMutex(),
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.RetryBackoff,
	}
}

// Ledger exposes the read side of the activity history.
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Event is an activity with caller-chosen deltas.
type Event struct {
	PersonaID            uuid.UUID
	Type                 persona.ActivityType
	Description          string
	ProfessionalismDelta float64
	QualityDelta         float64
	Metadata             json.RawMessage
	WorkItem             *persona.WorkItemRef
	// TaskSize is optional; entries without one are recorded as small.
	TaskSize persona.TaskSize
	// DailyLimit overrides the template's quota for gated events.
	DailyLimit *int
}

// ScoredEvent is an activity whose deltas come from the scoring rules.
type ScoredEvent struct {
	PersonaID   uuid.UUID
	Type        persona.ActivityType
	Size        persona.TaskSize
	Description string
	Metadata    json.RawMessage
	WorkItem    *persona.WorkItemRef
	DailyLimit  *int
}

// RecordEvent applies ev to its persona and appends it to the ledger. On any
// error nothing is written.
func (e *Engine) RecordEvent(ctx context.Context, ev Event) (*persona.ProjectPersona, *persona.Activity, error) {
	kind, ok := ev.Type.Kind()
	if !ok {
		return nil, nil, fmt.Errorf("activity type %q: %w", ev.Type, persona.ErrInvalidInput)
	}
	if !finite(ev.ProfessionalismDelta) || !finite(ev.QualityDelta) {
		return nil, nil, fmt.Errorf("non-finite score delta: %w", persona.ErrInvalidInput)
	}
	if len(ev.Metadata) > 0 && !json.Valid(ev.Metadata) {
		return nil, nil, fmt.Errorf("metadata is not valid JSON: %w", persona.ErrInvalidInput)
	}
	if ev.TaskSize != "" && !ev.TaskSize.Valid() {
		return nil, nil, fmt.Errorf("task size %q: %w", ev.TaskSize, persona.ErrInvalidInput)
	}

	member, err := e.store.GetMember(ctx, ev.PersonaID)
	if err != nil {
		return nil, nil, err
	}
	limit := member.TemplateKudosQuota
	if ev.DailyLimit != nil {
		limit = *ev.DailyLimit
	}

	unlock := e.locks.Lock(ev.PersonaID)
	defer unlock()

	var rejected *hermes.QuotaExceeded
	apply := func(p *persona.ProjectPersona) (*persona.Activity, error) {
		rejected = nil
		if kind.RequiresActive && !p.IsActive {
			return nil, fmt.Errorf("persona %s: %w", p.ID, persona.ErrInvalidState)
		}
		if kind.QuotaGated {
			qk, _ := quota.KindFor(ev.Type)
			used, err := e.quota.CheckAndConsume(p, qk, limit)
			if err != nil {
				if errors.Is(err, persona.ErrQuotaExceeded) {
					rejected = &hermes.QuotaExceeded{
						PersonaID:    p.ID.String(),
						ActivityType: string(ev.Type),
						Used:         used,
						Limit:        limit,
						ResetsAt:     e.quota.NextReset(*p),
					}
				}
				return nil, err
			}
		}

		p.ProfessionalismScore += ev.ProfessionalismDelta
		p.QualityScore += ev.QualityDelta
		p.UpdatedAt = e.clock.Now().UTC()

		a := e.ledger.Append(ledger.Draft{
			PersonaID:            p.ID,
			Type:                 ev.Type,
			Description:          ev.Description,
			ProfessionalismDelta: ev.ProfessionalismDelta,
			QualityDelta:         ev.QualityDelta,
			TaskSize:             ev.TaskSize,
			Metadata:             ev.Metadata,
			WorkItem:             ev.WorkItem,
		})
		return &a, nil
	}

	p, act, err := e.mutateWithRetry(ctx, ev.PersonaID, apply)
	if err != nil {
		if rejected != nil {
			e.logger.Info("feedback rejected by quota",
				"persona_id", ev.PersonaID, "activity_type", ev.Type, "used", rejected.Used, "limit", limit)
			e.publish(hermes.SubjectQuotaExceeded, rejected)
		}
		return nil, nil, err
	}

	e.logger.Debug("activity recorded",
		"persona_id", p.ID, "activity_type", act.Type,
		"professionalism", p.ProfessionalismScore, "quality", p.QualityScore)
	e.publish(hermes.SubjectActivityRecorded, recordedEvent(p, act))
	return p, act, nil
}

// RecordScored looks up the deltas for (Type, Size) and records the event.
// Pairs without a rule score zero.
func (e *Engine) RecordScored(ctx context.Context, ev ScoredEvent) (*persona.ProjectPersona, *persona.Activity, error) {
	size := ev.Size
	if size == "" {
		size = persona.TaskSmall
	}
	if !size.Valid() {
		return nil, nil, fmt.Errorf("task size %q: %w", ev.Size, persona.ErrInvalidInput)
	}
	prof, qual, _ := e.rules.Points(ev.Type, size)

	item := ev.WorkItem
	if item != nil {
		ref := *item
		ref.Size = size
		item = &ref
	}
	return e.RecordEvent(ctx, Event{
		PersonaID:            ev.PersonaID,
		Type:                 ev.Type,
		Description:          ev.Description,
		ProfessionalismDelta: prof,
		QualityDelta:         qual,
		TaskSize:             size,
		Metadata:             ev.Metadata,
		WorkItem:             item,
		DailyLimit:           ev.DailyLimit,
	})
}

func (e *Engine) mutateWithRetry(ctx context.Context, id uuid.UUID, fn store.MutateFunc) (*persona.ProjectPersona, *persona.Activity, error) {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		p, act, err := e.store.Mutate(ctx, id, fn)
		if err == nil {
			return p, act, nil
		}
		if !errors.Is(err, persona.ErrPersistence) {
			return nil, nil, err
		}
		lastErr = err
		e.logger.Warn("persist activity failed", "persona_id", id, "attempt", attempt, "error", err)
		if attempt == e.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("retry persist: %w: %w", persona.ErrPersistence, ctx.Err())
		case <-time.After(time.Duration(attempt) * e.backoff):
		}
	}
	return nil, nil, fmt.Errorf("after %d attempts: %w", e.maxAttempts, lastErr)
}

func (e *Engine) publish(subject string, payload any) {
	if e.pub == nil {
		return
	}
	if err := e.pub.Publish(subject, payload); err != nil {
		e.logger.Warn("publish failed", "subject", subject, "error", err)
	}
}

func recordedEvent(p *persona.ProjectPersona, a *persona.Activity) hermes.ActivityRecorded {
	evt := hermes.ActivityRecorded{
		ActivityID:           a.ID.String(),
		PersonaID:            p.ID.String(),
		ProjectID:            p.ProjectID.String(),
		ActivityType:         string(a.Type),
		ProfessionalismDelta: a.ProfessionalismDelta,
		QualityDelta:         a.QualityDelta,
		ProfessionalismScore: p.ProfessionalismScore,
		QualityScore:         p.QualityScore,
		ProfessionalismTier:  string(score.TierFor(p.ProfessionalismScore, score.Professionalism)),
		QualityTier:          string(score.TierFor(p.QualityScore, score.Quality)),
		TaskSize:             string(a.TaskSize),
		RecordedAt:           a.CreatedAt,
	}
	if a.WorkItem != nil {
		evt.WorkItemID = a.WorkItem.ID.String()
	}
	return evt
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
