// Package processor turns inbound swarm events into reputation engine calls.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/roster/internal/actionlog"
	"github.com/MikeSquared-Agency/roster/internal/hermes"
	"github.com/MikeSquared-Agency/roster/internal/persona"
	"github.com/MikeSquared-Agency/roster/internal/reputation"
)

// handleTimeout bounds one message's trip through the engine, retries included.
const handleTimeout = 10 * time.Second

// Recorder is the engine surface the processor drives.
type Recorder interface {
	RecordEvent(ctx context.Context, ev reputation.Event) (*persona.ProjectPersona, *persona.Activity, error)
	RecordScored(ctx context.Context, ev reputation.ScoredEvent) (*persona.ProjectPersona, *persona.Activity, error)
}

// ActionRecorder is the action log surface the processor drives.
type ActionRecorder interface {
	Record(ctx context.Context, in actionlog.ActionInput) (*persona.Action, error)
}

type Processor struct {
	engine  Recorder
	actions ActionRecorder
	logger  *slog.Logger
}

func New(engine Recorder, logger *slog.Logger) *Processor {
	return &Processor{engine: engine, logger: logger}
}

// WithActions enables intake on swarm.roster.action.record.
func (p *Processor) WithActions(actions ActionRecorder) *Processor {
	p.actions = actions
	return p
}

// Subscriber is satisfied by *hermes.Client.
type Subscriber interface {
	Subscribe(subject string, handler func(subject string, data []byte)) error
}

// Register subscribes the processor's handlers.
func (p *Processor) Register(sub Subscriber) error {
	if err := sub.Subscribe(hermes.SubjectRecordEvent, p.HandleRecordEvent); err != nil {
		return err
	}
	if err := sub.Subscribe(hermes.SubjectScoredEvent, p.HandleScoredEvent); err != nil {
		return err
	}
	if p.actions == nil {
		return nil
	}
	return sub.Subscribe(hermes.SubjectRecordAction, p.HandleRecordAction)
}

// HandleRecordEvent is the NATS handler for swarm.roster.event.record.
func (p *Processor) HandleRecordEvent(subject string, data []byte) {
	msg, personaID, item, ok := p.decode(subject, data)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	_, act, err := p.engine.RecordEvent(ctx, reputation.Event{
		PersonaID:            personaID,
		Type:                 persona.ActivityType(msg.ActivityType),
		Description:          msg.Description,
		ProfessionalismDelta: msg.ProfessionalismDelta,
		QualityDelta:         msg.QualityDelta,
		Metadata:             msg.Metadata,
		WorkItem:             item,
		TaskSize:             persona.TaskSize(msg.TaskSize),
		DailyLimit:           msg.DailyLimit,
	})
	p.report(subject, personaID, msg.ActivityType, act, err)
}

// HandleScoredEvent is the NATS handler for swarm.roster.event.scored.
func (p *Processor) HandleScoredEvent(subject string, data []byte) {
	msg, personaID, item, ok := p.decode(subject, data)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	_, act, err := p.engine.RecordScored(ctx, reputation.ScoredEvent{
		PersonaID:   personaID,
		Type:        persona.ActivityType(msg.ActivityType),
		Size:        persona.TaskSize(msg.TaskSize),
		Description: msg.Description,
		Metadata:    msg.Metadata,
		WorkItem:    item,
		DailyLimit:  msg.DailyLimit,
	})
	p.report(subject, personaID, msg.ActivityType, act, err)
}

// HandleRecordAction is the NATS handler for swarm.roster.action.record.
func (p *Processor) HandleRecordAction(subject string, data []byte) {
	var msg hermes.ActionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		p.logger.Warn("failed to parse action", "subject", subject, "error", err)
		return
	}

	in := actionlog.ActionInput{
		Type:            persona.ActionType(msg.ActionType),
		Category:        persona.ActionCategory(msg.ActionCategory),
		ToolName:        msg.ToolName,
		Parameters:      msg.Parameters,
		ResultStatus:    persona.ResultStatus(msg.ResultStatus),
		ExecutionTimeMs: msg.ExecutionTimeMs,
		Description:     msg.Description,
	}
	ids := []struct {
		field string
		raw   string
		dst   **uuid.UUID
	}{
		{"persona_id", msg.PersonaID, nil},
		{"work_item_id", msg.WorkItemID, &in.WorkItemID},
		{"activity_id", msg.ActivityID, &in.ActivityID},
	}
	for _, f := range ids {
		if f.raw == "" && f.dst != nil {
			continue
		}
		id, err := uuid.Parse(f.raw)
		if err != nil {
			p.logger.Warn("invalid "+f.field+" in action", "subject", subject, f.field, f.raw)
			return
		}
		if f.dst == nil {
			in.PersonaID = id
		} else {
			*f.dst = &id
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	a, err := p.actions.Record(ctx, in)
	switch {
	case err == nil:
		p.logger.Info("action recorded", "subject", subject, "persona_id", in.PersonaID, "action_id", a.ID)
	case errors.Is(err, persona.ErrInvalidInput), errors.Is(err, persona.ErrNotFound):
		p.logger.Info("action rejected", "subject", subject, "persona_id", in.PersonaID, "action_type", msg.ActionType, "reason", err)
	default:
		p.logger.Error("failed to record action", "subject", subject, "persona_id", in.PersonaID, "action_type", msg.ActionType, "error", err)
	}
}

func (p *Processor) decode(subject string, data []byte) (hermes.EventMessage, uuid.UUID, *persona.WorkItemRef, bool) {
	var msg hermes.EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		p.logger.Warn("failed to parse event", "subject", subject, "error", err)
		return msg, uuid.Nil, nil, false
	}

	personaID, err := uuid.Parse(msg.PersonaID)
	if err != nil {
		p.logger.Warn("invalid persona_id in event", "subject", subject, "persona_id", msg.PersonaID)
		return msg, uuid.Nil, nil, false
	}

	var item *persona.WorkItemRef
	if msg.WorkItemID != "" {
		id, err := uuid.Parse(msg.WorkItemID)
		if err != nil {
			p.logger.Warn("invalid work_item_id in event", "subject", subject, "work_item_id", msg.WorkItemID)
			return msg, uuid.Nil, nil, false
		}
		item = &persona.WorkItemRef{ID: id, Title: msg.WorkItemTitle, Size: persona.TaskSize(msg.TaskSize)}
	}
	return msg, personaID, item, true
}

func (p *Processor) report(subject string, personaID uuid.UUID, activityType string, act *persona.Activity, err error) {
	switch {
	case err == nil:
		p.logger.Info("event recorded", "subject", subject, "persona_id", personaID, "activity_id", act.ID)
	case errors.Is(err, persona.ErrQuotaExceeded), errors.Is(err, persona.ErrInvalidState):
		p.logger.Info("event rejected", "subject", subject, "persona_id", personaID, "activity_type", activityType, "reason", err)
	default:
		p.logger.Error("failed to record event", "subject", subject, "persona_id", personaID, "activity_type", activityType, "error", err)
	}
}
