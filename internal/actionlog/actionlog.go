// Package actionlog keeps the append-only record of what personas did while
// working: tool calls, file edits, git operations. Artifacts such as diffs or
// command output are attached to an action after it is logged. Actions never
// change reputation scores.
package actionlog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/roster/internal/hermes"
	"github.com/MikeSquared-Agency/roster/internal/persona"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Store is the slice of store.Store the log needs.
type Store interface {
	GetPersona(ctx context.Context, id uuid.UUID) (*persona.ProjectPersona, error)
	CreateAction(ctx context.Context, a *persona.Action) error
	CreateArtifact(ctx context.Context, a *persona.Artifact) error
	ListActions(ctx context.Context, personaID uuid.UUID, limit int) ([]persona.Action, error)
}

// Publisher is satisfied by *hermes.Client.
type Publisher interface {
	Publish(subject string, data any) error
}

type Options struct {
	Clock     persona.Clock
	Publisher Publisher
	Logger    *slog.Logger
}

type Log struct {
	store  Store
	pub    Publisher
	clock  persona.Clock
	logger *slog.Logger
	newID  func() uuid.UUID
}

func New(s Store, opts Options) *Log {
	if opts.Clock == nil {
		opts.Clock = persona.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Log{
		store:  s,
		pub:    opts.Publisher,
		clock:  opts.Clock,
		logger: opts.Logger,
		newID:  uuid.New,
	}
}

// ActionInput is a caller-reported action. Category defaults to the type's
// own category and ResultStatus to success.
type ActionInput struct {
	PersonaID       uuid.UUID              `json:"-"`
	WorkItemID      *uuid.UUID             `json:"work_item_id,omitempty"`
	ActivityID      *uuid.UUID             `json:"activity_id,omitempty"`
	Type            persona.ActionType     `json:"action_type"`
	Category        persona.ActionCategory `json:"action_category,omitempty"`
	ToolName        string                 `json:"tool_name,omitempty"`
	Parameters      json.RawMessage        `json:"parameters,omitempty"`
	ResultStatus    persona.ResultStatus   `json:"result_status,omitempty"`
	ExecutionTimeMs *int64                 `json:"execution_time_ms,omitempty"`
	Description     string                 `json:"description"`
}

// ArtifactInput is output attached to an existing action.
type ArtifactInput struct {
	Type          persona.ArtifactType `json:"artifact_type"`
	FilePath      *string              `json:"file_path,omitempty"`
	ContentBefore *string              `json:"content_before,omitempty"`
	ContentAfter  *string              `json:"content_after,omitempty"`
	GitHash       *string              `json:"git_hash,omitempty"`
	OutputData    json.RawMessage      `json:"output_data,omitempty"`
	SizeBytes     *int64               `json:"size_bytes,omitempty"`
}

// Record validates in and appends it to the persona's log. A linked activity
// must belong to the same persona.
func (l *Log) Record(ctx context.Context, in ActionInput) (*persona.Action, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("action type %q: %w", in.Type, persona.ErrInvalidInput)
	}
	category := in.Category
	if category == "" {
		category, _ = in.Type.Category()
	}
	if !category.Valid() {
		return nil, fmt.Errorf("action category %q: %w", in.Category, persona.ErrInvalidInput)
	}
	status := in.ResultStatus
	if status == "" {
		status = persona.ResultSuccess
	}
	if !status.Valid() {
		return nil, fmt.Errorf("result status %q: %w", in.ResultStatus, persona.ErrInvalidInput)
	}
	if len(in.Parameters) > 0 && !json.Valid(in.Parameters) {
		return nil, fmt.Errorf("parameters are not valid JSON: %w", persona.ErrInvalidInput)
	}
	if in.ExecutionTimeMs != nil && *in.ExecutionTimeMs < 0 {
		return nil, fmt.Errorf("negative execution time: %w", persona.ErrInvalidInput)
	}

	a := &persona.Action{
		ID:              l.newID(),
		PersonaID:       in.PersonaID,
		WorkItemID:      in.WorkItemID,
		ActivityID:      in.ActivityID,
		Type:            in.Type,
		Category:        category,
		Parameters:      in.Parameters,
		ResultStatus:    status,
		ExecutionTimeMs: in.ExecutionTimeMs,
		Description:     in.Description,
		CreatedAt:       l.clock.Now().UTC(),
		Artifacts:       []persona.Artifact{},
	}
	if tool := strings.TrimSpace(in.ToolName); tool != "" {
		a.ToolName = &tool
	}
	if err := l.store.CreateAction(ctx, a); err != nil {
		return nil, err
	}

	l.logger.Debug("action recorded",
		"persona_id", a.PersonaID, "action_type", a.Type, "result_status", a.ResultStatus)
	l.publish(hermes.SubjectActionRecorded, recordedEvent(a))
	return a, nil
}

// Attach adds an artifact to the action identified by actionID.
func (l *Log) Attach(ctx context.Context, actionID uuid.UUID, in ArtifactInput) (*persona.Artifact, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("artifact type %q: %w", in.Type, persona.ErrInvalidInput)
	}
	if len(in.OutputData) > 0 && !json.Valid(in.OutputData) {
		return nil, fmt.Errorf("output data is not valid JSON: %w", persona.ErrInvalidInput)
	}
	if in.SizeBytes != nil && *in.SizeBytes < 0 {
		return nil, fmt.Errorf("negative size: %w", persona.ErrInvalidInput)
	}

	art := &persona.Artifact{
		ID:            l.newID(),
		ActionID:      actionID,
		Type:          in.Type,
		FilePath:      in.FilePath,
		ContentBefore: in.ContentBefore,
		ContentAfter:  in.ContentAfter,
		GitHash:       in.GitHash,
		OutputData:    in.OutputData,
		SizeBytes:     in.SizeBytes,
		CreatedAt:     l.clock.Now().UTC(),
	}
	if err := l.store.CreateArtifact(ctx, art); err != nil {
		return nil, err
	}
	return art, nil
}

// List returns up to limit actions for the persona, newest first. A
// non-positive limit means DefaultLimit; larger values are capped at MaxLimit.
func (l *Log) List(ctx context.Context, personaID uuid.UUID, limit int) ([]persona.Action, error) {
	if _, err := l.store.GetPersona(ctx, personaID); err != nil {
		return nil, err
	}
	return l.store.ListActions(ctx, personaID, clampLimit(limit))
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultLimit
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}

func (l *Log) publish(subject string, payload any) {
	if l.pub == nil {
		return
	}
	if err := l.pub.Publish(subject, payload); err != nil {
		l.logger.Warn("publish failed", "subject", subject, "error", err)
	}
}

func recordedEvent(a *persona.Action) hermes.ActionRecorded {
	evt := hermes.ActionRecorded{
		ActionID:       a.ID.String(),
		PersonaID:      a.PersonaID.String(),
		ActionType:     string(a.Type),
		ActionCategory: string(a.Category),
		ResultStatus:   string(a.ResultStatus),
		RecordedAt:     a.CreatedAt,
	}
	if a.ToolName != nil {
		evt.ToolName = *a.ToolName
	}
	if a.ActivityID != nil {
		evt.ActivityID = a.ActivityID.String()
	}
	return evt
}
