package hermes

import (
	"encoding/json"
	"time"
)

const (
	// SubjectActivityRecorded fires after a ledger entry commits.
	SubjectActivityRecorded = "swarm.roster.activity.recorded"
	// SubjectQuotaExceeded fires when a kudos or WTF event is rejected by quota.
	SubjectQuotaExceeded = "swarm.roster.quota.exceeded"
	// SubjectPersonaRegistered fires when a template is instantiated into a project.
	SubjectPersonaRegistered = "swarm.roster.persona.registered"
	// SubjectRegistered announces the service on startup.
	SubjectRegistered = "swarm.agent.roster.registered"

	// SubjectRecordEvent carries explicit-delta events from other services.
	SubjectRecordEvent = "swarm.roster.event.record"
	// SubjectScoredEvent carries events scored by the roster's own rules.
	SubjectScoredEvent = "swarm.roster.event.scored"

	// SubjectRecordAction carries tool and workflow actions reported by agents.
	SubjectRecordAction = "swarm.roster.action.record"
	// SubjectActionRecorded fires after an action is appended to the log.
	SubjectActionRecorded = "swarm.roster.action.recorded"
)

// ActivityRecorded is published for every committed ledger entry.
type ActivityRecorded struct {
	ActivityID           string    `json:"activity_id"`
	PersonaID            string    `json:"persona_id"`
	ProjectID            string    `json:"project_id"`
	ActivityType         string    `json:"activity_type"`
	ProfessionalismDelta float64   `json:"professionalism_change"`
	QualityDelta         float64   `json:"quality_change"`
	ProfessionalismScore float64   `json:"professionalism_score"`
	QualityScore         float64   `json:"quality_score"`
	ProfessionalismTier  string    `json:"professionalism_tier"`
	QualityTier          string    `json:"quality_tier"`
	WorkItemID           string    `json:"work_item_id,omitempty"`
	TaskSize             string    `json:"task_size"`
	RecordedAt           time.Time `json:"recorded_at"`
}

// QuotaExceeded is published when a feedback event is refused.
type QuotaExceeded struct {
	PersonaID    string    `json:"persona_id"`
	ActivityType string    `json:"activity_type"`
	Used         int       `json:"used"`
	Limit        int       `json:"limit"`
	ResetsAt     time.Time `json:"resets_at"`
}

// PersonaRegistered is published when a persona joins a project roster.
type PersonaRegistered struct {
	PersonaID    string `json:"persona_id"`
	ProjectID    string `json:"project_id"`
	TemplateID   string `json:"template_id"`
	TemplateName string `json:"template_name"`
	RoleType     string `json:"role_type"`
	DisplayName  string `json:"display_name"`
}

// EventMessage is the inbound payload on SubjectRecordEvent and
// SubjectScoredEvent. Deltas are ignored on the scored subject.
type EventMessage struct {
	PersonaID            string          `json:"persona_id"`
	ActivityType         string          `json:"activity_type"`
	Description          string          `json:"description"`
	ProfessionalismDelta float64         `json:"professionalism_change"`
	QualityDelta         float64         `json:"quality_change"`
	Metadata             json.RawMessage `json:"metadata,omitempty"`
	WorkItemID           string          `json:"work_item_id,omitempty"`
	WorkItemTitle        string          `json:"work_item_title,omitempty"`
	TaskSize             string          `json:"task_size,omitempty"`
	// DailyLimit overrides the persona template's quota for gated events.
	DailyLimit *int `json:"daily_limit,omitempty"`
}

// ActionRecorded is published for every appended action.
type ActionRecorded struct {
	ActionID       string    `json:"action_id"`
	PersonaID      string    `json:"persona_id"`
	ActionType     string    `json:"action_type"`
	ActionCategory string    `json:"action_category"`
	ResultStatus   string    `json:"result_status"`
	ToolName       string    `json:"tool_name,omitempty"`
	ActivityID     string    `json:"activity_id,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// ActionMessage is the inbound payload on SubjectRecordAction.
type ActionMessage struct {
	PersonaID       string          `json:"persona_id"`
	ActionType      string          `json:"action_type"`
	ActionCategory  string          `json:"action_category,omitempty"`
	ToolName        string          `json:"tool_name,omitempty"`
	Parameters      json.RawMessage `json:"parameters,omitempty"`
	ResultStatus    string          `json:"result_status,omitempty"`
	ExecutionTimeMs *int64          `json:"execution_time_ms,omitempty"`
	Description     string          `json:"description"`
	WorkItemID      string          `json:"work_item_id,omitempty"`
	ActivityID      string          `json:"activity_id,omitempty"`
}
