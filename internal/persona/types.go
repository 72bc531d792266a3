// Package persona holds the roster's domain model: templates, project
// personas, ledger activities and the errors shared across packages.
package persona

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RoleType is the role category a template is built for.
type RoleType string

const (
	RolePM                   RoleType = "pm"
	RoleRequirementsEngineer RoleType = "requirements_engineer"
	RoleArchitect            RoleType = "architect"
	RoleDeveloper            RoleType = "developer"
	RoleUser                 RoleType = "user_role"
	RoleSystemEngineer       RoleType = "system_engineer"
	RoleDevopsEngineer       RoleType = "devops_engineer"
	RoleDatabaseEngineer     RoleType = "database_engineer"
	RoleSecurityEngineer     RoleType = "security_engineer"
	RoleAIEngineer           RoleType = "ai_engineer"
	RoleWebDesigner          RoleType = "web_designer"
	RoleQAEngineer           RoleType = "qa_engineer"
	RoleFrontendTester       RoleType = "frontend_tester"
	RoleBackendTester        RoleType = "backend_tester"
	RoleSpecialist           RoleType = "specialist"
)

var roleTypes = map[RoleType]bool{
	RolePM: true, RoleRequirementsEngineer: true, RoleArchitect: true,
	RoleDeveloper: true, RoleUser: true, RoleSystemEngineer: true,
	RoleDevopsEngineer: true, RoleDatabaseEngineer: true, RoleSecurityEngineer: true,
	RoleAIEngineer: true, RoleWebDesigner: true, RoleQAEngineer: true,
	RoleFrontendTester: true, RoleBackendTester: true, RoleSpecialist: true,
}

// Valid reports whether r is a known role category.
func (r RoleType) Valid() bool { return roleTypes[r] }

// TaskSize scales scoring rules for work-item related activity.
type TaskSize string

const (
	TaskSmall    TaskSize = "small"
	TaskStandard TaskSize = "standard"
)

// Valid reports whether s is a known task size.
func (s TaskSize) Valid() bool { return s == TaskSmall || s == TaskStandard }

// UnlimitedQuota marks a template whose feedback events are never capped.
const UnlimitedQuota = -1

// Template is an immutable catalog entry a project persona is instantiated from.
type Template struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	RoleType            RoleType  `json:"role_type"`
	Description         string    `json:"description"`
	DefaultInstructions string    `json:"default_instructions"`
	Capabilities        []string  `json:"capabilities"`
	ToolRestrictions    []string  `json:"tool_restrictions"`
	AutomationTriggers  []string  `json:"automation_triggers"`
	KudosQuotaDaily     int       `json:"kudos_quota_daily"`
	IsSystem            bool      `json:"is_system"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// ProjectPersona is a template instantiated into one project. Scores are
// unbounded in both directions; quota counters are reset by the quota tracker.
type ProjectPersona struct {
	ID                    uuid.UUID  `json:"id"`
	ProjectID             uuid.UUID  `json:"project_id"`
	TemplateID            uuid.UUID  `json:"template_id"`
	CustomName            *string    `json:"custom_name,omitempty"`
	CustomInstructions    *string    `json:"custom_instructions,omitempty"`
	IsActive              bool       `json:"is_active"`
	ProfessionalismScore  float64    `json:"professionalism_score"`
	QualityScore          float64    `json:"quality_score"`
	KudosQuotaUsed        int        `json:"kudos_quota_used"`
	WtfQuotaUsed          int        `json:"wtf_quota_used"`
	LastQuotaReset        time.Time  `json:"last_quota_reset"`
	ImportedFromProjectID *uuid.UUID `json:"imported_from_project_id,omitempty"`
	ImportedAt            *time.Time `json:"imported_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// Member is a project persona joined with the template fields the roster
// and the assignment resolver need.
type Member struct {
	ProjectPersona
	TemplateName        string   `json:"template_name"`
	TemplateRoleType    RoleType `json:"template_role_type"`
	TemplateDescription string   `json:"template_description"`
	TemplateKudosQuota  int      `json:"template_kudos_quota"`
}

// DisplayName returns the custom name when one is set, otherwise the template name.
func (m Member) DisplayName() string {
	if m.CustomName != nil && *m.CustomName != "" {
		return *m.CustomName
	}
	return m.TemplateName
}

// Patch is a partial edit of a persona's profile. Nil fields are left as-is.
type Patch struct {
	CustomName         *string `json:"custom_name,omitempty"`
	CustomInstructions *string `json:"custom_instructions,omitempty"`
	IsActive           *bool   `json:"is_active,omitempty"`
}

// WorkItemRef is the denormalised work-item reference carried on a ledger entry.
type WorkItemRef struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
	Size  TaskSize  `json:"size"`
}

// WorkItem is owned by the task board; the roster only reads it and fills
// in a default assignee.
type WorkItem struct {
	ID                uuid.UUID  `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Status            string     `json:"status"`
	AssignedPersonaID *uuid.UUID `json:"assigned_persona_id,omitempty"`
}

// Activity is one immutable ledger entry.
type Activity struct {
	ID                   uuid.UUID       `json:"id"`
	PersonaID            uuid.UUID       `json:"persona_id"`
	Type                 ActivityType    `json:"activity_type"`
	Description          string          `json:"description"`
	ProfessionalismDelta float64         `json:"professionalism_change"`
	QualityDelta         float64         `json:"quality_change"`
	// TaskSize records the rule size the entry was scored at.
	TaskSize  TaskSize        `json:"task_size"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	WorkItem  *WorkItemRef    `json:"work_item,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ScoringRule gives the default deltas for an activity type at a task size.
type ScoringRule struct {
	ActivityType          ActivityType `json:"activity_type" yaml:"activity_type"`
	TaskSize              TaskSize     `json:"task_size" yaml:"task_size"`
	ProfessionalismPoints float64      `json:"professionalism_points" yaml:"professionalism_points"`
	QualityPoints         float64      `json:"quality_points" yaml:"quality_points"`
	Description           string       `json:"description" yaml:"description"`
}
