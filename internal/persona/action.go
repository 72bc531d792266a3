package persona

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActionType is a concrete thing a persona did while working.
type ActionType string

const (
	ActionFileRead      ActionType = "file_read"
	ActionFileWrite     ActionType = "file_write"
	ActionFileEdit      ActionType = "file_edit"
	ActionFileDelete    ActionType = "file_delete"
	ActionBashCommand   ActionType = "bash_command"
	ActionGitCommit     ActionType = "git_commit"
	ActionGitBranch     ActionType = "git_branch"
	ActionGitPR         ActionType = "git_pr"
	ActionSearchQuery   ActionType = "search_query"
	ActionAPICall       ActionType = "api_call"
	ActionTaskAssigned  ActionType = "task_assigned"
	ActionTaskStarted   ActionType = "task_started"
	ActionTaskCompleted ActionType = "task_completed"
	ActionTaskDelegated ActionType = "task_delegated"
	ActionKudosGiven    ActionType = "kudos_given"
	ActionWtfIssued     ActionType = "wtf_issued"
	ActionPeerReview    ActionType = "peer_review"
	ActionCollaboration ActionType = "collaboration"
	ActionTestsRun      ActionType = "tests_run"
	ActionBuildExecuted ActionType = "build_executed"
)

// ActionCategory groups action types for filtering and display.
type ActionCategory string

const (
	CategoryFileOperation   ActionCategory = "file_operation"
	CategoryToolUsage       ActionCategory = "tool_usage"
	CategoryTaskManagement  ActionCategory = "task_management"
	CategoryTeamInteraction ActionCategory = "team_interaction"
	CategoryProcessAction   ActionCategory = "process_action"
	CategoryGitOperation    ActionCategory = "git_operation"
)

var actionCategories = map[ActionType]ActionCategory{
	ActionFileRead:      CategoryFileOperation,
	ActionFileWrite:     CategoryFileOperation,
	ActionFileEdit:      CategoryFileOperation,
	ActionFileDelete:    CategoryFileOperation,
	ActionBashCommand:   CategoryToolUsage,
	ActionSearchQuery:   CategoryToolUsage,
	ActionAPICall:       CategoryToolUsage,
	ActionGitCommit:     CategoryGitOperation,
	ActionGitBranch:     CategoryGitOperation,
	ActionGitPR:         CategoryGitOperation,
	ActionTaskAssigned:  CategoryTaskManagement,
	ActionTaskStarted:   CategoryTaskManagement,
	ActionTaskCompleted: CategoryTaskManagement,
	ActionTaskDelegated: CategoryTaskManagement,
	ActionKudosGiven:    CategoryTeamInteraction,
	ActionWtfIssued:     CategoryTeamInteraction,
	ActionPeerReview:    CategoryTeamInteraction,
	ActionCollaboration: CategoryTeamInteraction,
	ActionTestsRun:      CategoryProcessAction,
	ActionBuildExecuted: CategoryProcessAction,
}

// Category returns the category t belongs to when none is given explicitly.
func (t ActionType) Category() (ActionCategory, bool) {
	c, ok := actionCategories[t]
	return c, ok
}

func (t ActionType) Valid() bool {
	_, ok := actionCategories[t]
	return ok
}

func (c ActionCategory) Valid() bool {
	switch c {
	case CategoryFileOperation, CategoryToolUsage, CategoryTaskManagement,
		CategoryTeamInteraction, CategoryProcessAction, CategoryGitOperation:
		return true
	}
	return false
}

// ResultStatus is the outcome of an action.
type ResultStatus string

const (
	ResultSuccess   ResultStatus = "success"
	ResultFailure   ResultStatus = "failure"
	ResultPartial   ResultStatus = "partial"
	ResultCancelled ResultStatus = "cancelled"
)

func (s ResultStatus) Valid() bool {
	switch s {
	case ResultSuccess, ResultFailure, ResultPartial, ResultCancelled:
		return true
	}
	return false
}

// ArtifactType classifies the output attached to an action.
type ArtifactType string

const (
	ArtifactFileChange    ArtifactType = "file_change"
	ArtifactCommandOutput ArtifactType = "command_output"
	ArtifactGitDiff       ArtifactType = "git_diff"
	ArtifactAPIResponse   ArtifactType = "api_response"
	ArtifactTestResult    ArtifactType = "test_result"
	ArtifactBuildArtifact ArtifactType = "build_artifact"
)

func (t ArtifactType) Valid() bool {
	switch t {
	case ArtifactFileChange, ArtifactCommandOutput, ArtifactGitDiff,
		ArtifactAPIResponse, ArtifactTestResult, ArtifactBuildArtifact:
		return true
	}
	return false
}

// Action is one entry in a persona's append-only action log. Unlike ledger
// activities, actions never move scores.
type Action struct {
	ID              uuid.UUID       `json:"id"`
	PersonaID       uuid.UUID       `json:"persona_id"`
	WorkItemID      *uuid.UUID      `json:"work_item_id,omitempty"`
	ActivityID      *uuid.UUID      `json:"activity_id,omitempty"`
	Type            ActionType      `json:"action_type"`
	Category        ActionCategory  `json:"action_category"`
	ToolName        *string         `json:"tool_name,omitempty"`
	Parameters      json.RawMessage `json:"parameters,omitempty"`
	ResultStatus    ResultStatus    `json:"result_status"`
	ExecutionTimeMs *int64          `json:"execution_time_ms,omitempty"`
	Description     string          `json:"description"`
	CreatedAt       time.Time       `json:"created_at"`
	// Artifacts is filled by listings, oldest first.
	Artifacts []Artifact `json:"artifacts"`
}

// Artifact is output attached to an action after the fact: a diff, command
// output, a test report.
type Artifact struct {
	ID            uuid.UUID       `json:"id"`
	ActionID      uuid.UUID       `json:"action_id"`
	Type          ArtifactType    `json:"artifact_type"`
	FilePath      *string         `json:"file_path,omitempty"`
	ContentBefore *string         `json:"content_before,omitempty"`
	ContentAfter  *string         `json:"content_after,omitempty"`
	GitHash       *string         `json:"git_hash,omitempty"`
	OutputData    json.RawMessage `json:"output_data,omitempty"`
	SizeBytes     *int64          `json:"size_bytes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
