package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/roster/internal/persona"
)

// rowScanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// timeLayout is fixed-width so TEXT timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// dbTime scans either a native timestamp or a TEXT timestamp.
type dbTime struct{ dst *time.Time }

func (d *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d.dst = time.Time{}
	case time.Time:
		*d.dst = v.UTC()
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("scan time: unsupported type %T", src)
	}
	return nil
}

func (d *dbTime) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("scan time %q: %w", s, err)
	}
	*d.dst = t.UTC()
	return nil
}

// dbNullTime scans a nullable timestamp into a *time.Time.
type dbNullTime struct{ dst **time.Time }

func (d *dbNullTime) Scan(src any) error {
	if src == nil {
		*d.dst = nil
		return nil
	}
	var t time.Time
	if err := (&dbTime{dst: &t}).Scan(src); err != nil {
		return err
	}
	*d.dst = &t
	return nil
}

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// nullableJSON passes metadata through verbatim, or NULL when absent.
func nullableJSON(m json.RawMessage) any {
	if len(m) == 0 {
		return nil
	}
	return string(m)
}

func encodeList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeList(s string) []string {
	var out []string
	if s == "" {
		return []string{}
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

const templateColumns = `id, name, role_type, description, default_instructions, capabilities,
	tool_restrictions, automation_triggers, kudos_quota_daily, is_system, created_at, updated_at`

func scanTemplate(row rowScanner) (*persona.Template, error) {
	var t persona.Template
	var caps, tools, triggers string
	err := row.Scan(&t.ID, &t.Name, &t.RoleType, &t.Description, &t.DefaultInstructions,
		&caps, &tools, &triggers, &t.KudosQuotaDaily, &t.IsSystem,
		&dbTime{&t.CreatedAt}, &dbTime{&t.UpdatedAt})
	if err != nil {
		return nil, err
	}
	t.Capabilities = decodeList(caps)
	t.ToolRestrictions = decodeList(tools)
	t.AutomationTriggers = decodeList(triggers)
	return &t, nil
}

const personaColumns = `pp.id, pp.project_id, pp.template_id, pp.custom_name, pp.custom_instructions,
	pp.is_active, pp.professionalism_score, pp.quality_score, pp.kudos_quota_used, pp.wtf_quota_used,
	pp.last_quota_reset, pp.imported_from_project_id, pp.imported_at, pp.created_at, pp.updated_at`

func personaDest(p *persona.ProjectPersona, importedFrom *uuid.NullUUID) []any {
	return []any{&p.ID, &p.ProjectID, &p.TemplateID, &p.CustomName, &p.CustomInstructions,
		&p.IsActive, &p.ProfessionalismScore, &p.QualityScore, &p.KudosQuotaUsed, &p.WtfQuotaUsed,
		&dbTime{&p.LastQuotaReset}, importedFrom, &dbNullTime{&p.ImportedAt},
		&dbTime{&p.CreatedAt}, &dbTime{&p.UpdatedAt}}
}

func scanPersona(row rowScanner) (*persona.ProjectPersona, error) {
	var p persona.ProjectPersona
	var importedFrom uuid.NullUUID
	if err := row.Scan(personaDest(&p, &importedFrom)...); err != nil {
		return nil, err
	}
	p.ImportedFromProjectID = uuidPtr(importedFrom)
	return &p, nil
}

const memberColumns = personaColumns + `, pt.name, pt.role_type, pt.description, pt.kudos_quota_daily`

func scanMember(row rowScanner) (*persona.Member, error) {
	var m persona.Member
	var importedFrom uuid.NullUUID
	dest := append(personaDest(&m.ProjectPersona, &importedFrom),
		&m.TemplateName, &m.TemplateRoleType, &m.TemplateDescription, &m.TemplateKudosQuota)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	m.ImportedFromProjectID = uuidPtr(importedFrom)
	return &m, nil
}

const activityColumns = `id, persona_id, activity_type, description, professionalism_change, quality_change,
	task_size, metadata, work_item_id, work_item_title, work_item_size, created_at`

func scanActivity(row rowScanner) (*persona.Activity, error) {
	var a persona.Activity
	var meta []byte
	var itemID uuid.NullUUID
	var itemTitle, itemSize *string
	err := row.Scan(&a.ID, &a.PersonaID, &a.Type, &a.Description, &a.ProfessionalismDelta, &a.QualityDelta,
		&a.TaskSize, &meta, &itemID, &itemTitle, &itemSize, &dbTime{&a.CreatedAt})
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		a.Metadata = json.RawMessage(append([]byte(nil), meta...))
	}
	if itemID.Valid {
		ref := &persona.WorkItemRef{ID: itemID.UUID, Size: persona.TaskSmall}
		if itemTitle != nil {
			ref.Title = *itemTitle
		}
		if itemSize != nil && *itemSize != "" {
			ref.Size = persona.TaskSize(*itemSize)
		}
		a.WorkItem = ref
	}
	return &a, nil
}

func taskSizeArg(s persona.TaskSize) string {
	if s == "" {
		return string(persona.TaskSmall)
	}
	return string(s)
}

func workItemArgs(ref *persona.WorkItemRef) (uuid.NullUUID, any, any) {
	if ref == nil {
		return uuid.NullUUID{}, nil, nil
	}
	size := ref.Size
	if size == "" {
		size = persona.TaskSmall
	}
	return uuid.NullUUID{UUID: ref.ID, Valid: true}, ref.Title, string(size)
}

const actionColumns = `id, persona_id, work_item_id, activity_id, action_type, action_category, tool_name,
	parameters, result_status, execution_time_ms, description, created_at`

func scanAction(row rowScanner) (*persona.Action, error) {
	var a persona.Action
	var params []byte
	var itemID, activityID uuid.NullUUID
	err := row.Scan(&a.ID, &a.PersonaID, &itemID, &activityID, &a.Type, &a.Category, &a.ToolName,
		&params, &a.ResultStatus, &a.ExecutionTimeMs, &a.Description, &dbTime{&a.CreatedAt})
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		a.Parameters = json.RawMessage(append([]byte(nil), params...))
	}
	a.WorkItemID = uuidPtr(itemID)
	a.ActivityID = uuidPtr(activityID)
	a.Artifacts = []persona.Artifact{}
	return &a, nil
}

func actionArgs(a *persona.Action) []any {
	return []any{a.ID, a.PersonaID, nullUUID(a.WorkItemID), nullUUID(a.ActivityID),
		string(a.Type), string(a.Category), a.ToolName, nullableJSON(a.Parameters),
		string(a.ResultStatus), a.ExecutionTimeMs, a.Description}
}

const artifactColumns = `id, action_id, artifact_type, file_path, content_before, content_after, git_hash,
	output_data, size_bytes, created_at`

func scanArtifact(row rowScanner) (*persona.Artifact, error) {
	var a persona.Artifact
	var output []byte
	err := row.Scan(&a.ID, &a.ActionID, &a.Type, &a.FilePath, &a.ContentBefore, &a.ContentAfter,
		&a.GitHash, &output, &a.SizeBytes, &dbTime{&a.CreatedAt})
	if err != nil {
		return nil, err
	}
	if len(output) > 0 {
		a.OutputData = json.RawMessage(append([]byte(nil), output...))
	}
	return &a, nil
}

func artifactArgs(a *persona.Artifact) []any {
	return []any{a.ID, a.ActionID, string(a.Type), a.FilePath, a.ContentBefore, a.ContentAfter,
		a.GitHash, nullableJSON(a.OutputData), a.SizeBytes}
}

// attachArtifacts distributes artifacts, already ordered oldest first, onto
// the actions they belong to.
func attachArtifacts(actions []persona.Action, artifacts []persona.Artifact) {
	idx := make(map[uuid.UUID]int, len(actions))
	for i := range actions {
		idx[actions[i].ID] = i
	}
	for _, art := range artifacts {
		if i, ok := idx[art.ActionID]; ok {
			actions[i].Artifacts = append(actions[i].Artifacts, art)
		}
	}
}

// checkActivityOwner reports ErrNotFound for an unknown activity and
// ErrInvalidInput for one recorded against another persona.
func checkActivityOwner(activityID uuid.UUID, owner uuid.NullUUID, personaID uuid.UUID) error {
	if !owner.Valid {
		return fmt.Errorf("activity %s: %w", activityID, persona.ErrNotFound)
	}
	if owner.UUID != personaID {
		return fmt.Errorf("activity %s belongs to another persona: %w", activityID, persona.ErrInvalidInput)
	}
	return nil
}
