package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/roster/internal/persona"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS persona_templates (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	role_type TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	default_instructions TEXT NOT NULL DEFAULT '',
	capabilities TEXT NOT NULL DEFAULT '[]',
	tool_restrictions TEXT NOT NULL DEFAULT '[]',
	automation_triggers TEXT NOT NULL DEFAULT '[]',
	kudos_quota_daily INTEGER NOT NULL DEFAULT 10,
	is_system INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS project_personas (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	template_id TEXT NOT NULL REFERENCES persona_templates(id),
	custom_name TEXT,
	custom_instructions TEXT,
	is_active INTEGER NOT NULL DEFAULT 1,
	professionalism_score REAL NOT NULL DEFAULT 0,
	quality_score REAL NOT NULL DEFAULT 0,
	kudos_quota_used INTEGER NOT NULL DEFAULT 0 CHECK (kudos_quota_used >= 0),
	wtf_quota_used INTEGER NOT NULL DEFAULT 0 CHECK (wtf_quota_used >= 0),
	last_quota_reset TEXT NOT NULL,
	imported_from_project_id TEXT,
	imported_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (project_id, template_id)
);

CREATE TABLE IF NOT EXISTS persona_activities (
	id TEXT PRIMARY KEY,
	persona_id TEXT NOT NULL REFERENCES project_personas(id),
	activity_type TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	professionalism_change REAL NOT NULL DEFAULT 0,
	quality_change REAL NOT NULL DEFAULT 0,
	task_size TEXT NOT NULL DEFAULT 'small',
	metadata TEXT,
	work_item_id TEXT,
	work_item_title TEXT,
	work_item_size TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_persona_activities_persona_created
	ON persona_activities (persona_id, created_at DESC);

CREATE TABLE IF NOT EXISTS persona_actions (
	id TEXT PRIMARY KEY,
	persona_id TEXT NOT NULL REFERENCES project_personas(id),
	work_item_id TEXT,
	activity_id TEXT REFERENCES persona_activities(id),
	action_type TEXT NOT NULL,
	action_category TEXT NOT NULL,
	tool_name TEXT,
	parameters TEXT,
	result_status TEXT NOT NULL DEFAULT 'success',
	execution_time_ms INTEGER,
	description TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_persona_actions_persona_created
	ON persona_actions (persona_id, created_at DESC);

CREATE TABLE IF NOT EXISTS action_artifacts (
	id TEXT PRIMARY KEY,
	action_id TEXT NOT NULL REFERENCES persona_actions(id),
	artifact_type TEXT NOT NULL,
	file_path TEXT,
	content_before TEXT,
	content_after TEXT,
	git_hash TEXT,
	output_data TEXT,
	size_bytes INTEGER,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_action_artifacts_action
	ON action_artifacts (action_id, created_at);
`

// SQLite is the single-file Store. One open connection serialises writers,
// which is what makes Mutate atomic per persona.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and migrates it.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := newSQLStore(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func newSQLStore(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Close() {
	_ = s.db.Close()
}

func (s *SQLite) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	// SQLite has no ADD COLUMN IF NOT EXISTS; databases created before
	// task_size was recorded get the column added here.
	return s.addColumn(ctx, "persona_activities", "task_size", "TEXT NOT NULL DEFAULT 'small'")
}

func (s *SQLite) addColumn(ctx context.Context, table, column, decl string) error {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&n)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", table, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl)); err != nil {
		return fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	return nil
}

func (s *SQLite) CreateTemplate(ctx context.Context, t *persona.Template) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO persona_templates (`+templateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.Name, string(t.RoleType), t.Description, t.DefaultInstructions,
		encodeList(t.Capabilities), encodeList(t.ToolRestrictions), encodeList(t.AutomationTriggers),
		t.KudosQuotaDaily, t.IsSystem, formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if isSQLiteConstraint(err, "UNIQUE") {
		return fmt.Errorf("template %q: %w", t.Name, persona.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *SQLite) GetTemplate(ctx context.Context, id uuid.UUID) (*persona.Template, error) {
	t, err := scanTemplate(s.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM persona_templates WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %s: %w", id, persona.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (s *SQLite) ListTemplates(ctx context.Context) ([]persona.Template, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM persona_templates ORDER BY is_system DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []persona.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *SQLite) CreatePersona(ctx context.Context, p *persona.ProjectPersona) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_personas (id, project_id, template_id, custom_name, custom_instructions,
			is_active, professionalism_score, quality_score, kudos_quota_used, wtf_quota_used,
			last_quota_reset, imported_from_project_id, imported_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.ProjectID.String(), p.TemplateID.String(), p.CustomName, p.CustomInstructions,
		p.IsActive, p.ProfessionalismScore, p.QualityScore, p.KudosQuotaUsed, p.WtfQuotaUsed,
		formatTime(p.LastQuotaReset), nullUUID(p.ImportedFromProjectID), nullTimeArg(p.ImportedAt),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if isSQLiteConstraint(err, "UNIQUE") {
		return fmt.Errorf("persona for template %s in project %s: %w", p.TemplateID, p.ProjectID, persona.ErrConflict)
	}
	if isSQLiteConstraint(err, "FOREIGN KEY") {
		return fmt.Errorf("template %s: %w", p.TemplateID, persona.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("insert persona: %w", err)
	}
	return nil
}

func (s *SQLite) GetPersona(ctx context.Context, id uuid.UUID) (*persona.ProjectPersona, error) {
	p, err := scanPersona(s.db.QueryRowContext(ctx,
		`SELECT `+personaColumns+` FROM project_personas pp WHERE pp.id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("persona %s: %w", id, persona.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get persona: %w", err)
	}
	return p, nil
}

func (s *SQLite) GetMember(ctx context.Context, id uuid.UUID) (*persona.Member, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, `
		SELECT `+memberColumns+`
		FROM project_personas pp JOIN persona_templates pt ON pp.template_id = pt.id
		WHERE pp.id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("persona %s: %w", id, persona.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *SQLite) ListMembers(ctx context.Context, projectID uuid.UUID, activeOnly bool) ([]persona.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+memberColumns+`
		FROM project_personas pp JOIN persona_templates pt ON pp.template_id = pt.id
		WHERE pp.project_id = ? AND (? = 0 OR pp.is_active = 1)
		ORDER BY pt.name ASC, pp.created_at ASC`, projectID.String(), activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []persona.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *SQLite) UpdateProfile(ctx context.Context, projectID, personaID uuid.UUID, patch persona.Patch) (*persona.ProjectPersona, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE project_personas
		SET custom_name = COALESCE(?, custom_name),
			custom_instructions = COALESCE(?, custom_instructions),
			is_active = COALESCE(?, is_active),
			updated_at = ?
		WHERE id = ? AND project_id = ?`,
		patch.CustomName, patch.CustomInstructions, patch.IsActive, formatTime(time.Now()),
		personaID.String(), projectID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("update persona: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("persona %s in project %s: %w", personaID, projectID, persona.ErrNotFound)
	}
	return s.GetPersona(ctx, personaID)
}

func (s *SQLite) Mutate(ctx context.Context, personaID uuid.UUID, fn MutateFunc) (*persona.ProjectPersona, *persona.Activity, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, persistErr("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanPersona(tx.QueryRowContext(ctx,
		`SELECT `+personaColumns+` FROM project_personas pp WHERE pp.id = ?`, personaID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("persona %s: %w", personaID, persona.ErrNotFound)
	}
	if err != nil {
		return nil, nil, persistErr("load persona", err)
	}

	act, err := fn(p)
	if err != nil {
		return nil, nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE project_personas
		SET professionalism_score = ?, quality_score = ?, kudos_quota_used = ?, wtf_quota_used = ?,
			last_quota_reset = ?, updated_at = ?
		WHERE id = ?`,
		p.ProfessionalismScore, p.QualityScore, p.KudosQuotaUsed, p.WtfQuotaUsed,
		formatTime(p.LastQuotaReset), formatTime(p.UpdatedAt), p.ID.String(),
	)
	if err != nil {
		return nil, nil, persistErr("update persona", err)
	}

	if act != nil {
		itemID, itemTitle, itemSize := workItemArgs(act.WorkItem)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO persona_activities (`+activityColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			act.ID.String(), act.PersonaID.String(), string(act.Type), act.Description,
			act.ProfessionalismDelta, act.QualityDelta, taskSizeArg(act.TaskSize), nullableJSON(act.Metadata),
			itemID, itemTitle, itemSize, formatTime(act.CreatedAt),
		)
		if err != nil {
			return nil, nil, persistErr("insert activity", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, persistErr("commit", err)
	}
	return p, act, nil
}

func (s *SQLite) ListActivities(ctx context.Context, personaID uuid.UUID, f ActivityFilter) ([]persona.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+activityColumns+`
		FROM persona_activities
		WHERE persona_id = ? AND (? = '' OR activity_type = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, personaID.String(), string(f.Type), string(f.Type), f.Limit)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []persona.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *SQLite) ActivityTotals(ctx context.Context, personaID uuid.UUID) (Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(professionalism_change), 0), COALESCE(SUM(quality_change), 0), COUNT(*)
		FROM persona_activities WHERE persona_id = ?`, personaID.String(),
	).Scan(&t.Professionalism, &t.Quality, &t.Entries)
	if err != nil {
		return Totals{}, fmt.Errorf("activity totals: %w", err)
	}
	return t, nil
}

func (s *SQLite) CreateAction(ctx context.Context, a *persona.Action) error {
	if a.ActivityID != nil {
		var owner uuid.NullUUID
		err := s.db.QueryRowContext(ctx,
			`SELECT persona_id FROM persona_activities WHERE id = ?`, a.ActivityID.String()).Scan(&owner)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lookup activity: %w", err)
		}
		if err := checkActivityOwner(*a.ActivityID, owner, a.PersonaID); err != nil {
			return err
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO persona_actions (`+actionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		append(actionArgs(a), formatTime(a.CreatedAt))...,
	)
	if isSQLiteConstraint(err, "FOREIGN KEY") {
		return fmt.Errorf("persona %s: %w", a.PersonaID, persona.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

func (s *SQLite) CreateArtifact(ctx context.Context, a *persona.Artifact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_artifacts (`+artifactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		append(artifactArgs(a), formatTime(a.CreatedAt))...,
	)
	if isSQLiteConstraint(err, "FOREIGN KEY") {
		return fmt.Errorf("action %s: %w", a.ActionID, persona.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

func (s *SQLite) ListActions(ctx context.Context, personaID uuid.UUID, limit int) ([]persona.Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+actionColumns+`
		FROM persona_actions
		WHERE persona_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, personaID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []persona.Action
	var args []any
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		out = append(out, *a)
		args = append(args, a.ID.String())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	artRows, err := s.db.QueryContext(ctx, `
		SELECT `+artifactColumns+`
		FROM action_artifacts
		WHERE action_id IN (`+placeholders+`)
		ORDER BY created_at ASC, rowid ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer func() { _ = artRows.Close() }()

	var arts []persona.Artifact
	for artRows.Next() {
		art, err := scanArtifact(artRows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		arts = append(arts, *art)
	}
	if err := artRows.Err(); err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	attachArtifacts(out, arts)
	return out, nil
}

func nullTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func isSQLiteConstraint(err error, kind string) bool {
	return err != nil && strings.Contains(err.Error(), kind+" constraint failed")
}
