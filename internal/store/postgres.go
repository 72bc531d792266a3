package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/roster/internal/persona"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS persona_templates (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	role_type TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	default_instructions TEXT NOT NULL DEFAULT '',
	capabilities TEXT NOT NULL DEFAULT '[]',
	tool_restrictions TEXT NOT NULL DEFAULT '[]',
	automation_triggers TEXT NOT NULL DEFAULT '[]',
	kudos_quota_daily INTEGER NOT NULL DEFAULT 10,
	is_system BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS project_personas (
	id UUID PRIMARY KEY,
	project_id UUID NOT NULL,
	template_id UUID NOT NULL REFERENCES persona_templates(id),
	custom_name TEXT,
	custom_instructions TEXT,
	is_active BOOLEAN NOT NULL DEFAULT true,
	professionalism_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	kudos_quota_used INTEGER NOT NULL DEFAULT 0 CHECK (kudos_quota_used >= 0),
	wtf_quota_used INTEGER NOT NULL DEFAULT 0 CHECK (wtf_quota_used >= 0),
	last_quota_reset TIMESTAMPTZ NOT NULL,
	imported_from_project_id UUID,
	imported_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (project_id, template_id)
);

CREATE TABLE IF NOT EXISTS persona_activities (
	seq BIGSERIAL,
	id UUID PRIMARY KEY,
	persona_id UUID NOT NULL REFERENCES project_personas(id),
	activity_type TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	professionalism_change DOUBLE PRECISION NOT NULL DEFAULT 0,
	quality_change DOUBLE PRECISION NOT NULL DEFAULT 0,
	task_size TEXT NOT NULL DEFAULT 'small',
	metadata JSON,
	work_item_id UUID,
	work_item_title TEXT,
	work_item_size TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

ALTER TABLE persona_activities ADD COLUMN IF NOT EXISTS task_size TEXT NOT NULL DEFAULT 'small';

CREATE INDEX IF NOT EXISTS idx_persona_activities_persona_created
	ON persona_activities (persona_id, created_at DESC, seq DESC);

CREATE TABLE IF NOT EXISTS persona_actions (
	seq BIGSERIAL,
	id UUID PRIMARY KEY,
	persona_id UUID NOT NULL REFERENCES project_personas(id),
	work_item_id UUID,
	activity_id UUID REFERENCES persona_activities(id),
	action_type TEXT NOT NULL,
	action_category TEXT NOT NULL,
	tool_name TEXT,
	parameters JSON,
	result_status TEXT NOT NULL DEFAULT 'success',
	execution_time_ms BIGINT,
	description TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_persona_actions_persona_created
	ON persona_actions (persona_id, created_at DESC, seq DESC);

CREATE TABLE IF NOT EXISTS action_artifacts (
	seq BIGSERIAL,
	id UUID PRIMARY KEY,
	action_id UUID NOT NULL REFERENCES persona_actions(id),
	artifact_type TEXT NOT NULL,
	file_path TEXT,
	content_before TEXT,
	content_after TEXT,
	git_hash TEXT,
	output_data JSON,
	size_bytes BIGINT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_action_artifacts_action
	ON action_artifacts (action_id, created_at, seq);
`

// Postgres is the pgx-backed Store. Mutate holds a row lock on the persona
// for the duration of its transaction.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Close() {
	s.pool.Close()
}

func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Postgres) CreateTemplate(ctx context.Context, t *persona.Template) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO persona_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.Name, string(t.RoleType), t.Description, t.DefaultInstructions,
		encodeList(t.Capabilities), encodeList(t.ToolRestrictions), encodeList(t.AutomationTriggers),
		t.KudosQuotaDaily, t.IsSystem, t.CreatedAt, t.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("template %q: %w", t.Name, persona.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *Postgres) GetTemplate(ctx context.Context, id uuid.UUID) (*persona.Template, error) {
	t, err := scanTemplate(s.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM persona_templates WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("template %s: %w", id, persona.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (s *Postgres) ListTemplates(ctx context.Context) ([]persona.Template, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+templateColumns+` FROM persona_templates ORDER BY is_system DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

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

func (s *Postgres) CreatePersona(ctx context.Context, p *persona.ProjectPersona) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO project_personas (id, project_id, template_id, custom_name, custom_instructions,
			is_active, professionalism_score, quality_score, kudos_quota_used, wtf_quota_used,
			last_quota_reset, imported_from_project_id, imported_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		p.ID, p.ProjectID, p.TemplateID, p.CustomName, p.CustomInstructions,
		p.IsActive, p.ProfessionalismScore, p.QualityScore, p.KudosQuotaUsed, p.WtfQuotaUsed,
		p.LastQuotaReset, nullUUID(p.ImportedFromProjectID), p.ImportedAt, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("persona for template %s in project %s: %w", p.TemplateID, p.ProjectID, persona.ErrConflict)
	}
	if isForeignKeyViolation(err) {
		return fmt.Errorf("template %s: %w", p.TemplateID, persona.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("insert persona: %w", err)
	}
	return nil
}

func (s *Postgres) GetPersona(ctx context.Context, id uuid.UUID) (*persona.ProjectPersona, error) {
	p, err := scanPersona(s.pool.QueryRow(ctx,
		`SELECT `+personaColumns+` FROM project_personas pp WHERE pp.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("persona %s: %w", id, persona.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get persona: %w", err)
	}
	return p, nil
}

func (s *Postgres) GetMember(ctx context.Context, id uuid.UUID) (*persona.Member, error) {
	m, err := scanMember(s.pool.QueryRow(ctx, `
		SELECT `+memberColumns+`
		FROM project_personas pp JOIN persona_templates pt ON pp.template_id = pt.id
		WHERE pp.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("persona %s: %w", id, persona.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *Postgres) ListMembers(ctx context.Context, projectID uuid.UUID, activeOnly bool) ([]persona.Member, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+memberColumns+`
		FROM project_personas pp JOIN persona_templates pt ON pp.template_id = pt.id
		WHERE pp.project_id = $1 AND ($2 = false OR pp.is_active)
		ORDER BY pt.name ASC, pp.created_at ASC`, projectID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

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

func (s *Postgres) UpdateProfile(ctx context.Context, projectID, personaID uuid.UUID, patch persona.Patch) (*persona.ProjectPersona, error) {
	p, err := scanPersona(s.pool.QueryRow(ctx, `
		UPDATE project_personas pp
		SET custom_name = COALESCE($1, custom_name),
			custom_instructions = COALESCE($2, custom_instructions),
			is_active = COALESCE($3, is_active),
			updated_at = $4
		WHERE pp.id = $5 AND pp.project_id = $6
		RETURNING `+personaColumns,
		patch.CustomName, patch.CustomInstructions, patch.IsActive, time.Now().UTC(), personaID, projectID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("persona %s in project %s: %w", personaID, projectID, persona.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update persona: %w", err)
	}
	return p, nil
}

func (s *Postgres) Mutate(ctx context.Context, personaID uuid.UUID, fn MutateFunc) (*persona.ProjectPersona, *persona.Activity, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, persistErr("begin tx", err)
	}
	defer tx.Rollback(ctx)

	p, err := scanPersona(tx.QueryRow(ctx,
		`SELECT `+personaColumns+` FROM project_personas pp WHERE pp.id = $1 FOR UPDATE`, personaID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("persona %s: %w", personaID, persona.ErrNotFound)
	}
	if err != nil {
		return nil, nil, persistErr("lock persona", err)
	}

	act, err := fn(p)
	if err != nil {
		return nil, nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE project_personas
		SET professionalism_score = $1, quality_score = $2, kudos_quota_used = $3, wtf_quota_used = $4,
			last_quota_reset = $5, updated_at = $6
		WHERE id = $7`,
		p.ProfessionalismScore, p.QualityScore, p.KudosQuotaUsed, p.WtfQuotaUsed,
		p.LastQuotaReset, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return nil, nil, persistErr("update persona", err)
	}

	if act != nil {
		itemID, itemTitle, itemSize := workItemArgs(act.WorkItem)
		_, err = tx.Exec(ctx, `
			INSERT INTO persona_activities (`+activityColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			act.ID, act.PersonaID, string(act.Type), act.Description, act.ProfessionalismDelta, act.QualityDelta,
			taskSizeArg(act.TaskSize), nullableJSON(act.Metadata), itemID, itemTitle, itemSize, act.CreatedAt,
		)
		if err != nil {
			return nil, nil, persistErr("insert activity", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, persistErr("commit", err)
	}
	return p, act, nil
}

func (s *Postgres) ListActivities(ctx context.Context, personaID uuid.UUID, f ActivityFilter) ([]persona.Activity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+activityColumns+`
		FROM persona_activities
		WHERE persona_id = $1 AND ($2 = '' OR activity_type = $2)
		ORDER BY created_at DESC, seq DESC
		LIMIT $3`, personaID, string(f.Type), f.Limit)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

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

func (s *Postgres) ActivityTotals(ctx context.Context, personaID uuid.UUID) (Totals, error) {
	var t Totals
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(professionalism_change), 0), COALESCE(SUM(quality_change), 0), COUNT(*)
		FROM persona_activities WHERE persona_id = $1`, personaID,
	).Scan(&t.Professionalism, &t.Quality, &t.Entries)
	if err != nil {
		return Totals{}, fmt.Errorf("activity totals: %w", err)
	}
	return t, nil
}

func (s *Postgres) CreateAction(ctx context.Context, a *persona.Action) error {
	if a.ActivityID != nil {
		var owner uuid.NullUUID
		err := s.pool.QueryRow(ctx,
			`SELECT persona_id FROM persona_activities WHERE id = $1`, *a.ActivityID).Scan(&owner)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("lookup activity: %w", err)
		}
		if err := checkActivityOwner(*a.ActivityID, owner, a.PersonaID); err != nil {
			return err
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO persona_actions (`+actionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		append(actionArgs(a), a.CreatedAt)...,
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("persona %s: %w", a.PersonaID, persona.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

func (s *Postgres) CreateArtifact(ctx context.Context, a *persona.Artifact) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO action_artifacts (`+artifactColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		append(artifactArgs(a), a.CreatedAt)...,
	)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("action %s: %w", a.ActionID, persona.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

func (s *Postgres) ListActions(ctx context.Context, personaID uuid.UUID, limit int) ([]persona.Action, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+actionColumns+`
		FROM persona_actions
		WHERE persona_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`, personaID, limit)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var out []persona.Action
	ids := []string{}
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		out = append(out, *a)
		ids = append(ids, a.ID.String())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	artRows, err := s.pool.Query(ctx, `
		SELECT `+artifactColumns+`
		FROM action_artifacts
		WHERE action_id = ANY($1::uuid[])
		ORDER BY created_at ASC, seq ASC`, ids)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer artRows.Close()

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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
