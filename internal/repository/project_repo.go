package repository

import (
	"context"
	"time"

	"progresshub/internal/apperr"
	"progresshub/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const projectColumns = `id, name, description, tasks, users, progress, image, created_at, updated_at`

type ProjectRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProjectRepository(db *pgxpool.Pool, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{
		db:     db,
		logger: logger,
	}
}

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Tasks,
		&p.Users,
		&p.Progress,
		&p.Image,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepository) Create(ctx context.Context, p *model.Project) error {
	defer observe("insert", "projects", time.Now())
	r.logger.Debug("Inserting project",
		zap.String("project_id", p.ID),
		zap.String("name", p.Name),
	)

	query := `
        INSERT INTO projects (id, name, description, tasks, users, progress, image)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		nonNil(p.Tasks),
		nonNil(p.Users),
		p.Progress,
		p.Image,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert project", zap.String("project_id", p.ID), zap.Error(err))
		return pgError(err, "project", p.ID)
	}

	r.logger.Info("Project inserted successfully", zap.String("project_id", p.ID))
	return nil
}

func (r *ProjectRepository) Get(ctx context.Context, id string) (*model.Project, error) {
	defer observe("select", "projects", time.Now())
	r.logger.Debug("Fetching project", zap.String("project_id", id))

	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	p, err := scanProject(r.db.QueryRow(ctx, query, id))
	if err != nil {
		err = pgError(err, "project", id)
		if !apperr.IsNotFound(err) {
			r.logger.Error("Failed to fetch project", zap.String("project_id", id), zap.Error(err))
		}
		return nil, err
	}
	return p, nil
}

func (r *ProjectRepository) ListByMember(ctx context.Context, userID string, offset, limit int) ([]model.Project, error) {
	defer observe("select", "projects", time.Now())
	r.logger.Debug("Listing projects for member",
		zap.String("user_id", userID),
		zap.Int("offset", offset),
		zap.Int("limit", limit),
	)

	query := `
        SELECT ` + projectColumns + `
        FROM projects
        WHERE $1 = ANY(users)
        ORDER BY created_at, id
        OFFSET $2
        LIMIT $3
    `
	rows, err := r.db.Query(ctx, query, userID, offset, limitArg(limit))
	if err != nil {
		r.logger.Error("Failed to query projects", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			r.logger.Error("Failed to scan project row", zap.String("user_id", userID), zap.Error(err))
			return nil, err
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	r.logger.Info("Projects listed successfully",
		zap.String("user_id", userID),
		zap.Int("count", len(projects)),
	)
	return projects, nil
}

func (r *ProjectRepository) CountByMember(ctx context.Context, userID string) (int, error) {
	defer observe("count", "projects", time.Now())
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM projects WHERE $1 = ANY(users)`, userID).Scan(&n)
	if err != nil {
		r.logger.Error("Failed to count projects", zap.String("user_id", userID), zap.Error(err))
		return 0, err
	}
	return n, nil
}

func (r *ProjectRepository) MemberProjectIDs(ctx context.Context, userID string) ([]string, error) {
	defer observe("select", "projects", time.Now())
	rows, err := r.db.Query(ctx, `SELECT id FROM projects WHERE $1 = ANY(users) ORDER BY created_at, id`, userID)
	if err != nil {
		r.logger.Error("Failed to query member project ids", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Update merges AddUsers into users in first-seen order inside the same
// statement, so concurrent membership additions do not overwrite each other.
func (r *ProjectRepository) Update(ctx context.Context, id string, upd ProjectUpdate) (*model.Project, error) {
	defer observe("update", "projects", time.Now())
	r.logger.Debug("Updating project",
		zap.String("project_id", id),
		zap.Int("add_users", len(upd.AddUsers)),
	)

	query := `
        UPDATE projects SET
            name        = COALESCE($2, name),
            description = COALESCE($3, description),
            image       = COALESCE($4, image),
            users       = (
                SELECT COALESCE(array_agg(m.u ORDER BY m.n), '{}')
                FROM (
                    SELECT x.u, MIN(x.n) AS n
                    FROM unnest(users || $5::text[]) WITH ORDINALITY AS x(u, n)
                    WHERE x.u <> ''
                    GROUP BY x.u
                ) m
            ),
            updated_at  = NOW()
        WHERE id = $1
        RETURNING ` + projectColumns
	p, err := scanProject(r.db.QueryRow(ctx, query,
		id,
		upd.Name,
		upd.Description,
		upd.Image,
		nonNil(upd.AddUsers),
	))
	if err != nil {
		err = pgError(err, "project", id)
		if !apperr.IsNotFound(err) {
			r.logger.Error("Failed to update project", zap.String("project_id", id), zap.Error(err))
		}
		return nil, err
	}

	r.logger.Info("Project updated successfully", zap.String("project_id", id))
	return p, nil
}

func (r *ProjectRepository) SetProgress(ctx context.Context, id string, progress int) error {
	defer observe("update", "projects", time.Now())
	r.logger.Debug("Setting project progress", zap.String("project_id", id), zap.Int("progress", progress))

	result, err := r.db.Exec(ctx, `UPDATE projects SET progress = $2, updated_at = NOW() WHERE id = $1`, id, progress)
	if err != nil {
		r.logger.Error("Failed to set project progress", zap.String("project_id", id), zap.Error(err))
		return err
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("project", id)
	}
	return nil
}

func (r *ProjectRepository) AddTask(ctx context.Context, projectID, taskID string) error {
	defer observe("update", "projects", time.Now())
	query := `
        UPDATE projects
        SET tasks = CASE WHEN $2::text = ANY(tasks) THEN tasks ELSE array_append(tasks, $2::text) END,
            updated_at = NOW()
        WHERE id = $1
    `
	result, err := r.db.Exec(ctx, query, projectID, taskID)
	if err != nil {
		r.logger.Error("Failed to add task to project",
			zap.String("project_id", projectID),
			zap.String("task_id", taskID),
			zap.Error(err),
		)
		return err
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("project", projectID)
	}
	return nil
}

func (r *ProjectRepository) RemoveTask(ctx context.Context, projectID, taskID string) error {
	defer observe("update", "projects", time.Now())
	result, err := r.db.Exec(ctx,
		`UPDATE projects SET tasks = array_remove(tasks, $2::text), updated_at = NOW() WHERE id = $1`,
		projectID, taskID,
	)
	if err != nil {
		r.logger.Error("Failed to remove task from project",
			zap.String("project_id", projectID),
			zap.String("task_id", taskID),
			zap.Error(err),
		)
		return err
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("project", projectID)
	}
	return nil
}

func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	defer observe("delete", "projects", time.Now())
	r.logger.Debug("Deleting project", zap.String("project_id", id))

	result, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete project", zap.String("project_id", id), zap.Error(err))
		return err
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("project", id)
	}
	r.logger.Info("Project deleted successfully", zap.String("project_id", id))
	return nil
}
