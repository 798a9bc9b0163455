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

const subTaskColumns = `id, name, task_id, project_id, progress, weight, created_at, updated_at`

type SubTaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewSubTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *SubTaskRepository {
	return &SubTaskRepository{db: db, logger: logger}
}

func scanSubTask(row pgx.Row) (*model.SubTask, error) {
	var s model.SubTask
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.TaskID,
		&s.ProjectID,
		&s.Progress,
		&s.Weight,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubTaskRepository) querySubTasks(ctx context.Context, query string, args ...any) ([]model.SubTask, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query subtasks", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	subTasks := []model.SubTask{}
	for rows.Next() {
		s, err := scanSubTask(rows)
		if err != nil {
			r.logger.Error("Failed to scan subtask row", zap.Error(err))
			return nil, err
		}
		subTasks = append(subTasks, *s)
	}
	return subTasks, rows.Err()
}

func (r *SubTaskRepository) Create(ctx context.Context, s *model.SubTask) error {
	defer observe("insert", "subtasks", time.Now())
	r.logger.Debug("Inserting subtask",
		zap.String("subtask_id", s.ID),
		zap.String("task_id", s.TaskID),
	)
	query := `
        INSERT INTO subtasks (id, name, task_id, project_id, progress, weight)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		s.ID,
		s.Name,
		s.TaskID,
		s.ProjectID,
		s.Progress,
		s.Weight,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert subtask",
			zap.Error(err),
			zap.String("subtask_id", s.ID),
			zap.String("task_id", s.TaskID),
		)
		return pgError(err, "subtask", s.ID)
	}
	r.logger.Info("SubTask inserted successfully",
		zap.String("subtask_id", s.ID),
		zap.String("task_id", s.TaskID),
	)
	return nil
}

func (r *SubTaskRepository) Get(ctx context.Context, id string) (*model.SubTask, error) {
	defer observe("select", "subtasks", time.Now())
	s, err := scanSubTask(r.db.QueryRow(ctx, `SELECT `+subTaskColumns+` FROM subtasks WHERE id = $1`, id))
	if err != nil {
		err = pgError(err, "subtask", id)
		if !apperr.IsNotFound(err) {
			r.logger.Error("Failed to fetch subtask", zap.String("subtask_id", id), zap.Error(err))
		}
		return nil, err
	}
	return s, nil
}

// GetMany returns the subtasks that still exist, in the order of ids.
func (r *SubTaskRepository) GetMany(ctx context.Context, ids []string) ([]model.SubTask, error) {
	defer observe("select", "subtasks", time.Now())
	if len(ids) == 0 {
		return []model.SubTask{}, nil
	}
	found, err := r.querySubTasks(ctx, `SELECT `+subTaskColumns+` FROM subtasks WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.SubTask, len(found))
	for _, s := range found {
		byID[s.ID] = s
	}
	out := make([]model.SubTask, 0, len(found))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			out = append(out, s)
			delete(byID, id)
		}
	}
	return out, nil
}

func (r *SubTaskRepository) ListByTask(ctx context.Context, taskID string) ([]model.SubTask, error) {
	defer observe("select", "subtasks", time.Now())
	return r.querySubTasks(ctx,
		`SELECT `+subTaskColumns+` FROM subtasks WHERE task_id = $1 ORDER BY created_at, id`,
		taskID,
	)
}

func (r *SubTaskRepository) ListByProject(ctx context.Context, projectID string) ([]model.SubTask, error) {
	defer observe("select", "subtasks", time.Now())
	return r.querySubTasks(ctx,
		`SELECT `+subTaskColumns+` FROM subtasks WHERE project_id = $1 ORDER BY created_at, id`,
		projectID,
	)
}

func (r *SubTaskRepository) ListByProjects(ctx context.Context, projectIDs []string) ([]model.SubTask, error) {
	defer observe("select", "subtasks", time.Now())
	if len(projectIDs) == 0 {
		return []model.SubTask{}, nil
	}
	return r.querySubTasks(ctx,
		`SELECT `+subTaskColumns+` FROM subtasks WHERE project_id = ANY($1) ORDER BY created_at, id`,
		projectIDs,
	)
}

func (r *SubTaskRepository) Update(ctx context.Context, id string, upd SubTaskUpdate) (*model.SubTask, error) {
	defer observe("update", "subtasks", time.Now())
	r.logger.Debug("Updating subtask", zap.String("subtask_id", id))
	query := `
        UPDATE subtasks SET
            name       = COALESCE($2, name),
            weight     = COALESCE($3, weight),
            progress   = COALESCE($4, progress),
            updated_at = NOW()
        WHERE id = $1
        RETURNING ` + subTaskColumns
	s, err := scanSubTask(r.db.QueryRow(ctx, query, id, upd.Name, upd.Weight, upd.Progress))
	if err != nil {
		err = pgError(err, "subtask", id)
		if !apperr.IsNotFound(err) {
			r.logger.Error("Failed to update subtask", zap.String("subtask_id", id), zap.Error(err))
		}
		return nil, err
	}
	r.logger.Info("SubTask updated successfully", zap.String("subtask_id", id))
	return s, nil
}

func (r *SubTaskRepository) Delete(ctx context.Context, id string) error {
	defer observe("delete", "subtasks", time.Now())
	r.logger.Debug("Deleting subtask", zap.String("subtask_id", id))
	result, err := r.db.Exec(ctx, `DELETE FROM subtasks WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete subtask", zap.String("subtask_id", id), zap.Error(err))
		return err
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("subtask", id)
	}
	r.logger.Info("SubTask deleted successfully", zap.String("subtask_id", id))
	return nil
}

func (r *SubTaskRepository) deleteWhere(ctx context.Context, column, value string) (int64, error) {
	defer observe("delete", "subtasks", time.Now())
	// column is one of two constants below, never user input
	result, err := r.db.Exec(ctx, `DELETE FROM subtasks WHERE `+column+` = $1`, value)
	if err != nil {
		r.logger.Error("Failed to delete subtasks",
			zap.String(column, value),
			zap.Error(err),
		)
		return 0, err
	}
	rowsAffected := result.RowsAffected()
	r.logger.Info("SubTasks deleted",
		zap.String(column, value),
		zap.Int64("rows_affected", rowsAffected),
	)
	return rowsAffected, nil
}

func (r *SubTaskRepository) DeleteByTask(ctx context.Context, taskID string) (int64, error) {
	return r.deleteWhere(ctx, "task_id", taskID)
}

func (r *SubTaskRepository) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
	return r.deleteWhere(ctx, "project_id", projectID)
}
