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

const taskColumns = `id, name, project_id, sub_tasks, progress, manual_progress, weight, created_at, updated_at`

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.ProjectID,
		&t.SubTasks,
		&t.Progress,
		&t.ManualProgress,
		&t.Weight,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query tasks", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			r.logger.Error("Failed to scan task row", zap.Error(err))
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) Create(ctx context.Context, t *model.Task) error {
	defer observe("insert", "tasks", time.Now())
	r.logger.Debug("Inserting task",
		zap.String("task_id", t.ID),
		zap.String("project_id", t.ProjectID),
		zap.String("name", t.Name),
	)
	query := `
        INSERT INTO tasks (id, name, project_id, sub_tasks, progress, manual_progress, weight)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		t.ID,
		t.Name,
		t.ProjectID,
		nonNil(t.SubTasks),
		t.Progress,
		t.ManualProgress,
		t.Weight,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert task",
			zap.Error(err),
			zap.String("task_id", t.ID),
			zap.String("project_id", t.ProjectID),
		)
		return pgError(err, "task", t.ID)
	}
	r.logger.Info("Task inserted successfully",
		zap.String("task_id", t.ID),
		zap.String("project_id", t.ProjectID),
	)
	return nil
}

func (r *TaskRepository) Get(ctx context.Context, id string) (*model.Task, error) {
	defer observe("select", "tasks", time.Now())
	r.logger.Debug("Fetching task", zap.String("task_id", id))
	t, err := scanTask(r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		err = pgError(err, "task", id)
		if !apperr.IsNotFound(err) {
			r.logger.Error("Failed to fetch task", zap.String("task_id", id), zap.Error(err))
		}
		return nil, err
	}
	return t, nil
}

// GetMany returns the tasks that still exist, in the order of ids.
func (r *TaskRepository) GetMany(ctx context.Context, ids []string) ([]model.Task, error) {
	defer observe("select", "tasks", time.Now())
	if len(ids) == 0 {
		return []model.Task{}, nil
	}
	found, err := r.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Task, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}
	out := make([]model.Task, 0, len(found))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			out = append(out, t)
			delete(byID, id)
		}
	}
	return out, nil
}

func (r *TaskRepository) ListByProject(ctx context.Context, projectID string) ([]model.Task, error) {
	defer observe("select", "tasks", time.Now())
	r.logger.Debug("Listing tasks for project", zap.String("project_id", projectID))
	return r.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY created_at, id`,
		projectID,
	)
}

func (r *TaskRepository) ListByProjects(ctx context.Context, projectIDs []string) ([]model.Task, error) {
	defer observe("select", "tasks", time.Now())
	if len(projectIDs) == 0 {
		return []model.Task{}, nil
	}
	return r.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = ANY($1) ORDER BY created_at, id`,
		projectIDs,
	)
}

func (r *TaskRepository) Update(ctx context.Context, id string, upd TaskUpdate) (*model.Task, error) {
	defer observe("update", "tasks", time.Now())
	r.logger.Debug("Updating task", zap.String("task_id", id))
	query := `
        UPDATE tasks SET
            name            = COALESCE($2, name),
            weight          = COALESCE($3, weight),
            progress        = COALESCE($4, progress),
            manual_progress = COALESCE($4, manual_progress),
            updated_at      = NOW()
        WHERE id = $1
        RETURNING ` + taskColumns
	t, err := scanTask(r.db.QueryRow(ctx, query, id, upd.Name, upd.Weight, upd.Progress))
	if err != nil {
		err = pgError(err, "task", id)
		if !apperr.IsNotFound(err) {
			r.logger.Error("Failed to update task", zap.String("task_id", id), zap.Error(err))
		}
		return nil, err
	}
	r.logger.Info("Task updated successfully", zap.String("task_id", id))
	return t, nil
}

func (r *TaskRepository) SetProgress(ctx context.Context, id string, progress int) error {
	defer observe("update", "tasks", time.Now())
	result, err := r.db.Exec(ctx, `UPDATE tasks SET progress = $2, updated_at = NOW() WHERE id = $1`, id, progress)
	if err != nil {
		r.logger.Error("Failed to set task progress", zap.String("task_id", id), zap.Error(err))
		return err
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("task", id)
	}
	return nil
}

func (r *TaskRepository) AddSubTask(ctx context.Context, taskID, subTaskID string) error {
	defer observe("update", "tasks", time.Now())
	query := `
        UPDATE tasks
        SET sub_tasks = CASE WHEN $2::text = ANY(sub_tasks) THEN sub_tasks ELSE array_append(sub_tasks, $2::text) END,
            updated_at = NOW()
        WHERE id = $1
    `
	result, err := r.db.Exec(ctx, query, taskID, subTaskID)
	if err != nil {
		r.logger.Error("Failed to add subtask to task",
			zap.String("task_id", taskID),
			zap.String("subtask_id", subTaskID),
			zap.Error(err),
		)
		return err
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("task", taskID)
	}
	return nil
}

func (r *TaskRepository) RemoveSubTask(ctx context.Context, taskID, subTaskID string) error {
	defer observe("update", "tasks", time.Now())
	result, err := r.db.Exec(ctx,
		`UPDATE tasks SET sub_tasks = array_remove(sub_tasks, $2::text), updated_at = NOW() WHERE id = $1`,
		taskID, subTaskID,
	)
	if err != nil {
		r.logger.Error("Failed to remove subtask from task",
			zap.String("task_id", taskID),
			zap.String("subtask_id", subTaskID),
			zap.Error(err),
		)
		return err
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("task", taskID)
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	defer observe("delete", "tasks", time.Now())
	r.logger.Debug("Deleting task", zap.String("task_id", id))
	result, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete task", zap.String("task_id", id), zap.Error(err))
		return err
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("task", id)
	}
	r.logger.Info("Task deleted successfully", zap.String("task_id", id))
	return nil
}

func (r *TaskRepository) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
	defer observe("delete", "tasks", time.Now())
	result, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE project_id = $1`, projectID)
	if err != nil {
		r.logger.Error("Failed to delete tasks of project", zap.String("project_id", projectID), zap.Error(err))
		return 0, err
	}
	rowsAffected := result.RowsAffected()
	r.logger.Info("Tasks of project deleted",
		zap.String("project_id", projectID),
		zap.Int64("rows_affected", rowsAffected),
	)
	return rowsAffected, nil
}
