// Package membership keeps the parent-side child reference sets
// (Project.tasks and Task.subTasks) in step with child creation and deletion.
package membership

import (
	"context"
	"fmt"

	"progresshub/internal/apperr"
	"progresshub/internal/repository"

	"go.uber.org/zap"
)

type Maintainer struct {
	projects repository.ProjectStore
	tasks    repository.TaskStore
	logger   *zap.Logger
}

func NewMaintainer(projects repository.ProjectStore, tasks repository.TaskStore, logger *zap.Logger) *Maintainer {
	return &Maintainer{
		projects: projects,
		tasks:    tasks,
		logger:   logger,
	}
}

// LinkTask adds taskID to the project's task set. A missing project is an error.
func (m *Maintainer) LinkTask(ctx context.Context, projectID, taskID string) error {
	if err := m.projects.AddTask(ctx, projectID, taskID); err != nil {
		return fmt.Errorf("link task %s to project %s: %w", taskID, projectID, err)
	}
	m.logger.Debug("Task linked to project",
		zap.String("project_id", projectID),
		zap.String("task_id", taskID),
	)
	return nil
}

// UnlinkTask removes taskID from the project's task set. A project that is
// already gone has nothing to unlink, so that case is not an error.
func (m *Maintainer) UnlinkTask(ctx context.Context, projectID, taskID string) error {
	err := m.projects.RemoveTask(ctx, projectID, taskID)
	if apperr.IsNotFound(err) {
		m.logger.Debug("Unlink skipped, project already gone",
			zap.String("project_id", projectID),
			zap.String("task_id", taskID),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("unlink task %s from project %s: %w", taskID, projectID, err)
	}
	return nil
}

func (m *Maintainer) LinkSubTask(ctx context.Context, taskID, subTaskID string) error {
	if err := m.tasks.AddSubTask(ctx, taskID, subTaskID); err != nil {
		return fmt.Errorf("link subtask %s to task %s: %w", subTaskID, taskID, err)
	}
	m.logger.Debug("SubTask linked to task",
		zap.String("task_id", taskID),
		zap.String("subtask_id", subTaskID),
	)
	return nil
}

func (m *Maintainer) UnlinkSubTask(ctx context.Context, taskID, subTaskID string) error {
	err := m.tasks.RemoveSubTask(ctx, taskID, subTaskID)
	if apperr.IsNotFound(err) {
		m.logger.Debug("Unlink skipped, task already gone",
			zap.String("task_id", taskID),
			zap.String("subtask_id", subTaskID),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("unlink subtask %s from task %s: %w", subTaskID, taskID, err)
	}
	return nil
}
