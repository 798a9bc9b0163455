package service

import (
	"context"
	"fmt"

	"progresshub/internal/apperr"
	"progresshub/internal/membership"
	"progresshub/internal/model"
	"progresshub/internal/progress"
	"progresshub/internal/repository"
	"progresshub/pkg/logger"
	"progresshub/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TaskService struct {
	tasks    repository.TaskStore
	subTasks repository.SubTaskStore
	projects repository.ProjectStore
	members  *membership.Maintainer
	engine   *progress.Engine
	logger   *zap.Logger
}

func NewTaskService(
	tasks repository.TaskStore,
	subTasks repository.SubTaskStore,
	projects repository.ProjectStore,
	members *membership.Maintainer,
	engine *progress.Engine,
	logger *zap.Logger,
) *TaskService {
	return &TaskService{
		tasks:    tasks,
		subTasks: subTasks,
		projects: projects,
		members:  members,
		engine:   engine,
		logger:   logger,
	}
}

type CreateTaskInput struct {
	ProjectID string `json:"project"`
	Name      string `json:"name"`
	Weight    *int   `json:"weight"`
	Progress  *int   `json:"progress"`
}

type UpdateTaskInput struct {
	Name     *string `json:"name"`
	Weight   *int    `json:"weight"`
	Progress *int    `json:"progress"`
}

func (in UpdateTaskInput) validate() error {
	if in.Name != nil {
		if err := validateName("task", *in.Name); err != nil {
			return err
		}
	}
	if in.Weight != nil {
		if err := validateWeight(*in.Weight); err != nil {
			return err
		}
	}
	if in.Progress != nil {
		if err := validateProgress(*in.Progress); err != nil {
			return err
		}
	}
	return nil
}

func (s *TaskService) Create(ctx context.Context, in CreateTaskInput) (*model.Task, error) {
	log := logger.WithTrace(ctx, s.logger)
	if err := validateName("task", in.Name); err != nil {
		return nil, err
	}
	if err := (UpdateTaskInput{Weight: in.Weight, Progress: in.Progress}).validate(); err != nil {
		return nil, err
	}

	if in.ProjectID == "" {
		return nil, apperr.InvalidArgument("task must reference a project")
	}

	project, err := s.projects.Get(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}

	task := &model.Task{
		ID:        uuid.NewString(),
		Name:      in.Name,
		ProjectID: project.ID,
		SubTasks:  []string{},
		Progress:  model.MinProgress,
		Weight:    model.DefaultWeight,
	}
	if in.Weight != nil {
		task.Weight = *in.Weight
	}
	if in.Progress != nil {
		task.Progress = *in.Progress
		task.ManualProgress = *in.Progress
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if err := s.members.LinkTask(ctx, project.ID, task.ID); err != nil {
		if delErr := s.tasks.Delete(ctx, task.ID); delErr != nil {
			log.Error("Failed to remove unlinked task",
				zap.String("task_id", task.ID),
				zap.Error(delErr),
			)
		}
		return nil, err
	}
	if err := s.engine.RecomputeProject(ctx, project.ID); err != nil {
		return nil, err
	}

	log.Info("Task created",
		zap.String("task_id", task.ID),
		zap.String("project_id", project.ID),
	)
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, id string) (*model.Task, error) {
	return s.tasks.Get(ctx, id)
}

// Update accepts a direct progress value only for tasks without subtasks;
// otherwise progress is derived. Weight or progress changes recompute the project.
func (s *TaskService) Update(ctx context.Context, id string, in UpdateTaskInput) (*model.Task, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	current, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Progress != nil && len(current.SubTasks) > 0 {
		return nil, apperr.InvalidArgument("task %q has subtasks, its progress is derived from them", id)
	}

	updated, err := s.tasks.Update(ctx, id, repository.TaskUpdate{
		Name:     in.Name,
		Weight:   in.Weight,
		Progress: in.Progress,
	})
	if err != nil {
		return nil, err
	}

	if intChanged(in.Weight, current.Weight) || intChanged(in.Progress, current.Progress) {
		if err := s.engine.RecomputeProject(ctx, updated.ProjectID); err != nil {
			return nil, err
		}
	}
	logger.WithTrace(ctx, s.logger).Info("Task updated",
		zap.String("task_id", id),
		zap.Int("progress", updated.Progress),
		zap.Int("weight", updated.Weight),
	)
	return updated, nil
}

// Delete removes the task's subtasks, unlinks the task, removes it and then
// recomputes the project. The first failing step aborts the cascade.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	log := logger.WithTrace(ctx, s.logger)
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return err
	}

	removed, err := s.subTasks.DeleteByTask(ctx, id)
	if err != nil {
		metrics.IncrementCascadeDelete("task", "error")
		return fmt.Errorf("delete subtasks of task %s: %w", id, err)
	}
	if err := s.members.UnlinkTask(ctx, task.ProjectID, id); err != nil {
		metrics.IncrementCascadeDelete("task", "error")
		return err
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		metrics.IncrementCascadeDelete("task", "error")
		return err
	}
	if err := s.engine.RecomputeProject(ctx, task.ProjectID); err != nil {
		metrics.IncrementCascadeDelete("task", "error")
		return err
	}

	metrics.IncrementCascadeDelete("task", "success")
	log.Info("Task deleted",
		zap.String("task_id", id),
		zap.String("project_id", task.ProjectID),
		zap.Int64("subtasks_removed", removed),
	)
	return nil
}

func (s *TaskService) ListByProject(ctx context.Context, projectID string) ([]model.Task, error) {
	return s.tasks.ListByProject(ctx, projectID)
}

// ListForUser pages over the tasks of every project the user belongs to.
func (s *TaskService) ListForUser(ctx context.Context, userID string, page, size int) (Page[model.Task], error) {
	if err := checkPage(page, size); err != nil {
		return Page[model.Task]{}, err
	}
	projectIDs, err := s.projects.MemberProjectIDs(ctx, userID)
	if err != nil {
		return Page[model.Task]{}, err
	}
	all, err := s.tasks.ListByProjects(ctx, projectIDs)
	if err != nil {
		return Page[model.Task]{}, err
	}
	return paginate(all, page, size), nil
}

// ProjectOf returns the id of the project owning the task.
func (s *TaskService) ProjectOf(ctx context.Context, id string) (string, error) {
	task, err := s.tasks.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return task.ProjectID, nil
}
