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

type SubTaskService struct {
	subTasks repository.SubTaskStore
	tasks    repository.TaskStore
	projects repository.ProjectStore
	members  *membership.Maintainer
	engine   *progress.Engine
	logger   *zap.Logger
}

func NewSubTaskService(
	subTasks repository.SubTaskStore,
	tasks repository.TaskStore,
	projects repository.ProjectStore,
	members *membership.Maintainer,
	engine *progress.Engine,
	logger *zap.Logger,
) *SubTaskService {
	return &SubTaskService{
		subTasks: subTasks,
		tasks:    tasks,
		projects: projects,
		members:  members,
		engine:   engine,
		logger:   logger,
	}
}

type CreateSubTaskInput struct {
	TaskID   string `json:"task"`
	Name     string `json:"name"`
	Progress *int   `json:"progress"`
	Weight   *int   `json:"weight"`
}

type UpdateSubTaskInput struct {
	Name     *string `json:"name"`
	Progress *int    `json:"progress"`
	Weight   *int    `json:"weight"`
}

func (in UpdateSubTaskInput) validate() error {
	if in.Name != nil {
		if err := validateName("subtask", *in.Name); err != nil {
			return err
		}
	}
	if in.Progress != nil {
		if err := validateProgress(*in.Progress); err != nil {
			return err
		}
	}
	if in.Weight != nil {
		if err := validateWeight(*in.Weight); err != nil {
			return err
		}
	}
	return nil
}

// Create stores the subtask under its task, links it and recomputes the task.
// If linking fails the new record is removed again.
func (s *SubTaskService) Create(ctx context.Context, in CreateSubTaskInput) (*model.SubTask, error) {
	log := logger.WithTrace(ctx, s.logger)
	if err := validateName("subtask", in.Name); err != nil {
		return nil, err
	}
	if err := (UpdateSubTaskInput{Progress: in.Progress, Weight: in.Weight}).validate(); err != nil {
		return nil, err
	}

	if in.TaskID == "" {
		return nil, apperr.InvalidArgument("subtask must reference a task")
	}

	task, err := s.tasks.Get(ctx, in.TaskID)
	if err != nil {
		return nil, err
	}

	st := &model.SubTask{
		ID:        uuid.NewString(),
		Name:      in.Name,
		TaskID:    task.ID,
		ProjectID: task.ProjectID,
		Progress:  model.MinProgress,
		Weight:    model.DefaultWeight,
	}
	if in.Progress != nil {
		st.Progress = *in.Progress
	}
	if in.Weight != nil {
		st.Weight = *in.Weight
	}

	if err := s.subTasks.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("create subtask: %w", err)
	}
	if err := s.members.LinkSubTask(ctx, task.ID, st.ID); err != nil {
		if delErr := s.subTasks.Delete(ctx, st.ID); delErr != nil {
			log.Error("Failed to remove unlinked subtask",
				zap.String("subtask_id", st.ID),
				zap.Error(delErr),
			)
		}
		return nil, err
	}
	if err := s.engine.RecomputeTask(ctx, task.ID); err != nil {
		return nil, err
	}

	log.Info("SubTask created",
		zap.String("subtask_id", st.ID),
		zap.String("task_id", task.ID),
		zap.String("project_id", task.ProjectID),
	)
	return st, nil
}

func (s *SubTaskService) Get(ctx context.Context, id string) (*model.SubTask, error) {
	return s.subTasks.Get(ctx, id)
}

// Update recomputes the parent task only when progress or weight changed value.
func (s *SubTaskService) Update(ctx context.Context, id string, in UpdateSubTaskInput) (*model.SubTask, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	current, err := s.subTasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.subTasks.Update(ctx, id, repository.SubTaskUpdate{
		Name:     in.Name,
		Progress: in.Progress,
		Weight:   in.Weight,
	})
	if err != nil {
		return nil, err
	}

	if intChanged(in.Progress, current.Progress) || intChanged(in.Weight, current.Weight) {
		if err := s.engine.RecomputeTask(ctx, updated.TaskID); err != nil {
			return nil, err
		}
	}
	logger.WithTrace(ctx, s.logger).Info("SubTask updated",
		zap.String("subtask_id", id),
		zap.Int("progress", updated.Progress),
		zap.Int("weight", updated.Weight),
	)
	return updated, nil
}

// Delete removes the subtask, unlinks it from its task and recomputes the task.
func (s *SubTaskService) Delete(ctx context.Context, id string) error {
	st, err := s.subTasks.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.subTasks.Delete(ctx, id); err != nil {
		metrics.IncrementCascadeDelete("subtask", "error")
		return err
	}
	if err := s.members.UnlinkSubTask(ctx, st.TaskID, id); err != nil {
		metrics.IncrementCascadeDelete("subtask", "error")
		return err
	}
	if err := s.engine.RecomputeTask(ctx, st.TaskID); err != nil {
		metrics.IncrementCascadeDelete("subtask", "error")
		return err
	}
	metrics.IncrementCascadeDelete("subtask", "success")
	logger.WithTrace(ctx, s.logger).Info("SubTask deleted",
		zap.String("subtask_id", id),
		zap.String("task_id", st.TaskID),
	)
	return nil
}

func (s *SubTaskService) ListByTask(ctx context.Context, taskID string) ([]model.SubTask, error) {
	return s.subTasks.ListByTask(ctx, taskID)
}

func (s *SubTaskService) ListByProject(ctx context.Context, projectID string) ([]model.SubTask, error) {
	return s.subTasks.ListByProject(ctx, projectID)
}

// ListForUser pages over the subtasks of every project the user belongs to.
func (s *SubTaskService) ListForUser(ctx context.Context, userID string, page, size int) (Page[model.SubTask], error) {
	if err := checkPage(page, size); err != nil {
		return Page[model.SubTask]{}, err
	}
	projectIDs, err := s.projects.MemberProjectIDs(ctx, userID)
	if err != nil {
		return Page[model.SubTask]{}, err
	}
	all, err := s.subTasks.ListByProjects(ctx, projectIDs)
	if err != nil {
		return Page[model.SubTask]{}, err
	}
	return paginate(all, page, size), nil
}

// ProjectOf returns the id of the project owning the subtask.
func (s *SubTaskService) ProjectOf(ctx context.Context, id string) (string, error) {
	st, err := s.subTasks.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return st.ProjectID, nil
}
