package progress

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	contractmq "progresshub/contracts/mq"
	"progresshub/internal/apperr"
	"progresshub/internal/events"
	"progresshub/internal/repository"
	"progresshub/pkg/logger"
	"progresshub/pkg/metrics"

	"go.uber.org/zap"
)

const (
	levelTask    = "task"
	levelProject = "project"
)

const lockStripes = 64

// passLocks serializes passes over the same entity within this process.
type passLocks [lockStripes]sync.Mutex

func (l *passLocks) lock(id string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	m := &l[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}

// Engine recomputes stored progress after a child changed. Every pass reads
// the current children and writes its result unconditionally. Passes over
// the same task or project run one at a time, so the last one reads every
// child write that finished before it started.
type Engine struct {
	projects  repository.ProjectStore
	tasks     repository.TaskStore
	subTasks  repository.SubTaskStore
	publisher events.Publisher
	logger    *zap.Logger

	taskLocks    passLocks
	projectLocks passLocks
}

func NewEngine(
	projects repository.ProjectStore,
	tasks repository.TaskStore,
	subTasks repository.SubTaskStore,
	publisher events.Publisher,
	logger *zap.Logger,
) *Engine {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Engine{
		projects:  projects,
		tasks:     tasks,
		subTasks:  subTasks,
		publisher: publisher,
		logger:    logger,
	}
}

// RecomputeTask refreshes the task's progress from its subtasks and then its
// project's. A task without subtasks falls back to its manual progress. A task
// that no longer exists is a no-op.
func (e *Engine) RecomputeTask(ctx context.Context, taskID string) error {
	projectID, err := e.recomputeTask(ctx, taskID)
	if err != nil || projectID == "" {
		return err
	}
	return e.RecomputeProject(ctx, projectID)
}

// recomputeTask runs the task level of a pass and returns the project to
// refresh next, or "" when the task is gone.
func (e *Engine) recomputeTask(ctx context.Context, taskID string) (string, error) {
	unlock := e.taskLocks.lock(taskID)
	defer unlock()

	start := time.Now()
	log := logger.WithTrace(ctx, e.logger)

	task, err := e.tasks.Get(ctx, taskID)
	if apperr.IsNotFound(err) {
		log.Debug("Recompute skipped, task gone", zap.String("task_id", taskID))
		metrics.RecordRecompute(levelTask, "skipped", time.Since(start))
		return "", nil
	}
	if err != nil {
		metrics.RecordRecompute(levelTask, "error", time.Since(start))
		return "", fmt.Errorf("recompute task %s: %w", taskID, err)
	}

	next := task.ManualProgress
	if len(task.SubTasks) > 0 {
		subs, err := e.subTasks.GetMany(ctx, task.SubTasks)
		if err != nil {
			metrics.RecordRecompute(levelTask, "error", time.Since(start))
			return "", fmt.Errorf("recompute task %s: load subtasks: %w", taskID, err)
		}
		if len(subs) > 0 {
			next = WeightedAverage(fromSubTasks(subs))
		}
	}

	err = e.tasks.SetProgress(ctx, taskID, next)
	if apperr.IsNotFound(err) {
		log.Debug("Recompute skipped, task deleted during pass", zap.String("task_id", taskID))
		metrics.RecordRecompute(levelTask, "skipped", time.Since(start))
		return "", nil
	}
	if err != nil {
		metrics.RecordRecompute(levelTask, "error", time.Since(start))
		return "", fmt.Errorf("recompute task %s: write progress: %w", taskID, err)
	}

	if next == task.Progress {
		metrics.RecordRecompute(levelTask, "unchanged", time.Since(start))
	} else {
		metrics.RecordRecompute(levelTask, "updated", time.Since(start))
		log.Info("Task progress updated",
			zap.String("task_id", taskID),
			zap.Int("previous", task.Progress),
			zap.Int("progress", next),
		)
		e.publisher.PublishProgress(ctx, contractmq.ProgressUpdatedPayload{
			Entity:    contractmq.EntityTask,
			ID:        taskID,
			ProjectID: task.ProjectID,
			Progress:  next,
			Previous:  task.Progress,
		})
	}
	return task.ProjectID, nil
}

// RecomputeProject refreshes the project's progress from its tasks. A project
// without tasks is 0. A project that no longer exists is a no-op.
func (e *Engine) RecomputeProject(ctx context.Context, projectID string) error {
	unlock := e.projectLocks.lock(projectID)
	defer unlock()

	start := time.Now()
	log := logger.WithTrace(ctx, e.logger)

	project, err := e.projects.Get(ctx, projectID)
	if apperr.IsNotFound(err) {
		log.Debug("Recompute skipped, project gone", zap.String("project_id", projectID))
		metrics.RecordRecompute(levelProject, "skipped", time.Since(start))
		return nil
	}
	if err != nil {
		metrics.RecordRecompute(levelProject, "error", time.Since(start))
		return fmt.Errorf("recompute project %s: %w", projectID, err)
	}

	tasks, err := e.tasks.GetMany(ctx, project.Tasks)
	if err != nil {
		metrics.RecordRecompute(levelProject, "error", time.Since(start))
		return fmt.Errorf("recompute project %s: load tasks: %w", projectID, err)
	}

	next := WeightedAverage(fromTasks(tasks))
	err = e.projects.SetProgress(ctx, projectID, next)
	if apperr.IsNotFound(err) {
		log.Debug("Recompute skipped, project deleted during pass", zap.String("project_id", projectID))
		metrics.RecordRecompute(levelProject, "skipped", time.Since(start))
		return nil
	}
	if err != nil {
		metrics.RecordRecompute(levelProject, "error", time.Since(start))
		return fmt.Errorf("recompute project %s: write progress: %w", projectID, err)
	}

	// only a change against this pass's snapshot is announced
	if next == project.Progress {
		metrics.RecordRecompute(levelProject, "unchanged", time.Since(start))
		return nil
	}
	metrics.RecordRecompute(levelProject, "updated", time.Since(start))
	log.Info("Project progress updated",
		zap.String("project_id", projectID),
		zap.Int("previous", project.Progress),
		zap.Int("progress", next),
	)
	e.publisher.PublishProgress(ctx, contractmq.ProgressUpdatedPayload{
		Entity:    contractmq.EntityProject,
		ID:        projectID,
		ProjectID: projectID,
		Progress:  next,
		Previous:  project.Progress,
	})
	return nil
}
