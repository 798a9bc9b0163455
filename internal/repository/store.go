package repository

import (
	"context"

	"progresshub/internal/model"
)

// Every method is atomic with respect to the single document it touches.
// Nothing here spans documents; the services sequence multi-document work.

type ProjectUpdate struct {
	Name        *string
	Description *string
	Image       *string
	// AddUsers is merged into the member set; duplicates collapse.
	AddUsers []string
}

type TaskUpdate struct {
	Name   *string
	Weight *int
	// Progress sets both the stored and the manual progress.
	Progress *int
}

type SubTaskUpdate struct {
	Name     *string
	Weight   *int
	Progress *int
}

type ProjectStore interface {
	Create(ctx context.Context, p *model.Project) error
	Get(ctx context.Context, id string) (*model.Project, error)
	// ListByMember returns member projects in insertion order.
	ListByMember(ctx context.Context, userID string, offset, limit int) ([]model.Project, error)
	CountByMember(ctx context.Context, userID string) (int, error)
	MemberProjectIDs(ctx context.Context, userID string) ([]string, error)
	Update(ctx context.Context, id string, upd ProjectUpdate) (*model.Project, error)
	SetProgress(ctx context.Context, id string, progress int) error
	// AddTask and RemoveTask are idempotent set operations on Project.tasks.
	AddTask(ctx context.Context, projectID, taskID string) error
	RemoveTask(ctx context.Context, projectID, taskID string) error
	Delete(ctx context.Context, id string) error
}

type TaskStore interface {
	Create(ctx context.Context, t *model.Task) error
	Get(ctx context.Context, id string) (*model.Task, error)
	// GetMany skips ids that no longer exist and keeps the order of ids.
	GetMany(ctx context.Context, ids []string) ([]model.Task, error)
	ListByProject(ctx context.Context, projectID string) ([]model.Task, error)
	ListByProjects(ctx context.Context, projectIDs []string) ([]model.Task, error)
	Update(ctx context.Context, id string, upd TaskUpdate) (*model.Task, error)
	SetProgress(ctx context.Context, id string, progress int) error
	AddSubTask(ctx context.Context, taskID, subTaskID string) error
	RemoveSubTask(ctx context.Context, taskID, subTaskID string) error
	Delete(ctx context.Context, id string) error
	DeleteByProject(ctx context.Context, projectID string) (int64, error)
}

type SubTaskStore interface {
	Create(ctx context.Context, s *model.SubTask) error
	Get(ctx context.Context, id string) (*model.SubTask, error)
	GetMany(ctx context.Context, ids []string) ([]model.SubTask, error)
	ListByTask(ctx context.Context, taskID string) ([]model.SubTask, error)
	ListByProject(ctx context.Context, projectID string) ([]model.SubTask, error)
	ListByProjects(ctx context.Context, projectIDs []string) ([]model.SubTask, error)
	Update(ctx context.Context, id string, upd SubTaskUpdate) (*model.SubTask, error)
	Delete(ctx context.Context, id string) error
	DeleteByTask(ctx context.Context, taskID string) (int64, error)
	DeleteByProject(ctx context.Context, projectID string) (int64, error)
}

// Backend bundles the three stores of one storage driver.
type Backend struct {
	Projects ProjectStore
	Tasks    TaskStore
	SubTasks SubTaskStore
	Ping     func(ctx context.Context) error
	Close    func()
}
