package service

import (
	"context"
	"fmt"
	"io"

	"progresshub/internal/apperr"
	"progresshub/internal/blob"
	"progresshub/internal/membership"
	"progresshub/internal/model"
	"progresshub/internal/repository"
	"progresshub/pkg/logger"
	"progresshub/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Listing depths.
const (
	DepthProjects = 0
	DepthTasks    = 1
	DepthSubTasks = 2
)

type ProjectService struct {
	projects repository.ProjectStore
	reads    repository.ProjectStore
	tasks    repository.TaskStore
	subTasks repository.SubTaskStore
	images   blob.Store
	urls     blob.URLBuilder
	logger   *zap.Logger
}

func NewProjectService(
	projects repository.ProjectStore,
	tasks repository.TaskStore,
	subTasks repository.SubTaskStore,
	images blob.Store,
	urls blob.URLBuilder,
	logger *zap.Logger,
) *ProjectService {
	return &ProjectService{
		projects: projects,
		reads:    projects,
		tasks:    tasks,
		subTasks: subTasks,
		images:   images,
		urls:     urls,
		logger:   logger,
	}
}

// WithReadCache serves Get and CheckMember from cached. Mutations keep
// reading the store they were constructed with.
func (s *ProjectService) WithReadCache(cached repository.ProjectStore) *ProjectService {
	s.reads = cached
	return s
}

type TaskView struct {
	model.Task
	SubTaskDocs []model.SubTask `json:"subTaskDocs,omitempty"`
}

type ProjectView struct {
	model.Project
	ImageURL string     `json:"imageUrl,omitempty"`
	TaskDocs []TaskView `json:"taskDocs,omitempty"`
}

type CreateProjectInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Users       []string `json:"users"`
}

type UpdateProjectInput struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Users       []string `json:"users"`
}

// ImageUpload is a new project image read from a request.
type ImageUpload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

func (s *ProjectService) view(p *model.Project) ProjectView {
	return ProjectView{Project: *p, ImageURL: s.urls.URL(p.Image)}
}

// Create makes ownerID the first member; extra users are merged after it.
func (s *ProjectService) Create(ctx context.Context, in CreateProjectInput, ownerID string) (*ProjectView, error) {
	if err := validateName("project", in.Name); err != nil {
		return nil, err
	}
	if ownerID == "" {
		return nil, apperr.InvalidArgument("project owner is required")
	}

	p := &model.Project{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Tasks:       []string{},
		Users:       membership.MergeIDs([]string{ownerID}, in.Users),
		Progress:    model.MinProgress,
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}

	logger.WithTrace(ctx, s.logger).Info("Project created",
		zap.String("project_id", p.ID),
		zap.String("owner_id", ownerID),
		zap.Int("member_count", len(p.Users)),
	)
	v := s.view(p)
	return &v, nil
}

func (s *ProjectService) Get(ctx context.Context, id string) (*ProjectView, error) {
	p, err := s.reads.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v := s.view(p)
	return &v, nil
}

// List pages over the user's projects in insertion order. depth 1 attaches
// task documents, depth 2 also attaches their subtasks.
func (s *ProjectService) List(ctx context.Context, userID string, page, size, depth int) (Page[ProjectView], error) {
	if err := checkPage(page, size); err != nil {
		return Page[ProjectView]{}, err
	}
	if depth < DepthProjects || depth > DepthSubTasks {
		return Page[ProjectView]{}, apperr.InvalidArgument("depth must be between %d and %d, got %d", DepthProjects, DepthSubTasks, depth)
	}

	total, err := s.projects.CountByMember(ctx, userID)
	if err != nil {
		return Page[ProjectView]{}, err
	}
	projects, err := s.projects.ListByMember(ctx, userID, page*size, size)
	if err != nil {
		return Page[ProjectView]{}, err
	}

	views := make([]ProjectView, len(projects))
	for i := range projects {
		views[i] = s.view(&projects[i])
	}
	if depth > DepthProjects && len(views) > 0 {
		if err := s.attachChildren(ctx, views, depth); err != nil {
			return Page[ProjectView]{}, err
		}
	}

	return Page[ProjectView]{
		Items:      views,
		Total:      total,
		Page:       page,
		Size:       size,
		TotalPages: totalPages(total, size),
	}, nil
}

func (s *ProjectService) attachChildren(ctx context.Context, views []ProjectView, depth int) error {
	ids := make([]string, len(views))
	for i, v := range views {
		ids[i] = v.ID
	}
	tasks, err := s.tasks.ListByProjects(ctx, ids)
	if err != nil {
		return err
	}

	subsByTask := map[string][]model.SubTask{}
	if depth >= DepthSubTasks {
		subs, err := s.subTasks.ListByProjects(ctx, ids)
		if err != nil {
			return err
		}
		for _, st := range subs {
			subsByTask[st.TaskID] = append(subsByTask[st.TaskID], st)
		}
	}

	tasksByProject := map[string][]TaskView{}
	for _, t := range tasks {
		tasksByProject[t.ProjectID] = append(tasksByProject[t.ProjectID], TaskView{
			Task:        t,
			SubTaskDocs: subsByTask[t.ID],
		})
	}
	for i := range views {
		views[i].TaskDocs = tasksByProject[views[i].ID]
	}
	return nil
}

// Update applies field changes and an optional new image. The new image is
// stored and saved on the project before the old one is released; if saving
// fails the new image is released instead.
func (s *ProjectService) Update(ctx context.Context, id string, in UpdateProjectInput, image *ImageUpload) (*ProjectView, error) {
	log := logger.WithTrace(ctx, s.logger)
	if in.Name != nil {
		if err := validateName("project", *in.Name); err != nil {
			return nil, err
		}
	}
	current, err := s.projects.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	upd := repository.ProjectUpdate{
		Name:        in.Name,
		Description: in.Description,
		AddUsers:    in.Users,
	}

	var newRef string
	if image != nil {
		newRef, err = s.images.Put(ctx, image.Filename, image.ContentType, image.Body)
		if err != nil {
			return nil, fmt.Errorf("store project image: %w", err)
		}
		upd.Image = &newRef
	}

	updated, err := s.projects.Update(ctx, id, upd)
	if err != nil {
		if newRef != "" {
			if relErr := s.images.Delete(ctx, newRef); relErr != nil {
				log.Warn("Failed to release unused image",
					zap.String("project_id", id),
					zap.String("ref", newRef),
					zap.Error(relErr),
				)
			}
		}
		return nil, err
	}

	if newRef != "" && current.Image != "" && current.Image != newRef {
		if err := s.images.Delete(ctx, current.Image); err != nil {
			log.Warn("Failed to release previous image",
				zap.String("project_id", id),
				zap.String("ref", current.Image),
				zap.Error(err),
			)
		}
	}

	log.Info("Project updated",
		zap.String("project_id", id),
		zap.Bool("image_replaced", newRef != ""),
	)
	v := s.view(updated)
	return &v, nil
}

// Delete removes the project's subtasks, then its tasks, then the project.
// The first failing step aborts and the project record stays. The image is
// released last and a failure there is only logged.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	log := logger.WithTrace(ctx, s.logger)
	p, err := s.projects.Get(ctx, id)
	if err != nil {
		return err
	}

	subs, err := s.subTasks.DeleteByProject(ctx, id)
	if err != nil {
		metrics.IncrementCascadeDelete("project", "error")
		return fmt.Errorf("delete subtasks of project %s: %w", id, err)
	}
	tasks, err := s.tasks.DeleteByProject(ctx, id)
	if err != nil {
		metrics.IncrementCascadeDelete("project", "error")
		return fmt.Errorf("delete tasks of project %s: %w", id, err)
	}
	if err := s.projects.Delete(ctx, id); err != nil {
		metrics.IncrementCascadeDelete("project", "error")
		return err
	}
	metrics.IncrementCascadeDelete("project", "success")

	if p.Image != "" {
		if err := s.images.Delete(ctx, p.Image); err != nil {
			log.Warn("Failed to release image of deleted project",
				zap.String("project_id", id),
				zap.String("ref", p.Image),
				zap.Error(err),
			)
		}
	}

	log.Info("Project deleted",
		zap.String("project_id", id),
		zap.Int64("tasks_removed", tasks),
		zap.Int64("subtasks_removed", subs),
	)
	return nil
}

// CheckMember returns NotFound for an unknown project and Forbidden when
// userID is not one of its members.
func (s *ProjectService) CheckMember(ctx context.Context, projectID, userID string) error {
	p, err := s.reads.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if !p.HasMember(userID) {
		return apperr.Forbidden("user %q is not a member of project %q", userID, projectID)
	}
	return nil
}
