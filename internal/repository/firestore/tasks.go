package firestore

import (
	"context"
	"sort"
	"time"

	"progresshub/internal/apperr"
	"progresshub/internal/model"
	"progresshub/internal/repository"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
)

type taskDoc struct {
	Name           string    `firestore:"name"`
	Project        string    `firestore:"project"`
	SubTasks       []string  `firestore:"subTasks"`
	Progress       int       `firestore:"progress"`
	ManualProgress int       `firestore:"manualProgress"`
	Weight         int       `firestore:"weight"`
	CreatedAt      time.Time `firestore:"createdAt"`
	UpdatedAt      time.Time `firestore:"updatedAt"`
}

func taskFromSnapshot(snap *firestore.DocumentSnapshot) (*model.Task, error) {
	var d taskDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	return &model.Task{
		ID:             snap.Ref.ID,
		Name:           d.Name,
		ProjectID:      d.Project,
		SubTasks:       nonNil(d.SubTasks),
		Progress:       d.Progress,
		ManualProgress: d.ManualProgress,
		Weight:         d.Weight,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}, nil
}

func tasksFromSnapshots(docs []*firestore.DocumentSnapshot) ([]model.Task, error) {
	out := make([]model.Task, 0, len(docs))
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		t, err := taskFromSnapshot(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

type taskStore struct{ s *Store }

func (r *taskStore) Create(ctx context.Context, t *model.Task) error {
	defer observe("insert", "tasks", time.Now())
	now := r.s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := r.s.tasks.Doc(t.ID).Create(ctx, taskDoc{
		Name:           t.Name,
		Project:        t.ProjectID,
		SubTasks:       nonNil(t.SubTasks),
		Progress:       t.Progress,
		ManualProgress: t.ManualProgress,
		Weight:         t.Weight,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		r.s.logger.Error("Failed to create task document", zap.String("task_id", t.ID), zap.Error(err))
		return fsError(err, "task", t.ID)
	}
	r.s.logger.Info("Task document created",
		zap.String("task_id", t.ID),
		zap.String("project_id", t.ProjectID),
	)
	return nil
}

func (r *taskStore) Get(ctx context.Context, id string) (*model.Task, error) {
	defer observe("select", "tasks", time.Now())
	snap, err := r.s.tasks.Doc(id).Get(ctx)
	if err != nil {
		return nil, fsError(err, "task", id)
	}
	return taskFromSnapshot(snap)
}

// GetMany skips missing documents; GetAll keeps the order of refs.
func (r *taskStore) GetMany(ctx context.Context, ids []string) ([]model.Task, error) {
	defer observe("select", "tasks", time.Now())
	if len(ids) == 0 {
		return []model.Task{}, nil
	}
	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = r.s.tasks.Doc(id)
	}
	docs, err := r.s.client.GetAll(ctx, refs)
	if err != nil {
		r.s.logger.Error("Failed to fetch task documents", zap.Int("count", len(ids)), zap.Error(err))
		return nil, err
	}
	return tasksFromSnapshots(docs)
}

func (r *taskStore) ListByProject(ctx context.Context, projectID string) ([]model.Task, error) {
	defer observe("select", "tasks", time.Now())
	q := r.s.tasks.Where("project", "==", projectID).
		OrderBy("createdAt", firestore.Asc).
		OrderBy(firestore.DocumentID, firestore.Asc)
	docs, err := collect(q.Documents(ctx))
	if err != nil {
		r.s.logger.Error("Failed to query tasks", zap.String("project_id", projectID), zap.Error(err))
		return nil, err
	}
	return tasksFromSnapshots(docs)
}

func (r *taskStore) ListByProjects(ctx context.Context, projectIDs []string) ([]model.Task, error) {
	defer observe("select", "tasks", time.Now())
	out := []model.Task{}
	for _, chunk := range chunks(projectIDs) {
		docs, err := collect(r.s.tasks.Where("project", "in", toInterfaces(chunk)).Documents(ctx))
		if err != nil {
			r.s.logger.Error("Failed to query tasks", zap.Int("project_count", len(chunk)), zap.Error(err))
			return nil, err
		}
		tasks, err := tasksFromSnapshots(docs)
		if err != nil {
			return nil, err
		}
		out = append(out, tasks...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return createdBefore(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, nil
}

func (r *taskStore) Update(ctx context.Context, id string, upd repository.TaskUpdate) (*model.Task, error) {
	defer observe("update", "tasks", time.Now())
	updates := []firestore.Update{{Path: "updatedAt", Value: r.s.now()}}
	if upd.Name != nil {
		updates = append(updates, firestore.Update{Path: "name", Value: *upd.Name})
	}
	if upd.Weight != nil {
		updates = append(updates, firestore.Update{Path: "weight", Value: *upd.Weight})
	}
	if upd.Progress != nil {
		updates = append(updates,
			firestore.Update{Path: "progress", Value: *upd.Progress},
			firestore.Update{Path: "manualProgress", Value: *upd.Progress},
		)
	}
	if _, err := r.s.tasks.Doc(id).Update(ctx, updates); err != nil {
		err = fsError(err, "task", id)
		if !apperr.IsNotFound(err) {
			r.s.logger.Error("Failed to update task document", zap.String("task_id", id), zap.Error(err))
		}
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *taskStore) SetProgress(ctx context.Context, id string, progress int) error {
	defer observe("update", "tasks", time.Now())
	_, err := r.s.tasks.Doc(id).Update(ctx, []firestore.Update{
		{Path: "progress", Value: progress},
		{Path: "updatedAt", Value: r.s.now()},
	})
	return fsError(err, "task", id)
}

func (r *taskStore) AddSubTask(ctx context.Context, taskID, subTaskID string) error {
	defer observe("update", "tasks", time.Now())
	_, err := r.s.tasks.Doc(taskID).Update(ctx, []firestore.Update{
		{Path: "subTasks", Value: firestore.ArrayUnion(subTaskID)},
		{Path: "updatedAt", Value: r.s.now()},
	})
	return fsError(err, "task", taskID)
}

func (r *taskStore) RemoveSubTask(ctx context.Context, taskID, subTaskID string) error {
	defer observe("update", "tasks", time.Now())
	_, err := r.s.tasks.Doc(taskID).Update(ctx, []firestore.Update{
		{Path: "subTasks", Value: firestore.ArrayRemove(subTaskID)},
		{Path: "updatedAt", Value: r.s.now()},
	})
	return fsError(err, "task", taskID)
}

func (r *taskStore) Delete(ctx context.Context, id string) error {
	defer observe("delete", "tasks", time.Now())
	if _, err := r.s.tasks.Doc(id).Delete(ctx, firestore.Exists); err != nil {
		return fsError(err, "task", id)
	}
	r.s.logger.Info("Task document deleted", zap.String("task_id", id))
	return nil
}

func (r *taskStore) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
	defer observe("delete", "tasks", time.Now())
	n, err := r.s.deleteWhere(ctx, r.s.tasks.Where("project", "==", projectID))
	if err != nil {
		r.s.logger.Error("Failed to delete tasks of project", zap.String("project_id", projectID), zap.Error(err))
		return n, err
	}
	r.s.logger.Info("Tasks of project deleted",
		zap.String("project_id", projectID),
		zap.Int64("deleted", n),
	)
	return n, nil
}
