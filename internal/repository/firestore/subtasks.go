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

type subTaskDoc struct {
	Name      string    `firestore:"name"`
	Task      string    `firestore:"task"`
	Project   string    `firestore:"project"`
	Progress  int       `firestore:"progress"`
	Weight    int       `firestore:"weight"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func subTasksFromSnapshots(docs []*firestore.DocumentSnapshot) ([]model.SubTask, error) {
	out := make([]model.SubTask, 0, len(docs))
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		var d subTaskDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, err
		}
		out = append(out, model.SubTask{
			ID:        doc.Ref.ID,
			Name:      d.Name,
			TaskID:    d.Task,
			ProjectID: d.Project,
			Progress:  d.Progress,
			Weight:    d.Weight,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}
	return out, nil
}

type subTaskStore struct{ s *Store }

func (r *subTaskStore) Create(ctx context.Context, st *model.SubTask) error {
	defer observe("insert", "subtasks", time.Now())
	now := r.s.now()
	st.CreatedAt, st.UpdatedAt = now, now
	_, err := r.s.subTasks.Doc(st.ID).Create(ctx, subTaskDoc{
		Name:      st.Name,
		Task:      st.TaskID,
		Project:   st.ProjectID,
		Progress:  st.Progress,
		Weight:    st.Weight,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		r.s.logger.Error("Failed to create subtask document", zap.String("subtask_id", st.ID), zap.Error(err))
		return fsError(err, "subtask", st.ID)
	}
	r.s.logger.Info("SubTask document created",
		zap.String("subtask_id", st.ID),
		zap.String("task_id", st.TaskID),
	)
	return nil
}

func (r *subTaskStore) Get(ctx context.Context, id string) (*model.SubTask, error) {
	defer observe("select", "subtasks", time.Now())
	snap, err := r.s.subTasks.Doc(id).Get(ctx)
	if err != nil {
		return nil, fsError(err, "subtask", id)
	}
	out, err := subTasksFromSnapshots([]*firestore.DocumentSnapshot{snap})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (r *subTaskStore) GetMany(ctx context.Context, ids []string) ([]model.SubTask, error) {
	defer observe("select", "subtasks", time.Now())
	if len(ids) == 0 {
		return []model.SubTask{}, nil
	}
	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = r.s.subTasks.Doc(id)
	}
	docs, err := r.s.client.GetAll(ctx, refs)
	if err != nil {
		r.s.logger.Error("Failed to fetch subtask documents", zap.Int("count", len(ids)), zap.Error(err))
		return nil, err
	}
	return subTasksFromSnapshots(docs)
}

func (r *subTaskStore) listWhere(ctx context.Context, field, value string) ([]model.SubTask, error) {
	defer observe("select", "subtasks", time.Now())
	q := r.s.subTasks.Where(field, "==", value).
		OrderBy("createdAt", firestore.Asc).
		OrderBy(firestore.DocumentID, firestore.Asc)
	docs, err := collect(q.Documents(ctx))
	if err != nil {
		r.s.logger.Error("Failed to query subtasks", zap.String(field, value), zap.Error(err))
		return nil, err
	}
	return subTasksFromSnapshots(docs)
}

func (r *subTaskStore) ListByTask(ctx context.Context, taskID string) ([]model.SubTask, error) {
	return r.listWhere(ctx, "task", taskID)
}

func (r *subTaskStore) ListByProject(ctx context.Context, projectID string) ([]model.SubTask, error) {
	return r.listWhere(ctx, "project", projectID)
}

func (r *subTaskStore) ListByProjects(ctx context.Context, projectIDs []string) ([]model.SubTask, error) {
	defer observe("select", "subtasks", time.Now())
	out := []model.SubTask{}
	for _, chunk := range chunks(projectIDs) {
		docs, err := collect(r.s.subTasks.Where("project", "in", toInterfaces(chunk)).Documents(ctx))
		if err != nil {
			r.s.logger.Error("Failed to query subtasks", zap.Int("project_count", len(chunk)), zap.Error(err))
			return nil, err
		}
		subs, err := subTasksFromSnapshots(docs)
		if err != nil {
			return nil, err
		}
		out = append(out, subs...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return createdBefore(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, nil
}

func (r *subTaskStore) Update(ctx context.Context, id string, upd repository.SubTaskUpdate) (*model.SubTask, error) {
	defer observe("update", "subtasks", time.Now())
	updates := []firestore.Update{{Path: "updatedAt", Value: r.s.now()}}
	if upd.Name != nil {
		updates = append(updates, firestore.Update{Path: "name", Value: *upd.Name})
	}
	if upd.Weight != nil {
		updates = append(updates, firestore.Update{Path: "weight", Value: *upd.Weight})
	}
	if upd.Progress != nil {
		updates = append(updates, firestore.Update{Path: "progress", Value: *upd.Progress})
	}
	if _, err := r.s.subTasks.Doc(id).Update(ctx, updates); err != nil {
		err = fsError(err, "subtask", id)
		if !apperr.IsNotFound(err) {
			r.s.logger.Error("Failed to update subtask document", zap.String("subtask_id", id), zap.Error(err))
		}
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *subTaskStore) Delete(ctx context.Context, id string) error {
	defer observe("delete", "subtasks", time.Now())
	if _, err := r.s.subTasks.Doc(id).Delete(ctx, firestore.Exists); err != nil {
		return fsError(err, "subtask", id)
	}
	r.s.logger.Info("SubTask document deleted", zap.String("subtask_id", id))
	return nil
}

func (r *subTaskStore) deleteWhere(ctx context.Context, field, value string) (int64, error) {
	defer observe("delete", "subtasks", time.Now())
	n, err := r.s.deleteWhere(ctx, r.s.subTasks.Where(field, "==", value))
	if err != nil {
		r.s.logger.Error("Failed to delete subtasks", zap.String(field, value), zap.Error(err))
		return n, err
	}
	r.s.logger.Info("SubTasks deleted", zap.String(field, value), zap.Int64("deleted", n))
	return n, nil
}

func (r *subTaskStore) DeleteByTask(ctx context.Context, taskID string) (int64, error) {
	return r.deleteWhere(ctx, "task", taskID)
}

func (r *subTaskStore) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
	return r.deleteWhere(ctx, "project", projectID)
}
