package firestore

import (
	"context"
	"time"

	"progresshub/internal/apperr"
	"progresshub/internal/model"
	"progresshub/internal/repository"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
)

type projectDoc struct {
	Name        string    `firestore:"name"`
	Description string    `firestore:"description"`
	Tasks       []string  `firestore:"tasks"`
	Users       []string  `firestore:"users"`
	Progress    int       `firestore:"progress"`
	Image       string    `firestore:"image"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func projectFromSnapshot(snap *firestore.DocumentSnapshot) (*model.Project, error) {
	var d projectDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	return &model.Project{
		ID:          snap.Ref.ID,
		Name:        d.Name,
		Description: d.Description,
		Tasks:       nonNil(d.Tasks),
		Users:       nonNil(d.Users),
		Progress:    d.Progress,
		Image:       d.Image,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

type projectStore struct{ s *Store }

func (r *projectStore) memberQuery(userID string) firestore.Query {
	return r.s.projects.Where("users", "array-contains", userID).
		OrderBy("createdAt", firestore.Asc).
		OrderBy(firestore.DocumentID, firestore.Asc)
}

func (r *projectStore) Create(ctx context.Context, p *model.Project) error {
	defer observe("insert", "projects", time.Now())
	now := r.s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := r.s.projects.Doc(p.ID).Create(ctx, projectDoc{
		Name:        p.Name,
		Description: p.Description,
		Tasks:       nonNil(p.Tasks),
		Users:       nonNil(p.Users),
		Progress:    p.Progress,
		Image:       p.Image,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		r.s.logger.Error("Failed to create project document", zap.String("project_id", p.ID), zap.Error(err))
		return fsError(err, "project", p.ID)
	}
	r.s.logger.Info("Project document created", zap.String("project_id", p.ID))
	return nil
}

func (r *projectStore) Get(ctx context.Context, id string) (*model.Project, error) {
	defer observe("select", "projects", time.Now())
	snap, err := r.s.projects.Doc(id).Get(ctx)
	if err != nil {
		return nil, fsError(err, "project", id)
	}
	return projectFromSnapshot(snap)
}

func (r *projectStore) ListByMember(ctx context.Context, userID string, offset, limit int) ([]model.Project, error) {
	defer observe("select", "projects", time.Now())
	q := r.memberQuery(userID).Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	docs, err := collect(q.Documents(ctx))
	if err != nil {
		r.s.logger.Error("Failed to query projects", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	out := make([]model.Project, 0, len(docs))
	for _, doc := range docs {
		p, err := projectFromSnapshot(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *projectStore) CountByMember(ctx context.Context, userID string) (int, error) {
	ids, err := r.MemberProjectIDs(ctx, userID)
	return len(ids), err
}

func (r *projectStore) MemberProjectIDs(ctx context.Context, userID string) ([]string, error) {
	defer observe("select", "projects", time.Now())
	docs, err := collect(r.memberQuery(userID).Select().Documents(ctx))
	if err != nil {
		r.s.logger.Error("Failed to query member project ids", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.Ref.ID
	}
	return ids, nil
}

// Update adds users with ArrayUnion, which keeps existing order and appends
// only values not yet present.
func (r *projectStore) Update(ctx context.Context, id string, upd repository.ProjectUpdate) (*model.Project, error) {
	defer observe("update", "projects", time.Now())
	updates := []firestore.Update{{Path: "updatedAt", Value: r.s.now()}}
	if upd.Name != nil {
		updates = append(updates, firestore.Update{Path: "name", Value: *upd.Name})
	}
	if upd.Description != nil {
		updates = append(updates, firestore.Update{Path: "description", Value: *upd.Description})
	}
	if upd.Image != nil {
		updates = append(updates, firestore.Update{Path: "image", Value: *upd.Image})
	}
	if users := nonEmpty(upd.AddUsers); len(users) > 0 {
		updates = append(updates, firestore.Update{Path: "users", Value: firestore.ArrayUnion(toInterfaces(users)...)})
	}

	if _, err := r.s.projects.Doc(id).Update(ctx, updates); err != nil {
		err = fsError(err, "project", id)
		if !apperr.IsNotFound(err) {
			r.s.logger.Error("Failed to update project document", zap.String("project_id", id), zap.Error(err))
		}
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *projectStore) SetProgress(ctx context.Context, id string, progress int) error {
	defer observe("update", "projects", time.Now())
	_, err := r.s.projects.Doc(id).Update(ctx, []firestore.Update{
		{Path: "progress", Value: progress},
		{Path: "updatedAt", Value: r.s.now()},
	})
	return fsError(err, "project", id)
}

func (r *projectStore) AddTask(ctx context.Context, projectID, taskID string) error {
	defer observe("update", "projects", time.Now())
	_, err := r.s.projects.Doc(projectID).Update(ctx, []firestore.Update{
		{Path: "tasks", Value: firestore.ArrayUnion(taskID)},
		{Path: "updatedAt", Value: r.s.now()},
	})
	return fsError(err, "project", projectID)
}

func (r *projectStore) RemoveTask(ctx context.Context, projectID, taskID string) error {
	defer observe("update", "projects", time.Now())
	_, err := r.s.projects.Doc(projectID).Update(ctx, []firestore.Update{
		{Path: "tasks", Value: firestore.ArrayRemove(taskID)},
		{Path: "updatedAt", Value: r.s.now()},
	})
	return fsError(err, "project", projectID)
}

func (r *projectStore) Delete(ctx context.Context, id string) error {
	defer observe("delete", "projects", time.Now())
	if _, err := r.s.projects.Doc(id).Delete(ctx, firestore.Exists); err != nil {
		return fsError(err, "project", id)
	}
	r.s.logger.Info("Project document deleted", zap.String("project_id", id))
	return nil
}

func nonEmpty(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
