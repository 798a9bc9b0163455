// Package memory is an in-process document store used by tests and local runs.
// Each method holds the store lock for one document's read-modify-write only,
// which matches the single-document atomicity of the real backends.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"progresshub/internal/apperr"
	"progresshub/internal/membership"
	"progresshub/internal/model"
	"progresshub/internal/repository"
)

type Store struct {
	mu       sync.RWMutex
	projects map[string]*model.Project
	tasks    map[string]*model.Task
	subTasks map[string]*model.SubTask
	seq      map[string]int64
	next     int64
	now      func() time.Time
}

func New() *Store {
	return &Store{
		projects: map[string]*model.Project{},
		tasks:    map[string]*model.Task{},
		subTasks: map[string]*model.SubTask{},
		seq:      map[string]int64{},
		now:      time.Now,
	}
}

func (s *Store) Projects() repository.ProjectStore { return &projectStore{s} }
func (s *Store) Tasks() repository.TaskStore       { return &taskStore{s} }
func (s *Store) SubTasks() repository.SubTaskStore { return &subTaskStore{s} }

func (s *Store) Backend() repository.Backend {
	return repository.Backend{
		Projects: s.Projects(),
		Tasks:    s.Tasks(),
		SubTasks: s.SubTasks(),
		Ping:     func(context.Context) error { return nil },
		Close:    func() {},
	}
}

// stamp records insertion order; callers hold s.mu.
func (s *Store) stamp(id string) {
	s.next++
	s.seq[id] = s.next
}

func (s *Store) less(a, b string) bool {
	if s.seq[a] != s.seq[b] {
		return s.seq[a] < s.seq[b]
	}
	return a < b
}

func cloneProject(p *model.Project) *model.Project {
	c := *p
	c.Tasks = append([]string(nil), p.Tasks...)
	c.Users = append([]string(nil), p.Users...)
	return &c
}

func cloneTask(t *model.Task) *model.Task {
	c := *t
	c.SubTasks = append([]string(nil), t.SubTasks...)
	return &c
}

func cloneSubTask(st *model.SubTask) *model.SubTask {
	c := *st
	return &c
}

type projectStore struct{ s *Store }

func (r *projectStore) Create(_ context.Context, p *model.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.projects[p.ID]; ok {
		return apperr.Conflict("project %q already exists", p.ID)
	}
	now := r.s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.projects[p.ID] = cloneProject(p)
	r.s.stamp(p.ID)
	return nil
}

func (r *projectStore) Get(_ context.Context, id string) (*model.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.projects[id]
	if !ok {
		return nil, apperr.NotFound("project", id)
	}
	return cloneProject(p), nil
}

func (r *projectStore) memberIDs(userID string) []string {
	var ids []string
	for id, p := range r.s.projects {
		if p.HasMember(userID) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return r.s.less(ids[i], ids[j]) })
	return ids
}

func (r *projectStore) ListByMember(_ context.Context, userID string, offset, limit int) ([]model.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ids := r.memberIDs(userID)
	out := []model.Project{}
	for i := offset; i < len(ids) && (limit <= 0 || len(out) < limit); i++ {
		out = append(out, *cloneProject(r.s.projects[ids[i]]))
	}
	return out, nil
}

func (r *projectStore) CountByMember(_ context.Context, userID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.memberIDs(userID)), nil
}

func (r *projectStore) MemberProjectIDs(_ context.Context, userID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.memberIDs(userID), nil
}

func (r *projectStore) Update(_ context.Context, id string, upd repository.ProjectUpdate) (*model.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok {
		return nil, apperr.NotFound("project", id)
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.Image != nil {
		p.Image = *upd.Image
	}
	if len(upd.AddUsers) > 0 {
		p.Users = membership.MergeIDs(p.Users, upd.AddUsers)
	}
	p.UpdatedAt = r.s.now()
	return cloneProject(p), nil
}

func (r *projectStore) SetProgress(_ context.Context, id string, progress int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok {
		return apperr.NotFound("project", id)
	}
	p.Progress = progress
	p.UpdatedAt = r.s.now()
	return nil
}

func (r *projectStore) AddTask(_ context.Context, projectID, taskID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[projectID]
	if !ok {
		return apperr.NotFound("project", projectID)
	}
	p.Tasks = membership.AddID(p.Tasks, taskID)
	return nil
}

func (r *projectStore) RemoveTask(_ context.Context, projectID, taskID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[projectID]
	if !ok {
		return apperr.NotFound("project", projectID)
	}
	p.Tasks = membership.RemoveID(p.Tasks, taskID)
	return nil
}

func (r *projectStore) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.projects[id]; !ok {
		return apperr.NotFound("project", id)
	}
	delete(r.s.projects, id)
	delete(r.s.seq, id)
	return nil
}

type taskStore struct{ s *Store }

func (r *taskStore) Create(_ context.Context, t *model.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tasks[t.ID]; ok {
		return apperr.Conflict("task %q already exists", t.ID)
	}
	now := r.s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	r.s.tasks[t.ID] = cloneTask(t)
	r.s.stamp(t.ID)
	return nil
}

func (r *taskStore) Get(_ context.Context, id string) (*model.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, apperr.NotFound("task", id)
	}
	return cloneTask(t), nil
}

func (r *taskStore) GetMany(_ context.Context, ids []string) ([]model.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		if t, ok := r.s.tasks[id]; ok {
			out = append(out, *cloneTask(t))
		}
	}
	return out, nil
}

func (r *taskStore) filter(match func(*model.Task) bool) []model.Task {
	var ids []string
	for id, t := range r.s.tasks {
		if match(t) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return r.s.less(ids[i], ids[j]) })
	out := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, *cloneTask(r.s.tasks[id]))
	}
	return out
}

func (r *taskStore) ListByProject(_ context.Context, projectID string) ([]model.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.filter(func(t *model.Task) bool { return t.ProjectID == projectID }), nil
}

func (r *taskStore) ListByProjects(_ context.Context, projectIDs []string) ([]model.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.filter(func(t *model.Task) bool { return membership.Contains(projectIDs, t.ProjectID) }), nil
}

func (r *taskStore) Update(_ context.Context, id string, upd repository.TaskUpdate) (*model.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, apperr.NotFound("task", id)
	}
	if upd.Name != nil {
		t.Name = *upd.Name
	}
	if upd.Weight != nil {
		t.Weight = *upd.Weight
	}
	if upd.Progress != nil {
		t.Progress = *upd.Progress
		t.ManualProgress = *upd.Progress
	}
	t.UpdatedAt = r.s.now()
	return cloneTask(t), nil
}

func (r *taskStore) SetProgress(_ context.Context, id string, progress int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return apperr.NotFound("task", id)
	}
	t.Progress = progress
	t.UpdatedAt = r.s.now()
	return nil
}

func (r *taskStore) AddSubTask(_ context.Context, taskID, subTaskID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[taskID]
	if !ok {
		return apperr.NotFound("task", taskID)
	}
	t.SubTasks = membership.AddID(t.SubTasks, subTaskID)
	return nil
}

func (r *taskStore) RemoveSubTask(_ context.Context, taskID, subTaskID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[taskID]
	if !ok {
		return apperr.NotFound("task", taskID)
	}
	t.SubTasks = membership.RemoveID(t.SubTasks, subTaskID)
	return nil
}

func (r *taskStore) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tasks[id]; !ok {
		return apperr.NotFound("task", id)
	}
	delete(r.s.tasks, id)
	delete(r.s.seq, id)
	return nil
}

func (r *taskStore) DeleteByProject(_ context.Context, projectID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, t := range r.s.tasks {
		if t.ProjectID == projectID {
			delete(r.s.tasks, id)
			delete(r.s.seq, id)
			n++
		}
	}
	return n, nil
}

type subTaskStore struct{ s *Store }

func (r *subTaskStore) Create(_ context.Context, st *model.SubTask) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.subTasks[st.ID]; ok {
		return apperr.Conflict("subtask %q already exists", st.ID)
	}
	now := r.s.now()
	st.CreatedAt, st.UpdatedAt = now, now
	r.s.subTasks[st.ID] = cloneSubTask(st)
	r.s.stamp(st.ID)
	return nil
}

func (r *subTaskStore) Get(_ context.Context, id string) (*model.SubTask, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.subTasks[id]
	if !ok {
		return nil, apperr.NotFound("subtask", id)
	}
	return cloneSubTask(st), nil
}

func (r *subTaskStore) GetMany(_ context.Context, ids []string) ([]model.SubTask, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.SubTask, 0, len(ids))
	for _, id := range ids {
		if st, ok := r.s.subTasks[id]; ok {
			out = append(out, *cloneSubTask(st))
		}
	}
	return out, nil
}

func (r *subTaskStore) filter(match func(*model.SubTask) bool) []model.SubTask {
	var ids []string
	for id, st := range r.s.subTasks {
		if match(st) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return r.s.less(ids[i], ids[j]) })
	out := make([]model.SubTask, 0, len(ids))
	for _, id := range ids {
		out = append(out, *cloneSubTask(r.s.subTasks[id]))
	}
	return out
}

func (r *subTaskStore) ListByTask(_ context.Context, taskID string) ([]model.SubTask, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.filter(func(st *model.SubTask) bool { return st.TaskID == taskID }), nil
}

func (r *subTaskStore) ListByProject(_ context.Context, projectID string) ([]model.SubTask, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.filter(func(st *model.SubTask) bool { return st.ProjectID == projectID }), nil
}

func (r *subTaskStore) ListByProjects(_ context.Context, projectIDs []string) ([]model.SubTask, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.filter(func(st *model.SubTask) bool { return membership.Contains(projectIDs, st.ProjectID) }), nil
}

func (r *subTaskStore) Update(_ context.Context, id string, upd repository.SubTaskUpdate) (*model.SubTask, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.subTasks[id]
	if !ok {
		return nil, apperr.NotFound("subtask", id)
	}
	if upd.Name != nil {
		st.Name = *upd.Name
	}
	if upd.Weight != nil {
		st.Weight = *upd.Weight
	}
	if upd.Progress != nil {
		st.Progress = *upd.Progress
	}
	st.UpdatedAt = r.s.now()
	return cloneSubTask(st), nil
}

func (r *subTaskStore) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.subTasks[id]; !ok {
		return apperr.NotFound("subtask", id)
	}
	delete(r.s.subTasks, id)
	delete(r.s.seq, id)
	return nil
}

func (r *subTaskStore) deleteWhere(match func(*model.SubTask) bool) int64 {
	var n int64
	for id, st := range r.s.subTasks {
		if match(st) {
			delete(r.s.subTasks, id)
			delete(r.s.seq, id)
			n++
		}
	}
	return n
}

func (r *subTaskStore) DeleteByTask(_ context.Context, taskID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.deleteWhere(func(st *model.SubTask) bool { return st.TaskID == taskID }), nil
}

func (r *subTaskStore) DeleteByProject(_ context.Context, projectID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.deleteWhere(func(st *model.SubTask) bool { return st.ProjectID == projectID }), nil
}
