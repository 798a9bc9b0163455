package memory

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"progresshub/internal/apperr"
	"progresshub/internal/model"
	"progresshub/internal/repository"
)

func TestProjectAddTaskIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	projects := s.Projects()
	if err := projects.Create(ctx, &model.Project{ID: "p1", Users: []string{"u1"}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := projects.AddTask(ctx, "p1", "t1"); err != nil {
			t.Fatalf("add task: %v", err)
		}
	}
	if err := projects.RemoveTask(ctx, "p1", "missing"); err != nil {
		t.Fatalf("remove absent task: %v", err)
	}
	p, err := projects.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(p.Tasks, []string{"t1"}) {
		t.Fatalf("tasks = %v, want [t1]", p.Tasks)
	}
	if err := projects.AddTask(ctx, "nope", "t1"); !apperr.IsNotFound(err) {
		t.Fatalf("add to missing project: got %v, want not found", err)
	}
}

func TestListByMemberKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	projects := s.Projects()
	for i := 0; i < 5; i++ {
		users := []string{"u1"}
		if i%2 == 1 {
			users = []string{"u2"}
		}
		if err := projects.Create(ctx, &model.Project{ID: fmt.Sprintf("p%d", i), Users: users}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	got, err := projects.ListByMember(ctx, "u1", 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	if !reflect.DeepEqual(ids, []string{"p2", "p4"}) {
		t.Fatalf("ids = %v, want [p2 p4]", ids)
	}
	n, _ := projects.CountByMember(ctx, "u1")
	if n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
}

func TestReturnedDocumentsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	tasks := s.Tasks()
	if err := tasks.Create(ctx, &model.Task{ID: "t1", ProjectID: "p1", Weight: 1}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := tasks.AddSubTask(ctx, "t1", "s1"); err != nil {
		t.Fatalf("add subtask: %v", err)
	}
	got, _ := tasks.Get(ctx, "t1")
	got.SubTasks[0] = "mutated"
	got.Progress = 99
	again, _ := tasks.Get(ctx, "t1")
	if again.SubTasks[0] != "s1" || again.Progress != 0 {
		t.Fatalf("stored task was mutated through a returned copy: %+v", again)
	}
}

func TestSubTaskDeleteByReference(t *testing.T) {
	ctx := context.Background()
	s := New()
	subs := s.SubTasks()
	for i, ref := range []struct{ task, project string }{{"t1", "p1"}, {"t1", "p1"}, {"t2", "p1"}, {"t3", "p2"}} {
		st := &model.SubTask{ID: fmt.Sprintf("s%d", i), TaskID: ref.task, ProjectID: ref.project}
		if err := subs.Create(ctx, st); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	n, err := subs.DeleteByTask(ctx, "t1")
	if err != nil || n != 2 {
		t.Fatalf("DeleteByTask = %d, %v; want 2", n, err)
	}
	n, err = subs.DeleteByProject(ctx, "p1")
	if err != nil || n != 1 {
		t.Fatalf("DeleteByProject = %d, %v; want 1", n, err)
	}
	left, _ := subs.ListByProjects(ctx, []string{"p1", "p2"})
	if len(left) != 1 || left[0].ID != "s3" {
		t.Fatalf("unexpected remaining subtasks %+v", left)
	}
}

func TestUpdateMergesUsers(t *testing.T) {
	ctx := context.Background()
	s := New()
	projects := s.Projects()
	_ = projects.Create(ctx, &model.Project{ID: "p1", Users: []string{"A"}})
	p, err := projects.Update(ctx, "p1", repository.ProjectUpdate{AddUsers: []string{"A", "B"}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !reflect.DeepEqual(p.Users, []string{"A", "B"}) {
		t.Fatalf("users = %v, want [A B]", p.Users)
	}
}
