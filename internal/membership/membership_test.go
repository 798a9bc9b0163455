package membership_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"progresshub/internal/apperr"
	"progresshub/internal/membership"
	"progresshub/internal/model"
	"progresshub/internal/repository/memory"

	"go.uber.org/zap"
)

func TestLinkAndUnlink(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	if err := mem.Projects().Create(ctx, &model.Project{ID: "p1"}); err != nil {
		t.Fatal(err)
	}
	if err := mem.Tasks().Create(ctx, &model.Task{ID: "t1", ProjectID: "p1", Weight: 1}); err != nil {
		t.Fatal(err)
	}
	m := membership.NewMaintainer(mem.Projects(), mem.Tasks(), zap.NewNop())

	for i := 0; i < 2; i++ {
		if err := m.LinkTask(ctx, "p1", "t1"); err != nil {
			t.Fatalf("LinkTask: %v", err)
		}
		if err := m.LinkSubTask(ctx, "t1", "s1"); err != nil {
			t.Fatalf("LinkSubTask: %v", err)
		}
	}
	p, _ := mem.Projects().Get(ctx, "p1")
	task, _ := mem.Tasks().Get(ctx, "t1")
	if !reflect.DeepEqual(p.Tasks, []string{"t1"}) || !reflect.DeepEqual(task.SubTasks, []string{"s1"}) {
		t.Fatalf("links not idempotent: project=%v task=%v", p.Tasks, task.SubTasks)
	}

	if err := m.UnlinkSubTask(ctx, "t1", "s1"); err != nil {
		t.Fatalf("UnlinkSubTask: %v", err)
	}
	if err := m.UnlinkTask(ctx, "p1", "t1"); err != nil {
		t.Fatalf("UnlinkTask: %v", err)
	}
	p, _ = mem.Projects().Get(ctx, "p1")
	task, _ = mem.Tasks().Get(ctx, "t1")
	if len(p.Tasks) != 0 || len(task.SubTasks) != 0 {
		t.Fatalf("unlink left references: project=%v task=%v", p.Tasks, task.SubTasks)
	}
}

func TestMissingParent(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	m := membership.NewMaintainer(mem.Projects(), mem.Tasks(), zap.NewNop())

	if err := m.LinkTask(ctx, "gone", "t1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("LinkTask on missing project: %v", err)
	}
	if err := m.LinkSubTask(ctx, "gone", "s1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("LinkSubTask on missing task: %v", err)
	}
	if err := m.UnlinkTask(ctx, "gone", "t1"); err != nil {
		t.Fatalf("UnlinkTask on missing project: %v", err)
	}
	if err := m.UnlinkSubTask(ctx, "gone", "s1"); err != nil {
		t.Fatalf("UnlinkSubTask on missing task: %v", err)
	}
}
