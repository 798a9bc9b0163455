package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"progresshub/internal/apperr"
	"progresshub/internal/model"
	"progresshub/internal/repository"
	"progresshub/internal/repository/memory"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// unreachableRedis points at a closed port so every command fails fast.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestProjectCacheFailsOpen(t *testing.T) {
	ctx := context.Background()
	inner := memory.New().Projects()
	c := NewProjectCache(inner, unreachableRedis(t), time.Minute, zap.NewNop())

	if err := c.Create(ctx, &model.Project{ID: "p1", Name: "one", Users: []string{"u1"}}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	p, err := c.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get with redis down: %v", err)
	}
	if p.Name != "one" {
		t.Fatalf("name = %q", p.Name)
	}

	name := "renamed"
	if _, err := c.Update(ctx, "p1", repository.ProjectUpdate{Name: &name}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := c.SetProgress(ctx, "p1", 40); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	if err := c.AddTask(ctx, "p1", "t1"); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	p, _ = c.Get(ctx, "p1")
	if p.Name != "renamed" || p.Progress != 40 || len(p.Tasks) != 1 {
		t.Fatalf("unexpected project %+v", p)
	}

	if err := c.Delete(ctx, "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, "p1"); !apperr.IsNotFound(err) {
		t.Fatalf("Get after delete = %v, want NotFound", err)
	}
}

func TestProjectCacheInnerErrorsPassThrough(t *testing.T) {
	ctx := context.Background()
	c := NewProjectCache(memory.New().Projects(), unreachableRedis(t), 0, zap.NewNop())
	if err := c.SetProgress(ctx, "missing", 10); !apperr.IsNotFound(err) {
		t.Fatalf("SetProgress = %v, want NotFound", err)
	}
	if err := c.Consistent().RemoveTask(ctx, "missing", "t1"); !apperr.IsNotFound(err) {
		t.Fatalf("RemoveTask = %v, want NotFound", err)
	}
}

func TestConsistentViewBypassesReads(t *testing.T) {
	c := NewProjectCache(memory.New().Projects(), unreachableRedis(t), time.Minute, zap.NewNop())
	view := c.Consistent()
	if !view.bypassReads || c.bypassReads {
		t.Fatalf("Consistent should only change the copy")
	}
}

func localRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

// writeDuringLoad runs a write through the cache while the first load is in
// flight, after the inner store has taken its snapshot.
type writeDuringLoad struct {
	repository.ProjectStore
	once  sync.Once
	write func(ctx context.Context)
}

func (w *writeDuringLoad) Get(ctx context.Context, id string) (*model.Project, error) {
	p, err := w.ProjectStore.Get(ctx, id)
	if err == nil && w.write != nil {
		w.once.Do(func() { w.write(ctx) })
	}
	return p, err
}

func TestProjectCacheFillsAndInvalidates(t *testing.T) {
	ctx := context.Background()
	mr, rdb := localRedis(t)
	c := NewProjectCache(memory.New().Projects(), rdb, time.Minute, zap.NewNop())
	if err := c.Create(ctx, &model.Project{ID: "p1", Name: "one", Users: []string{"u1"}}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := c.Get(ctx, "p1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !mr.Exists(key("p1")) {
		t.Fatalf("entry not cached after miss")
	}

	tests := []struct {
		name  string
		write func() error
		check func(p *model.Project) bool
	}{
		{"set progress", func() error { return c.SetProgress(ctx, "p1", 40) }, func(p *model.Project) bool { return p.Progress == 40 }},
		{"add task", func() error { return c.AddTask(ctx, "p1", "t1") }, func(p *model.Project) bool { return len(p.Tasks) == 1 }},
		{"remove task", func() error { return c.RemoveTask(ctx, "p1", "t1") }, func(p *model.Project) bool { return len(p.Tasks) == 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.write(); err != nil {
				t.Fatalf("write: %v", err)
			}
			if mr.Exists(key("p1")) {
				t.Fatalf("entry survived the write")
			}
			p, err := c.Get(ctx, "p1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !tt.check(p) {
				t.Fatalf("stale project %+v", p)
			}
		})
	}
}

func TestProjectCacheDropsFillRacingAWrite(t *testing.T) {
	ctx := context.Background()
	mr, rdb := localRedis(t)
	inner := &writeDuringLoad{ProjectStore: memory.New().Projects()}
	c := NewProjectCache(inner, rdb, time.Minute, zap.NewNop())
	if err := c.Create(ctx, &model.Project{ID: "p1", Name: "one", Users: []string{"u1"}}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	inner.write = func(ctx context.Context) {
		if err := c.SetProgress(ctx, "p1", 80); err != nil {
			t.Errorf("SetProgress: %v", err)
		}
	}

	p, err := c.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Progress != 0 {
		t.Fatalf("first load progress = %d, want the pre-write snapshot", p.Progress)
	}
	if mr.Exists(key("p1")) {
		t.Fatalf("pre-write snapshot was cached")
	}

	p, err = c.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Progress != 80 {
		t.Fatalf("progress = %d, want 80", p.Progress)
	}
}
