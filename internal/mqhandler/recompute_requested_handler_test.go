package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"progresshub/pkg/mq"
	"progresshub/pkg/trace"

	"go.uber.org/zap"
)

type fakeRecomputer struct {
	tasks, projects []string
	traces          []string
	err             error
}

func (f *fakeRecomputer) RecomputeTask(ctx context.Context, id string) error {
	f.tasks = append(f.tasks, id)
	f.traces = append(f.traces, trace.FromContext(ctx))
	return f.err
}

func (f *fakeRecomputer) RecomputeProject(ctx context.Context, id string) error {
	f.projects = append(f.projects, id)
	return f.err
}

func TestRecomputeRequestedHandlerDispatches(t *testing.T) {
	f := &fakeRecomputer{}
	h := NewRecomputeRequestedHandler(f, zap.NewNop())

	if err := h.Handle(context.Background(), json.RawMessage(`{"entity":"task","id":"t1","trace_id":"abc"}`)); err != nil {
		t.Fatalf("task: %v", err)
	}
	if err := h.Handle(context.Background(), json.RawMessage(`{"entity":"project","id":"p1"}`)); err != nil {
		t.Fatalf("project: %v", err)
	}
	if len(f.tasks) != 1 || f.tasks[0] != "t1" || f.traces[0] != "abc" {
		t.Fatalf("task calls = %v traces = %v", f.tasks, f.traces)
	}
	if len(f.projects) != 1 || f.projects[0] != "p1" {
		t.Fatalf("project calls = %v", f.projects)
	}
}

func TestRecomputeRequestedHandlerErrors(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		storeErr  error
		permanent bool
	}{
		{"malformed json", `{`, nil, true},
		{"missing id", `{"entity":"task"}`, nil, true},
		{"unknown entity", `{"entity":"milestone","id":"m1"}`, nil, true},
		{"store failure", `{"entity":"task","id":"t1"}`, errors.New("db down"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewRecomputeRequestedHandler(&fakeRecomputer{err: tc.storeErr}, zap.NewNop())
			err := h.Handle(context.Background(), json.RawMessage(tc.body))
			if err == nil {
				t.Fatalf("expected error")
			}
			if mq.IsPermanent(err) != tc.permanent {
				t.Fatalf("permanent = %v, want %v (err %v)", mq.IsPermanent(err), tc.permanent, err)
			}
		})
	}
}
