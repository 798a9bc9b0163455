package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindMatching(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind Kind
		is   error
	}{
		{"not found", NotFound("task", "t1"), KindNotFound, ErrNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", NotFound("project", "p1")), KindNotFound, ErrNotFound},
		{"invalid", InvalidArgument("weight %d out of range", 0), KindInvalidArgument, ErrInvalidArgument},
		{"conflict", Conflict("duplicate project id"), KindConflict, ErrConflict},
		{"forbidden", Forbidden("not a member"), KindForbidden, ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.kind {
				t.Fatalf("KindOf = %v, want %v", got, tc.kind)
			}
			if !errors.Is(tc.err, tc.is) {
				t.Fatalf("errors.Is(%v, %v) = false", tc.err, tc.is)
			}
		})
	}
}

func TestKindsDoNotCrossMatch(t *testing.T) {
	err := NotFound("subtask", "s1")
	if errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("not found must not match invalid argument")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Fatalf("plain errors have unknown kind")
	}
}

func TestNotFoundMessage(t *testing.T) {
	got := NotFound("task", "abc").Error()
	if got != `task "abc" not found` {
		t.Fatalf("unexpected message %q", got)
	}
}
