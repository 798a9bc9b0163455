package mq

import (
	"errors"
	"fmt"
	"testing"
)

func TestPermanent(t *testing.T) {
	base := errors.New("bad payload")
	err := fmt.Errorf("handle: %w", Permanent(base))
	if !IsPermanent(err) {
		t.Fatalf("wrapped permanent error not detected")
	}
	if !errors.Is(err, base) {
		t.Fatalf("permanent error must unwrap to its cause")
	}
	if IsPermanent(base) {
		t.Fatalf("plain error reported as permanent")
	}
	if Permanent(nil) != nil {
		t.Fatalf("Permanent(nil) must be nil")
	}
}
