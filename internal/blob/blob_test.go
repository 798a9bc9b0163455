package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestURLBuilder(t *testing.T) {
	cases := []struct {
		base, ref, want string
	}{
		{"http://localhost:3000", "a.png", "http://localhost:3000/assets/a.png"},
		{"http://localhost:3000/", "a.png", "http://localhost:3000/assets/a.png"},
		{"http://localhost:3000", "", ""},
	}
	for _, tc := range cases {
		if got := (URLBuilder{Base: tc.base}).URL(tc.ref); got != tc.want {
			t.Errorf("URL(%q, %q) = %q, want %q", tc.base, tc.ref, got, tc.want)
		}
	}
}

func TestNewRefKeepsExtension(t *testing.T) {
	if ref := NewRef("photo.PNG"); !strings.HasSuffix(ref, ".png") {
		t.Fatalf("ref %q lost extension", ref)
	}
	if ref := NewRef("noext"); strings.Contains(ref, ".") {
		t.Fatalf("ref %q has unexpected extension", ref)
	}
	if NewRef("a.png") == NewRef("a.png") {
		t.Fatalf("refs are not unique")
	}
}

func TestLocalPutAndDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewLocal(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	ref, err := store.Put(ctx, "cover.jpg", "image/jpeg", strings.NewReader("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, ref))
	if err != nil {
		t.Fatalf("read stored image: %v", err)
	}
	if string(data) != "jpeg-bytes" {
		t.Fatalf("stored %q", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the stored image in dir, got %d entries", len(entries))
	}

	if err := store.Delete(ctx, ref); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ref)); !os.IsNotExist(err) {
		t.Fatalf("image still present: %v", err)
	}
	if err := store.Delete(ctx, ref); err != nil {
		t.Fatalf("second Delete should be a no-op, got %v", err)
	}
}

func TestLocalDeleteRejectsPaths(t *testing.T) {
	store, err := NewLocal(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if err := store.Delete(context.Background(), "../etc/passwd"); err == nil {
		t.Fatalf("expected error for path traversal")
	}
}
