// Package blob stores project images outside the document store.
package blob

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store puts and releases image objects. Put returns the reference that is
// saved on the project; Delete of an unknown reference is not an error.
type Store interface {
	Put(ctx context.Context, filename, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

// NewRef returns a fresh object name that keeps the upload's extension.
func NewRef(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return uuid.NewString() + ext
}

// URLBuilder renders public image URLs: <base>/assets/<ref>.
type URLBuilder struct {
	Base string
}

func (b URLBuilder) URL(ref string) string {
	if ref == "" {
		return ""
	}
	return strings.TrimRight(b.Base, "/") + "/assets/" + ref
}
