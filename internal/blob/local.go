package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Local keeps images as files in one directory, served under /assets.
type Local struct {
	dir    string
	logger *zap.Logger
}

func NewLocal(dir string, logger *zap.Logger) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	return &Local{dir: dir, logger: logger}, nil
}

func (l *Local) Dir() string { return l.dir }

func (l *Local) Put(ctx context.Context, filename, _ string, r io.Reader) (string, error) {
	ref := NewRef(filename)
	tmp, err := os.CreateTemp(l.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(l.dir, ref)); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	l.logger.Info("Image stored", zap.String("ref", ref))
	return ref, nil
}

func (l *Local) Delete(_ context.Context, ref string) error {
	if ref == "" || ref != filepath.Base(ref) {
		return fmt.Errorf("invalid image reference %q", ref)
	}
	err := os.Remove(filepath.Join(l.dir, ref))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete image %s: %w", ref, err)
	}
	l.logger.Info("Image released", zap.String("ref", ref))
	return nil
}
