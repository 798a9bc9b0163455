package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GCS keeps images in a Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

func NewGCS(ctx context.Context, bucket, credentialsFile string, logger *zap.Logger) (*GCS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	logger.Info("GCS blob store initialized", zap.String("bucket", bucket))
	return &GCS{client: client, bucket: bucket, logger: logger}, nil
}

func (g *GCS) Put(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	ref := NewRef(filename)
	w := g.client.Bucket(g.bucket).Object(ref).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("upload image: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize image upload: %w", err)
	}
	g.logger.Info("Image stored", zap.String("bucket", g.bucket), zap.String("ref", ref))
	return ref, nil
}

func (g *GCS) Delete(ctx context.Context, ref string) error {
	err := g.client.Bucket(g.bucket).Object(ref).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete image %s: %w", ref, err)
	}
	g.logger.Info("Image released", zap.String("bucket", g.bucket), zap.String("ref", ref))
	return nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}
