// Package firestore stores projects, tasks and subtasks as documents in three
// top-level collections. Reference sets are array fields updated with
// ArrayUnion and ArrayRemove, so each link change is a single-document write.
package firestore

import (
	"context"
	"fmt"
	"time"

	"progresshub/internal/apperr"
	"progresshub/internal/repository"
	"progresshub/pkg/config"
	"progresshub/pkg/metrics"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	deleteBatchSize = 400
	// Firestore caps the number of values in an "in" filter.
	inFilterLimit = 30
)

type Store struct {
	client   *firestore.Client
	projects *firestore.CollectionRef
	tasks    *firestore.CollectionRef
	subTasks *firestore.CollectionRef
	logger   *zap.Logger
	now      func() time.Time
}

func New(ctx context.Context, cfg config.FirestoreConfig, logger *zap.Logger) (*Store, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	logger.Info("Firestore client initialized",
		zap.String("project_id", cfg.ProjectID),
		zap.String("collection_prefix", cfg.CollectionPrefix),
	)
	return NewWithClient(client, cfg.CollectionPrefix, logger), nil
}

func NewWithClient(client *firestore.Client, prefix string, logger *zap.Logger) *Store {
	return &Store{
		client:   client,
		projects: client.Collection(prefix + "projects"),
		tasks:    client.Collection(prefix + "tasks"),
		subTasks: client.Collection(prefix + "subtasks"),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Backend() repository.Backend {
	return repository.Backend{
		Projects: &projectStore{s},
		Tasks:    &taskStore{s},
		SubTasks: &subTaskStore{s},
		Ping:     s.Ping,
		Close:    func() { _ = s.client.Close() },
	}
}

// Ping reads at most one project document.
func (s *Store) Ping(ctx context.Context) error {
	iter := s.projects.Limit(1).Documents(ctx)
	defer iter.Stop()
	_, err := iter.Next()
	if err == iterator.Done {
		return nil
	}
	return err
}

// fsError translates gRPC status codes into apperr kinds.
func fsError(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return apperr.NotFound(entity, id)
	case codes.AlreadyExists:
		return &apperr.Error{Kind: apperr.KindConflict, Entity: entity, ID: id, Msg: fmt.Sprintf("%s %q already exists", entity, id), Err: err}
	}
	return err
}

func observe(operation, collection string, start time.Time) {
	metrics.RecordDBQueryDuration(operation, collection, time.Since(start))
}

func toInterfaces(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// collect drains a query iterator.
func collect(iter *firestore.DocumentIterator) ([]*firestore.DocumentSnapshot, error) {
	defer iter.Stop()
	var docs []*firestore.DocumentSnapshot
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
}

// chunks splits ids for "in" filters.
func chunks(ids []string) [][]string {
	var out [][]string
	for len(ids) > inFilterLimit {
		out = append(out, ids[:inFilterLimit])
		ids = ids[inFilterLimit:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

// deleteWhere removes every document matched by q in batches.
func (s *Store) deleteWhere(ctx context.Context, q firestore.Query) (int64, error) {
	var total int64
	for {
		docs, err := collect(q.Limit(deleteBatchSize).Documents(ctx))
		if err != nil {
			return total, fmt.Errorf("iterator error: %w", err)
		}
		if len(docs) == 0 {
			return total, nil
		}

		batch := s.client.Batch()
		for _, doc := range docs {
			batch.Delete(doc.Ref)
		}
		if _, err := batch.Commit(ctx); err != nil {
			return total, fmt.Errorf("batch commit error: %w", err)
		}
		total += int64(len(docs))

		if len(docs) < deleteBatchSize {
			return total, nil
		}
	}
}

// createdBefore orders documents by creation time, then id.
func createdBefore(a time.Time, aID string, b time.Time, bID string) bool {
	if !a.Equal(b) {
		return a.Before(b)
	}
	return aID < bID
}
