// Package cache keeps recently read project documents in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"progresshub/internal/model"
	"progresshub/internal/repository"
	"progresshub/pkg/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix     = "progresshub:project:"
	versionPrefix = "progresshub:project:ver:"
)

var errStaleFill = errors.New("project changed while loading")

// ProjectCache is a read-through cache in front of a ProjectStore. Every
// write goes to the inner store first and then bumps the entry's version and
// drops it. A miss only fills the entry if the version it saw before loading
// is still current. Redis failures never fail a call; the inner store
// answers instead.
type ProjectCache struct {
	repository.ProjectStore
	rdb         *redis.Client
	ttl         time.Duration
	logger      *zap.Logger
	bypassReads bool
}

func NewProjectCache(inner repository.ProjectStore, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *ProjectCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProjectCache{
		ProjectStore: inner,
		rdb:          rdb,
		ttl:          ttl,
		logger:       logger,
	}
}

// Consistent returns a view that reads from the inner store but still
// invalidates on writes. Recomputes use it so they never see a stale task set.
func (c *ProjectCache) Consistent() *ProjectCache {
	cp := *c
	cp.bypassReads = true
	return &cp
}

func key(id string) string        { return keyPrefix + id }
func versionKey(id string) string { return versionPrefix + id }

func (c *ProjectCache) Get(ctx context.Context, id string) (*model.Project, error) {
	if c.bypassReads {
		return c.ProjectStore.Get(ctx, id)
	}

	data, err := c.rdb.Get(ctx, key(id)).Bytes()
	switch {
	case err == nil:
		var p model.Project
		if jsonErr := json.Unmarshal(data, &p); jsonErr == nil {
			metrics.IncrementCacheLookup("hit")
			return &p, nil
		}
		metrics.IncrementCacheLookup("error")
		c.logger.Warn("Dropping undecodable cache entry", zap.String("project_id", id))
	case errors.Is(err, redis.Nil):
		metrics.IncrementCacheLookup("miss")
	default:
		metrics.IncrementCacheLookup("error")
		c.logger.Warn("Cache read failed, using store", zap.String("project_id", id), zap.Error(err))
		return c.ProjectStore.Get(ctx, id)
	}

	version, err := c.version(ctx, c.rdb, id)
	if err != nil {
		c.logger.Debug("Cache version read failed", zap.String("project_id", id), zap.Error(err))
		return c.ProjectStore.Get(ctx, id)
	}
	p, err := c.ProjectStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, p, version)
	return p, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (c *ProjectCache) version(ctx context.Context, cmd getter, id string) (int64, error) {
	v, err := cmd.Get(ctx, versionKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// store fills the entry unless a write bumped the version after it was read.
func (c *ProjectCache) store(ctx context.Context, p *model.Project, version int64) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := c.version(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if current != version {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(p.ID), data, c.ttl)
			return nil
		})
		return err
	}, versionKey(p.ID))
	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug("Cache fill dropped, project changed", zap.String("project_id", p.ID))
	default:
		c.logger.Debug("Cache write failed", zap.String("project_id", p.ID), zap.Error(err))
	}
}

func (c *ProjectCache) invalidate(ctx context.Context, id string) {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(id))
		// outlives any fill that could have read the old version
		pipe.Expire(ctx, versionKey(id), 2*c.ttl)
		pipe.Del(ctx, key(id))
		return nil
	})
	if err != nil {
		c.logger.Warn("Cache invalidation failed", zap.String("project_id", id), zap.Error(err))
	}
}

func (c *ProjectCache) Update(ctx context.Context, id string, upd repository.ProjectUpdate) (*model.Project, error) {
	p, err := c.ProjectStore.Update(ctx, id, upd)
	c.invalidate(ctx, id)
	return p, err
}

func (c *ProjectCache) SetProgress(ctx context.Context, id string, progress int) error {
	err := c.ProjectStore.SetProgress(ctx, id, progress)
	c.invalidate(ctx, id)
	return err
}

func (c *ProjectCache) AddTask(ctx context.Context, projectID, taskID string) error {
	err := c.ProjectStore.AddTask(ctx, projectID, taskID)
	c.invalidate(ctx, projectID)
	return err
}

func (c *ProjectCache) RemoveTask(ctx context.Context, projectID, taskID string) error {
	err := c.ProjectStore.RemoveTask(ctx, projectID, taskID)
	c.invalidate(ctx, projectID)
	return err
}

func (c *ProjectCache) Delete(ctx context.Context, id string) error {
	err := c.ProjectStore.Delete(ctx, id)
	c.invalidate(ctx, id)
	return err
}
