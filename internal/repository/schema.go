package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"progresshub/internal/apperr"
	"progresshub/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Reference sets are TEXT[] columns on the parent row so that adding or
// removing a child is a single-row update. There are no foreign keys; the
// services order cascades themselves.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    tasks       TEXT[] NOT NULL DEFAULT '{}',
    users       TEXT[] NOT NULL DEFAULT '{}',
    progress    INT NOT NULL DEFAULT 0,
    image       TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS projects_users_idx ON projects USING GIN (users);
CREATE INDEX IF NOT EXISTS projects_created_idx ON projects (created_at, id);

CREATE TABLE IF NOT EXISTS tasks (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    project_id  TEXT NOT NULL,
    sub_tasks   TEXT[] NOT NULL DEFAULT '{}',
    progress    INT NOT NULL DEFAULT 0,
    manual_progress INT NOT NULL DEFAULT 0,
    weight      INT NOT NULL DEFAULT 1,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE tasks ADD COLUMN IF NOT EXISTS manual_progress INT NOT NULL DEFAULT 0;
CREATE INDEX IF NOT EXISTS tasks_project_idx ON tasks (project_id);

CREATE TABLE IF NOT EXISTS subtasks (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    task_id     TEXT NOT NULL,
    project_id  TEXT NOT NULL,
    progress    INT NOT NULL DEFAULT 0,
    weight      INT NOT NULL DEFAULT 1,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS subtasks_task_idx ON subtasks (task_id);
CREATE INDEX IF NOT EXISTS subtasks_project_idx ON subtasks (project_id);
`

// EnsureSchema creates the tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool, logger *zap.Logger) error {
	logger.Info("Ensuring database schema")
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		logger.Error("Failed to apply schema", zap.Error(err))
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// NewPostgresBackend wires the three pgx repositories over one pool.
func NewPostgresBackend(db *pgxpool.Pool, logger *zap.Logger) Backend {
	return Backend{
		Projects: NewProjectRepository(db, logger),
		Tasks:    NewTaskRepository(db, logger),
		SubTasks: NewSubTaskRepository(db, logger),
		Ping:     db.Ping,
		Close:    db.Close,
	}
}

// pgError translates driver errors into apperr kinds.
func pgError(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(entity, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &apperr.Error{Kind: apperr.KindConflict, Entity: entity, ID: id, Msg: fmt.Sprintf("%s %q already exists", entity, id), Err: err}
	}
	return err
}

func observe(operation, table string, start time.Time) {
	metrics.RecordDBQueryDuration(operation, table, time.Since(start))
}

// limitArg maps a non-positive limit to NULL, which Postgres reads as LIMIT ALL.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
