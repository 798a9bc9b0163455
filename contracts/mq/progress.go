package mq

import "time"

const (
	RoutingKeyTaskProgressUpdated    = "progress.task.updated"
	RoutingKeyProjectProgressUpdated = "progress.project.updated"
	RoutingKeyRecomputeRequested     = "progress.recompute.requested"
)

const (
	EntityTask    = "task"
	EntityProject = "project"
)

// ProgressUpdatedPayload is published after a recompute persisted a new value.
type ProgressUpdatedPayload struct {
	Entity    string    `json:"entity"` // task / project
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Progress  int       `json:"progress"`
	Previous  int       `json:"previous"`
	TraceID   string    `json:"trace_id,omitempty"`
	At        time.Time `json:"at"`
}

// RecomputeRequestedPayload asks the service to re-derive a stored progress
// value, e.g. after a crash left it stale.
type RecomputeRequestedPayload struct {
	Entity  string `json:"entity"` // task / project
	ID      string `json:"id"`
	TraceID string `json:"trace_id,omitempty"`
}
