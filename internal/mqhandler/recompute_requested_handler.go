package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	mqcontracts "progresshub/contracts/mq"
	"progresshub/pkg/mq"
	"progresshub/pkg/trace"

	"go.uber.org/zap"
)

// Recomputer is implemented by *progress.Engine.
type Recomputer interface {
	RecomputeTask(ctx context.Context, taskID string) error
	RecomputeProject(ctx context.Context, projectID string) error
}

// RecomputeRequestedHandler re-derives a stored progress value on request,
// for example after an operator repaired data by hand.
type RecomputeRequestedHandler struct {
	engine Recomputer
	logger *zap.Logger
}

func NewRecomputeRequestedHandler(engine Recomputer, logger *zap.Logger) *RecomputeRequestedHandler {
	return &RecomputeRequestedHandler{engine: engine, logger: logger}
}

// Handle rejects malformed payloads permanently so the consumer dead-letters
// them; store errors are returned as is and the message is requeued.
func (h *RecomputeRequestedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.RecomputeRequestedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal RecomputeRequestedPayload", zap.Error(err))
		return mq.Permanent(err)
	}
	if p.ID == "" {
		return mq.Permanent(fmt.Errorf("recompute request without id"))
	}
	if p.TraceID != "" {
		ctx = trace.WithContext(ctx, p.TraceID)
	}

	h.logger.Info("Handling progress.recompute.requested event",
		zap.String("entity", p.Entity),
		zap.String("id", p.ID),
		zap.String("trace_id", p.TraceID),
	)

	var err error
	switch p.Entity {
	case mqcontracts.EntityTask:
		err = h.engine.RecomputeTask(ctx, p.ID)
	case mqcontracts.EntityProject:
		err = h.engine.RecomputeProject(ctx, p.ID)
	default:
		return mq.Permanent(fmt.Errorf("unknown entity %q", p.Entity))
	}
	if err != nil {
		h.logger.Error("Recompute failed",
			zap.String("entity", p.Entity),
			zap.String("id", p.ID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
