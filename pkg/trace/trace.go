package trace

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

const HeaderName = "X-Trace-ID"

func GenerateTraceID() string {
	return uuid.NewString()
}

func FromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(ctxKey{}).(string); ok {
		return traceID
	}
	return ""
}

func WithContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, traceID)
}

// FromHeader returns the incoming trace id, or a fresh one when the header is empty.
func FromHeader(headerValue string) string {
	if headerValue != "" {
		return headerValue
	}
	return GenerateTraceID()
}
