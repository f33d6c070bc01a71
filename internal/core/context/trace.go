package context

import (
	"context"

	"github.com/google/uuid"
)

// TraceContext correlates the log lines of one request or change event.
// The middleware fills TraceID and SpanID from the otel span.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceContextKey struct{}

func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns nil when ctx carries no trace.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// NewTraceContext starts a trace for work that did not come from a
// request, such as a watcher check.
func NewTraceContext() *TraceContext {
	return &TraceContext{
		TraceID:   uuid.NewString(),
		SpanID:    uuid.NewString()[:16],
		RequestID: uuid.NewString(),
	}
}

// Detach returns a context that keeps the trace and user values of ctx
// but is not cancelled with it. Background work spawned by a request or a
// change event uses it so log lines stay correlated.
func Detach(ctx context.Context) context.Context {
	out := context.WithoutCancel(ctx)
	if GetTrace(out) == nil {
		out = WithTrace(out, NewTraceContext())
	}
	return out
}
