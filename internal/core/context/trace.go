// Package context carries the company scope and request correlation ids
// through ledger operations.
package context

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Origins of work that reaches the ledger.
const (
	OriginHTTP     = "http"
	OriginVerifier = "verifier"
	OriginOutbox   = "outbox"
)

// TraceContext correlates the log lines of one request or one background pass.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
	Origin    string
}

type traceContextKey struct{}

// NewTraceContext builds ids for an HTTP request. An incoming request id is kept.
// The trace id comes from span when it is valid, then from incomingTraceID.
func NewTraceContext(requestID string, span trace.SpanContext, incomingTraceID string) *TraceContext {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	tc := &TraceContext{RequestID: requestID, Origin: OriginHTTP}
	switch {
	case span.IsValid():
		tc.TraceID = span.TraceID().String()
		tc.SpanID = span.SpanID().String()
	case incomingTraceID != "":
		tc.TraceID = incomingTraceID
	default:
		tc.TraceID = uuid.NewString()
	}
	return tc
}

// NewJobTrace builds ids for one pass of a background job.
func NewJobTrace(origin string) *TraceContext {
	runID := uuid.NewString()
	return &TraceContext{TraceID: runID, RequestID: origin + "-" + runID[:8], Origin: origin}
}

func WithTrace(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}

func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetTraceID prefers the active span over the stored trace id.
func GetTraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	if t := GetTrace(ctx); t != nil {
		return t.TraceID
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

func GetOrigin(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.Origin
	}
	return ""
}
