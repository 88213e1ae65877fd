// Package trace carries request correlation ids through a context and onto outbound
// request headers.
package trace

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	nethttp "net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	traceParentKey contextKey = "traceparent"

	// HeaderXRequestID is the default header used to propagate request ids
	HeaderXRequestID = "X-Request-ID"
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = "traceparent"
)

// WithRequestID stores a request id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id stored in ctx, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// EnsureRequestID returns the id stored in ctx or a new random one.
func EnsureRequestID(ctx context.Context) string {
	if id, ok := RequestIDFromContext(ctx); ok {
		return id
	}
	return uuid.NewString()
}

// WithTraceParent stores a W3C traceparent value in ctx.
func WithTraceParent(ctx context.Context, traceParent string) context.Context {
	return context.WithValue(ctx, traceParentKey, traceParent)
}

// TraceParentFromContext returns the traceparent stored in ctx, if any.
func TraceParentFromContext(ctx context.Context) (string, bool) {
	if tp, ok := ctx.Value(traceParentKey).(string); ok && tp != "" {
		return tp, true
	}
	return "", false
}

// Inject writes the request id (under idHeader, default X-Request-ID) and any traceparent
// found in ctx into h. Values already present in h are left alone.
func Inject(ctx context.Context, h nethttp.Header, idHeader string) {
	if idHeader == "" {
		idHeader = HeaderXRequestID
	}
	if h.Get(idHeader) == "" {
		h.Set(idHeader, EnsureRequestID(ctx))
	}
	if tp, ok := TraceParentFromContext(ctx); ok && h.Get(HeaderTraceParent) == "" {
		h.Set(HeaderTraceParent, tp)
	}
}

// NewTraceParent creates a version 00 traceparent with random ids and the sampled flag.
func NewTraceParent() string {
	traceID := make([]byte, 16)
	spanID := make([]byte, 8)
	_, _ = crand.Read(traceID)
	_, _ = crand.Read(spanID)
	// all-zero ids are invalid per W3C
	traceID[len(traceID)-1] |= 0x01
	spanID[len(spanID)-1] |= 0x01
	return "00-" + hex.EncodeToString(traceID) + "-" + hex.EncodeToString(spanID) + "-01"
}
