// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services and handlers read them. Keeping the
// package free of net/http lets services import only what they need.
//
// Usage in services (read values):
//
//	caller := requestcontext.Caller(ctx)
//	requestID := requestcontext.RequestID(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithCaller(ctx, "farmer-1")
package requestcontext

import (
	"context"

	"agritrust/pkg/domain"
)

type (
	callerKey    struct{}
	requestIDKey struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyCaller    = callerKey{}
	ContextKeyRequestID = requestIDKey{}
)

// Caller retrieves the authenticated caller principal from the context.
// Returns the zero principal if not set.
func Caller(ctx context.Context) domain.Principal {
	if p, ok := ctx.Value(ContextKeyCaller).(domain.Principal); ok {
		return p
	}
	return ""
}

// WithCaller injects a caller principal into the context.
func WithCaller(ctx context.Context, caller domain.Principal) context.Context {
	return context.WithValue(ctx, ContextKeyCaller, caller)
}

// RequestID retrieves the request correlation ID from the context.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a request correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}
