// Package ctxutil provides type-safe context value management.
// Uses private key types to prevent collisions.
package ctxutil

import (
	"context"
)

type contextKey string

const (
	userEmailKey contextKey = "ctxutil.userEmail"
	requestIDKey contextKey = "ctxutil.requestID"
)

// WithUserEmail adds the authenticated user's email to the context.
// Set by the session middleware after the SSO cookie verifies.
func WithUserEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, userEmailKey, email)
}

// GetUserEmail retrieves the user email from the context.
// Returns an empty string for anonymous requests.
func GetUserEmail(ctx context.Context) string {
	if v := ctx.Value(userEmailKey); v != nil {
		if email, ok := v.(string); ok {
			return email
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context for tracing.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
// Returns the request ID and true if found, empty string and false otherwise.
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok
}

// PreserveTracing creates a detached context that keeps tracing values.
// The new context is independent of the parent's cancellation and deadlines,
// for work that must outlive the request (e.g. removing a replaced upload).
func PreserveTracing(ctx context.Context) context.Context {
	newCtx := context.Background()

	if email := GetUserEmail(ctx); email != "" {
		newCtx = WithUserEmail(newCtx, email)
	}
	if requestID, ok := GetRequestID(ctx); ok && requestID != "" {
		newCtx = WithRequestID(newCtx, requestID)
	}

	return newCtx
}
