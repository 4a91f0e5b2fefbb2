package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// UserIDKey is the context key for the authenticated user id.
	UserIDKey contextKey = "user_id"

	// ComponentKey is the context key for background job names.
	ComponentKey contextKey = "job"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithUserID adds a user id to the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID retrieves the user id from the context.
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// WithJob tags the context with the name of a background job, e.g.
// "compliance_sweep".
func WithJob(ctx context.Context, job string) context.Context {
	return context.WithValue(ctx, ComponentKey, job)
}

// GetJob retrieves the background job name from the context.
func GetJob(ctx context.Context) string {
	if job, ok := ctx.Value(ComponentKey).(string); ok {
		return job
	}
	return ""
}

// contextAttrs returns the request-scoped fields stored in ctx.
func contextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	var attrs []slog.Attr
	if requestID := GetRequestID(ctx); requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}
	if userID := GetUserID(ctx); userID != "" {
		attrs = append(attrs, slog.String("user_id", userID))
	}
	if job := GetJob(ctx); job != "" {
		attrs = append(attrs, slog.String("job", job))
	}
	return attrs
}
