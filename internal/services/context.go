package services

import "context"

type contextKey string

const (
	jobKeyKey    contextKey = "job_key"
	requestIDKey contextKey = "request_id"
)

// WithJobKey annotates context with the download job key.
func WithJobKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, jobKeyKey, key)
}

// JobKeyFromContext extracts the download job key if present.
func JobKeyFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(jobKeyKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
