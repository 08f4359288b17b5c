package grpcserver

import (
	"context"
)

type ctxKey string

const (
	userIDKey   ctxKey = "cv.userID"
	callInfoKey ctxKey = "cv.call"
)

// callInfo collects per-call facts for the logging interceptor.
type callInfo struct {
	userID string
}

// WithUserID stores the authenticated user ID in context.
func WithUserID(ctx context.Context, id string) context.Context {
	if call, ok := ctx.Value(callInfoKey).(*callInfo); ok {
		call.userID = id
	}
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromCtx fetches the user ID from context.
func UserIDFromCtx(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
