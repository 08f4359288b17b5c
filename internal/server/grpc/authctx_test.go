package grpcserver

import (
	"context"
	"testing"
)

func TestWithUserID_And_UserIDFromCtx(t *testing.T) {
	t.Parallel()

	if id, ok := UserIDFromCtx(context.Background()); ok || id != "" {
		t.Fatalf("expected no user id in empty ctx")
	}

	ctx := WithUserID(context.Background(), "user-42")
	got, ok := UserIDFromCtx(ctx)
	if !ok {
		t.Fatalf("expected user id in ctx")
	}
	if got != "user-42" {
		t.Fatalf("mismatch: got %s", got)
	}

	if _, ok := UserIDFromCtx(WithUserID(context.Background(), "")); ok {
		t.Fatalf("expected miss on empty id")
	}

	bad := context.WithValue(context.Background(), userIDKey, 42)
	if _, ok := UserIDFromCtx(bad); ok {
		t.Fatalf("expected miss on wrong typed value")
	}
}
