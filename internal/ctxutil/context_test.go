package ctxutil

import (
	"context"
	"testing"
	"time"
)

func TestUserEmailContext(t *testing.T) {
	t.Parallel()

	t.Run("empty context", func(t *testing.T) {
		t.Parallel()
		if email := GetUserEmail(context.Background()); email != "" {
			t.Errorf("Expected empty string, got %s", email)
		}
	})

	t.Run("with email", func(t *testing.T) {
		t.Parallel()
		ctx := WithUserEmail(context.Background(), "chair@cs.example.edu")
		if email := GetUserEmail(ctx); email != "chair@cs.example.edu" {
			t.Errorf("Expected email, got %s", email)
		}
	})
}

func TestRequestIDContext(t *testing.T) {
	t.Parallel()

	if _, ok := GetRequestID(context.Background()); ok {
		t.Error("Expected no request ID on empty context")
	}

	ctx := WithRequestID(context.Background(), "req-123")
	id, ok := GetRequestID(ctx)
	if !ok || id != "req-123" {
		t.Errorf("Expected req-123, got %q (ok=%v)", id, ok)
	}
}

func TestPreserveTracing(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	parent = WithRequestID(WithUserEmail(parent, "admin@cs.example.edu"), "req-9")
	cancel()

	detached := PreserveTracing(parent)
	if detached.Err() != nil {
		t.Error("Expected detached context to ignore parent cancellation")
	}
	if GetUserEmail(detached) != "admin@cs.example.edu" {
		t.Error("Expected email to be preserved")
	}
	if id, _ := GetRequestID(detached); id != "req-9" {
		t.Errorf("Expected request ID to be preserved, got %q", id)
	}
}
