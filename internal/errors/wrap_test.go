package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorWrapper(t *testing.T) {
	wrapper := NewWrapper("course", "create_course")

	t.Run("Wrap returns nil for nil error", func(t *testing.T) {
		if result := wrapper.Wrap(nil, "Could not save course"); result != nil {
			t.Errorf("expected nil, got %v", result)
		}
	})

	t.Run("Wrap creates WrappedError", func(t *testing.T) {
		baseErr := errors.New("database is locked")
		wrapped := wrapper.Wrap(baseErr, "Could not save course")

		var wrappedErr *WrappedError
		if !errors.As(wrapped, &wrappedErr) {
			t.Fatal("expected WrappedError type")
		}
		if wrappedErr.Module != "course" || wrappedErr.Operation != "create_course" {
			t.Errorf("unexpected context: %s/%s", wrappedErr.Module, wrappedErr.Operation)
		}
		if !errors.Is(wrapped, baseErr) {
			t.Error("wrapped error should unwrap to base error")
		}
	})

	t.Run("Wrapf formats message", func(t *testing.T) {
		wrapped := wrapper.Wrapf(ErrNotFound, "No course %q", "cps310-01")
		if got := GetUserMessage(wrapped, ""); got != `No course "cps310-01"` {
			t.Errorf("unexpected user message: %s", got)
		}
		if !IsNotFound(wrapped) {
			t.Error("sentinel should survive wrapping")
		}
	})
}

func TestGetUserMessage(t *testing.T) {
	if got := GetUserMessage(errors.New("raw"), "Internal server error"); got != "Internal server error" {
		t.Errorf("expected fallback, got %q", got)
	}
	if got := GetUserMessage(nil, "fallback"); got != "fallback" {
		t.Errorf("expected fallback for nil, got %q", got)
	}

	inner := NewWrapper("event", "get_event").Wrap(ErrNotFound, "Event not found")
	outer := fmt.Errorf("handler: %w", inner)
	if got := GetUserMessage(outer, "fallback"); got != "Event not found" {
		t.Errorf("expected nested message, got %q", got)
	}
}
