package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		checkFn  func(error) bool
		expected bool
	}{
		{
			name:     "ErrNotFound is recognized",
			err:      ErrNotFound,
			checkFn:  IsNotFound,
			expected: true,
		},
		{
			name:     "Wrapped ErrNotFound is recognized",
			err:      fmt.Errorf("get course: %w", ErrNotFound),
			checkFn:  IsNotFound,
			expected: true,
		},
		{
			name:     "Different error is not ErrNotFound",
			err:      ErrConflict,
			checkFn:  IsNotFound,
			expected: false,
		},
		{
			name:     "ErrConflict is recognized",
			err:      errors.Join(ErrConflict, errors.New("slug cps310-01")),
			checkFn:  IsConflict,
			expected: true,
		},
		{
			name:     "ErrInvalidInput is recognized",
			err:      ErrInvalidInput,
			checkFn:  IsInvalidInput,
			expected: true,
		},
		{
			name:     "ValidationError counts as invalid input",
			err:      NewValidationError("code", "required"),
			checkFn:  IsInvalidInput,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.checkFn(tt.err)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("email", "invalid format")

	if err.Field != "email" {
		t.Errorf("expected field 'email', got '%s'", err.Field)
	}
	if err.Error() != "validation failed on email: invalid format" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	var target *ValidationError
	if !errors.As(fmt.Errorf("wrap: %w", err), &target) {
		t.Error("expected errors.As to find ValidationError")
	}
}
