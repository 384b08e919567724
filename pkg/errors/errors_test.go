package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsUploadFailed(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct match", ErrUploadFailed, true},
		{"wrapped once", fmt.Errorf("posting audio: %w", ErrUploadFailed), true},
		{"wrapped twice", fmt.Errorf("session: %w", fmt.Errorf("client: %w", ErrUploadFailed)), true},
		{"different error", ErrValidation, false},
		{"nil error", nil, false},
		{"unrelated error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUploadFailed(tt.err); got != tt.want {
				t.Errorf("IsUploadFailed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct match", ErrNotFound, true},
		{"wrapped", fmt.Errorf("event 3: %w", ErrNotFound), true},
		{"different error", ErrInvalidState, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsValidation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct match", ErrValidation, true},
		{"wrapped", fmt.Errorf("segment 2: %w", ErrValidation), true},
		{"different error", ErrNotFound, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidation(tt.err); got != tt.want {
				t.Errorf("IsValidation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsInvalidState(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"direct match", ErrInvalidState, true},
		{"wrapped", fmt.Errorf("transition: %w", ErrInvalidState), true},
		{"different error", ErrValidation, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInvalidState(tt.err); got != tt.want {
				t.Errorf("IsInvalidState() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	// Ensure all sentinel errors are distinct
	allErrors := []error{
		ErrUploadFailed,
		ErrNotFound,
		ErrValidation,
		ErrInvalidState,
	}

	for i, e1 := range allErrors {
		for j, e2 := range allErrors {
			if i != j && errors.Is(e1, e2) {
				t.Errorf("errors should be distinct: %v and %v", e1, e2)
			}
		}
	}
}
