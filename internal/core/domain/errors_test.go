package domain

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestProtocolError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ProtocolError
		expected string
	}{
		{
			name:     "error without cause",
			err:      NewProtocolError(StatusNotFound, "Not found"),
			expected: "[51] Not found",
		},
		{
			name:     "error with cause",
			err:      ErrTemporary.WithCause(fmt.Errorf("disk on fire")),
			expected: "[40] Temporary failure: disk on fire",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestProtocolError_Is(t *testing.T) {
	wrapped := fmt.Errorf("resolve: %w", ErrNotFound.WithCause(fs.ErrNotExist))

	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("errors.Is should match the sentinel through WithCause and %w")
	}
	if !errors.Is(wrapped, fs.ErrNotExist) {
		t.Error("errors.Is should reach the cause")
	}
	if errors.Is(ErrURITooLong, ErrInvalidURI) {
		t.Error("same status with a different message must not match")
	}
}

func TestResponseForError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status Status
		meta   string
	}{
		{"uri too long", ErrURITooLong, StatusBadRequest, "URI too long"},
		{"invalid uri", fmt.Errorf("parse: %w", ErrInvalidURI), StatusBadRequest, "Bad request"},
		{"not found", ErrNotFound.WithCause(fs.ErrPermission), StatusNotFound, "Not found"},
		{"foreign error", errors.New("boom: /etc/secret"), StatusTemporaryFailure, "Temporary failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ResponseForError(tt.err)
			if r.Status != tt.status {
				t.Errorf("Status = %d, want %d", r.Status, tt.status)
			}
			if r.Meta != tt.meta {
				t.Errorf("Meta = %q, want %q", r.Meta, tt.meta)
			}
		})
	}
}
