package domain

import (
	"errors"
	"fmt"
)

// ProtocolError is a per-request failure that maps onto a response status.
//
// Message is the meta sent to the client; Cause is kept for server-side
// diagnostics only and never serialized.
type ProtocolError struct {
	Status  Status
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Status, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Status, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *ProtocolError) Unwrap() error {
	return e.Cause
}

// Is matches another ProtocolError with the same status and message, so
// sentinels survive WithCause.
func (e *ProtocolError) Is(target error) bool {
	t, ok := target.(*ProtocolError)
	if !ok {
		return false
	}
	return e.Status == t.Status && e.Message == t.Message
}

// NewProtocolError creates a new ProtocolError.
func NewProtocolError(status Status, message string) *ProtocolError {
	return &ProtocolError{Status: status, Message: message}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *ProtocolError) WithCause(cause error) *ProtocolError {
	return &ProtocolError{
		Status:  e.Status,
		Message: e.Message,
		Cause:   cause,
	}
}

// Response converts the error into the response sent on the wire.
func (e *ProtocolError) Response() *Response {
	return Respond(e.Status, e.Message, nil)
}

var (
	// ErrURITooLong is returned when the request line exceeds the configured cap.
	ErrURITooLong = NewProtocolError(StatusBadRequest, "URI too long")

	// ErrInvalidURI is returned when the request line is not a usable URI.
	ErrInvalidURI = NewProtocolError(StatusBadRequest, "Bad request")

	// ErrNotFound is returned when neither a route nor a static file matches.
	ErrNotFound = NewProtocolError(StatusNotFound, "Not found")

	// ErrTemporary is returned for genuine I/O faults and handler failures.
	ErrTemporary = NewProtocolError(StatusTemporaryFailure, "Temporary failure")

	// ErrProxyRefused is returned for requests naming a foreign scheme.
	ErrProxyRefused = NewProtocolError(StatusProxyRequestRefused, "Proxy request refused")
)

// ResponseForError maps any error onto a response. Errors that are not
// ProtocolErrors become a temporary failure so internals never leak.
func ResponseForError(err error) *Response {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Response()
	}
	return ErrTemporary.Response()
}
