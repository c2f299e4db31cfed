package ir

import (
	"errors"
	"fmt"
	"strings"
)

// Error is the single structured error type surfaced by the store, the
// transport simulator, the engine and the optimistic controller.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Op names the operation that failed ("updateStage", "reorder").
	Op string

	// Collection, ID and Field locate the offending entity or attribute.
	Collection Collection
	ID         string
	Field      string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes errors.
type ErrorCode string

const (
	// CodeTransport indicates a simulated network failure. The call never
	// reached the store, so no partial state exists. Retryable.
	CodeTransport ErrorCode = "TRANSPORT"

	// CodeNotFound indicates a referenced id does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeValidation indicates malformed input.
	CodeValidation ErrorCode = "VALIDATION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	var loc []string
	if e.Op != "" {
		loc = append(loc, "op="+e.Op)
	}
	if e.Collection != "" {
		loc = append(loc, "collection="+string(e.Collection))
	}
	if e.ID != "" {
		loc = append(loc, "id="+e.ID)
	}
	if e.Field != "" {
		loc = append(loc, "field="+e.Field)
	}
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if len(loc) > 0 {
		msg += " (" + strings.Join(loc, ", ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithOp returns a copy of e tagged with op, keeping any op already set.
func (e *Error) WithOp(op string) *Error {
	out := *e
	if out.Op == "" {
		out.Op = op
	}
	return &out
}

// NewTransportError creates a simulated network failure for op.
func NewTransportError(op string, cause error) *Error {
	return &Error{
		Code:    CodeTransport,
		Message: "simulated network failure",
		Op:      op,
		Err:     cause,
	}
}

// NewNotFoundError creates an error for an id absent from collection.
func NewNotFoundError(collection Collection, id string) *Error {
	return &Error{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s %q not found", collection, id),
		Collection: collection,
		ID:         id,
	}
}

// NewValidationError creates an input error on field.
func NewValidationError(field, message string) *Error {
	return &Error{
		Code:    CodeValidation,
		Message: message,
		Field:   field,
	}
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsTransport reports whether err is a simulated network failure.
func IsTransport(err error) bool { return hasCode(err, CodeTransport) }

// IsNotFound reports whether err is a missing-entity error.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsValidation reports whether err is an input error.
func IsValidation(err error) bool { return hasCode(err, CodeValidation) }

// IsRetryable reports whether retrying the same call may succeed.
// Only transport failures qualify.
func IsRetryable(err error) bool { return IsTransport(err) }

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
