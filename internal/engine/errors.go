package engine

import (
	"errors"

	"github.com/roach88/hrsync/internal/ir"
)

// ErrStopped is returned for mutations submitted after the engine stopped.
var ErrStopped = errors.New("engine stopped")

// tagOp stamps op onto a structured error so callers can tell which call
// failed. Other errors pass through unchanged.
func tagOp(op string, err error) error {
	if e, ok := err.(*ir.Error); ok && e.Op == "" {
		return e.WithOp(op)
	}
	return err
}

func notFound(op string, collection ir.Collection, id string) error {
	return ir.NewNotFoundError(collection, id).WithOp(op)
}

func invalid(op string, collection ir.Collection, field, msg string) error {
	e := ir.NewValidationError(field, msg)
	e.Op = op
	e.Collection = collection
	return e
}
