// Package domain holds the shared model types and error taxonomy of esmap.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProperty signals a reference to a property the entity does not declare.
	ErrUnknownProperty = errors.New("unknown property")
	// ErrInvalidQueryMethod signals a method name that cannot be parsed into a query.
	ErrInvalidQueryMethod = errors.New("invalid query method")
	// ErrUnsupportedOperator signals an operator with no compiler or emitter mapping.
	ErrUnsupportedOperator = errors.New("unsupported operator")
	// ErrConversion signals a failed document/entity conversion.
	ErrConversion = errors.New("conversion failed")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrIndexNotFound signals a missing index.
	ErrIndexNotFound = errors.New("index not found")
	// ErrIndexExists signals a duplicate index.
	ErrIndexExists = errors.New("index already exists")
	// ErrUnknownAlias signals a persisted type alias with no registered subtype.
	ErrUnknownAlias = errors.New("unknown type alias")
	// ErrVersionConflict signals a write rejected by optimistic concurrency control.
	ErrVersionConflict = errors.New("version conflict")
	// ErrScrollExpired signals a scroll cursor that is gone or timed out.
	ErrScrollExpired = errors.New("scroll expired")
)

// ConversionError wraps ErrConversion with the source value and target type
// for diagnostics.
type ConversionError struct {
	Value  any
	Target string
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s: cannot convert %v (%T) to %s: %s",
		ErrConversion.Error(), e.Value, e.Value, e.Target, e.Reason)
}

func (e *ConversionError) Unwrap() error { return ErrConversion }

// NewConversionError creates a conversion error for a value/target pair.
func NewConversionError(value any, target, reason string) error {
	return &ConversionError{Value: value, Target: target, Reason: reason}
}
