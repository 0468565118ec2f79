package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for row rejection. The text doubles as the skip reason
// surfaced in batch summaries.
var (
	ErrMissingField         = errors.New("missing core field")
	ErrUnparseableTimestamp = errors.New("unparseable timestamp")
	ErrInvalidCaller        = errors.New("invalid caller")
	ErrInvalidCallee        = errors.New("invalid callee")
)

// RecordError wraps a sentinel with the offending field and value.
type RecordError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *RecordError) Unwrap() error { return e.Wrapped }

// NewRecordError creates a RecordError.
func NewRecordError(field, value string, wrapped error) *RecordError {
	return &RecordError{Field: field, Value: value, Wrapped: wrapped}
}
