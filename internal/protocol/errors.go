package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCommand   = errors.New("protocol: unknown command")
	ErrInvalidParams    = errors.New("protocol: invalid command parameters")
	ErrEmptyPayload     = errors.New("protocol: empty payload")
	ErrIncompleteRecord = errors.New("protocol: incomplete record")
	ErrInvalidZoneState = errors.New("protocol: invalid zone state")
	ErrValidation       = errors.New("protocol: validation failed")
)

// ValidationError names the field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("protocol: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
