// Package apperr holds the error taxonomy shared by the calculators, the
// record store and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("conflicting state")
)

// ValidationError reports missing or malformed input. Operations that return
// it have not produced any output or side effect.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// BackendError wraps a failure from the record store.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func Backend(op string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsBackend(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
