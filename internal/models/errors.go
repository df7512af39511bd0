package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("models: no matching record found")
	ErrStorage     = errors.New("models: photo storage failed")
	ErrPersistence = errors.New("models: persistence failure")
)

// ValidationError reports malformed or missing user input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func NewValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
