package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports a malformed field at ingestion or configuration time.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DuplicateIDError is returned when (platform, id) is already in the corpus.
type DuplicateIDError struct {
	Platform Platform
	ID       string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate review id %q on %s", e.ID, e.Platform)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsDuplicate(err error) bool {
	var de *DuplicateIDError
	return errors.As(err, &de)
}
