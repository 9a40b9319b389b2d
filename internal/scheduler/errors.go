package scheduler

import "errors"

var (
	// ErrNotFound is returned when no schedule has the requested ID.
	ErrNotFound = errors.New("scheduler: schedule not found")

	// ErrValidation wraps field-level validation failures. Validation
	// failures never mutate the collection.
	ErrValidation = errors.New("scheduler: validation failed")
)
