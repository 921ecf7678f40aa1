package config

import "errors"

var (
	// ErrMissingSocketPath is returned when the socket path is empty.
	ErrMissingSocketPath = errors.New("socket path is required")

	// ErrMissingScheduler is returned when no scheduler name is set.
	ErrMissingScheduler = errors.New("scheduler name is required")
)
