package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when a periodic job is misconfigured
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrTaskPanicked wraps a recovered panic from a task run
	ErrTaskPanicked = errors.New("scheduled task panicked")
)
