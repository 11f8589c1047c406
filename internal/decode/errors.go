package decode

import (
	"errors"
	"fmt"
)

// MinWorkers is the smallest pool that cannot stall on a self-paired task.
const MinWorkers = 2

var (
	// ErrTooFewWorkers is returned by New when Options.Workers < MinWorkers.
	ErrTooFewWorkers = errors.New("decode: at least 2 workers are required")

	// ErrNoSource is returned by New when Options.Source is nil.
	ErrNoSource = errors.New("decode: source is required")

	// ErrNoCameras is returned by New when Options.Cameras < 1.
	ErrNoCameras = errors.New("decode: at least one camera is required")

	// ErrStopped is returned by blocking calls once the pool has stopped.
	ErrStopped = errors.New("decode: scheduler stopped")

	// ErrPoolFailed wraps the fetch or decode failure that stopped the pool.
	ErrPoolFailed = errors.New("decode: pool failed")
)

// TaskError records which task hit a fatal fetch or decode failure.
type TaskError struct {
	Op   string // "fetch" or "decode"
	Task Task
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrPoolFailed, e.Op, e.Task, e.Err)
}

// Unwrap exposes both the pool failure sentinel and the underlying cause.
func (e *TaskError) Unwrap() []error {
	return []error{ErrPoolFailed, e.Err}
}
