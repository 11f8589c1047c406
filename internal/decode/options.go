package decode

import "log/slog"

// Source is the per-stream demuxer and decoder pair the pool drives.
type Source interface {
	// Fetch returns the next compressed access unit of a stream. The source
	// loops back to the start on end of stream. An empty unit is not an error.
	Fetch(stream int) ([]byte, error)

	// Decode feeds an access unit to the stream's decoder and returns the
	// picture index that became available, or NoPicture.
	Decode(stream int, unit []byte) (int, error)

	// Present copies a decoded color and depth pair into the render-ready
	// resources of their camera.
	Present(color, depth FrameHandle) error
}

// StateChangeCallback is called when a worker moves between states.
type StateChangeCallback func(worker int, oldState, newState WorkerState)

// FailureCallback is called once with the error that stopped the pool.
type FailureCallback func(err error)

// Options configures a new Scheduler.
type Options struct {
	// Workers is the pool size. Must be at least MinWorkers.
	Workers int

	// Cameras is the number of color+depth stream pairs.
	Cameras int

	// Source demuxes and decodes every stream (required).
	Source Source

	// OnStateChange is called on worker state transitions (optional).
	OnStateChange StateChangeCallback

	// OnFailure is called when a fetch or decode failure stops the pool (optional).
	OnFailure FailureCallback

	// Logger for scheduler operations. If nil, uses slog.Default().
	Logger *slog.Logger
}
