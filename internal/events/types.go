package events

// Event type constants for kelindar/event.
const (
	TypeWorkerStateChanged uint32 = iota + 1
	TypePoolFailed
	TypeFrameRendered
	TypeViewportChanged
	TypePlaybackState
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// WorkerStateChangedEvent is published when a decode worker changes state.
type WorkerStateChangedEvent struct {
	Worker    int    `json:"worker" example:"0" doc:"Worker index"`
	From      string `json:"from" example:"waiting" doc:"Previous worker state"`
	To        string `json:"to" example:"decode" doc:"New worker state"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for WorkerStateChangedEvent.
func (e WorkerStateChangedEvent) Type() uint32 { return TypeWorkerStateChanged }

// PoolFailedEvent is published once when a fetch or decode failure stops the pool.
type PoolFailedEvent struct {
	Op        string `json:"op,omitempty" example:"fetch" doc:"Failed operation"`
	Stream    int    `json:"stream" example:"1" doc:"Stream index of the failed task"`
	Frame     int    `json:"frame" example:"3" doc:"Frame number of the failed task"`
	Error     string `json:"error" doc:"Failure description"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PoolFailedEvent.
func (e PoolFailedEvent) Type() uint32 { return TypePoolFailed }

// FrameRenderedEvent is published after every new video frame is rendered.
type FrameRenderedEvent struct {
	Frame       int     `json:"frame" example:"120" doc:"Video frame number"`
	Cameras     []int   `json:"cameras" doc:"Input cameras used for the frame"`
	FrameTimeMs float64 `json:"frame_time_ms" example:"33.3" doc:"Milliseconds spent on the frame"`
	Timestamp   string  `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FrameRenderedEvent.
func (e FrameRenderedEvent) Type() uint32 { return TypeFrameRendered }

// ViewportChangedEvent is published when the output camera moves.
type ViewportChangedEvent struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Source    string  `json:"source" example:"file" doc:"What moved the viewport: file or api"`
	Timestamp string  `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ViewportChangedEvent.
func (e ViewportChangedEvent) Type() uint32 { return TypeViewportChanged }

// Playback states.
const (
	PlaybackPriming = "priming"
	PlaybackPlaying = "playing"
	PlaybackStopped = "stopped"
	PlaybackFailed  = "failed"
)

// PlaybackStateEvent reports driver lifecycle transitions.
type PlaybackStateEvent struct {
	State     string `json:"state" example:"playing" doc:"priming, playing, stopped or failed"`
	Frame     int    `json:"frame" example:"0" doc:"Video frame at the transition"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PlaybackStateEvent.
func (e PlaybackStateEvent) Type() uint32 { return TypePlaybackState }
