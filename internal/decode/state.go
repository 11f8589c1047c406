package decode

// WorkerState represents where a worker is in its loop.
type WorkerState string

// Worker states.
const (
	StateWaiting   WorkerState = "waiting"    // Blocked on the work queue
	StateOrderWait WorkerState = "order_wait" // Waiting for the previous frame of the stream
	StateDemux     WorkerState = "demux"      // Fetching the access unit
	StateGateWait  WorkerState = "gate_wait"  // Waiting for the consumer to free the stream
	StateDecode    WorkerState = "decode"     // Decoding
	StatePublish   WorkerState = "publish"    // Advancing the order gate and publishing
	StateStopped   WorkerState = "stopped"    // Terminal
)

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	Workers            int           `json:"workers"`
	Cameras            int           `json:"cameras"`
	QueueDepth         int           `json:"queue_depth"`
	PendingCompletions int           `json:"pending_completions"`
	DecodedTasks       uint64        `json:"decoded_tasks"`
	OrderGates         []int         `json:"order_gates"`
	WorkerStates       []WorkerState `json:"worker_states"`
	Stopped            bool          `json:"stopped"`
	LastError          string        `json:"last_error,omitempty"`
}
