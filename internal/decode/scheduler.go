package decode

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/viewsynth/internal/metrics"
)

// Scheduler runs demux and decode tasks for every stream on a worker pool.
type Scheduler struct {
	opts    Options
	streams int
	logger  *slog.Logger

	queue       *workQueue
	order       *orderGate
	gate        *decodeGate
	completions *completionSet

	statesMu sync.RWMutex
	states   []WorkerState

	decoded atomic.Uint64
	started atomic.Bool
	stopped atomic.Bool

	errMu sync.RWMutex
	err   error

	stopOnce sync.Once
	failOnce sync.Once
	doneOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// New validates the options and creates a scheduler. Workers are not
// started until Start is called.
func New(opts Options) (*Scheduler, error) {
	if opts.Workers < MinWorkers {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewWorkers, opts.Workers)
	}
	if opts.Cameras < 1 {
		return nil, ErrNoCameras
	}
	if opts.Source == nil {
		return nil, ErrNoSource
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	streams := 2 * opts.Cameras
	states := make([]WorkerState, opts.Workers)
	for i := range states {
		states[i] = StateWaiting
	}

	return &Scheduler{
		opts:        opts,
		streams:     streams,
		logger:      logger,
		queue:       newWorkQueue(),
		order:       newOrderGate(streams),
		gate:        newDecodeGate(streams),
		completions: newCompletionSet(),
		states:      states,
		done:        make(chan struct{}),
	}, nil
}

// Start launches the worker goroutines. Calling it again is a no-op.
func (s *Scheduler) Start() {
	if s.stopped.Load() || !s.started.CompareAndSwap(false, true) {
		return
	}

	s.logger.Info("Starting decode pool", "workers", s.opts.Workers, "cameras", s.opts.Cameras)
	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go s.runWorker(i)
	}

	go func() {
		s.wg.Wait()
		s.closeDone()
	}()
}

// SeedInitialFrames enqueues frame 0 of both halves of every camera. A
// camera's tasks are wanted for rendering iff it is in visible.
func (s *Scheduler) SeedInitialFrames(visible map[int]bool) {
	tasks := make([]Task, 0, s.streams)
	for cam := 0; cam < s.opts.Cameras; cam++ {
		wanted := visible[cam]
		tasks = append(tasks,
			Task{Stream: ColorStream(cam), Frame: 0, Wanted: wanted},
			Task{Stream: DepthStream(cam), Frame: 0, Wanted: wanted},
		)
	}
	s.queue.push(tasks...)
	metrics.SetQueueDepth(s.queue.len())
}

// EnqueueNextFrame pushes the color and depth tasks of one camera for frame.
func (s *Scheduler) EnqueueNextFrame(camera, frame int, wanted bool) error {
	if err := s.checkCamera(camera); err != nil {
		return err
	}
	s.queue.push(
		Task{Stream: ColorStream(camera), Frame: frame, Wanted: wanted},
		Task{Stream: DepthStream(camera), Frame: frame, Wanted: wanted},
	)
	metrics.SetQueueDepth(s.queue.len())
	return nil
}

// AwaitAndTakePair blocks until both halves of the camera's oldest
// outstanding frame are decoded, then removes and returns them.
func (s *Scheduler) AwaitAndTakePair(camera int) (FrameHandle, FrameHandle, error) {
	if err := s.checkCamera(camera); err != nil {
		return FrameHandle{}, FrameHandle{}, err
	}

	start := time.Now()
	color, depth, ok := s.completions.takePair(camera)
	if !ok {
		if err := s.Err(); err != nil {
			return FrameHandle{}, FrameHandle{}, err
		}
		return FrameHandle{}, FrameHandle{}, ErrStopped
	}
	metrics.ObserveWait(metrics.GatePair, time.Since(start))
	metrics.SetPendingCompletions(s.completions.len())
	return color, depth, nil
}

// Consume presents a decoded pair and reopens both decode gates. The gates
// are reopened even when Present fails so the streams keep flowing.
func (s *Scheduler) Consume(color, depth FrameHandle) error {
	err := s.opts.Source.Present(color, depth)
	s.gate.release(color.Stream, depth.Stream)
	if err != nil {
		metrics.IncPresentErrors()
		return fmt.Errorf("present camera %d frame %d: %w", CameraOf(color.Stream), color.Frame, err)
	}
	return nil
}

// Shutdown stops every worker and waits for them to exit. Safe to call more
// than once and after a pool failure.
func (s *Scheduler) Shutdown() {
	s.stop()
	s.wg.Wait()
	s.closeDone()
}

// Done is closed once every worker has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Err returns the failure that stopped the pool, if any.
func (s *Scheduler) Err() error {
	s.errMu.RLock()
	defer s.errMu.RUnlock()
	return s.err
}

// Stats returns a snapshot of the scheduler state.
func (s *Scheduler) Stats() Stats {
	s.statesMu.RLock()
	states := make([]WorkerState, len(s.states))
	copy(states, s.states)
	s.statesMu.RUnlock()

	st := Stats{
		Workers:            s.opts.Workers,
		Cameras:            s.opts.Cameras,
		QueueDepth:         s.queue.len(),
		PendingCompletions: s.completions.len(),
		DecodedTasks:       s.decoded.Load(),
		OrderGates:         s.order.snapshot(),
		WorkerStates:       states,
		Stopped:            s.stopped.Load(),
	}
	if err := s.Err(); err != nil {
		st.LastError = err.Error()
	}
	return st
}

// runWorker pulls tasks until the pool stops.
func (s *Scheduler) runWorker(id int) {
	defer s.wg.Done()
	defer s.setState(id, StateStopped)

	var last Task
	hasLast := false
	for {
		s.setState(id, StateWaiting)
		task, ok := s.queue.next(last, hasLast)
		if !ok {
			return
		}
		metrics.SetQueueDepth(s.queue.len())

		if !s.runTask(id, task) {
			return
		}
		last, hasLast = task, true
	}
}

// runTask executes one task. Returns false when the worker must stop.
func (s *Scheduler) runTask(id int, task Task) bool {
	s.setState(id, StateOrderWait)
	start := time.Now()
	if !s.order.wait(task.Stream, task.Frame) {
		return false
	}
	metrics.ObserveWait(metrics.GateOrder, time.Since(start))

	s.setState(id, StateDemux)
	unit, err := s.opts.Source.Fetch(task.Stream)
	if err != nil {
		s.fail(&TaskError{Op: "fetch", Task: task, Err: err})
		return false
	}

	if task.Wanted {
		s.setState(id, StateGateWait)
		start = time.Now()
		if !s.gate.claim(task.Stream) {
			return false
		}
		metrics.ObserveWait(metrics.GateDecode, time.Since(start))
	}
	if s.stopped.Load() {
		return false
	}

	s.setState(id, StateDecode)
	picture := NoPicture
	if len(unit) > 0 {
		picture, err = s.opts.Source.Decode(task.Stream, unit)
		if err != nil {
			s.fail(&TaskError{Op: "decode", Task: task, Err: err})
			return false
		}
	}

	s.setState(id, StatePublish)
	s.order.advance(task.Stream)
	s.decoded.Add(1)
	metrics.IncDecodedTask(StreamKind(task.Stream), task.Wanted)

	if !task.Wanted {
		return true
	}
	if !s.completions.put(FrameHandle{Stream: task.Stream, Frame: task.Frame, Picture: picture}) {
		return false
	}
	metrics.SetPendingCompletions(s.completions.len())
	s.logger.Debug("Frame decoded", "worker", id, "task", task.String(), "picture", picture)
	return true
}

// fail records the first fatal error and stops the pool.
func (s *Scheduler) fail(err error) {
	s.failOnce.Do(func() {
		s.errMu.Lock()
		s.err = err
		s.errMu.Unlock()

		metrics.IncPoolFailures()
		s.logger.Error("Decode pool failed", "error", err)
		if s.opts.OnFailure != nil {
			s.opts.OnFailure(err)
		}
		s.stop()
	})
}

// stop closes every shared primitive, waking all blocked waits.
func (s *Scheduler) stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		s.queue.close()
		s.order.close()
		s.gate.close()
		s.completions.close()
	})
}

// closeDone runs once, whether the pool stopped on Shutdown or on a failure.
func (s *Scheduler) closeDone() {
	s.doneOnce.Do(func() {
		s.logger.Info("Decode pool stopped", "decoded_tasks", s.decoded.Load())
		close(s.done)
	})
}

func (s *Scheduler) checkCamera(camera int) error {
	if camera < 0 || camera >= s.opts.Cameras {
		return fmt.Errorf("decode: camera %d out of range [0, %d)", camera, s.opts.Cameras)
	}
	return nil
}

// setState records a worker transition and notifies OnStateChange.
func (s *Scheduler) setState(id int, state WorkerState) {
	s.statesMu.Lock()
	old := s.states[id]
	s.states[id] = state
	s.statesMu.Unlock()

	if old != state && s.opts.OnStateChange != nil {
		s.opts.OnStateChange(id, old, state)
	}
}
