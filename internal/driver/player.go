// Package driver runs the render loop: it asks the visibility oracle which
// cameras contribute to each frame, keeps the decode pool one frame ahead,
// presents decoded pairs into textures and hands them to a Renderer.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/viewsynth/internal/decode"
	"github.com/smazurov/viewsynth/internal/events"
	"github.com/smazurov/viewsynth/internal/fps"
	"github.com/smazurov/viewsynth/internal/media"
	"github.com/smazurov/viewsynth/internal/metrics"
)

// VideoFPS is the rate at which input video advances.
const VideoFPS = 30

// DefaultTargetFPS is used when Options.TargetFPS is zero.
const DefaultTargetFPS = 90

var (
	ErrInvalidTargetFPS = errors.New("driver: target fps must be a positive multiple of 30")
	ErrNoCameras        = errors.New("driver: at least one camera is required")
	ErrMissingPipeline  = errors.New("driver: decode pipeline is required")
	ErrMissingTextures  = errors.New("driver: texture source is required")
	ErrMissingOracle    = errors.New("driver: visibility oracle is required")
	ErrMissingRenderer  = errors.New("driver: renderer is required")
	ErrAlreadyRunning   = errors.New("driver: player already running")
)

// Pipeline is the part of the decode scheduler the player drives.
type Pipeline interface {
	SeedInitialFrames(visible map[int]bool)
	EnqueueNextFrame(camera, frame int, wanted bool) error
	AwaitAndTakePair(camera int) (color, depth decode.FrameHandle, err error)
	Consume(color, depth decode.FrameHandle) error
	Shutdown()
}

// TextureSource exposes the render-ready textures of each camera.
type TextureSource interface {
	Textures(camera int) (color, depth *media.Texture)
}

// Oracle picks the cameras used for the next frame.
type Oracle interface {
	Wanted() map[int]bool
}

// Options configures a Player.
type Options struct {
	Cameras  int
	Pipeline Pipeline
	Textures TextureSource
	Oracle   Oracle
	Renderer Renderer

	// TargetFPS is the render rate. Each video frame is rendered
	// TargetFPS/30 times. Ignored when ASAP is set.
	TargetFPS int

	// ASAP renders every video frame once, as fast as decoding allows.
	ASAP bool

	// Static renders the primed textures repeatedly without decoding.
	Static bool

	// Frames stops playback after this many video frames (renders in static
	// mode). Zero plays until the context is cancelled.
	Frames int

	// StartingFrame offsets the reported video frame numbers.
	StartingFrame int

	// Monitor records frame times. If nil, one is created.
	Monitor *fps.Monitor

	// Bus receives playback and frame events. Optional.
	Bus *events.Bus

	// Logger for playback. If nil, uses slog.Default().
	Logger *slog.Logger
}

// Status is a snapshot of playback progress.
type Status struct {
	State          string  `json:"state" example:"playing" doc:"idle, playing, stopped or failed"`
	Frame          int     `json:"frame" example:"120" doc:"Last rendered video frame"`
	VideoFrames    int     `json:"video_frames" doc:"Video frames advanced"`
	Renders        int     `json:"renders" doc:"Render passes, including repeats"`
	Cameras        []int   `json:"cameras" doc:"Cameras used for the last frame"`
	AverageFrameMs float64 `json:"average_frame_ms" doc:"Mean milliseconds per render"`
}

// Player owns the render loop.
type Player struct {
	opts    Options
	logger  *slog.Logger
	running atomic.Bool

	mu     sync.RWMutex
	status Status
}

// New validates options and creates a player.
func New(opts Options) (*Player, error) {
	if opts.Cameras < 1 {
		return nil, ErrNoCameras
	}
	if opts.Pipeline == nil && !opts.Static {
		return nil, ErrMissingPipeline
	}
	if opts.Textures == nil {
		return nil, ErrMissingTextures
	}
	if opts.Oracle == nil {
		return nil, ErrMissingOracle
	}
	if opts.Renderer == nil {
		return nil, ErrMissingRenderer
	}
	if opts.TargetFPS == 0 {
		opts.TargetFPS = DefaultTargetFPS
	}
	if !opts.ASAP && (opts.TargetFPS < VideoFPS || opts.TargetFPS%VideoFPS != 0) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTargetFPS, opts.TargetFPS)
	}
	if opts.Monitor == nil {
		opts.Monitor = fps.NewMonitor(opts.Static)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Player{
		opts:   opts,
		logger: opts.Logger,
		status: Status{State: "idle", Frame: -1},
	}, nil
}

// Monitor returns the frame time monitor.
func (p *Player) Monitor() *fps.Monitor {
	return p.opts.Monitor
}

func (p *Player) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.status
	s.Cameras = slices.Clone(s.Cameras)
	s.AverageFrameMs = p.opts.Monitor.Average()
	return s
}

// Run plays until ctx is cancelled, Frames is reached or the decode pool
// fails. Cancelling ctx shuts the pipeline down to release blocked waits.
func (p *Player) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)

	var err error
	if p.opts.Static {
		err = p.runStatic(ctx)
	} else {
		err = p.runVideo(ctx)
	}

	frame := p.Status().Frame
	if err != nil {
		p.logger.Error("Playback failed", "frame", frame, "error", err)
		p.setState(events.PlaybackFailed, frame)
		return err
	}
	p.logger.Info("Playback stopped", "frame", frame, "renders", p.opts.Monitor.Len())
	p.setState(events.PlaybackStopped, frame)
	return nil
}

func (p *Player) runVideo(ctx context.Context) error {
	pipeline := p.opts.Pipeline
	stop := context.AfterFunc(ctx, pipeline.Shutdown)
	defer stop()

	current := p.opts.Oracle.Wanted()
	pipeline.SeedInitialFrames(current)
	metrics.SetWantedCameras(countWanted(current))

	p.logger.Info("Playback started",
		"cameras", p.opts.Cameras,
		"target_fps", p.opts.TargetFPS,
		"asap", p.opts.ASAP,
		"starting_frame", p.opts.StartingFrame)
	p.setState(events.PlaybackPlaying, p.opts.StartingFrame)

	pacer := newPacer(p.opts.TargetFPS, p.opts.ASAP)
	repeats := 0
	if !p.opts.ASAP {
		repeats = p.opts.TargetFPS/VideoFPS - 1
	}

	for frame := 0; p.opts.Frames == 0 || frame < p.opts.Frames; frame++ {
		if ctx.Err() != nil {
			return nil
		}
		start := time.Now()
		videoFrame := p.opts.StartingFrame + frame

		next := p.opts.Oracle.Wanted()
		var used []int
		for cam := 0; cam < p.opts.Cameras; cam++ {
			if err := pipeline.EnqueueNextFrame(cam, frame+1, next[cam]); err != nil {
				return p.pipelineErr(ctx, frame, err)
			}
			if !current[cam] {
				continue
			}
			color, depth, err := pipeline.AwaitAndTakePair(cam)
			if err != nil {
				return p.pipelineErr(ctx, frame, err)
			}
			if err := pipeline.Consume(color, depth); err != nil {
				p.logger.Warn("Failed to present frame", "camera", cam, "frame", color.Frame, "error", err)
				continue
			}
			used = append(used, cam)
		}

		if err := p.render(used, videoFrame); err != nil {
			return err
		}
		ms := msSince(start)
		p.opts.Monitor.AddTime(ms, videoFrame)
		p.frameDone(videoFrame, frame+1, used, ms)

		if !pacer.wait(ctx) {
			return nil
		}
		for range repeats {
			start := time.Now()
			if err := p.render(used, videoFrame); err != nil {
				return err
			}
			p.opts.Monitor.AddTime(msSince(start), videoFrame)
			p.countRender()
			if !pacer.wait(ctx) {
				return nil
			}
		}

		current = next
		metrics.SetWantedCameras(countWanted(current))
	}
	return nil
}

func (p *Player) runStatic(ctx context.Context) error {
	p.logger.Info("Static playback started", "cameras", p.opts.Cameras, "target_fps", p.opts.TargetFPS)
	p.setState(events.PlaybackPlaying, 0)

	pacer := newPacer(p.opts.TargetFPS, p.opts.ASAP)
	for n := 0; p.opts.Frames == 0 || n < p.opts.Frames; n++ {
		if ctx.Err() != nil {
			return nil
		}
		start := time.Now()

		wanted := p.opts.Oracle.Wanted()
		used := make([]int, 0, len(wanted))
		for cam := 0; cam < p.opts.Cameras; cam++ {
			if wanted[cam] {
				used = append(used, cam)
			}
		}
		metrics.SetWantedCameras(len(used))

		if err := p.render(used, n); err != nil {
			return err
		}
		ms := msSince(start)
		p.opts.Monitor.AddTime(ms, n)
		p.frameDone(n, n+1, used, ms)

		if !pacer.wait(ctx) {
			return nil
		}
	}
	return nil
}

func (p *Player) render(cameras []int, frame int) error {
	for _, cam := range cameras {
		color, depth := p.opts.Textures.Textures(cam)
		if err := p.opts.Renderer.RenderCamera(cam, color, depth); err != nil {
			return fmt.Errorf("render camera %d frame %d: %w", cam, frame, err)
		}
	}
	if err := p.opts.Renderer.EndFrame(frame); err != nil {
		return fmt.Errorf("end frame %d: %w", frame, err)
	}
	return nil
}

// pipelineErr maps a pipeline error to the Run result. A pool stopped by
// ctx cancellation is a clean exit.
func (p *Player) pipelineErr(ctx context.Context, frame int, err error) error {
	if ctx.Err() != nil && errors.Is(err, decode.ErrStopped) {
		return nil
	}
	return fmt.Errorf("frame %d: %w", frame, err)
}

func (p *Player) frameDone(videoFrame, advanced int, used []int, ms float64) {
	p.mu.Lock()
	p.status.Frame = videoFrame
	p.status.VideoFrames = advanced
	p.status.Renders++
	p.status.Cameras = used
	p.mu.Unlock()

	if p.opts.Bus != nil {
		p.opts.Bus.Publish(events.FrameRenderedEvent{
			Frame:       videoFrame,
			Cameras:     slices.Clone(used),
			FrameTimeMs: ms,
			Timestamp:   time.Now().Format(time.RFC3339),
		})
	}
}

func (p *Player) countRender() {
	p.mu.Lock()
	p.status.Renders++
	p.mu.Unlock()
}

func (p *Player) setState(state string, frame int) {
	p.mu.Lock()
	p.status.State = state
	p.mu.Unlock()

	if p.opts.Bus != nil {
		p.opts.Bus.Publish(events.PlaybackStateEvent{
			State:     state,
			Frame:     frame,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}

func countWanted(wanted map[int]bool) int {
	n := 0
	for _, ok := range wanted {
		if ok {
			n++
		}
	}
	return n
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}

// pacer spaces renders at a fixed interval. It never sleeps in ASAP mode
// and drops the backlog instead of bursting when rendering falls behind.
type pacer struct {
	interval time.Duration
	next     time.Time
	asap     bool
}

func newPacer(targetFPS int, asap bool) *pacer {
	p := &pacer{asap: asap, next: time.Now()}
	if targetFPS > 0 {
		p.interval = time.Second / time.Duration(targetFPS)
	}
	return p
}

// wait blocks until the next render slot. It returns false if ctx ends first.
func (p *pacer) wait(ctx context.Context) bool {
	if p.asap || p.interval == 0 {
		return ctx.Err() == nil
	}
	p.next = p.next.Add(p.interval)
	now := time.Now()
	if d := p.next.Sub(now); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
		}
	} else if -d > p.interval {
		p.next = now
	}
	return ctx.Err() == nil
}
