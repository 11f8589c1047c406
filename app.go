package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/smazurov/viewsynth/internal/api"
	"github.com/smazurov/viewsynth/internal/config"
	"github.com/smazurov/viewsynth/internal/decode"
	"github.com/smazurov/viewsynth/internal/driver"
	"github.com/smazurov/viewsynth/internal/events"
	"github.com/smazurov/viewsynth/internal/logging"
	"github.com/smazurov/viewsynth/internal/media"
	"github.com/smazurov/viewsynth/internal/metrics/exporters"
	"github.com/smazurov/viewsynth/internal/visibility"
)

// app holds the running pipeline: streams, decode pool, playback and API.
type app struct {
	opts   *Options
	logger *slog.Logger

	bus       *events.Bus
	set       *media.Set
	oracle    *visibility.Oracle
	follower  *driver.ViewportFollower
	watcher   *config.Watcher[visibility.Vec3]
	scheduler *decode.Scheduler
	player    *driver.Player
	server    *api.Server
}

func newApp(opts *Options) (*app, error) {
	a := &app{
		opts:   opts,
		logger: logging.GetLogger("main"),
		bus:    events.New(),
	}

	scene, err := config.LoadScene(opts.SceneFile)
	if err != nil {
		return nil, err
	}
	specs, err := scene.CameraSpecs()
	if err != nil {
		return nil, err
	}

	a.set, err = media.OpenSet(specs, media.SetOptions{
		Surfaces: opts.DecodeSurfaces,
		Logger:   logging.GetLogger("media"),
	})
	if err != nil {
		return nil, err
	}

	if err := a.build(scene); err != nil {
		_ = a.set.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(scene *config.Scene) error {
	opts := a.opts

	a.logger.Info("Priming streams", "cameras", a.set.Cameras(), "starting_frame", opts.PlaybackStartingFrame)
	if err := a.set.Prime(opts.PlaybackStartingFrame); err != nil {
		return err
	}

	oracle, err := visibility.New(scene.Positions(), scene.InputLimit(), logging.GetLogger("visibility"))
	if err != nil {
		return err
	}
	a.oracle = oracle
	a.follower = driver.NewViewportFollower(oracle, a.bus, logging.GetLogger("driver"))

	if opts.ViewportFile != "" {
		a.watcher = config.NewWatcher(opts.ViewportFile, config.LoadViewport, logging.GetLogger("config"),
			config.WithErrorHandler[visibility.Vec3](func(err error) {
				a.logger.Warn("Failed to reload viewport", "file", opts.ViewportFile, "error", err)
			}))
		a.watcher.OnReload(func(pos visibility.Vec3) {
			a.bus.Publish(events.ViewportChangedEvent{
				X: pos.X, Y: pos.Y, Z: pos.Z,
				Source:    "file",
				Timestamp: now(),
			})
		})
	}

	playerOpts := driver.Options{
		Cameras:       a.set.Cameras(),
		Textures:      a.set,
		Oracle:        oracle,
		Renderer:      driver.NewLogRenderer(logging.GetLogger("render")),
		TargetFPS:     opts.PlaybackTargetFps,
		ASAP:          opts.PlaybackAsap,
		Static:        opts.PlaybackStatic,
		Frames:        opts.PlaybackFrames,
		StartingFrame: opts.PlaybackStartingFrame,
		Bus:           a.bus,
		Logger:        logging.GetLogger("driver"),
	}

	if !opts.PlaybackStatic {
		a.scheduler, err = decode.New(decode.Options{
			Workers:       opts.DecodeWorkers,
			Cameras:       a.set.Cameras(),
			Source:        a.set,
			OnStateChange: a.publishWorkerState,
			OnFailure:     a.publishFailure,
			Logger:        logging.GetLogger("decode"),
		})
		if err != nil {
			return err
		}
		playerOpts.Pipeline = a.scheduler
	}

	a.player, err = driver.New(playerOpts)
	if err != nil {
		return err
	}

	apiOpts := &api.Options{
		AuthUsername: opts.AuthUsername,
		AuthPassword: opts.AuthPassword,
		CORSOrigins:  api.ParseOrigins(opts.CorsOrigins),
		Streams:      a.set,
		Playback:     a.player,
		Viewport:     oracle,
		ViewportFile: opts.ViewportFile,
		SaveViewport: config.SaveViewport,
		EventBus:     a.bus,
	}
	if a.scheduler != nil {
		apiOpts.Scheduler = a.scheduler
	}
	if opts.MetricsPrometheusEnabled {
		apiOpts.PrometheusHandler = exporters.HTTPHandler()
	}
	a.server = api.NewServer(apiOpts)
	return nil
}

// run plays until ctx is cancelled, or until playback ends when
// PlaybackExitOnFinish is set, then tears everything down.
func (a *app) run(ctx context.Context) error {
	defer a.shutdown()

	a.follower.Start()
	if a.watcher != nil {
		if err := a.watcher.Load(); err != nil {
			a.logger.Warn("No viewport loaded, using scene origin", "file", a.opts.ViewportFile, "error", err)
		}
		if err := a.watcher.Start(); err != nil {
			a.logger.Warn("Failed to watch viewport file", "file", a.opts.ViewportFile, "error", err)
		}
	}
	if a.scheduler != nil {
		a.scheduler.Start()
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Start(a.opts.Port)
	}()

	playCtx, stopPlayback := context.WithCancel(ctx)
	defer stopPlayback()
	playDone := make(chan error, 1)
	go func() {
		playDone <- a.player.Run(playCtx)
	}()

	for {
		select {
		case <-ctx.Done():
			stopPlayback()
			return <-playDone

		case err := <-playDone:
			if err != nil {
				a.logger.Error("Playback stopped", "error", err)
			} else {
				a.logger.Info("Playback finished", "status", a.player.Status())
			}
			if a.opts.PlaybackExitOnFinish {
				return err
			}
			playDone = nil

		case err := <-serverErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				stopPlayback()
				if playDone != nil {
					<-playDone
				}
				return fmt.Errorf("api server: %w", err)
			}
			serverErr = nil
		}
	}
}

func (a *app) shutdown() {
	if err := a.server.Stop(); err != nil {
		a.logger.Error("Error stopping API server", "error", err)
	}
	if a.scheduler != nil {
		a.scheduler.Shutdown()
	}
	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Warn("Error stopping viewport watcher", "error", err)
		}
	}
	a.follower.Stop()

	if path := a.opts.PlaybackFpsOutput; path != "" {
		monitor := a.player.Monitor()
		if err := monitor.WriteFile(path); err != nil {
			a.logger.Error("Failed to write frame times", "file", path, "error", err)
		} else {
			a.logger.Info("Frame times written", "file", path, "samples", monitor.Len(), "average_ms", monitor.Average())
		}
	}

	if err := a.set.Close(); err != nil {
		a.logger.Warn("Error closing streams", "error", err)
	}
}

func (a *app) publishWorkerState(worker int, from, to decode.WorkerState) {
	a.bus.Publish(events.WorkerStateChangedEvent{
		Worker:    worker,
		From:      string(from),
		To:        string(to),
		Timestamp: now(),
	})
}

func (a *app) publishFailure(err error) {
	event := events.PoolFailedEvent{Error: err.Error(), Stream: -1, Frame: -1, Timestamp: now()}
	var taskErr *decode.TaskError
	if errors.As(err, &taskErr) {
		event.Op = taskErr.Op
		event.Stream = taskErr.Task.Stream
		event.Frame = taskErr.Task.Frame
	}
	a.bus.Publish(event)
}

func now() string {
	return time.Now().Format(time.RFC3339)
}
