package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/viewsynth/cmd"
	"github.com/smazurov/viewsynth/internal/config"
	"github.com/smazurov/viewsynth/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port        string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CorsOrigins string `help:"Comma separated allowed CORS origins (empty allows all)" default:"" toml:"server.cors_origins" env:"SERVER_CORS_ORIGINS"`

	// Scene settings
	SceneFile    string `help:"Scene definition file" default:"scene.toml" toml:"scene.file" env:"SCENE_FILE"`
	ViewportFile string `help:"Output camera position file, watched for changes" default:"viewport.toml" toml:"scene.viewport_file" env:"SCENE_VIEWPORT_FILE"`

	// Decode settings
	DecodeWorkers  int `help:"Decode pool size (at least 2)" default:"3" toml:"decode.workers" env:"DECODE_WORKERS"`
	DecodeSurfaces int `help:"Decoded picture ring size per stream" default:"4" toml:"decode.surfaces" env:"DECODE_SURFACES"`

	// Playback settings
	PlaybackTargetFps     int    `help:"Render rate, a multiple of 30" default:"90" toml:"playback.target_fps" env:"PLAYBACK_TARGET_FPS"`
	PlaybackAsap          bool   `help:"Render every video frame once as fast as decoding allows" default:"false" toml:"playback.asap" env:"PLAYBACK_ASAP"`
	PlaybackStatic        bool   `help:"Render the starting frame repeatedly without decoding" default:"false" toml:"playback.static" env:"PLAYBACK_STATIC"`
	PlaybackFrames        int    `help:"Stop after this many video frames (0 plays forever)" default:"0" toml:"playback.frames" env:"PLAYBACK_FRAMES"`
	PlaybackStartingFrame int    `help:"First video frame to show" default:"0" toml:"playback.starting_frame" env:"PLAYBACK_STARTING_FRAME"`
	PlaybackExitOnFinish  bool   `help:"Exit once playback ends instead of keeping the API up" default:"true" toml:"playback.exit_on_finish" env:"PLAYBACK_EXIT_ON_FINISH"`
	PlaybackFpsOutput     string `help:"Write per-frame timings to this CSV file on exit" default:"" toml:"playback.fps_output" env:"PLAYBACK_FPS_OUTPUT"`

	// Metrics settings
	MetricsPrometheusEnabled bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.prometheus_enabled" env:"METRICS_PROMETHEUS_ENABLED"`

	// Auth settings
	AuthUsername string `help:"Basic auth username (empty disables auth)" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingBufferSize int    `help:"Log entries kept for the API" default:"1000" toml:"logging.buffer_size" env:"LOGGING_BUFFER_SIZE"`
	LoggingDecode     string `help:"Decode pool logging level" default:"" toml:"logging.decode" env:"LOGGING_DECODE"`
	LoggingMedia      string `help:"Demux and decoder logging level" default:"" toml:"logging.media" env:"LOGGING_MEDIA"`
	LoggingDriver     string `help:"Playback logging level" default:"" toml:"logging.driver" env:"LOGGING_DRIVER"`
	LoggingAPI        string `help:"API logging level" default:"" toml:"logging.api" env:"LOGGING_API"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(loggingConfig(opts))
		logger := logging.GetLogger("main")

		ctx, cancel := context.WithCancel(context.Background())
		stopped := make(chan struct{})

		hooks.OnStart(func() {
			defer close(stopped)

			a, err := newApp(opts)
			if err != nil {
				logger.Error("Failed to start", "error", err)
				os.Exit(1)
			}

			if runErr := a.run(ctx); runErr != nil {
				logger.Error("Playback failed", "error", runErr)
				if ctx.Err() == nil {
					os.Exit(1)
				}
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			cancel()
			select {
			case <-stopped:
			case <-time.After(shutdownTimeout):
				logger.Warn("Shutdown timed out", "timeout", shutdownTimeout)
			}
		})
	})

	cli.Root().Use = "viewsynth"
	cli.Root().Short = "Multi-camera color and depth video playback for view synthesis"

	cli.Root().AddCommand(cmd.CreateProbeCmd())
	cli.Root().AddCommand(cmd.CreateCheckSceneCmd())

	// Run the CLI
	cli.Run()
}

// loggingConfig merges module levels from the config file's [logging] table
// with the levels resolved from flags and env.
func loggingConfig(opts *Options) logging.Config {
	cfg := config.LoadLoggingConfig(opts.Config)
	cfg.Level = opts.LoggingLevel
	cfg.Format = opts.LoggingFormat
	cfg.BufferSize = opts.LoggingBufferSize

	for module, level := range map[string]string{
		"decode": opts.LoggingDecode,
		"media":  opts.LoggingMedia,
		"driver": opts.LoggingDriver,
		"api":    opts.LoggingAPI,
	} {
		if level != "" {
			cfg.Modules[module] = level
		}
	}
	return cfg
}
