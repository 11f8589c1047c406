package driver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/viewsynth/internal/decode"
	"github.com/smazurov/viewsynth/internal/events"
	"github.com/smazurov/viewsynth/internal/fps"
	"github.com/smazurov/viewsynth/internal/media"
	"github.com/smazurov/viewsynth/internal/visibility"
)

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// SPS, PPS and IDR form the first access unit, then two P slices.
var h264NALs = [][]byte{
	{0x67, 0x42, 0xc0, 0x1e},
	{0x68, 0xce, 0x3c, 0x80},
	{0x65, 0x88, 0x84, 0x21},
	{0x41, 0x9a, 0x24, 0x6c},
	{0x41, 0x9a, 0x48, 0x3f},
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeH264(t *testing.T, dir, name string) string {
	t.Helper()
	var data []byte
	for _, nal := range h264NALs {
		data = append(data, startCode...)
		data = append(data, nal...)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func openPrimedSet(t *testing.T, cameras int) *media.Set {
	t.Helper()
	dir := t.TempDir()
	specs := make([]media.CameraSpec, cameras)
	for i := range specs {
		specs[i] = media.CameraSpec{
			Color: media.StreamSpec{Path: writeH264(t, dir, "color.h264"), Codec: media.CodecH264},
			Depth: media.StreamSpec{Path: writeH264(t, dir, "depth.h264"), Codec: media.CodecH264},
		}
	}
	set, err := media.OpenSet(specs, media.SetOptions{Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = set.Close() })
	require.NoError(t, set.Prime(0))
	return set
}

func startScheduler(t *testing.T, src decode.Source, cameras int) *decode.Scheduler {
	t.Helper()
	s, err := decode.New(decode.Options{
		Workers: 2,
		Cameras: cameras,
		Source:  src,
		Logger:  quietLogger(),
	})
	require.NoError(t, err)
	s.Start()
	t.Cleanup(s.Shutdown)
	return s
}

type fixedOracle map[int]bool

func (o fixedOracle) Wanted() map[int]bool { return o }

func runWithTimeout(t *testing.T, p *Player, ctx context.Context) error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("player did not finish")
		return nil
	}
}

func TestNewValidation(t *testing.T) {
	set := openPrimedSet(t, 1)
	renderer := NewLogRenderer(quietLogger())
	oracle := fixedOracle{0: true}
	pipeline := startScheduler(t, set, 1)

	tests := []struct {
		name string
		opts Options
		want error
	}{
		{"no cameras", Options{Pipeline: pipeline, Textures: set, Oracle: oracle, Renderer: renderer}, ErrNoCameras},
		{"no pipeline", Options{Cameras: 1, Textures: set, Oracle: oracle, Renderer: renderer}, ErrMissingPipeline},
		{"no textures", Options{Cameras: 1, Pipeline: pipeline, Oracle: oracle, Renderer: renderer}, ErrMissingTextures},
		{"no oracle", Options{Cameras: 1, Pipeline: pipeline, Textures: set, Renderer: renderer}, ErrMissingOracle},
		{"no renderer", Options{Cameras: 1, Pipeline: pipeline, Textures: set, Oracle: oracle}, ErrMissingRenderer},
		{"bad fps", Options{Cameras: 1, Pipeline: pipeline, Textures: set, Oracle: oracle, Renderer: renderer, TargetFPS: 45}, ErrInvalidTargetFPS},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := New(Options{Cameras: 1, Textures: set, Oracle: oracle, Renderer: renderer, Static: true})
	assert.NoError(t, err, "static playback needs no pipeline")

	_, err = New(Options{Cameras: 1, Pipeline: pipeline, Textures: set, Oracle: oracle, Renderer: renderer, ASAP: true, TargetFPS: 45})
	assert.NoError(t, err, "target fps is ignored in ASAP mode")
}

func TestPlayerASAPRendersEveryFrame(t *testing.T) {
	set := openPrimedSet(t, 2)
	renderer := NewLogRenderer(quietLogger())
	bus := events.New()

	var rendered atomic.Int32
	unsub := bus.Subscribe(func(events.FrameRenderedEvent) { rendered.Add(1) })
	defer unsub()

	p, err := New(Options{
		Cameras:  2,
		Pipeline: startScheduler(t, set, 2),
		Textures: set,
		Oracle:   fixedOracle{0: true, 1: true},
		Renderer: renderer,
		ASAP:     true,
		Frames:   6,
		Bus:      bus,
		Logger:   quietLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, runWithTimeout(t, p, context.Background()))

	assert.Equal(t, 6, renderer.Frames())
	assert.Equal(t, map[int]int{0: 6, 1: 6}, renderer.CameraRenders())
	assert.Equal(t, 6, p.Monitor().Len())

	status := p.Status()
	assert.Equal(t, events.PlaybackStopped, status.State)
	assert.Equal(t, 5, status.Frame)
	assert.Equal(t, 6, status.VideoFrames)
	assert.Equal(t, []int{0, 1}, status.Cameras)

	// Two priming decodes, then six presented frames.
	for cam := range 2 {
		color, depth := set.Textures(cam)
		assert.Equal(t, 7, color.Frame(), "camera %d color", cam)
		assert.Equal(t, 7, depth.Frame(), "camera %d depth", cam)
	}

	assert.Eventually(t, func() bool { return rendered.Load() == 6 }, time.Second, 10*time.Millisecond)
}

func TestPlayerSkipsUnwantedCamera(t *testing.T) {
	set := openPrimedSet(t, 2)
	renderer := NewLogRenderer(quietLogger())

	p, err := New(Options{
		Cameras:  2,
		Pipeline: startScheduler(t, set, 2),
		Textures: set,
		Oracle:   fixedOracle{1: true},
		Renderer: renderer,
		ASAP:     true,
		Frames:   4,
		Logger:   quietLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, runWithTimeout(t, p, context.Background()))

	assert.Equal(t, map[int]int{1: 4}, renderer.CameraRenders())
	color, _ := set.Textures(0)
	assert.Equal(t, 1, color.Frame(), "unwanted camera keeps its primed picture")
	assert.Equal(t, []int{1}, p.Status().Cameras)
}

// switchingOracle alternates which single camera is wanted every frame.
type switchingOracle struct {
	mu    sync.Mutex
	calls int
}

func (o *switchingOracle) Wanted() map[int]bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	cam := o.calls % 2
	o.calls++
	return map[int]bool{cam: true}
}

func TestPlayerFollowsChangingVisibility(t *testing.T) {
	set := openPrimedSet(t, 2)
	renderer := NewLogRenderer(quietLogger())

	p, err := New(Options{
		Cameras:  2,
		Pipeline: startScheduler(t, set, 2),
		Textures: set,
		Oracle:   &switchingOracle{},
		Renderer: renderer,
		ASAP:     true,
		Frames:   10,
		Logger:   quietLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, runWithTimeout(t, p, context.Background()))

	assert.Equal(t, 10, renderer.Frames())
	counts := renderer.CameraRenders()
	assert.Equal(t, 10, counts[0]+counts[1])
	assert.Equal(t, 5, counts[0])
}

func TestPlayerTargetFPSRepeatsFrames(t *testing.T) {
	set := openPrimedSet(t, 1)
	renderer := NewLogRenderer(quietLogger())
	monitor := fps.NewMonitor(false)

	p, err := New(Options{
		Cameras:   1,
		Pipeline:  startScheduler(t, set, 1),
		Textures:  set,
		Oracle:    fixedOracle{0: true},
		Renderer:  renderer,
		TargetFPS: 90,
		Frames:    2,
		Monitor:   monitor,
		Logger:    quietLogger(),
	})
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, runWithTimeout(t, p, context.Background()))

	assert.Equal(t, 6, renderer.Frames(), "each video frame renders three times at 90 fps")
	assert.Equal(t, 6, monitor.Len())
	assert.Equal(t, 6, p.Status().Renders)
	assert.Equal(t, 2, p.Status().VideoFrames)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestPlayerStaticMode(t *testing.T) {
	set := openPrimedSet(t, 2)
	renderer := NewLogRenderer(quietLogger())

	p, err := New(Options{
		Cameras:  2,
		Textures: set,
		Oracle:   fixedOracle{0: true, 1: true},
		Renderer: renderer,
		Static:   true,
		ASAP:     true,
		Frames:   3,
		Logger:   quietLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, runWithTimeout(t, p, context.Background()))

	assert.Equal(t, 3, renderer.Frames())
	color, _ := set.Textures(0)
	assert.Equal(t, 1, color.Frame(), "static playback never decodes")
	assert.Equal(t, 2, p.Status().Frame)
}

func TestPlayerStopsOnCancel(t *testing.T) {
	set := openPrimedSet(t, 1)
	bus := events.New()

	states := make(chan string, 8)
	unsub := bus.Subscribe(func(e events.PlaybackStateEvent) { states <- e.State })
	defer unsub()

	p, err := New(Options{
		Cameras:   1,
		Pipeline:  startScheduler(t, set, 1),
		Textures:  set,
		Oracle:    fixedOracle{0: true},
		Renderer:  NewLogRenderer(quietLogger()),
		TargetFPS: 30,
		Bus:       bus,
		Logger:    quietLogger(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	require.NoError(t, runWithTimeout(t, p, ctx))

	assert.Equal(t, events.PlaybackStopped, p.Status().State)
	assert.Positive(t, p.Status().VideoFrames)

	var seen []string
	assert.Eventually(t, func() bool {
		for {
			select {
			case s := <-states:
				seen = append(seen, s)
			default:
				return len(seen) == 2
			}
		}
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{events.PlaybackPlaying, events.PlaybackStopped}, seen)
}

// failingSource delegates to a set but fails fetching stream 1 at frame 3.
type failingSource struct {
	*media.Set
	mu      sync.Mutex
	fetches map[int]int
}

var errBrokenFile = errors.New("broken file")

func (s *failingSource) Fetch(stream int) ([]byte, error) {
	s.mu.Lock()
	n := s.fetches[stream]
	s.fetches[stream]++
	s.mu.Unlock()
	if stream == 1 && n == 3 {
		return nil, errBrokenFile
	}
	return s.Set.Fetch(stream)
}

func TestPlayerPoolFailure(t *testing.T) {
	set := openPrimedSet(t, 1)
	src := &failingSource{Set: set, fetches: make(map[int]int)}
	renderer := NewLogRenderer(quietLogger())

	p, err := New(Options{
		Cameras:  1,
		Pipeline: startScheduler(t, src, 1),
		Textures: set,
		Oracle:   fixedOracle{0: true},
		Renderer: renderer,
		ASAP:     true,
		Logger:   quietLogger(),
	})
	require.NoError(t, err)

	err = runWithTimeout(t, p, context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, decode.ErrPoolFailed)
	assert.ErrorIs(t, err, errBrokenFile)
	assert.Equal(t, events.PlaybackFailed, p.Status().State)
	assert.LessOrEqual(t, renderer.Frames(), 3)
}

type failingRenderer struct{ *LogRenderer }

func (r failingRenderer) EndFrame(frame int) error {
	if frame == 1 {
		return errors.New("device lost")
	}
	return r.LogRenderer.EndFrame(frame)
}

func TestPlayerRendererError(t *testing.T) {
	set := openPrimedSet(t, 1)
	p, err := New(Options{
		Cameras:  1,
		Pipeline: startScheduler(t, set, 1),
		Textures: set,
		Oracle:   fixedOracle{0: true},
		Renderer: failingRenderer{NewLogRenderer(quietLogger())},
		ASAP:     true,
		Logger:   quietLogger(),
	})
	require.NoError(t, err)

	err = runWithTimeout(t, p, context.Background())
	require.ErrorContains(t, err, "device lost")
	assert.Equal(t, events.PlaybackFailed, p.Status().State)
}

func TestViewportFollower(t *testing.T) {
	oracle, err := visibility.New([]visibility.Vec3{{X: -1}, {X: 1}}, 1, quietLogger())
	require.NoError(t, err)
	bus := events.New()

	f := NewViewportFollower(oracle, bus, quietLogger())
	f.Start()
	defer f.Stop()

	bus.Publish(events.ViewportChangedEvent{X: 2, Y: 0, Z: 0, Source: "api"})

	assert.Eventually(t, func() bool {
		return oracle.Viewport() == visibility.Vec3{X: 2}
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, map[int]bool{1: true}, oracle.Wanted())
}
