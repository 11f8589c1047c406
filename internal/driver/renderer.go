package driver

import (
	"log/slog"
	"sync"

	"github.com/smazurov/viewsynth/internal/media"
)

// Renderer draws the textures of the cameras selected for a frame.
type Renderer interface {
	// RenderCamera draws one camera's current color and depth textures.
	RenderCamera(camera int, color, depth *media.Texture) error

	// EndFrame finishes the frame after all cameras are drawn.
	EndFrame(frame int) error
}

// LogRenderer records what would be drawn without drawing anything.
type LogRenderer struct {
	logger *slog.Logger

	mu      sync.Mutex
	frames  int
	cameras map[int]int
	bytes   int64
}

func NewLogRenderer(logger *slog.Logger) *LogRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRenderer{logger: logger, cameras: make(map[int]int)}
}

func (r *LogRenderer) RenderCamera(camera int, color, depth *media.Texture) error {
	r.mu.Lock()
	r.cameras[camera]++
	r.bytes += int64(color.Size() + depth.Size())
	r.mu.Unlock()

	r.logger.Debug("Render camera",
		"camera", camera,
		"color_frame", color.Frame(),
		"depth_frame", depth.Frame())
	return nil
}

func (r *LogRenderer) EndFrame(frame int) error {
	r.mu.Lock()
	r.frames++
	r.mu.Unlock()
	return nil
}

// Frames returns the number of completed frames.
func (r *LogRenderer) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// CameraRenders returns how often each camera was drawn.
func (r *LogRenderer) CameraRenders() map[int]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]int, len(r.cameras))
	for k, v := range r.cameras {
		out[k] = v
	}
	return out
}

// Bytes returns the total texture bytes drawn.
func (r *LogRenderer) Bytes() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bytes
}
