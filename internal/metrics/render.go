package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	frameTime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "viewsynth",
		Subsystem: "render",
		Name:      "frame_time_ms",
		Help:      "Milliseconds spent on the last rendered frame",
	})

	videoFrame = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "viewsynth",
		Subsystem: "render",
		Name:      "video_frame",
		Help:      "Current video frame number",
	})

	wantedCameras = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "viewsynth",
		Subsystem: "render",
		Name:      "wanted_cameras",
		Help:      "Input cameras used for the current frame",
	})

	// Local cache for the status API.
	renderCache   RenderMetrics
	renderCacheMu sync.RWMutex
)

// RenderMetrics holds the latest render loop values.
type RenderMetrics struct {
	FrameTimeMs   float64 `json:"frame_time_ms"`
	VideoFrame    int     `json:"video_frame"`
	WantedCameras int     `json:"wanted_cameras"`
}

// SetFrameTime records the duration of the last rendered frame and its video frame number.
func SetFrameTime(ms float64, frame int) {
	frameTime.Set(ms)
	videoFrame.Set(float64(frame))
	renderCacheMu.Lock()
	renderCache.FrameTimeMs = ms
	renderCache.VideoFrame = frame
	renderCacheMu.Unlock()
}

// SetWantedCameras records how many cameras the visibility oracle selected.
func SetWantedCameras(n int) {
	wantedCameras.Set(float64(n))
	renderCacheMu.Lock()
	renderCache.WantedCameras = n
	renderCacheMu.Unlock()
}

// GetRenderMetrics returns a copy of the latest render loop values.
func GetRenderMetrics() RenderMetrics {
	renderCacheMu.RLock()
	defer renderCacheMu.RUnlock()
	return renderCache
}
