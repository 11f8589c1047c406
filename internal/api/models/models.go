package models

import (
	"github.com/smazurov/viewsynth/internal/decode"
	"github.com/smazurov/viewsynth/internal/driver"
	"github.com/smazurov/viewsynth/internal/logging"
	"github.com/smazurov/viewsynth/internal/media"
	"github.com/smazurov/viewsynth/internal/metrics"
	"github.com/smazurov/viewsynth/internal/visibility"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Decode status models
type DecodeStatusData struct {
	Scheduler decode.Stats          `json:"scheduler" doc:"Decode pool state"`
	Streams   []media.StreamStats   `json:"streams" doc:"Per-stream demux and decode counters"`
	Playback  driver.Status         `json:"playback" doc:"Render loop progress"`
	Render    metrics.RenderMetrics `json:"render" doc:"Last exported render gauges"`
}

type DecodeStatusResponse struct {
	Body DecodeStatusData
}

// Viewport models
type ViewportData struct {
	Position  visibility.Vec3 `json:"position" doc:"Output camera position"`
	Selected  []int           `json:"selected" doc:"Cameras chosen for the last frame"`
	Cameras   int             `json:"cameras" example:"8" doc:"Input cameras in the scene"`
	MaxInputs int             `json:"max_inputs" example:"4" doc:"Cameras used per frame"`
}

type ViewportResponse struct {
	Body ViewportData
}

type ViewportUpdateRequest struct {
	Body struct {
		Position visibility.Vec3 `json:"position" doc:"New output camera position"`
	}
}

// Log models
type LogsRequest struct {
	Limit  int    `query:"limit" default:"100" minimum:"0" maximum:"5000" doc:"Maximum entries to return, 0 for all"`
	Module string `query:"module" doc:"Only return entries from this module"`
}

type LogsData struct {
	Entries []logging.LogEntry `json:"entries" doc:"Most recent log entries, oldest first"`
	Count   int                `json:"count" example:"100" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}

type LogLevelsData struct {
	Levels map[string]string `json:"levels" doc:"Current level per module"`
}

type LogLevelsResponse struct {
	Body LogLevelsData
}

type LogLevelRequest struct {
	Module string `path:"module" example:"decode" doc:"Logger module name"`
	Body   struct {
		Level string `json:"level" enum:"debug,info,warn,error" example:"debug" doc:"New log level"`
	}
}
