package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/viewsynth/internal/api/models"
	"github.com/smazurov/viewsynth/internal/metrics"
)

func (s *Server) registerStatusRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-decode-status",
		Method:      http.MethodGet,
		Path:        "/api/decode/status",
		Summary:     "Decode Status",
		Description: "Snapshot of the decode pool, every input stream and the render loop",
		Tags:        []string{"decode"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(_ context.Context, _ *struct{}) (*models.DecodeStatusResponse, error) {
		if s.options.Scheduler == nil {
			return nil, huma.Error503ServiceUnavailable("decode pool is not running")
		}

		body := models.DecodeStatusData{
			Scheduler: s.options.Scheduler.Stats(),
			Render:    metrics.GetRenderMetrics(),
		}
		if s.options.Streams != nil {
			body.Streams = s.options.Streams.Stats()
		}
		if s.options.Playback != nil {
			body.Playback = s.options.Playback.Status()
		}
		return &models.DecodeStatusResponse{Body: body}, nil
	})
}
