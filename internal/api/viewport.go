package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/viewsynth/internal/api/models"
	"github.com/smazurov/viewsynth/internal/events"
)

func (s *Server) registerViewportRoutes() {
	if s.options.Viewport == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "get-viewport",
		Method:      http.MethodGet,
		Path:        "/api/viewport",
		Summary:     "Get Viewport",
		Description: "Current output camera position and the cameras selected for it",
		Tags:        []string{"viewport"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.ViewportResponse, error) {
		return s.viewportResponse(), nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-viewport",
		Method:      http.MethodPut,
		Path:        "/api/viewport",
		Summary:     "Move Viewport",
		Description: "Move the output camera. Camera selection follows from the next frame on.",
		Tags:        []string{"viewport"},
		Security:    withAuth(),
		Errors:      []int{401, 500, 503},
	}, func(_ context.Context, input *models.ViewportUpdateRequest) (*models.ViewportResponse, error) {
		if s.eventBus == nil {
			return nil, huma.Error503ServiceUnavailable("viewport updates are not wired")
		}

		pos := input.Body.Position
		if s.options.ViewportFile != "" && s.options.SaveViewport != nil {
			if err := s.options.SaveViewport(s.options.ViewportFile, pos); err != nil {
				s.logger.Error("Failed to persist viewport", "path", s.options.ViewportFile, "error", err)
				return nil, huma.Error500InternalServerError("failed to persist viewport", err)
			}
		}

		s.eventBus.Publish(events.ViewportChangedEvent{
			X:         pos.X,
			Y:         pos.Y,
			Z:         pos.Z,
			Source:    "api",
			Timestamp: time.Now().Format(time.RFC3339),
		})
		s.logger.Info("Viewport moved", "x", pos.X, "y", pos.Y, "z", pos.Z)

		resp := s.viewportResponse()
		resp.Body.Position = pos
		return resp, nil
	})
}

func (s *Server) viewportResponse() *models.ViewportResponse {
	v := s.options.Viewport
	selected := v.Selected()
	if selected == nil {
		selected = []int{}
	}
	return &models.ViewportResponse{
		Body: models.ViewportData{
			Position:  v.Viewport(),
			Selected:  selected,
			Cameras:   v.Cameras(),
			MaxInputs: v.MaxInputs(),
		},
	}
}
