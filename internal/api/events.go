package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/viewsynth/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of worker states, pool failures, rendered frames and viewport moves",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"worker-state":   events.WorkerStateChangedEvent{},
		"pool-failed":    events.PoolFailedEvent{},
		"frame-rendered": events.FrameRenderedEvent{},
		"viewport":       events.ViewportChangedEvent{},
		"playback":       events.PlaybackStateEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Frame events arrive at render rate, so the buffer is sized for bursts
		eventCh := make(chan any, 64)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.WorkerStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PoolFailedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FrameRenderedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ViewportChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PlaybackStateEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Let the client know where playback stands before live events arrive
		initial := events.PlaybackStateEvent{State: "connected", Frame: -1, Timestamp: time.Now().Format(time.RFC3339)}
		if s.options.Playback != nil {
			st := s.options.Playback.Status()
			initial.State, initial.Frame = st.State, st.Frame
		}
		if err := send.Data(initial); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
