package driver

import (
	"log/slog"

	"github.com/smazurov/viewsynth/internal/events"
	"github.com/smazurov/viewsynth/internal/visibility"
)

// ViewportSink receives output camera moves.
type ViewportSink interface {
	SetViewport(pos visibility.Vec3)
}

// ViewportFollower subscribes to viewport events and moves the oracle's
// output camera, whichever component published the move.
type ViewportFollower struct {
	sink        ViewportSink
	eventBus    *events.Bus
	unsubscribe func()
	logger      *slog.Logger
}

func NewViewportFollower(sink ViewportSink, eventBus *events.Bus, logger *slog.Logger) *ViewportFollower {
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewportFollower{
		sink:     sink,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Start begins listening for viewport events.
func (f *ViewportFollower) Start() {
	f.unsubscribe = f.eventBus.Subscribe(func(e events.ViewportChangedEvent) {
		f.sink.SetViewport(visibility.Vec3{X: e.X, Y: e.Y, Z: e.Z})
		f.logger.Debug("Viewport updated", "source", e.Source, "x", e.X, "y", e.Y, "z", e.Z)
	})
	f.logger.Info("Viewport follower started")
}

// Stop unsubscribes from viewport events.
func (f *ViewportFollower) Stop() {
	if f.unsubscribe != nil {
		f.unsubscribe()
		f.unsubscribe = nil
	}
}
