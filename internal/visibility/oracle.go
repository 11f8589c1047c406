// Package visibility decides which input cameras contribute to the next
// output frame.
package visibility

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
)

var ErrInvalidMaxInputs = errors.New("max inputs must be positive")

// Vec3 is a position in scene space.
type Vec3 struct {
	X float64 `toml:"x" json:"x"`
	Y float64 `toml:"y" json:"y"`
	Z float64 `toml:"z" json:"z"`
}

func (v Vec3) Distance(o Vec3) float64 {
	return math.Sqrt((v.X-o.X)*(v.X-o.X) + (v.Y-o.Y)*(v.Y-o.Y) + (v.Z-o.Z)*(v.Z-o.Z))
}

// Oracle selects the cameras nearest to the viewport. When the scene has no
// more cameras than MaxInputs, every camera is wanted.
type Oracle struct {
	cameras   []Vec3
	maxInputs int
	logger    *slog.Logger

	mu       sync.RWMutex
	viewport Vec3
	last     []int
}

// New creates an oracle for cameras placed at the given positions.
func New(cameras []Vec3, maxInputs int, logger *slog.Logger) (*Oracle, error) {
	if maxInputs < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxInputs, maxInputs)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Oracle{
		cameras:   slices.Clone(cameras),
		maxInputs: maxInputs,
		logger:    logger,
	}, nil
}

// SetViewport moves the output camera.
func (o *Oracle) SetViewport(pos Vec3) {
	o.mu.Lock()
	o.viewport = pos
	o.mu.Unlock()
	o.logger.Debug("Viewport moved", "x", pos.X, "y", pos.Y, "z", pos.Z)
}

func (o *Oracle) Viewport() Vec3 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.viewport
}

// Wanted returns the set of camera indexes needed for the current viewport.
func (o *Oracle) Wanted() map[int]bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	selected := o.selectLocked()
	if !slices.Equal(selected, o.last) {
		o.logger.Debug("Wanted cameras changed", "cameras", selected)
		o.last = selected
	}

	wanted := make(map[int]bool, len(selected))
	for _, cam := range selected {
		wanted[cam] = true
	}
	return wanted
}

// Selected returns the cameras chosen by the last Wanted call.
func (o *Oracle) Selected() []int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.last)
}

// selectLocked returns the chosen camera indexes in ascending order.
func (o *Oracle) selectLocked() []int {
	indexes := make([]int, len(o.cameras))
	for i := range indexes {
		indexes[i] = i
	}
	if len(o.cameras) <= o.maxInputs {
		return indexes
	}

	slices.SortStableFunc(indexes, func(a, b int) int {
		return cmp.Compare(o.cameras[a].Distance(o.viewport), o.cameras[b].Distance(o.viewport))
	})
	selected := indexes[:o.maxInputs]
	slices.Sort(selected)
	return selected
}

func (o *Oracle) Cameras() int { return len(o.cameras) }

func (o *Oracle) MaxInputs() int { return o.maxInputs }
