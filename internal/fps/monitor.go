// Package fps records how long each rendered frame took.
package fps

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/smazurov/viewsynth/internal/metrics"
)

// Header names of the CSV columns.
const (
	ColumnVideoFrame  = "Video frame nr"
	ColumnStaticFrame = "Frame nr"
	ColumnFrameTime   = "Milliseconds per frame"
)

type sample struct {
	ms    float64
	frame int
}

// Monitor collects frame times in memory and can write them as CSV.
type Monitor struct {
	mu      sync.Mutex
	samples []sample
	static  bool
}

// NewMonitor creates a monitor. Static monitors label the frame column as
// a render counter instead of a video frame.
func NewMonitor(static bool) *Monitor {
	return &Monitor{static: static}
}

// AddTime records one rendered frame and exports it as a gauge.
func (m *Monitor) AddTime(ms float64, videoFrame int) {
	m.mu.Lock()
	m.samples = append(m.samples, sample{ms: ms, frame: videoFrame})
	m.mu.Unlock()
	metrics.SetFrameTime(ms, videoFrame)
}

func (m *Monitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.samples)
}

// Average returns the mean frame time, or 0 without samples.
func (m *Monitor) Average() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.samples) == 0 {
		return 0
	}
	total := 0.0
	for _, s := range m.samples {
		total += s.ms
	}
	return total / float64(len(m.samples))
}

// WriteCSV writes every sample to w.
func (m *Monitor) WriteCSV(w io.Writer) error {
	m.mu.Lock()
	samples := append([]sample(nil), m.samples...)
	m.mu.Unlock()

	frameColumn := ColumnVideoFrame
	if m.static {
		frameColumn = ColumnStaticFrame
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{frameColumn, ColumnFrameTime}); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{strconv.Itoa(s.frame), strconv.FormatFloat(s.ms, 'f', 6, 64)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the CSV to path, replacing any existing file.
func (m *Monitor) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create fps csv: %w", err)
	}
	if err := m.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("write fps csv %s: %w", path, err)
	}
	return f.Close()
}
