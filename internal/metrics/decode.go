// Package metrics provides Prometheus metrics for the decode scheduler and the render loop.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decodeTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "viewsynth",
		Subsystem: "decode",
		Name:      "tasks_total",
		Help:      "Decoded tasks by stream kind and whether they were wanted for rendering",
	}, []string{"kind", "wanted"})

	gateWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "viewsynth",
		Subsystem: "decode",
		Name:      "wait_seconds",
		Help:      "Time spent blocked on scheduler waits",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.5},
	}, []string{"gate"})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "viewsynth",
		Subsystem: "decode",
		Name:      "queue_depth",
		Help:      "Tasks waiting in the work queue",
	})

	pendingCompletions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "viewsynth",
		Subsystem: "decode",
		Name:      "pending_completions",
		Help:      "Decoded frames waiting for the driver",
	})

	poolFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "viewsynth",
		Subsystem: "decode",
		Name:      "pool_failures_total",
		Help:      "Fatal fetch or decode failures that stopped the pool",
	})

	presentErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "viewsynth",
		Subsystem: "decode",
		Name:      "present_errors_total",
		Help:      "Failed copies of decoded pairs into render-ready textures",
	})
)

// Gate labels for ObserveWait.
const (
	GateOrder  = "order"
	GateDecode = "decode"
	GatePair   = "pair"
)

// IncDecodedTask counts a finished decode task.
func IncDecodedTask(kind string, wanted bool) {
	decodeTasks.WithLabelValues(kind, strconv.FormatBool(wanted)).Inc()
}

// ObserveWait records how long a wait on the given gate took.
func ObserveWait(gate string, d time.Duration) {
	gateWait.WithLabelValues(gate).Observe(d.Seconds())
}

// SetQueueDepth sets the number of queued tasks.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// SetPendingCompletions sets the number of frames waiting for the driver.
func SetPendingCompletions(n int) {
	pendingCompletions.Set(float64(n))
}

// IncPoolFailures counts a fatal pool failure.
func IncPoolFailures() {
	poolFailures.Inc()
}

// IncPresentErrors counts a failed present.
func IncPresentErrors() {
	presentErrors.Inc()
}
