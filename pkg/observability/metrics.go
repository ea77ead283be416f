package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Bridge metrics
	BridgeOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geodash",
			Subsystem: "bridge",
			Name:      "operations_total",
			Help:      "Total number of bridge operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	BridgeOperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "geodash",
			Subsystem: "bridge",
			Name:      "operation_seconds",
			Help:      "Bridge operation latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
		},
		[]string{"operation"},
	)

	BridgeTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geodash",
			Subsystem: "bridge",
			Name:      "timeouts_total",
			Help:      "Blocking calls that exceeded their deadline",
		},
		[]string{"operation"},
	)

	BridgesOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "geodash",
			Subsystem: "bridge",
			Name:      "open",
			Help:      "Number of bridges whose loop is running",
		},
	)

	// Task metrics
	TaskTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geodash",
			Subsystem: "task",
			Name:      "terminal_total",
			Help:      "Task runs that reached a terminal state",
		},
		[]string{"state"},
	)

	TasksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "geodash",
			Subsystem: "task",
			Name:      "active",
			Help:      "Task runs currently in flight",
		},
	)

	// Session metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "geodash",
			Subsystem: "session",
			Name:      "active",
			Help:      "Registered client sessions",
		},
	)

	SessionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geodash",
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Session lifecycle events",
		},
		[]string{"event"},
	)
)

// RecordOperation records the outcome and latency of one bridge operation.
func RecordOperation(operation, outcome string, elapsed time.Duration) {
	BridgeOperations.WithLabelValues(operation, outcome).Inc()
	BridgeOperationLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordTimeout counts a blocking call that hit its deadline.
func RecordTimeout(operation string) {
	BridgeTimeouts.WithLabelValues(operation).Inc()
}

// RecordTaskTerminal counts a terminal task transition.
func RecordTaskTerminal(state string) {
	TaskTransitions.WithLabelValues(state).Inc()
}

// RecordSessionEvent counts a session lifecycle event.
func RecordSessionEvent(event string) {
	SessionEvents.WithLabelValues(event).Inc()
}
