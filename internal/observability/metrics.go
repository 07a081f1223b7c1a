package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uvguard",
			Subsystem: "reconcile",
			Name:      "operations_total",
			Help:      "Top-level reconcile operations by outcome.",
		},
		[]string{"operation", "success"},
	)
	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "uvguard",
			Subsystem: "reconcile",
			Name:      "operation_duration_seconds",
			Help:      "Top-level reconcile operation duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	toolInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "uvguard",
			Subsystem: "tool",
			Name:      "invocations_total",
			Help:      "External tool invocations.",
		},
		[]string{"tool", "verb", "exit_code"},
	)
	toolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "uvguard",
			Subsystem: "tool",
			Name:      "duration_seconds",
			Help:      "External tool invocation duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"tool", "verb"},
	)
	driftRepairs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "uvguard",
			Subsystem: "reconcile",
			Name:      "drift_repairs_total",
			Help:      "Packages re-declared because a validator was missing its package.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(operations, operationDuration, toolInvocations, toolDuration, driftRepairs)
	})
}

func RecordOperation(operation string, duration time.Duration, success bool) {
	RegisterMetrics()
	operations.WithLabelValues(operation, strconv.FormatBool(success)).Inc()
	operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func RecordToolInvocation(tool, verb string, exitCode int, duration time.Duration) {
	RegisterMetrics()
	toolInvocations.WithLabelValues(tool, verb, strconv.Itoa(exitCode)).Inc()
	toolDuration.WithLabelValues(tool, verb).Observe(duration.Seconds())
}

func RecordDriftRepairs(n int) {
	RegisterMetrics()
	if n > 0 {
		driftRepairs.Add(float64(n))
	}
}

// WriteTextfile dumps the default registry in the node_exporter textfile
// format. An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	RegisterMetrics()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics textfile dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("metrics textfile write: %w", err)
	}
	return nil
}
