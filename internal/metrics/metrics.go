// Package metrics implements Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"firestige.xyz/tinu/internal/core"
	"firestige.xyz/tinu/internal/log"
)

var (
	// PacketsTotal counts processed frames by attachment and outcome
	PacketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinu_packets_total",
			Help: "Total number of frames processed, by direction, role and reason",
		},
		[]string{"direction", "role", "reason"},
	)

	// ProcessLatencySeconds measures one Gate.Process call
	ProcessLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tinu_process_latency_seconds",
			Help:    "Latency of per-frame processing in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00000005, 2, 16), // 50ns to ~1.6ms
		},
		[]string{"direction"},
	)

	// BridgeErrorsTotal counts read/write failures on bridge interfaces
	BridgeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinu_bridge_errors_total",
			Help: "Total number of bridge I/O errors",
		},
		[]string{"interface", "op"},
	)

	// BridgeBytesTotal counts bytes forwarded per interface
	BridgeBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tinu_bridge_bytes_total",
			Help: "Total number of bytes written to a bridge interface",
		},
		[]string{"interface"},
	)
)

// Bridge error operations
const (
	OpRead  = "read"
	OpWrite = "write"
	OpSnap  = "snap"
)

// Observe records one processed frame.
func Observe(a core.Attachment, res core.Result, elapsed time.Duration) {
	dir := a.Direction.String()
	PacketsTotal.WithLabelValues(dir, a.Role.String(), res.Reason.String()).Inc()
	ProcessLatencySeconds.WithLabelValues(dir).Observe(elapsed.Seconds())
}

// WatchLimiter exports the suppressed count of l as
// tinu_advisory_suppressed_total on reg.
func WatchLimiter(reg prometheus.Registerer, l *log.Limiter) error {
	return reg.Register(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "tinu_advisory_suppressed_total",
			Help: "Total number of advisory warnings dropped by the rate limiter",
		},
		func() float64 { return float64(l.Suppressed()) },
	))
}
