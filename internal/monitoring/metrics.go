package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the panel
var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockpanel_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blockpanel_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Container runtime metrics
	ServerStatusGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "blockpanel_server_status",
			Help: "Server status (0=not_found, 1=stopped, 2=starting, 3=running)",
		},
		[]string{"server_id"},
	)

	LifecycleCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blockpanel_lifecycle_commands_total",
			Help: "Total number of start/stop/restart commands, by outcome",
		},
		[]string{"command", "outcome"},
	)
)

// RecordHTTPRequest feeds the request counter and latency histogram
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordLifecycleCommand counts a start/stop/restart outcome
func RecordLifecycleCommand(command string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	LifecycleCommandsTotal.WithLabelValues(command, outcome).Inc()
}

// StatusToFloat maps a status name onto the gauge scale
func StatusToFloat(status string) float64 {
	switch status {
	case "stopped":
		return 1
	case "starting":
		return 2
	case "running":
		return 3
	default:
		return 0
	}
}
