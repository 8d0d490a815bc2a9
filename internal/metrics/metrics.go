package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusDuplicate = "duplicate"
)

var (
	connectionMetricsOnce sync.Once

	connectionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_requests_total",
			Help: "Total number of connection request attempts",
		},
		[]string{"status"},
	)

	connectionAcceptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_accepts_total",
			Help: "Total number of connection request accept attempts",
		},
		[]string{"status"},
	)

	connectionDeclinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_declines_total",
			Help: "Total number of connection request decline attempts",
		},
		[]string{"status"},
	)

	connectionRemovalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_removals_total",
			Help: "Total number of connection removal attempts",
		},
		[]string{"status"},
	)

	applicationStatusUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "application_status_updates_total",
			Help: "Total number of application status updates by target status",
		},
		[]string{"status", "result"},
	)
)

func RegisterConnectionMetrics() {
	connectionMetricsOnce.Do(func() {
		prometheus.MustRegister(
			connectionRequestsTotal,
			connectionAcceptsTotal,
			connectionDeclinesTotal,
			connectionRemovalsTotal,
			applicationStatusUpdatesTotal,
		)
	})
}

func IncConnectionRequest(status string) {
	RegisterConnectionMetrics()
	connectionRequestsTotal.WithLabelValues(status).Inc()
}

func IncConnectionAccept(status string) {
	RegisterConnectionMetrics()
	connectionAcceptsTotal.WithLabelValues(status).Inc()
}

func IncConnectionDecline(status string) {
	RegisterConnectionMetrics()
	connectionDeclinesTotal.WithLabelValues(status).Inc()
}

func IncConnectionRemoval(status string) {
	RegisterConnectionMetrics()
	connectionRemovalsTotal.WithLabelValues(status).Inc()
}

func IncApplicationStatusUpdate(status, result string) {
	RegisterConnectionMetrics()
	applicationStatusUpdatesTotal.WithLabelValues(status, result).Inc()
}
