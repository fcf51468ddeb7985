// AngelaMos | 2026
// metrics.go

package core

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "daf_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daf_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "daf_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	AuthzDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daf_authz_decisions_total",
			Help: "Authorization gate decisions by outcome.",
		},
		[]string{"outcome"},
	)

	AuditWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "daf_audit_write_failures_total",
		Help: "Audit events that could not be persisted.",
	})

	AuditEventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "daf_audit_events_dropped_total",
		Help: "Audit events dropped because too many writes were pending.",
	})

	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daf_login_attempts_total",
			Help: "Login attempts by result.",
		},
		[]string{"result"},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daf_rate_limited_requests_total",
			Help: "Requests rejected by a rate limiter.",
		},
		[]string{"limiter"},
	)

	ClientOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daf_client_operations_total",
			Help: "Client lifecycle operations by operation and result.",
		},
		[]string{"operation", "result"},
	)
)

// RegisterMetrics registers every collector with reg. Collectors that are
// already registered are ignored so repeated calls are harmless.
func RegisterMetrics(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		HTTPInFlight,
		HTTPRequestsTotal,
		HTTPRequestDuration,
		AuthzDecisions,
		AuditWriteFailures,
		AuditEventsDropped,
		LoginAttempts,
		RateLimited,
		ClientOperations,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}

	return nil
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
