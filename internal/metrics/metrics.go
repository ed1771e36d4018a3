// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "student_archive", Name: "http_requests_total", Help: "HTTP requests by route and status code."},
		[]string{"route", "code"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "student_archive", Name: "http_request_duration_seconds", Help: "HTTP request latency by route.", Buckets: prometheus.DefBuckets},
		[]string{"route"},
	)
	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "student_archive", Name: "store_errors_total", Help: "Record store failures by operation."},
		[]string{"op"},
	)
	RateLimitAllowed = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "student_archive", Name: "rate_limit_allowed_total", Help: "Requests let through by the rate limiter."},
	)
	RateLimitRejected = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "student_archive", Name: "rate_limit_rejected_total", Help: "Requests rejected by the rate limiter."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(HTTPRequests)
	reg.MustRegister(HTTPDuration)
	reg.MustRegister(StoreErrors)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
