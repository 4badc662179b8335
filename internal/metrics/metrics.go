// Package metrics exposes the Prometheus collectors of the blog.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatblog_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flatblog_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatblog_login_attempts_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"}, // "user", "admin", "failed"
	)

	RecordStoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatblog_record_store_writes_total",
			Help: "Whole-document writes to the JSON record store",
		},
		[]string{"resource", "outcome"},
	)

	Uploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatblog_image_uploads_total",
			Help: "Image uploads by outcome",
		},
		[]string{"outcome"},
	)

	ResetTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flatblog_reset_tokens_total",
			Help: "Reset token lifecycle events",
		},
		[]string{"event"}, // "issued", "consumed", "purged"
	)
)

// RecordHTTPRequest records one finished request.
func RecordHTTPRequest(method, route, status string, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, status).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordWrite records a record store write.
func RecordWrite(resource string, ok bool) {
	RecordStoreWrites.WithLabelValues(resource, outcome(ok)).Inc()
}

// RecordUpload records an image upload attempt.
func RecordUpload(ok bool) {
	Uploads.WithLabelValues(outcome(ok)).Inc()
}

// RecordLogin records a login attempt; kind is empty on failure.
func RecordLogin(kind string) {
	if kind == "" {
		kind = "failed"
	}
	LoginAttempts.WithLabelValues(kind).Inc()
}

// RecordResetTokens adds n lifecycle events of the given kind.
func RecordResetTokens(event string, n int) {
	if n > 0 {
		ResetTokens.WithLabelValues(event).Add(float64(n))
	}
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
