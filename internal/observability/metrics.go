package observability

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "user_service"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		},
		[]string{"route", "method", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	httpErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Failed HTTP requests by route, method and error code.",
		},
		[]string{"route", "method", "code"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_cache_lookups_total",
			Help:      "User cache lookups by result (hit/miss).",
		},
		[]string{"result"},
	)

	eventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events handed to the broker, by type and outcome.",
		},
		[]string{"type", "outcome"},
	)
)

// RecordRequest records a completed HTTP request. Label values are copied;
// fiber hands out strings backed by reusable request buffers.
func RecordRequest(route, method string, status int, duration time.Duration) {
	route, method = strings.Clone(route), strings.Clone(method)
	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError records a failed HTTP request by error code.
func RecordError(route, method, code string) {
	route, method = strings.Clone(route), strings.Clone(method)
	httpErrorsTotal.WithLabelValues(route, method, code).Inc()
}

// RecordCacheLookup records a user cache hit or miss.
func RecordCacheLookup(result string) {
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordEventPublish records the outcome of a broker enqueue.
func RecordEventPublish(eventType string, ok bool) {
	outcome := "enqueued"
	if !ok {
		outcome = "failed"
	}
	eventsPublishedTotal.WithLabelValues(eventType, outcome).Inc()
}
