package observability

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once
	eventCount   atomic.Uint64

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgemgmt",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edgemgmt",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	sessionExchanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgemgmt",
			Subsystem: "session",
			Name:      "exchanges_total",
			Help:      "Request/reply exchanges with the edge by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edgemgmt",
			Subsystem: "session",
			Name:      "exchange_duration_seconds",
			Help:      "Exchange duration in seconds.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"kind", "outcome"},
	)
	sessionDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgemgmt",
			Subsystem: "session",
			Name:      "datagrams_discarded_total",
			Help:      "Reply datagrams dropped because they belong to another exchange.",
		},
		[]string{"reason"},
	)
	sessionEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "edgemgmt",
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Events received after a subscribe.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			sessionExchanges, sessionDuration, sessionDiscarded, sessionEvents,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordExchange(kind, outcome string, duration time.Duration) {
	RegisterMetrics()
	sessionExchanges.WithLabelValues(kind, outcome).Inc()
	sessionDuration.WithLabelValues(kind, outcome).Observe(duration.Seconds())
}

func RecordDiscarded(reason string) {
	RegisterMetrics()
	sessionDiscarded.WithLabelValues(reason).Inc()
}

func RecordEvent() {
	RegisterMetrics()
	sessionEvents.Inc()
	eventCount.Add(1)
}

// EventsReceived returns the number of events recorded by this process.
func EventsReceived() uint64 {
	return eventCount.Load()
}
