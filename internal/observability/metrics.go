package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	proxiesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridctl",
			Subsystem: "proxy",
			Name:      "created_total",
			Help:      "Canonical proxies created.",
		},
		[]string{"member", "service"},
	)
	proxiesDestroyed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridctl",
			Subsystem: "proxy",
			Name:      "destroyed_total",
			Help:      "Proxies destroyed through the coordinator.",
		},
		[]string{"member", "service"},
	)
	destroyFanoutFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridctl",
			Subsystem: "proxy",
			Name:      "destroy_fanout_failures_total",
			Help:      "Per-member destroy invocations that failed or timed out.",
		},
		[]string{"member", "target"},
	)
	destroyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gridctl",
			Subsystem: "proxy",
			Name:      "destroy_duration_seconds",
			Help:      "Cluster destroy duration including the fan-out join.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"member", "service"},
	)
	eventsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridctl",
			Subsystem: "events",
			Name:      "dispatched_total",
			Help:      "Lifecycle tasks accepted onto an event dispatcher.",
		},
		[]string{"member"},
	)
	eventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridctl",
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Lifecycle tasks dropped because a dispatcher queue was full.",
		},
		[]string{"member"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"member", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gridctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"member", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			proxiesCreated, proxiesDestroyed, destroyFanoutFailures, destroyDuration,
			eventsDispatched, eventsDropped,
			httpRequests, httpDuration,
		)
	})
}

func RecordProxyCreated(member, service string) {
	RegisterMetrics()
	proxiesCreated.WithLabelValues(member, service).Inc()
}

func RecordProxyDestroyed(member, service string) {
	RegisterMetrics()
	proxiesDestroyed.WithLabelValues(member, service).Inc()
}

func RecordDestroyFanoutFailure(member, target string) {
	RegisterMetrics()
	destroyFanoutFailures.WithLabelValues(member, target).Inc()
}

func ObserveDestroyDuration(member, service string, d time.Duration) {
	RegisterMetrics()
	destroyDuration.WithLabelValues(member, service).Observe(d.Seconds())
}

func RecordEventDispatched(member string) {
	RegisterMetrics()
	eventsDispatched.WithLabelValues(member).Inc()
}

func RecordEventDropped(member string) {
	RegisterMetrics()
	eventsDropped.WithLabelValues(member).Inc()
}

func RecordHTTPRequest(member, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(member, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(member, method, path, statusLabel).Observe(duration.Seconds())
}
