package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "classroll"

// Metrics holds all Prometheus metrics for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RegistryRequests   *prometheus.CounterVec
	RegistryDuration   *prometheus.HistogramVec
	RegistryAuth       *prometheus.CounterVec
	TokenCacheHits     prometheus.Counter
	TokenCacheMisses   prometheus.Counter
	AttendanceWrites   *prometheus.CounterVec
	EditWindowRejected prometheus.Counter
	TenantCacheHits    prometheus.Counter
	TenantCacheMisses  prometheus.Counter
}

// New initializes the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RegistryRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "requests_total",
			Help:      "Total number of calls to the remote registry by method and outcome.",
		}, []string{"method", "outcome"}), // outcome: ok, auth, transport, business, request_failed
		RegistryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "request_duration_seconds",
			Help:      "Latency of single HTTP calls to the remote registry.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RegistryAuth: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "authentications_total",
			Help:      "Total number of credential exchanges with the remote registry.",
		}, []string{"outcome"}),
		TokenCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "token_cache",
			Name:      "hits_total",
			Help:      "Total number of registry token cache hits.",
		}),
		TokenCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "token_cache",
			Name:      "misses_total",
			Help:      "Total number of registry token cache misses.",
		}),
		AttendanceWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attendance",
			Name:      "writes_total",
			Help:      "Total number of attendance rows written by operation.",
		}, []string{"op"}), // op: upsert, delete, bulk_upsert
		EditWindowRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "attendance",
			Name:      "edit_window_rejections_total",
			Help:      "Total number of writes rejected because the attendance date is not today.",
		}),
		TenantCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tenant_cache",
			Name:      "hits_total",
			Help:      "Total number of tenant settings cache hits.",
		}),
		TenantCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tenant_cache",
			Name:      "misses_total",
			Help:      "Total number of tenant settings cache misses.",
		}),
	}
}

func (m *Metrics) ObserveRegistryCall(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RegistryRequests.WithLabelValues(method, outcome).Inc()
	m.RegistryDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) RegistryAuthenticated(outcome string) {
	if m == nil {
		return
	}
	m.RegistryAuth.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TokenCacheHit() {
	if m == nil {
		return
	}
	m.TokenCacheHits.Inc()
}

func (m *Metrics) TokenCacheMiss() {
	if m == nil {
		return
	}
	m.TokenCacheMisses.Inc()
}

func (m *Metrics) AttendanceWritten(op string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.AttendanceWrites.WithLabelValues(op).Add(float64(n))
}

func (m *Metrics) EditWindowClosed() {
	if m == nil {
		return
	}
	m.EditWindowRejected.Inc()
}

func (m *Metrics) TenantCacheHit() {
	if m == nil {
		return
	}
	m.TenantCacheHits.Inc()
}

func (m *Metrics) TenantCacheMiss() {
	if m == nil {
		return
	}
	m.TenantCacheMisses.Inc()
}
