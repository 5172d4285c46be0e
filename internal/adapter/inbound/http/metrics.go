package http

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vitrina-app/vitrina/internal/domain/session"
)

const namespace = "vitrina"

// Metrics holds all Prometheus metrics for vitrina.
// It also observes the session store, so one instance serves both the
// store and the front server.
type Metrics struct {
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	AuthOperations       *prometheus.CounterVec
	AuthDuration         *prometheus.HistogramVec
	SessionLifecycle     prometheus.Gauge
	SessionAuthenticated prometheus.Gauge
	GuardDecisions       *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests served",
			},
			[]string{"method", "status"}, // status=ok/error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		AuthOperations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_operations_total",
				Help:      "Session store operations by outcome",
			},
			[]string{"op", "result"}, // op=login/register/check_auth/hydrate/logout
		),
		AuthDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "auth_operation_duration_seconds",
				Help:      "Session store operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		SessionLifecycle: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "session_lifecycle",
				Help:      "Session store lifecycle: 0 uninitialized, 1 hydrating, 2 ready",
			},
		),
		SessionAuthenticated: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "session_authenticated",
				Help:      "1 when the resolved identity is authenticated",
			},
		),
		GuardDecisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "guard_decisions_total",
				Help:      "Route guard decisions for panel requests",
			},
			[]string{"decision"}, // decision=allow/pending/redirect_login/redirect_role
		),
	}
}

// ObserveOperation implements session.Observer.
func (m *Metrics) ObserveOperation(op, result string, d time.Duration) {
	m.AuthOperations.WithLabelValues(op, result).Inc()
	m.AuthDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveState implements session.Observer.
func (m *Metrics) ObserveState(st session.State) {
	m.SessionLifecycle.Set(float64(st.Lifecycle))
	if st.Identity.IsAuthenticated {
		m.SessionAuthenticated.Set(1)
	} else {
		m.SessionAuthenticated.Set(0)
	}
}

var _ session.Observer = (*Metrics)(nil)
