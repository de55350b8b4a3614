package httpgw

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
// Pass to components that need to record metrics.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	GuardDenialsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ledgergate",
				Name:      "requests_total",
				Help:      "Total number of requests processed by the admission pipeline",
			},
			[]string{"method", "decision"}, // decision=forward/redirect/reject
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ledgergate",
				Name:      "request_duration_seconds",
				Help:      "Admission pipeline evaluation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"decision"},
		),
		GuardDenialsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ledgergate",
				Name:      "guard_denials_total",
				Help:      "Total terminal denials per guard stage",
			},
			[]string{"stage"},
		),
	}
}

// RegisterKeyGauge exposes the live rate-limit key count.
func RegisterKeyGauge(reg prometheus.Registerer, size func() int) {
	promauto.With(reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "ledgergate",
			Name:      "rate_limit_keys",
			Help:      "Number of active rate limit keys",
		},
		func() float64 { return float64(size()) },
	)
}

// RegisterAuditDropCounter exposes the running count of dropped audit records.
func RegisterAuditDropCounter(reg prometheus.Registerer, drops func() int64) {
	promauto.With(reg).NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: "ledgergate",
			Name:      "audit_drops_total",
			Help:      "Total audit records dropped due to backpressure",
		},
		func() float64 { return float64(drops()) },
	)
}
