package metrics

import (
	"time"

	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RenewalMetrics интерфейс для метрик фонового продления подписок
type RenewalMetrics interface {
	IncCycle()
	IncCycleSkipped()
	IncRenewed()
	IncExpired()
	IncSuspended()
	ObserveCycleDuration(d time.Duration)
}

type renewalMetrics struct {
	log           *logger.Logger
	cycles        prometheus.Counter
	cyclesSkipped prometheus.Counter
	outcomes      *prometheus.CounterVec
	cycleDuration prometheus.Histogram
}

// NewRenewalMetrics создает новые метрики продления подписок
func NewRenewalMetrics(registry *prometheus.Registry, log *logger.Logger) RenewalMetrics {
	cycles := promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "renewal_cycles_total",
			Help: "The total number of completed renewal cycles",
		},
	)

	cyclesSkipped := promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "renewal_cycles_skipped_total",
			Help: "The total number of renewal cycles skipped because the previous one was still running",
		},
	)

	outcomes := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "renewal_outcomes_total",
			Help: "The total number of subscription renewal outcomes",
		},
		[]string{"outcome"},
	)

	cycleDuration := promauto.With(registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "renewal_cycle_duration_seconds",
			Help:    "Renewal cycle duration distribution",
			Buckets: prometheus.DefBuckets,
		},
	)

	return &renewalMetrics{
		log:           log,
		cycles:        cycles,
		cyclesSkipped: cyclesSkipped,
		outcomes:      outcomes,
		cycleDuration: cycleDuration,
	}
}

// IncCycle увеличивает счетчик завершенных циклов
func (m *renewalMetrics) IncCycle() {
	m.cycles.Inc()
}

// IncCycleSkipped увеличивает счетчик пропущенных циклов
func (m *renewalMetrics) IncCycleSkipped() {
	m.cyclesSkipped.Inc()
}

// IncRenewed увеличивает счетчик успешных продлений
func (m *renewalMetrics) IncRenewed() {
	m.outcomes.WithLabelValues("renewed").Inc()
}

// IncExpired увеличивает счетчик подписок, истекших из-за неудачного списания
func (m *renewalMetrics) IncExpired() {
	m.outcomes.WithLabelValues("expired").Inc()
}

// IncSuspended увеличивает счетчик приостановленных подписок
func (m *renewalMetrics) IncSuspended() {
	m.outcomes.WithLabelValues("suspended").Inc()
}

// ObserveCycleDuration записывает длительность цикла продления
func (m *renewalMetrics) ObserveCycleDuration(d time.Duration) {
	m.cycleDuration.Observe(d.Seconds())
}
