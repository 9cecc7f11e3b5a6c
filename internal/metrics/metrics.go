// Package metrics содержит счётчики Prometheus жизненного цикла и планировщика.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "profinder"

// Исходы обработки элемента в плановой задаче.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Metrics набор счётчиков одного процесса.
type Metrics struct {
	registry *prometheus.Registry

	Transitions          *prometheus.CounterVec
	PartialFailures      *prometheus.CounterVec
	SweepItems           *prometheus.CounterVec
	SweepRuns            *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec
}

// New регистрирует счётчики в собственном реестре.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Lifecycle transitions by entity and target status.",
		}, []string{"entity", "status"}),
		PartialFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partial_failures_total",
			Help:      "Two-step updates that committed only the first step.",
		}, []string{"op"}),
		SweepItems: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_items_total",
			Help:      "Items handled by maintenance jobs.",
		}, []string{"job", "outcome"}),
		SweepRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Maintenance job runs.",
		}, []string{"job"}),
		NotificationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be stored or enqueued.",
		}, []string{"channel"}),
	}
}

// Handler отдаёт метрики реестра и стандартные метрики процесса.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.Gatherers{m.registry, prometheus.DefaultGatherer}, promhttp.HandlerOpts{})
}

// Transition учитывает переход сущности в новый статус. Безопасен для nil.
func (m *Metrics) Transition(entity, status string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(entity, status).Inc()
}

// PartialFailure учитывает незавершённую пару обновлений.
func (m *Metrics) PartialFailure(op string) {
	if m == nil {
		return
	}
	m.PartialFailures.WithLabelValues(op).Inc()
}

// SweepItem учитывает обработку одного элемента плановой задачи.
func (m *Metrics) SweepItem(job, outcome string) {
	if m == nil {
		return
	}
	m.SweepItems.WithLabelValues(job, outcome).Inc()
}

// SweepRun учитывает запуск плановой задачи.
func (m *Metrics) SweepRun(job string) {
	if m == nil {
		return
	}
	m.SweepRuns.WithLabelValues(job).Inc()
}

// NotificationFailure учитывает сбой канала уведомлений.
func (m *Metrics) NotificationFailure(channel string) {
	if m == nil {
		return
	}
	m.NotificationFailures.WithLabelValues(channel).Inc()
}
