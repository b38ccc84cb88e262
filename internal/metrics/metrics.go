// Package metrics exposes Prometheus counters for workflow outcomes. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"activity-hub/internal/domain"
)

const namespace = "activity_hub"

type Metrics struct {
	registry      *prometheus.Registry
	operations    *prometheus.CounterVec
	compensations *prometheus.CounterVec
	notifications *prometheus.CounterVec
	autoCompleted prometheus.Counter
	rateLimited   *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Membership workflow operations by outcome.",
		}, []string{"operation", "outcome"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensations_total",
			Help:      "Undo steps run by the compensating store.",
		}, []string{"operation", "result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification intents by delivery result.",
		}, []string{"type", "result"}),
		autoCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activities_auto_completed_total",
			Help:      "Activities flipped to completed after their start time passed.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"group"}),
	}
	reg.MustRegister(
		m.operations, m.compensations, m.notifications, m.autoCompleted, m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveOperation records op with an outcome derived from err.
func (m *Metrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = strings.ToLower(string(domain.KindOf(err)))
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) Compensation(op string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.compensations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Notification(t domain.NotificationType, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(string(t), result).Inc()
}

func (m *Metrics) AutoCompleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.autoCompleted.Add(float64(n))
}

func (m *Metrics) RateLimited(group string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(group).Inc()
}
