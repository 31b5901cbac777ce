package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSent    = "sent"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"

	ResultOK    = "ok"
	ResultError = "error"
	ResultNoKey = "missing_key"
)

// Metrics holds the alert pipeline counters.
type Metrics struct {
	alertEvaluations *prometheus.CounterVec
	mailDeliveries   *prometheus.CounterVec
	outboxProcessed  *prometheus.CounterVec
	gatherer         prometheus.Gatherer
}

// New registers the counters on reg. A nil reg gets a private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		alertEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockroom",
			Name:      "alert_evaluations_total",
			Help:      "Low-stock evaluations by path and outcome.",
		}, []string{"path", "outcome"}),
		mailDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockroom",
			Name:      "mail_deliveries_total",
			Help:      "Notification emails by type and result.",
		}, []string{"type", "result"}),
		outboxProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stockroom",
			Name:      "alert_outbox_processed_total",
			Help:      "Alert intents processed by final status.",
		}, []string{"status"}),
		gatherer: reg,
	}
	reg.MustRegister(m.alertEvaluations, m.mailDeliveries, m.outboxProcessed)
	return m
}

func (m *Metrics) AlertEvaluated(path, outcome string) {
	if m == nil {
		return
	}
	m.alertEvaluations.WithLabelValues(path, outcome).Inc()
}

func (m *Metrics) MailDelivered(typ, result string) {
	if m == nil {
		return
	}
	m.mailDeliveries.WithLabelValues(typ, result).Inc()
}

func (m *Metrics) IntentProcessed(status string) {
	if m == nil {
		return
	}
	m.outboxProcessed.WithLabelValues(status).Inc()
}

func (m *Metrics) AlertEvaluations() *prometheus.CounterVec { return m.alertEvaluations }
func (m *Metrics) MailDeliveries() *prometheus.CounterVec { return m.mailDeliveries }
func (m *Metrics) OutboxProcessed() *prometheus.CounterVec { return m.outboxProcessed }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
