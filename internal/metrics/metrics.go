// Package metrics holds the Prometheus collectors of the queue service.
// Every method is safe on a nil *Metrics so components can run without them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ptmq"

type Metrics struct {
	admissions      *prometheus.CounterVec
	skips           *prometheus.CounterVec
	txAttempts      *prometheus.CounterVec
	meetingDuration prometheus.Histogram
	notifications   *prometheus.CounterVec
	wsClients       prometheus.Gauge
	relayEvents     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		admissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Meeting admission attempts by result.",
		}, []string{"result"}),
		skips: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skips_total",
			Help:      "Queue entries skipped or removed, by reason.",
		}, []string{"reason"}),
		txAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_attempts_total",
			Help:      "Scheduler units of work by operation and outcome.",
		}, []string{"op", "outcome"}),
		meetingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "meeting_duration_seconds",
			Help:      "Duration of ended meetings.",
			Buckets:   []float64{60, 180, 300, 450, 600, 900, 1200, 1800},
		}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications dispatched after commit, by tag.",
		}, []string{"tag"}),
		wsClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected websocket subscribers.",
		}),
		relayEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_events_total",
			Help:      "Outbox events handled by the relay, by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Admission(result string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(result).Inc()
}

func (m *Metrics) Skip(reason string) {
	if m == nil {
		return
	}
	m.skips.WithLabelValues(reason).Inc()
}

func (m *Metrics) TxAttempt(op, outcome string) {
	if m == nil {
		return
	}
	m.txAttempts.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) MeetingEnded(seconds int) {
	if m == nil {
		return
	}
	m.meetingDuration.Observe(float64(seconds))
}

func (m *Metrics) Notification(tag string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(tag).Inc()
}

func (m *Metrics) WSClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

func (m *Metrics) RelayEvent(outcome string) {
	if m == nil {
		return
	}
	m.relayEvents.WithLabelValues(outcome).Inc()
}
