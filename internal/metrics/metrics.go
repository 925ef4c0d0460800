// Package metrics holds the prometheus collectors of the tip pipeline and
// the HTTP endpoint that serves them. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danhigham/tipcharm/internal/domain"
)

const namespace = "tipcharm"

type Metrics struct {
	registry *prometheus.Registry

	UpdatesReceived  *prometheus.CounterVec
	MessagesAccepted prometheus.Counter
	MessagesDropped  *prometheus.CounterVec
	EventsExtracted  prometheus.Counter
	EventsDuplicate  prometheus.Counter
	AlertsPlayed     *prometheus.CounterVec
	QueueDepth       prometheus.Gauge
	AuthStateGauge   prometheus.Gauge
}

// New registers every collector on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		UpdatesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_received_total",
			Help:      "Total number of protocol updates received, by kind",
		}, []string{"kind"}),
		MessagesAccepted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_accepted_total",
			Help:      "Total number of messages accepted from the allowed sender",
		}),
		MessagesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Total number of messages dropped, by reason",
		}, []string{"reason"}),
		EventsExtracted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_extracted_total",
			Help:      "Total number of tip events extracted from messages",
		}),
		EventsDuplicate: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_duplicate_total",
			Help:      "Total number of tip events discarded as duplicates",
		}),
		AlertsPlayed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_played_total",
			Help:      "Total number of alerts started, by media tier (0 is text only)",
		}, []string{"tier"}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of tip events waiting to be played",
		}),
		AuthStateGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "auth_state",
			Help:      "Current authorization state as its numeric code",
		}),
	}

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the private registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) UpdateReceived(kind string) {
	if m == nil {
		return
	}
	m.UpdatesReceived.WithLabelValues(kind).Inc()
}

func (m *Metrics) MessageAccepted() {
	if m == nil {
		return
	}
	m.MessagesAccepted.Inc()
}

func (m *Metrics) MessageDropped(reason string) {
	if m == nil {
		return
	}
	m.MessagesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) EventExtracted() {
	if m == nil {
		return
	}
	m.EventsExtracted.Inc()
}

func (m *Metrics) Duplicate() {
	if m == nil {
		return
	}
	m.EventsDuplicate.Inc()
}

func (m *Metrics) AlertPlayed(tier int) {
	if m == nil {
		return
	}
	m.AlertsPlayed.WithLabelValues(strconv.Itoa(tier)).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) AuthState(state domain.AuthState) {
	if m == nil {
		return
	}
	m.AuthStateGauge.Set(float64(state))
}
