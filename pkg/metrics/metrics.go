package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the Prometheus instruments used by the engine and relay.
// All methods are safe on a nil receiver.
type Metrics struct {
	Turns          *prometheus.CounterVec
	Validations    *prometheus.CounterVec
	Completions    *prometheus.CounterVec
	ActiveDialogs  prometheus.Gauge
	Conversations  prometheus.Gauge
	HTTPRequests   *prometheus.CounterVec
	HTTPLatency    *prometheus.HistogramVec
	TurnLatency    prometheus.Histogram
	HookFailures   prometheus.Counter
	ReapedSessions prometheus.Counter
	registry       prometheus.Gatherer
}

// New registers the instruments on reg. A nil reg uses a private registry.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	f := promauto.With(reg)

	return &Metrics{
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "User turns handled, by dialog and phase.",
		}, []string{"dialog", "phase"}),
		Validations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_validations_total",
			Help:      "Field validations by field and result.",
		}, []string{"field", "result"}),
		Completions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialog_completions_total",
			Help:      "Finished dialogs by outcome.",
		}, []string{"dialog", "outcome"}),
		ActiveDialogs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_dialogs",
			Help:      "Dialogs started and not yet completed in this process.",
		}),
		Conversations: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_conversations",
			Help:      "Conversations held by the relay.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"method", "route"}),
		TurnLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_ms",
			Help:      "Engine turn latency in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
		HookFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hook_failures_total",
			Help:      "Failed on_complete hook calls.",
		}),
		ReapedSessions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaped_conversations_total",
			Help:      "Idle conversations removed by the reaper.",
		}),
		registry: gatherer,
	}
}

func (m *Metrics) ObserveTurn(dialog, phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(dialog, phase).Inc()
	m.TurnLatency.Observe(float64(d.Microseconds()) / 1000)
}

func (m *Metrics) ObserveValidation(field string, accepted bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	m.Validations.WithLabelValues(field, result).Inc()
}

func (m *Metrics) DialogStarted() {
	if m == nil {
		return
	}
	m.ActiveDialogs.Inc()
}

func (m *Metrics) DialogCompleted(dialog string, saved bool) {
	if m == nil {
		return
	}
	outcome := "discarded"
	if saved {
		outcome = "saved"
	}
	m.Completions.WithLabelValues(dialog, outcome).Inc()
	m.ActiveDialogs.Dec()
}

func (m *Metrics) HookFailed() {
	if m == nil {
		return
	}
	m.HookFailures.Inc()
}

func (m *Metrics) SetConversations(n int) {
	if m == nil {
		return
	}
	m.Conversations.Set(float64(n))
}

func (m *Metrics) Reaped(n int) {
	if m == nil {
		return
	}
	m.ReapedSessions.Add(float64(n))
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.HTTPLatency.WithLabelValues(method, route).Observe(float64(d.Microseconds()) / 1000)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Handler exposes the registry the instruments were registered on.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
