// Package observability exposes the server internals as Prometheus metrics.
package observability

import (
	"net/http"
	"roomchat/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roomchat"

// Metrics owns its registry so several servers can live in one process (tests).
type Metrics struct {
	registry *prometheus.Registry

	roomMembers    *prometheus.GaugeVec
	published      *prometheus.CounterVec
	lagged         *prometheus.CounterVec
	sessionsActive prometheus.Gauge
	sessionsTotal  prometheus.Counter
	sessionErrors  *prometheus.CounterVec
	processRSS     prometheus.Gauge
	processCPU     prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		roomMembers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "room_members",
			Help:      "Current number of members per room",
		}, []string{"room"}),
		published: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Total number of events published per room",
		}, []string{"room"}),
		lagged: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lagged_events_total",
			Help:      "Total number of events skipped by slow sessions per room",
		}, []string{"room"}),
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Current number of connected sessions",
		}),
		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of sessions opened",
		}),
		sessionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_total",
			Help:      "Total number of errors reported to sessions by kind",
		}, []string{"kind"}),
		processRSS: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_rss_bytes",
			Help:      "Resident memory of the server process",
		}),
		processCPU: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_cpu_percent",
			Help:      "CPU usage of the server process",
		}),
	}
}

func (m *Metrics) RoomMembersDelta(roomID domain.RoomID, delta int64) {
	m.roomMembers.WithLabelValues(string(roomID)).Add(float64(delta))
}

func (m *Metrics) MessagePublished(roomID domain.RoomID) {
	m.published.WithLabelValues(string(roomID)).Inc()
}

func (m *Metrics) Lagged(roomID domain.RoomID, missed uint64) {
	m.lagged.WithLabelValues(string(roomID)).Add(float64(missed))
}

func (m *Metrics) SessionOpened() {
	m.sessionsActive.Inc()
	m.sessionsTotal.Inc()
}

func (m *Metrics) SessionClosed() {
	m.sessionsActive.Dec()
}

func (m *Metrics) SessionError(kind string) {
	m.sessionErrors.WithLabelValues(kind).Inc()
}

// Process records a heartbeat sample.
func (m *Metrics) Process(rss uint64, cpuPercent float64) {
	m.processRSS.Set(float64(rss))
	m.processCPU.Set(cpuPercent)
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
