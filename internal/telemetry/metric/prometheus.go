package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pairmesh"

// Registry holds all application metrics.
type Registry struct {
	reg *prometheus.Registry

	// Session metrics
	SessionsCreated prometheus.Counter
	SessionsExpired *prometheus.CounterVec // reason
	Reconnects      *prometheus.CounterVec // result
	OutboxDropped   prometheus.Counter

	// Pairing metrics
	RoomsCreated         prometheus.Counter
	RelayMessages        *prometheus.CounterVec // result
	QueueInconsistencies prometheus.Counter

	// Gateway metrics
	Connections   prometheus.Gauge
	FramesDropped *prometheus.CounterVec // reason

	// Collaborator metrics
	PresenceEvents *prometheus.CounterVec // result

	// Request metrics
	RequestDuration *prometheus.HistogramVec // method, route, status
}

// NewRegistry creates a registry with every PairMesh metric registered,
// plus the Go runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions issued to new connections.",
		}),
		SessionsExpired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_expired_total",
			Help:      "Sessions that reached the expired state, by reason.",
		}, []string{"reason"}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Resume attempts, by result.",
		}, []string{"result"}),
		OutboxDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_dropped_total",
			Help:      "Messages dropped from full grace-window outboxes.",
		}),
		RoomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Rooms created by the matchmaker.",
		}),
		RelayMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_messages_total",
			Help:      "Relay payloads, by delivery result.",
		}, []string{"result"}),
		QueueInconsistencies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_inconsistencies_total",
			Help:      "Queue entries that contradicted session state and were torn down.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "connections",
			Help:      "Open client connections.",
		}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "frames_dropped_total",
			Help:      "Inbound frames dropped without closing the connection, by reason.",
		}, []string{"reason"}),
		PresenceEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_events_total",
			Help:      "Presence notifications, by result.",
		}, []string{"result"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.SessionsCreated,
		r.SessionsExpired,
		r.Reconnects,
		r.OutboxDropped,
		r.RoomsCreated,
		r.RelayMessages,
		r.QueueInconsistencies,
		r.Connections,
		r.FramesDropped,
		r.PresenceEvents,
		r.RequestDuration,
	)
	return r
}

// MustRegister registers additional collectors.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.reg.MustRegister(cs...)
}

// Gatherer exposes the underlying registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{
		Registry: r.reg,
	})
}
