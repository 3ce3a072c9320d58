package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot is a point-in-time view of pairing state.
type Snapshot struct {
	Sessions    map[string]int // by state
	RoomsActive int
	QueueDepth  int
}

// Collector reports pairing gauges by reading a Snapshot at scrape time,
// so no gauge bookkeeping is needed on the hot path.
type Collector struct {
	snapshot func() Snapshot

	sessions *prometheus.Desc
	rooms    *prometheus.Desc
	queue    *prometheus.Desc
}

// NewCollector creates a collector backed by the given snapshot function.
func NewCollector(snapshot func() Snapshot) *Collector {
	return &Collector{
		snapshot: snapshot,
		sessions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "sessions"),
			"Sessions currently held, by state.",
			[]string{"state"}, nil,
		),
		rooms: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "rooms_active"),
			"Rooms currently active.",
			nil, nil,
		),
		queue: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "queue_depth"),
			"Sessions waiting in the matchmaking queue.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sessions
	ch <- c.rooms
	ch <- c.queue
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.snapshot()
	for state, n := range s.Sessions {
		ch <- prometheus.MustNewConstMetric(c.sessions, prometheus.GaugeValue, float64(n), state)
	}
	ch <- prometheus.MustNewConstMetric(c.rooms, prometheus.GaugeValue, float64(s.RoomsActive))
	ch <- prometheus.MustNewConstMetric(c.queue, prometheus.GaugeValue, float64(s.QueueDepth))
}
