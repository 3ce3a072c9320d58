// Package metric provides Prometheus metrics for PairMesh.
//
//   - prometheus.go: the metric registry, event counters and the /metrics handler
//   - collector.go: a scrape-time collector for session, room and queue gauges
//
// Each Registry owns its own prometheus.Registry so tests can build as many
// as they like without colliding on the global default registerer.
package metric
