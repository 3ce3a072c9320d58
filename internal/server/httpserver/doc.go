// Package httpserver provides the HTTP/HTTPS server for PairMesh.
//
// This package mounts every HTTP-facing surface using stdlib net/http:
//
//   - WebSocket gateway: /ws (configurable)
//   - Health endpoints: /health, /ready
//   - Metrics: /metrics (Prometheus exposition)
//   - Admin endpoints: /admin/v1/status/summary, /admin/v1/gc/trigger
//
// Middleware: RequestID, Recover, per-IP RateLimit (x/time/rate),
// AccessLog, Instrument (latency histogram) and AdminAuth (bearer token).
// The gateway route skips the writer-wrapping middleware so the upgrade
// can hijack the connection.
package httpserver
