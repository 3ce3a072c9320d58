// Package main provides the entry point for pairmesh-server.
//
// The server pairs anonymous WebSocket clients into two-member rooms and
// relays messages between them. It provides:
//
//   - the WebSocket gateway and the health, readiness and admin HTTP API
//   - Prometheus metrics
//   - a local Unix socket for management (no admin token required)
//   - hot reload of log.level, session.grace_window and the TLS certificate
//
// Usage:
//
//	pairmesh-server [flags]
//	pairmesh-server -config /etc/pairmesh/server.yaml
package main
