// Package handler provides HTTP request handlers for PairMesh.
//
// This package contains handlers for the plain HTTP endpoints:
//
//   - health.go: Health and readiness checks
//   - admin.go: Status summary and tombstone GC
//
// The WebSocket gateway and /metrics are mounted by the router directly.
// JSON bodies use Envelope. Errors carry a PM-* code and the HTTP status
// that code encodes.
package handler
