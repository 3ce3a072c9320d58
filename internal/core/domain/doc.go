// Package domain defines the core domain models for PairMesh.
//
// Domain models are pure value objects and entities without any
// IO dependencies or framework coupling. This package contains:
//
//   - Session: an anonymous participant and its pairing state machine
//   - Room: the pairing of exactly two sessions
//   - Token: opaque resume secrets and their keyed hashes
//   - Errors: domain error codes shared by every layer
//
// Mutation ordering is the caller's responsibility; the service layer
// serializes access per session.
package domain
