// Package service implements the PairMesh pairing core.
//
//   - Registry: token to session mapping, session state machine, grace timers
//   - Matchmaker: FIFO queue of waiting sessions and the atomic pairing step
//   - RoomCoordinator: room membership, opaque relay, departures
//   - Hub: wiring between the three and the entry point for the gateway
//
// Locking:
//
// Each session record carries its own mutex and is the single owner of
// that session's state. The matchmaker mutex guards the queue; the room
// coordinator mutex guards the room table. Locks are only ever taken in
// the order matchmaker, session, rooms. A path holding a session lock
// never calls into the matchmaker; it releases first.
//
// Outbound frames are handed to Conn.Send, which never blocks.
package service
