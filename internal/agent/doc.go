// Package agent is the client side of the pairing protocol.
//
// An Agent holds one WebSocket connection to the gateway, keeps the
// session token in a TokenStore, and resumes the session after a dropped
// connection with bounded, exponentially backed-off attempts. Its
// lifecycle is an explicit state machine:
//
//	connecting --dialed--> open --lost--> reconnecting --dialed--> open
//	reconnecting --exhausted--> closed
//	any --left--> closed
//
// Transition is total: every state and event pair has a defined result,
// and pairs without an entry leave the state unchanged.
package agent
