// Package gateway is the WebSocket front of the pairing core.
//
// Every accepted connection gets a fresh session and its welcome frame.
// That session stays provisional for a short handshake window so that a
// client resuming an older session can claim it first; otherwise it is
// admitted to the matchmaker.
//
// Each connection runs one read pump and one write pump. Outbound frames
// go through a bounded buffer; a client that cannot keep up is dropped
// and its session enters the grace window like any other disconnect.
package gateway
