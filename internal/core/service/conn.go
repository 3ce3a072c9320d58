package service

import "github.com/yndnr/pairmesh-go/internal/protocol"

// Conn is the outbound half of a client connection as the core sees it.
type Conn interface {
	// ID identifies the connection in logs.
	ID() string

	// Send enqueues env without blocking. It returns false if the
	// connection is closed or its send buffer is full.
	Send(env protocol.Envelope) bool
}
