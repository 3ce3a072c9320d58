package gateway

import "time"

// Config configures the gateway.
type Config struct {
	// AllowedOrigins restricts browser origins. Empty allows any origin.
	AllowedOrigins []string

	// ReadLimit is the largest inbound frame in bytes.
	ReadLimit int64

	// WriteWait bounds a single frame write.
	WriteWait time.Duration

	// PongWait is how long a silent peer is kept. Pings go out at 9/10
	// of it.
	PongWait time.Duration

	// SendBuffer bounds queued outbound frames per connection.
	SendBuffer int

	// HandshakeWindow is how long a new session waits for a resume
	// attempt before it is admitted. Zero admits immediately.
	HandshakeWindow time.Duration

	// InboundRate and InboundBurst limit frames per connection.
	InboundRate  float64
	InboundBurst int
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{
		ReadLimit:       64 * 1024,
		WriteWait:       10 * time.Second,
		PongWait:        60 * time.Second,
		SendBuffer:      256,
		HandshakeWindow: 500 * time.Millisecond,
		InboundRate:     30,
		InboundBurst:    60,
	}
}

// withDefaults fills unset durations and sizes from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ReadLimit <= 0 {
		c.ReadLimit = d.ReadLimit
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.InboundBurst <= 0 {
		c.InboundBurst = d.InboundBurst
	}
	return c
}

func (c Config) pingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}
