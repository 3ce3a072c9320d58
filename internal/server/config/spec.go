// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for pairmesh-server.
type ServerConfig struct {
	Server      ServerSection      `koanf:"server"`
	Gateway     GatewaySection     `koanf:"gateway"`
	Session     SessionSection     `koanf:"session"`
	Matchmaking MatchmakingSection `koanf:"matchmaking"`
	Presence    PresenceSection    `koanf:"presence"`
	Metrics     MetricsSection     `koanf:"metrics"`
	Log         LogSection         `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP      HTTPConfig      `koanf:"http"`
	Local     LocalConfig     `koanf:"local"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`

	// AdminToken guards /admin/v1. Empty disables the admin API.
	AdminToken string `koanf:"admin_token"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Address     string `koanf:"address"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`
}

// LocalConfig configures the local management socket.
type LocalConfig struct {
	Enabled    bool   `koanf:"enabled"`
	SocketPath string `koanf:"socket_path"`
}

// RateLimitConfig configures the per-IP HTTP rate limiter.
type RateLimitConfig struct {
	PerIPRPS float64 `koanf:"per_ip_rps"`
	Burst    int     `koanf:"burst"`
}

// GatewaySection configures the WebSocket gateway.
type GatewaySection struct {
	Path            string        `koanf:"path"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	ReadLimit       int64         `koanf:"read_limit"`
	WriteWait       time.Duration `koanf:"write_wait"`
	PongWait        time.Duration `koanf:"pong_wait"`
	SendBuffer      int           `koanf:"send_buffer"`
	HandshakeWindow time.Duration `koanf:"handshake_window"`
	InboundRate     float64       `koanf:"inbound_rate"`
	InboundBurst    int           `koanf:"inbound_burst"`
}

// SessionSection configures session lifetimes.
type SessionSection struct {
	// GraceWindow is how long a disconnected session stays resumable.
	// Hot reloadable.
	GraceWindow time.Duration `koanf:"grace_window"`

	// TombstoneTTL is how long expired sessions are remembered.
	TombstoneTTL time.Duration `koanf:"tombstone_ttl"`

	// SweepInterval is how often tombstones are swept.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// OutboxSize bounds frames held for a session in grace.
	OutboxSize int `koanf:"outbox_size"`
}

// MatchmakingSection configures the pairing queue.
type MatchmakingSection struct {
	// RequeuePosition is "back" or "front".
	RequeuePosition string `koanf:"requeue_position"`
}

// PresenceSection configures the presence collaborator.
type PresenceSection struct {
	// Endpoint receives presence events. Empty disables reporting.
	Endpoint  string        `koanf:"endpoint"`
	Timeout   time.Duration `koanf:"timeout"`
	QueueSize int           `koanf:"queue_size"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// LogSection configures logging. Level is hot reloadable.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
