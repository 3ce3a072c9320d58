// Package config defines the server configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddress = "127.0.0.1:5080"
	DefaultLocalSocket = "/tmp/pairmesh.sock"
	DefaultPerIPRPS    = 20
	DefaultIPBurst     = 40

	DefaultGatewayPath     = "/ws"
	DefaultReadLimit       = 64 * 1024
	DefaultWriteWait       = 10 * time.Second
	DefaultPongWait        = 60 * time.Second
	DefaultSendBuffer      = 256
	DefaultHandshakeWindow = 500 * time.Millisecond
	DefaultInboundRate     = 30
	DefaultInboundBurst    = 60

	DefaultGraceWindow   = 30 * time.Second
	MinGraceWindow       = time.Second
	MaxGraceWindow       = 10 * time.Minute
	DefaultTombstoneTTL  = 5 * time.Minute
	DefaultSweepInterval = time.Minute
	DefaultOutboxSize    = 32

	RequeueBack  = "back"
	RequeueFront = "front"

	DefaultPresenceTimeout   = 2 * time.Second
	DefaultPresenceQueueSize = 1024

	DefaultMetricsPath = "/metrics"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Address: DefaultHTTPAddress,
			},
			Local: LocalConfig{
				Enabled:    true,
				SocketPath: DefaultLocalSocket,
			},
			RateLimit: RateLimitConfig{
				PerIPRPS: DefaultPerIPRPS,
				Burst:    DefaultIPBurst,
			},
		},
		Gateway: GatewaySection{
			Path:            DefaultGatewayPath,
			ReadLimit:       DefaultReadLimit,
			WriteWait:       DefaultWriteWait,
			PongWait:        DefaultPongWait,
			SendBuffer:      DefaultSendBuffer,
			HandshakeWindow: DefaultHandshakeWindow,
			InboundRate:     DefaultInboundRate,
			InboundBurst:    DefaultInboundBurst,
		},
		Session: SessionSection{
			GraceWindow:   DefaultGraceWindow,
			TombstoneTTL:  DefaultTombstoneTTL,
			SweepInterval: DefaultSweepInterval,
			OutboxSize:    DefaultOutboxSize,
		},
		Matchmaking: MatchmakingSection{
			RequeuePosition: RequeueBack,
		},
		Presence: PresenceSection{
			Timeout:   DefaultPresenceTimeout,
			QueueSize: DefaultPresenceQueueSize,
		},
		Metrics: MetricsSection{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
