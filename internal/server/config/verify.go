// Package config defines the server configuration structure.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyGateway(&cfg.Gateway); err != nil {
		return err
	}
	if err := verifySession(&cfg.Session); err != nil {
		return err
	}
	if err := verifyMatchmaking(&cfg.Matchmaking); err != nil {
		return err
	}
	if err := verifyPresence(&cfg.Presence); err != nil {
		return err
	}
	if err := verifyMetrics(&cfg.Metrics, cfg.Gateway.Path); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.HTTP.Address == "" {
		return errors.New("server.http.address is required")
	}

	// TLS needs both halves
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and server.http.tls_key_file must be set together")
	}
	for _, f := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("cannot read TLS file: %w", err)
		}
	}

	if cfg.Local.Enabled && cfg.Local.SocketPath == "" {
		return errors.New("server.local.socket_path is required when the local socket is enabled")
	}

	if cfg.RateLimit.PerIPRPS < 0 {
		return errors.New("server.rate_limit.per_ip_rps must not be negative")
	}
	if cfg.RateLimit.PerIPRPS > 0 && cfg.RateLimit.Burst < 1 {
		return errors.New("server.rate_limit.burst must be at least 1")
	}
	return nil
}

func verifyGateway(cfg *GatewaySection) error {
	if !strings.HasPrefix(cfg.Path, "/") {
		return errors.New("gateway.path must start with /")
	}
	if cfg.ReadLimit < 1 {
		return errors.New("gateway.read_limit must be positive")
	}
	if cfg.WriteWait <= 0 || cfg.PongWait <= 0 {
		return errors.New("gateway.write_wait and gateway.pong_wait must be positive")
	}
	if cfg.SendBuffer < 1 {
		return errors.New("gateway.send_buffer must be at least 1")
	}
	if cfg.HandshakeWindow < 0 {
		return errors.New("gateway.handshake_window must not be negative")
	}
	if cfg.InboundRate < 0 {
		return errors.New("gateway.inbound_rate must not be negative")
	}
	if cfg.InboundRate > 0 && cfg.InboundBurst < 1 {
		return errors.New("gateway.inbound_burst must be at least 1")
	}
	return nil
}

func verifySession(cfg *SessionSection) error {
	if err := VerifyGraceWindow(cfg); err != nil {
		return err
	}
	if cfg.TombstoneTTL < 0 {
		return errors.New("session.tombstone_ttl must not be negative")
	}
	if cfg.SweepInterval <= 0 {
		return errors.New("session.sweep_interval must be positive")
	}
	if cfg.OutboxSize < 0 {
		return errors.New("session.outbox_size must not be negative")
	}
	return nil
}

// VerifyGraceWindow checks the grace window range. The reload path uses
// it on its own so a bad edit does not replace a running value.
func VerifyGraceWindow(cfg *SessionSection) error {
	if cfg.GraceWindow < MinGraceWindow || cfg.GraceWindow > MaxGraceWindow {
		return fmt.Errorf("session.grace_window must be between %s and %s, got %s",
			MinGraceWindow, MaxGraceWindow, cfg.GraceWindow)
	}
	return nil
}

func verifyMatchmaking(cfg *MatchmakingSection) error {
	switch cfg.RequeuePosition {
	case RequeueBack, RequeueFront:
		return nil
	default:
		return fmt.Errorf("matchmaking.requeue_position must be %q or %q, got %q",
			RequeueBack, RequeueFront, cfg.RequeuePosition)
	}
}

func verifyPresence(cfg *PresenceSection) error {
	if cfg.Endpoint == "" {
		return nil
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("presence.endpoint must be an http(s) URL, got %q", cfg.Endpoint)
	}
	if cfg.Timeout <= 0 {
		return errors.New("presence.timeout must be positive")
	}
	if cfg.QueueSize < 1 {
		return errors.New("presence.queue_size must be at least 1")
	}
	return nil
}

func verifyMetrics(cfg *MetricsSection, gatewayPath string) error {
	if !cfg.Enabled {
		return nil
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	if cfg.Path == gatewayPath {
		return errors.New("metrics.path must differ from gateway.path")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if !logger.ValidLevel(cfg.Level) {
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "text", "json", "console":
		return nil
	default:
		return fmt.Errorf("log.format must be text or json, got %q", cfg.Format)
	}
}
