package config

import (
	"strings"

	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
)

// Sanitize returns a copy of cfg that is safe to log.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	sanitized := *cfg
	sanitized.Gateway.AllowedOrigins = append([]string(nil), cfg.Gateway.AllowedOrigins...)

	if sanitized.Server.AdminToken != "" {
		sanitized.Server.AdminToken = logger.Mask(sanitized.Server.AdminToken)
	}
	if sanitized.Presence.Endpoint != "" {
		sanitized.Presence.Endpoint = maskURLUserinfo(sanitized.Presence.Endpoint)
	}

	return &sanitized
}

// maskURLUserinfo hides credentials embedded in a URL.
func maskURLUserinfo(raw string) string {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return raw
	}
	at := strings.LastIndex(rest, "@")
	slash := strings.Index(rest, "/")
	if at < 0 || (slash >= 0 && at > slash) {
		return raw
	}
	return scheme + "://****@" + rest[at+1:]
}
