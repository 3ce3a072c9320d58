package httpserver

import (
	"net/http"

	"github.com/yndnr/pairmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
	"github.com/yndnr/pairmesh-go/internal/telemetry/metric"
)

// Gateway is the WebSocket endpoint plus the state the handlers report.
type Gateway interface {
	http.Handler
	handler.Gateway
}

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Core backs the status and GC endpoints.
	Core handler.Core

	// Gateway is mounted at GatewayPath.
	Gateway     Gateway
	GatewayPath string

	// Metrics is required. MetricsPath empty disables the exposition endpoint.
	Metrics     *metric.Registry
	MetricsPath string

	// AdminToken guards /admin/v1. Empty disables the admin API.
	AdminToken string

	// RateLimitRPS and RateLimitBurst bound requests per client IP.
	RateLimitRPS   float64
	RateLimitBurst int

	Logger logger.Logger
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		GatewayPath:    "/ws",
		MetricsPath:    "/metrics",
		RateLimitRPS:   20,
		RateLimitBurst: 40,
	}
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}
	log = logger.Component(log, "http")
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = metric.NewRegistry()
	}

	h := handler.New(cfg.Core, cfg.Gateway, log)
	limit := RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// route builds the standard chain for a plain HTTP endpoint.
	// Order: RequestID -> Recover -> AccessLog -> Instrument -> extra -> Handler
	route := func(name string, next http.Handler, extra ...Middleware) http.Handler {
		mws := []Middleware{RequestID(), Recover(log), AccessLog(log), Instrument(metrics, name)}
		return Chain(next, append(mws, extra...)...)
	}

	mux := http.NewServeMux()

	// The upgrade hijacks the connection, so nothing here may wrap the writer.
	if cfg.Gateway != nil {
		path := cfg.GatewayPath
		if path == "" {
			path = "/ws"
		}
		mux.Handle("GET "+path, Chain(cfg.Gateway, RequestID(), Recover(log), limit))
	}

	mux.Handle("GET /health", route("/health", h))
	mux.Handle("GET /ready", route("/ready", h))

	if cfg.MetricsPath != "" {
		mux.Handle("GET "+cfg.MetricsPath, Chain(metrics.Handler(), Recover(log)))
	}

	admin := func(name string) http.Handler {
		return route(name, h, limit, AdminAuth(cfg.AdminToken))
	}
	mux.Handle("GET /admin/v1/status/summary", admin("/admin/v1/status/summary"))
	mux.Handle("POST /admin/v1/gc/trigger", admin("/admin/v1/gc/trigger"))

	return mux
}
