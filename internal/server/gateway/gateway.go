package gateway

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/internal/core/service"
	"github.com/yndnr/pairmesh-go/internal/infra/presence"
	"github.com/yndnr/pairmesh-go/internal/protocol"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
	"github.com/yndnr/pairmesh-go/internal/telemetry/metric"
	"github.com/yndnr/pairmesh-go/pkg/cmap"
)

// Core is the part of the pairing core the gateway drives.
type Core interface {
	Connect(ctx context.Context, conn service.Conn) (*service.IssueResult, error)
	Admit(ctx context.Context, id string)
	Discard(ctx context.Context, id string)
	Reconnect(ctx context.Context, tok string, conn service.Conn) (*domain.Session, error)
	Relay(ctx context.Context, id string, env protocol.Envelope) error
	Leave(ctx context.Context, id string) error
	Disconnect(ctx context.Context, id string, conn service.Conn) error
}

// Gateway upgrades HTTP requests to WebSocket connections and drives the
// core on their behalf.
type Gateway struct {
	cfg      Config
	core     Core
	presence presence.Reporter
	upgrader websocket.Upgrader

	conns    *cmap.Map[string, *connection]
	wg       sync.WaitGroup
	draining atomic.Bool

	metrics *metric.Registry
	logger  logger.Logger
}

// New creates a gateway. A nil reporter disables presence reporting.
func New(cfg Config, core Core, reporter presence.Reporter, log logger.Logger, metrics *metric.Registry) *Gateway {
	if reporter == nil {
		reporter = presence.Nop{}
	}
	if log == nil {
		log = logger.Default()
	}
	if metrics == nil {
		metrics = metric.NewRegistry()
	}

	g := &Gateway{
		cfg:      cfg.withDefaults(),
		core:     core,
		presence: reporter,
		conns:    cmap.New[string, *connection](),
		metrics:  metrics,
		logger:   logger.Component(log, "gateway"),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		Subprotocols:    protocol.Subprotocols(),
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Not a browser.
		return true
	}
	for _, allowed := range g.cfg.AllowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}
	g.logger.Warn("origin rejected", "origin", origin, "remote", r.RemoteAddr)
	return false
}

// ServeHTTP upgrades the request and starts the connection pumps.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if g.draining.Load() {
		http.Error(w, "server is draining", http.StatusServiceUnavailable)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied.
		g.logger.Debug("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	codec, err := protocol.Lookup(ws.Subprotocol())
	if err != nil {
		g.logger.Warn("unsupported subprotocol", "subprotocol", ws.Subprotocol())
		ws.Close()
		return
	}

	c, err := newConnection(g, ws, codec)
	if err != nil {
		g.logger.Error("failed to create connection", "error", err)
		ws.Close()
		return
	}

	g.conns.Set(c.id, c)
	g.metrics.Connections.Inc()

	g.wg.Add(2)
	go c.writePump()
	go c.readPump()
}

// SetDraining toggles drain mode. While draining, new upgrades are
// refused and existing connections are left alone.
func (g *Gateway) SetDraining(on bool) {
	g.draining.Store(on)
	g.logger.Info("drain mode changed", "draining", on)
}

// Draining reports whether drain mode is on.
func (g *Gateway) Draining() bool {
	return g.draining.Load()
}

// Connections returns the number of open connections.
func (g *Gateway) Connections() int {
	return g.conns.Count()
}

// Shutdown refuses new connections, closes the open ones and waits for
// their pumps to finish or ctx to end.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.draining.Store(true)
	for _, c := range g.conns.Values() {
		c.close()
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
