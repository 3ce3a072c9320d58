package service

import (
	"context"
	"errors"
	"time"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/internal/protocol"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
	"github.com/yndnr/pairmesh-go/internal/telemetry/metric"
)

// HubConfig configures the pairing core.
type HubConfig struct {
	Registry RegistryConfig

	// RequeueFront puts partners of departed sessions at the head of the
	// queue instead of the tail.
	RequeueFront bool
}

// DefaultHubConfig returns the default core configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{Registry: DefaultRegistryConfig()}
}

// Stats is a point-in-time view of the core.
type Stats struct {
	Sessions    map[domain.SessionState]int `json:"sessions"`
	RoomsActive int                         `json:"rooms_active"`
	QueueDepth  int                         `json:"queue_depth"`
	GraceWindow time.Duration               `json:"grace_window"`
	Uptime      time.Duration               `json:"uptime"`
}

// Hub wires the registry, matchmaker and room coordinator together and is
// the only entry point the gateway uses.
type Hub struct {
	Registry   *Registry
	Matchmaker *Matchmaker
	Rooms      *RoomCoordinator

	metrics   *metric.Registry
	logger    logger.Logger
	startedAt time.Time
}

// NewHub creates the pairing core.
func NewHub(cfg HubConfig, log logger.Logger, metrics *metric.Registry) (*Hub, error) {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = metric.NewRegistry()
	}

	registry, err := NewRegistry(cfg.Registry, log, metrics)
	if err != nil {
		return nil, err
	}
	rooms := NewRoomCoordinator(registry, log, metrics)
	mm := NewMatchmaker(rooms, cfg.RequeueFront, log, metrics)

	h := &Hub{
		Registry:   registry,
		Matchmaker: mm,
		Rooms:      rooms,
		metrics:    metrics,
		logger:     logger.Component(log, "hub"),
		startedAt:  time.Now(),
	}
	registry.onExpired = h.onExpired
	rooms.requeue = func(ctx context.Context, id string) { mm.Requeue(ctx, id) }
	mm.teardown = h.teardown
	return h, nil
}

// Connect issues a session for a new connection and sends it welcome.
// The session is not queued until Admit.
func (h *Hub) Connect(ctx context.Context, conn Conn) (*IssueResult, error) {
	return h.Registry.Issue(ctx, conn)
}

// Admit puts a freshly issued session in the pairing queue. A session
// that was discarded or lost its connection in the meantime stays out.
func (h *Hub) Admit(ctx context.Context, id string) {
	h.Matchmaker.Enqueue(ctx, id)
}

// Discard expires a session that was issued but superseded by a resume
// on the same connection before it was admitted.
func (h *Hub) Discard(ctx context.Context, id string) {
	if err := h.Registry.Expire(ctx, id, domain.ReasonSuperseded); err != nil &&
		!errors.Is(err, domain.ErrSessionExpired) {
		logger.Or(ctx, h.logger).Warn("failed to discard session", "session_id", id, "error", err)
	}
}

// Reconnect resumes the session bound to tok on conn. A resumed session
// without a room goes back into the queue.
func (h *Hub) Reconnect(ctx context.Context, tok string, conn Conn) (*domain.Session, error) {
	s, err := h.Registry.MarkReconnected(ctx, tok, conn)
	if err != nil {
		h.metrics.Reconnects.WithLabelValues(reconnectResult(err)).Inc()
		return nil, err
	}
	h.metrics.Reconnects.WithLabelValues("ok").Inc()

	if s.State == domain.StatePending {
		h.Matchmaker.Enqueue(ctx, s.ID)
	}
	return s, nil
}

func reconnectResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrAlreadyBound):
		return "already_bound"
	case errors.Is(err, domain.ErrTokenNotFound), errors.Is(err, domain.ErrTokenMalformed):
		return "unknown"
	}
	return "error"
}

// Relay forwards a message or signal frame to the sender's peer.
func (h *Hub) Relay(ctx context.Context, id string, env protocol.Envelope) error {
	return h.Rooms.Relay(ctx, id, env)
}

// Leave ends a session at the client's request. Leaving twice is a no-op.
func (h *Hub) Leave(ctx context.Context, id string) error {
	err := h.Registry.Expire(ctx, id, domain.ReasonLeave)
	if errors.Is(err, domain.ErrSessionExpired) {
		return nil
	}
	return err
}

// Disconnect starts the grace window for the session bound to conn.
func (h *Hub) Disconnect(ctx context.Context, id string, conn Conn) error {
	prev, err := h.Registry.MarkDisconnected(ctx, id, conn)
	if err != nil {
		return err
	}
	if prev == domain.StatePending {
		h.Matchmaker.Dequeue(ctx, id)
	}
	return nil
}

func (h *Hub) onExpired(ctx context.Context, ev ExpiredEvent) {
	if ev.RoomID != "" {
		if err := h.Rooms.Leave(ctx, ev.RoomID, ev.SessionID); err != nil {
			logger.Or(ctx, h.logger).Warn("room cleanup failed",
				"session_id", ev.SessionID,
				"room_id", ev.RoomID,
				"error", err)
		}
	}
	h.Matchmaker.Dequeue(ctx, ev.SessionID)
}

func (h *Hub) teardown(ctx context.Context, id string) {
	if err := h.Registry.Expire(ctx, id, domain.ReasonTeardown); err != nil &&
		!errors.Is(err, domain.ErrSessionExpired) {
		logger.Or(ctx, h.logger).Error("teardown failed", "session_id", id, "error", err)
	}
}

// SetGraceWindow changes the grace window for future disconnects.
func (h *Hub) SetGraceWindow(d time.Duration) {
	h.Registry.SetGraceWindow(d)
	h.logger.Info("grace window updated", "grace_window", d)
}

// Sweep removes old tombstones.
func (h *Hub) Sweep(ctx context.Context) int {
	return h.Registry.Sweep(ctx)
}

// RunSweeper sweeps tombstones every interval until ctx is done.
func (h *Hub) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Sweep(ctx)
		}
	}
}

// Stats returns a snapshot of the core.
func (h *Hub) Stats() Stats {
	return Stats{
		Sessions:    h.Registry.Counts(),
		RoomsActive: h.Rooms.Len(),
		QueueDepth:  h.Matchmaker.Len(),
		GraceWindow: h.Registry.GraceWindow(),
		Uptime:      time.Since(h.startedAt),
	}
}

// MetricSnapshot adapts Stats for the scrape-time collector.
func (h *Hub) MetricSnapshot() metric.Snapshot {
	st := h.Stats()
	sessions := make(map[string]int, len(st.Sessions))
	for state, n := range st.Sessions {
		sessions[string(state)] = n
	}
	return metric.Snapshot{
		Sessions:    sessions,
		RoomsActive: st.RoomsActive,
		QueueDepth:  st.QueueDepth,
	}
}
