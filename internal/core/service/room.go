package service

import (
	"context"
	"sync"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/internal/protocol"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
	"github.com/yndnr/pairmesh-go/internal/telemetry/metric"
)

// RoomCoordinator owns active rooms and relays frames between members.
// Bodies are forwarded untouched; the coordinator never looks inside them.
type RoomCoordinator struct {
	mu    sync.Mutex
	rooms map[string]*domain.Room

	registry *Registry
	requeue  func(ctx context.Context, id string)

	metrics *metric.Registry
	logger  logger.Logger
}

// NewRoomCoordinator creates a coordinator over the sessions in registry.
func NewRoomCoordinator(registry *Registry, log logger.Logger, metrics *metric.Registry) *RoomCoordinator {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = metric.NewRegistry()
	}
	return &RoomCoordinator{
		rooms:    make(map[string]*domain.Room),
		registry: registry,
		metrics:  metrics,
		logger:   logger.Component(log, "rooms"),
	}
}

// eligibilityLocked must be called with e.mu held.
func eligibilityLocked(e *entry) Eligibility {
	s := e.session
	switch {
	case s.State == domain.StateExpired, s.State == domain.StateGrace:
		return Ineligible
	case s.State == domain.StatePaired, s.RoomID != "":
		return Inconsistent
	case e.conn == nil:
		return Ineligible
	}
	return Eligible
}

// Eligibility implements Pairer.
func (c *RoomCoordinator) Eligibility(id string) Eligibility {
	e, ok := c.registry.sessions.Get(id)
	if !ok {
		return Ineligible
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return eligibilityLocked(e)
}

// Pair implements Pairer. Both session locks are held while the room is
// created, so neither session can change state halfway through.
func (c *RoomCoordinator) Pair(ctx context.Context, a, b string) PairResult {
	ea, okA := c.registry.sessions.Get(a)
	eb, okB := c.registry.sessions.Get(b)
	if !okA || !okB || ea == eb {
		res := PairResult{A: Ineligible, B: Ineligible}
		if okA && ea != eb {
			res.A = c.Eligibility(a)
		}
		if okB && ea != eb {
			res.B = c.Eligibility(b)
		}
		return res
	}

	// Callers serialise Pair, so locking a before b cannot deadlock.
	ea.mu.Lock()
	defer ea.mu.Unlock()
	eb.mu.Lock()
	defer eb.mu.Unlock()

	res := PairResult{A: eligibilityLocked(ea), B: eligibilityLocked(eb)}
	if res.A != Eligible || res.B != Eligible {
		return res
	}

	now := c.registry.now()
	room, err := domain.NewRoom(a, b, now)
	if err != nil {
		logger.Or(ctx, c.logger).Error("failed to create room", "error", err)
		return res
	}

	for _, e := range []*entry{ea, eb} {
		if err := e.session.Transition(domain.StatePaired, now); err != nil {
			// Both sessions were checked pending above.
			logger.Or(ctx, c.logger).Error("pair transition failed", "session_id", e.session.ID, "error", err)
			return res
		}
		e.session.RoomID = room.ID
	}

	c.mu.Lock()
	c.rooms[room.ID] = room
	c.mu.Unlock()

	c.registry.deliverLocked(ea, protocol.Paired(room.ID))
	c.registry.deliverLocked(eb, protocol.Paired(room.ID))

	c.metrics.RoomsCreated.Inc()
	logger.Or(ctx, c.logger).Info("room created", "room_id", room.ID, "a", a, "b", b)

	res.RoomID = room.ID
	return res
}

// Relay forwards a message or signal frame from sender to its peer.
// A peer in grace has the frame queued for delivery on resume.
//
// Returns ErrNotInRoom if the sender is not paired.
func (c *RoomCoordinator) Relay(ctx context.Context, sender string, env protocol.Envelope) error {
	if !env.Type.IsRelay() {
		return domain.ErrUnknownMessage.WithDetails(string(env.Type))
	}

	// 1. Sender must be paired
	e, ok := c.registry.sessions.Get(sender)
	if !ok {
		return domain.ErrSessionNotFound
	}
	e.mu.Lock()
	if e.session.State != domain.StatePaired || e.session.RoomID == "" {
		e.mu.Unlock()
		c.metrics.RelayMessages.WithLabelValues("rejected").Inc()
		return domain.ErrNotInRoom
	}
	roomID := e.session.RoomID
	e.session.Touch(c.registry.now())
	e.mu.Unlock()

	// 2. The body must survive either codec
	if err := protocol.Portable(env.Body); err != nil {
		c.metrics.RelayMessages.WithLabelValues("rejected").Inc()
		return err
	}

	// 3. Resolve the peer
	c.mu.Lock()
	room, ok := c.rooms[roomID]
	if !ok || !room.IsActive() {
		c.mu.Unlock()
		c.metrics.RelayMessages.WithLabelValues("rejected").Inc()
		return domain.ErrNotInRoom
	}
	peer, _ := room.Peer(sender)
	c.mu.Unlock()

	// 4. Deliver if the peer is still in the same room
	pe, ok := c.registry.sessions.Get(peer)
	if !ok {
		c.metrics.RelayMessages.WithLabelValues("dropped").Inc()
		return nil
	}
	pe.mu.Lock()
	d := DeliveryDropped
	if pe.session.RoomID == roomID {
		d = c.registry.deliverLocked(pe, protocol.Relay(env.Type, env.Body))
	}
	pe.mu.Unlock()

	c.metrics.RelayMessages.WithLabelValues(d.String()).Inc()
	return nil
}

// Leave closes roomID on behalf of leaver. The remaining member gets
// exactly one peer_left and goes back to pending. A member in grace has
// peer_left queued and is requeued once it resumes.
//
// Closing a room that is already gone is a no-op.
func (c *RoomCoordinator) Leave(ctx context.Context, roomID, leaver string) error {
	// 1. Close the room exactly once
	c.mu.Lock()
	room, ok := c.rooms[roomID]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	if !room.Has(leaver) {
		c.mu.Unlock()
		return domain.ErrNotInRoom
	}
	room.Close(c.registry.now())
	delete(c.rooms, roomID)
	peer, _ := room.Peer(leaver)
	c.mu.Unlock()

	logger.Or(ctx, c.logger).Info("room closed", "room_id", roomID, "left", leaver)

	// 2. Release the partner
	pe, ok := c.registry.sessions.Get(peer)
	if !ok {
		return nil
	}

	requeue := false
	pe.mu.Lock()
	if pe.session.RoomID == roomID {
		pe.session.RoomID = ""
		switch pe.session.State {
		case domain.StatePaired:
			if err := pe.session.Transition(domain.StatePending, c.registry.now()); err != nil {
				pe.mu.Unlock()
				return err
			}
			c.registry.deliverLocked(pe, protocol.PeerLeft())
			requeue = pe.conn != nil
		case domain.StateGrace:
			c.registry.deliverLocked(pe, protocol.PeerLeft())
		}
	}
	pe.mu.Unlock()

	// 3. Back in line
	if requeue && c.requeue != nil {
		c.requeue(ctx, peer)
	}
	return nil
}

// Get returns a copy of an active room.
func (c *RoomCoordinator) Get(roomID string) (*domain.Room, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	room, ok := c.rooms[roomID]
	if !ok {
		return nil, false
	}
	clone := *room
	return &clone, true
}

// Len returns the number of active rooms.
func (c *RoomCoordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rooms)
}
