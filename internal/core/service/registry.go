package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/internal/protocol"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
	"github.com/yndnr/pairmesh-go/internal/telemetry/metric"
	"github.com/yndnr/pairmesh-go/pkg/cmap"
)

const maxIssueAttempts = 3

// RegistryConfig configures session lifetimes.
type RegistryConfig struct {
	// GraceWindow is how long a disconnected session stays resumable.
	GraceWindow time.Duration

	// TombstoneTTL is how long an expired session is kept so that its
	// token is reported as expired rather than unknown.
	TombstoneTTL time.Duration

	// OutboxSize bounds the frames held for a session in grace.
	OutboxSize int
}

// DefaultRegistryConfig returns the default session lifetimes.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		GraceWindow:  30 * time.Second,
		TombstoneTTL: 5 * time.Minute,
		OutboxSize:   32,
	}
}

// ExpiredEvent describes a session that has just expired.
type ExpiredEvent struct {
	SessionID string
	RoomID    string
	Prev      domain.SessionState
	Reason    domain.ExpireReason
}

// IssueResult is returned by Issue.
type IssueResult struct {
	// Token is the plaintext resume token. It is only ever sent to the
	// client in the welcome frame.
	Token   string
	Session *domain.Session
}

// Delivery is the outcome of handing a frame to a session.
type Delivery int

const (
	DeliveryDropped Delivery = iota
	DeliverySent
	DeliveryQueued
)

func (d Delivery) String() string {
	switch d {
	case DeliverySent:
		return "sent"
	case DeliveryQueued:
		return "queued"
	}
	return "dropped"
}

type entry struct {
	mu      sync.Mutex
	session *domain.Session
	conn    Conn
	timer   *time.Timer
	gen     uint64
	outbox  []protocol.Envelope
}

// Registry owns every session and its resume token.
//
// Tokens are indexed by keyed hash only. Expired sessions remain as
// tombstones until Sweep removes them.
type Registry struct {
	sessions *cmap.Map[string, *entry]
	tokens   *cmap.Map[string, string]
	minter   *domain.TokenMinter

	grace        atomic.Int64
	tombstoneTTL time.Duration
	outboxSize   int

	onExpired func(ctx context.Context, ev ExpiredEvent)

	metrics *metric.Registry
	logger  logger.Logger
	now     func() time.Time
}

// NewRegistry creates a registry with a fresh per-process hash key.
func NewRegistry(cfg RegistryConfig, log logger.Logger, metrics *metric.Registry) (*Registry, error) {
	if cfg.GraceWindow <= 0 {
		return nil, domain.ErrInvalidArgument.WithDetails("grace window must be positive")
	}
	minter, err := domain.NewTokenMinter()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = metric.NewRegistry()
	}

	r := &Registry{
		sessions:     cmap.New[string, *entry](),
		tokens:       cmap.New[string, string](),
		minter:       minter,
		tombstoneTTL: cfg.TombstoneTTL,
		outboxSize:   cfg.OutboxSize,
		metrics:      metrics,
		logger:       logger.Component(log, "registry"),
		now:          time.Now,
	}
	r.grace.Store(int64(cfg.GraceWindow))
	return r, nil
}

// GraceWindow returns the current grace window.
func (r *Registry) GraceWindow() time.Duration {
	return time.Duration(r.grace.Load())
}

// SetGraceWindow changes the grace window for disconnects that happen
// from now on. Running grace timers keep their original deadline.
func (r *Registry) SetGraceWindow(d time.Duration) {
	if d > 0 {
		r.grace.Store(int64(d))
	}
}

// Issue creates a pending session bound to conn and sends it the welcome
// frame. The session is visible to other callers only after welcome has
// been handed to conn.
func (r *Registry) Issue(ctx context.Context, conn Conn) (*IssueResult, error) {
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		// 1. Generate token and session
		plaintext, hash, err := r.minter.Mint()
		if err != nil {
			return nil, err
		}
		session, err := domain.NewSession(hash, r.now())
		if err != nil {
			return nil, err
		}

		// 2. Claim the hash
		if !r.tokens.SetIfAbsent(hash, session.ID) {
			r.logger.Warn("token hash collision, regenerating", "attempt", attempt+1)
			continue
		}

		// 3. Publish with welcome as the first frame
		e := &entry{session: session, conn: conn}
		e.mu.Lock()
		r.sessions.Set(session.ID, e)
		if conn != nil {
			conn.Send(protocol.Welcome(plaintext))
		}
		snapshot := session.Clone()
		e.mu.Unlock()

		r.metrics.SessionsCreated.Inc()
		logger.Or(ctx, r.logger).Debug("session issued", "session_id", session.ID)
		return &IssueResult{Token: plaintext, Session: snapshot}, nil
	}
	return nil, domain.ErrTokenHashConflict
}

func (r *Registry) lookup(tok string) (*entry, error) {
	if !domain.WellFormedToken(tok) {
		return nil, domain.ErrTokenMalformed
	}
	id, ok := r.tokens.Get(r.minter.Digest(tok))
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	e, ok := r.sessions.Get(id)
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	return e, nil
}

// Validate resolves a token to a snapshot of its session.
//
// Returns ErrTokenMalformed or ErrTokenNotFound for tokens the registry
// does not know, and ErrTokenExpired for expired sessions or sessions
// past their grace deadline.
func (r *Registry) Validate(ctx context.Context, tok string) (*domain.Session, error) {
	e, err := r.lookup(tok)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.State == domain.StateExpired || e.session.GraceElapsed(r.GraceWindow(), r.now()) {
		return nil, domain.ErrTokenExpired
	}
	return e.session.Clone(), nil
}

// Get returns a snapshot of the session with the given ID.
func (r *Registry) Get(id string) (*domain.Session, bool) {
	e, ok := r.sessions.Get(id)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), true
}

// MarkDisconnected moves a live session into its grace window and starts
// the grace timer. conn must be the connection currently bound; a stale
// connection is ignored and the returned state is empty.
//
// Returns the state the session was in before the disconnect.
func (r *Registry) MarkDisconnected(ctx context.Context, id string, conn Conn) (domain.SessionState, error) {
	e, ok := r.sessions.Get(id)
	if !ok {
		return "", domain.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn == nil || e.conn != conn || !e.session.State.IsLive() {
		return "", nil
	}

	prev := e.session.State
	now := r.now()
	if err := e.session.Transition(domain.StateGrace, now); err != nil {
		return "", err
	}
	e.conn = nil
	e.gen++
	gen := e.gen
	window := r.GraceWindow()
	e.timer = time.AfterFunc(window, func() { r.expireGrace(id, gen) })

	logger.Or(ctx, r.logger).Debug("session in grace",
		"session_id", id,
		"room_id", e.session.RoomID,
		"deadline", now.Add(window))
	return prev, nil
}

// MarkReconnected resumes the session bound to tok on conn.
//
// The grace timer is cancelled first; if it has already fired, its expiry
// wins and the resume fails. On success the session returns to paired if
// it still has a room, else pending, and receives reconnect_ok followed by
// any frames queued while it was away.
func (r *Registry) MarkReconnected(ctx context.Context, tok string, conn Conn) (*domain.Session, error) {
	e, err := r.lookup(tok)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	s := e.session

	switch s.State {
	case domain.StateExpired:
		e.mu.Unlock()
		return nil, domain.ErrTokenExpired
	case domain.StatePending, domain.StatePaired:
		e.mu.Unlock()
		return nil, domain.ErrAlreadyBound
	}

	// 1. Cancel, then confirm
	if e.timer != nil && !e.timer.Stop() {
		e.mu.Unlock()
		return nil, domain.ErrTokenExpired
	}
	e.timer = nil

	now := r.now()
	if s.GraceElapsed(r.GraceWindow(), now) {
		ev := r.expireLocked(e, domain.ReasonGraceTimeout)
		e.mu.Unlock()
		r.emitExpired(ctx, ev)
		return nil, domain.ErrTokenExpired
	}

	// 2. Rebind
	next := domain.StatePending
	if s.RoomID != "" {
		next = domain.StatePaired
	}
	if err := s.Transition(next, now); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.gen++
	e.conn = conn

	// 3. Confirm and flush
	conn.Send(protocol.ReconnectOK(s.RoomID))
	for _, env := range e.outbox {
		conn.Send(env)
	}
	e.outbox = nil

	snapshot := s.Clone()
	e.mu.Unlock()

	logger.Or(ctx, r.logger).Debug("session resumed", "session_id", snapshot.ID, "state", snapshot.State)
	return snapshot, nil
}

// Expire ends a session for reason. Expiring an expired session returns
// ErrSessionExpired and has no other effect.
func (r *Registry) Expire(ctx context.Context, id string, reason domain.ExpireReason) error {
	e, ok := r.sessions.Get(id)
	if !ok {
		return domain.ErrSessionNotFound
	}

	e.mu.Lock()
	if e.session.State == domain.StateExpired {
		e.mu.Unlock()
		return domain.ErrSessionExpired
	}
	ev := r.expireLocked(e, reason)
	e.mu.Unlock()

	r.emitExpired(ctx, ev)
	return nil
}

func (r *Registry) expireGrace(id string, gen uint64) {
	e, ok := r.sessions.Get(id)
	if !ok {
		return
	}

	e.mu.Lock()
	if e.gen != gen || e.session.State != domain.StateGrace {
		e.mu.Unlock()
		return
	}
	ev := r.expireLocked(e, domain.ReasonGraceTimeout)
	e.mu.Unlock()

	r.emitExpired(context.Background(), ev)
}

// expireLocked must be called with e.mu held.
func (r *Registry) expireLocked(e *entry, reason domain.ExpireReason) ExpiredEvent {
	s := e.session
	ev := ExpiredEvent{
		SessionID: s.ID,
		RoomID:    s.RoomID,
		Prev:      s.State,
		Reason:    reason,
	}

	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
	_ = s.Expire(reason, r.now())
	s.RoomID = ""
	e.conn = nil
	e.outbox = nil

	r.metrics.SessionsExpired.WithLabelValues(string(reason)).Inc()
	r.logger.Debug("session expired",
		"session_id", s.ID,
		"reason", reason,
		"prev_state", ev.Prev)
	return ev
}

func (r *Registry) emitExpired(ctx context.Context, ev ExpiredEvent) {
	if r.onExpired != nil {
		r.onExpired(ctx, ev)
	}
}

// deliverLocked hands env to the session behind e. Frames for a session
// in grace, or whose connection refused them, are kept in its outbox,
// oldest dropped first once full. A refusing connection is closing, so
// the session is about to enter grace and gets the outbox on resume.
// Must be called with e.mu held.
func (r *Registry) deliverLocked(e *entry, env protocol.Envelope) Delivery {
	if e.session.State == domain.StateExpired {
		return DeliveryDropped
	}
	if e.conn != nil && e.conn.Send(env) {
		return DeliverySent
	}
	if r.outboxSize <= 0 {
		return DeliveryDropped
	}
	if len(e.outbox) >= r.outboxSize {
		e.outbox = e.outbox[1:]
		r.metrics.OutboxDropped.Inc()
	}
	e.outbox = append(e.outbox, env)
	return DeliveryQueued
}

// Deliver hands env to a session, queueing it if the session is in grace.
func (r *Registry) Deliver(id string, env protocol.Envelope) Delivery {
	e, ok := r.sessions.Get(id)
	if !ok {
		return DeliveryDropped
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return r.deliverLocked(e, env)
}

// Sweep removes expired sessions older than the tombstone TTL together
// with their token index entries. Returns the number removed.
func (r *Registry) Sweep(ctx context.Context) int {
	cutoff := r.now().Add(-r.tombstoneTTL).UnixMilli()
	removed := 0

	for _, id := range r.sessions.Keys() {
		e, ok := r.sessions.Get(id)
		if !ok {
			continue
		}

		// Expired is terminal, so the check holds after unlocking.
		e.mu.Lock()
		drop := e.session.State == domain.StateExpired && e.session.ExpiredAt <= cutoff
		hash := e.session.TokenHash
		e.mu.Unlock()
		if !drop {
			continue
		}

		if r.sessions.DeleteIf(id, func(v *entry) bool { return v == e }) {
			r.tokens.DeleteIf(hash, func(v string) bool { return v == id })
			removed++
		}
	}

	if removed > 0 {
		logger.Or(ctx, r.logger).Debug("tombstones swept", "count", removed)
	}
	return removed
}

// Counts returns the number of sessions in each state, tombstones included.
func (r *Registry) Counts() map[domain.SessionState]int {
	counts := make(map[domain.SessionState]int, len(domain.AllStates))
	for _, st := range domain.AllStates {
		counts[st] = 0
	}
	for _, e := range r.sessions.Values() {
		e.mu.Lock()
		counts[e.session.State]++
		e.mu.Unlock()
	}
	return counts
}

// Len returns the number of session records, tombstones included.
func (r *Registry) Len() int {
	return r.sessions.Count()
}
