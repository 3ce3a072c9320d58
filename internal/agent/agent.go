package agent

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/pairmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/pairmesh-go/internal/protocol"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
)

const (
	DefaultMaxAttempts      = 5
	DefaultInitialBackoff   = 250 * time.Millisecond
	DefaultMaxBackoff       = 5 * time.Second
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultWriteWait        = 10 * time.Second
	DefaultPongWait         = 60 * time.Second
	DefaultReadLimit        = 64 * 1024
	DefaultEventBuffer      = 64
)

var (
	ErrNotConnected   = errors.New("agent: not connected")
	ErrNotPaired      = errors.New("agent: not paired")
	ErrAlreadyStarted = errors.New("agent: already started")
	ErrExhausted      = errors.New("agent: reconnect attempts exhausted")
)

// Config configures an Agent.
type Config struct {
	// URL is the gateway WebSocket endpoint, ws:// or wss://.
	URL string

	// Codec selects the subprotocol. Defaults to JSON.
	Codec protocol.Codec

	// Store keeps the session token. Defaults to a MemoryStore.
	Store TokenStore

	MaxAttempts      int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	PongWait         time.Duration
	ReadLimit        int64
	EventBuffer      int

	// Header is sent with every dial.
	Header http.Header

	// TLSConfig is used for wss URLs. Nil uses the system roots.
	TLSConfig *tls.Config
}

func (c Config) withDefaults() Config {
	if c.Codec == nil {
		c.Codec = protocol.JSON
	}
	if c.Store == nil {
		c.Store = &MemoryStore{}
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.WriteWait <= 0 {
		c.WriteWait = DefaultWriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = DefaultPongWait
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = DefaultReadLimit
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = DefaultEventBuffer
	}
	return c
}

// Backoff returns the wait before reconnect attempt n, counting from 1.
func (c Config) Backoff(n int) time.Duration {
	c = c.withDefaults()
	d := c.InitialBackoff
	for i := 1; i < n; i++ {
		d *= 2
		if d >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return d
}

// UpdateKind classifies what an Update reports.
type UpdateKind string

const (
	UpdateWelcome  UpdateKind = "welcome"
	UpdatePaired   UpdateKind = "paired"
	UpdateMessage  UpdateKind = "message"
	UpdateSignal   UpdateKind = "signal"
	UpdatePeerLeft UpdateKind = "peer_left"
	UpdateLost     UpdateKind = "lost"
	UpdateResumed  UpdateKind = "resumed"
	UpdateReset    UpdateKind = "reset"
	UpdateClosed   UpdateKind = "closed"
)

// Update is delivered to the presentation layer.
type Update struct {
	Kind UpdateKind
	Room string
	Body protocol.Body
	Err  error
}

// Agent is one client session against the gateway.
type Agent struct {
	cfg    Config
	dialer websocket.Dialer
	logger logger.Logger

	events chan Update

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	writeMu sync.Mutex

	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	room           string
	started        bool
	awaitingResume bool
	provisional    string
	closeErr       error
	finishOnce     sync.Once
}

// New creates an agent. It does not dial until Connect.
func New(cfg Config, log logger.Logger) *Agent {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.Nop()
	}

	header := cfg.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if header.Get("User-Agent") == "" {
		header.Set("User-Agent", buildinfo.UserAgent("pairmesh-cli"))
	}
	cfg.Header = header

	ctx, cancel := context.WithCancel(context.Background())
	return &Agent{
		cfg: cfg,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
			Subprotocols:     []string{cfg.Codec.Name()},
			TLSClientConfig:  cfg.TLSConfig,
		},
		logger: logger.Component(log, "agent"),
		events: make(chan Update, cfg.EventBuffer),
		ctx:    ctx,
		cancel: cancel,
		state:  StateConnecting,
	}
}

// Events returns the update stream. It is closed once the agent is closed.
func (a *Agent) Events() <-chan Update {
	return a.events
}

// State returns the current connection state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Token returns the stored session token.
func (a *Agent) Token() string {
	return a.cfg.Store.Load()
}

// Room returns the current room, or "" when unpaired.
func (a *Agent) Room() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.room
}

// fire applies e and returns the resulting state.
func (a *Agent) fire(e Event) State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fireLocked(e)
}

func (a *Agent) fireLocked(e Event) State {
	prev := a.state
	next, ok := Transition(prev, e)
	if !ok {
		a.logger.Debug("event ignored", "state", prev, "event", e)
		return prev
	}
	a.state = next
	if next != prev {
		a.logger.Debug("state changed", "from", prev, "to", next, "event", e)
	}
	return next
}

// Connect dials the gateway and starts the session loop. A stored token
// is offered for resumption.
func (a *Agent) Connect(ctx context.Context) error {
	a.mu.Lock()
	if a.started || a.state != StateConnecting {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.started = true
	a.mu.Unlock()

	conn, err := a.dial(ctx)
	if err != nil {
		a.mu.Lock()
		a.fireLocked(EventDialFailed)
		a.closeErr = err
		a.mu.Unlock()
		a.finish()
		return err
	}

	a.mu.Lock()
	if a.state != StateConnecting {
		// Closed while dialing.
		a.mu.Unlock()
		conn.Close()
		a.finish()
		return ErrNotConnected
	}
	a.fireLocked(EventDialed)
	a.mu.Unlock()

	if err := a.attach(conn); err != nil {
		conn.Close()
	}

	a.wg.Add(1)
	go a.run(conn)
	return nil
}

func (a *Agent) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := a.dialer.DialContext(ctx, a.cfg.URL, a.cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", a.cfg.URL, err)
	}
	if conn.Subprotocol() != a.cfg.Codec.Name() {
		conn.Close()
		return nil, fmt.Errorf("server selected subprotocol %q, want %q", conn.Subprotocol(), a.cfg.Codec.Name())
	}
	conn.SetReadLimit(a.cfg.ReadLimit)
	return conn, nil
}

// attach makes conn current and offers the stored token for resumption.
func (a *Agent) attach(conn *websocket.Conn) error {
	tok := a.cfg.Store.Load()

	a.mu.Lock()
	a.conn = conn
	a.provisional = ""
	a.awaitingResume = tok != ""
	a.mu.Unlock()

	if tok == "" {
		return nil
	}
	return a.write(protocol.Reconnect(tok))
}

// run owns the connection lifecycle until the agent closes.
func (a *Agent) run(conn *websocket.Conn) {
	defer a.wg.Done()
	defer a.finish()

	for {
		err := a.serve(conn)
		if a.ctx.Err() != nil {
			return
		}

		a.mu.Lock()
		a.conn = nil
		state := a.fireLocked(EventLost)
		a.mu.Unlock()
		if state != StateReconnecting {
			return
		}
		a.logger.Info("connection lost", "error", err)
		a.emit(Update{Kind: UpdateLost, Err: err})

		conn = a.reconnect()
		if conn == nil {
			return
		}
	}
}

// reconnect redials with exponential backoff. It returns nil when the
// agent closed or attempts ran out.
func (a *Agent) reconnect() *websocket.Conn {
	for n := 1; n <= a.cfg.MaxAttempts; n++ {
		wait := a.cfg.Backoff(n)
		timer := time.NewTimer(wait)
		select {
		case <-a.ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		conn, err := a.dial(a.ctx)
		if err != nil {
			a.fire(EventDialFailed)
			a.logger.Debug("reconnect attempt failed", "attempt", n, "error", err)
			continue
		}

		a.mu.Lock()
		if a.state != StateReconnecting {
			a.mu.Unlock()
			conn.Close()
			return nil
		}
		a.fireLocked(EventDialed)
		a.mu.Unlock()

		if err := a.attach(conn); err != nil {
			// serve sees the broken socket and the loop retries.
			a.logger.Debug("failed to send reconnect", "error", err)
		}
		a.logger.Info("reconnected", "attempt", n)
		return conn
	}

	a.mu.Lock()
	a.fireLocked(EventExhausted)
	a.closeErr = ErrExhausted
	a.mu.Unlock()
	a.logger.Warn("giving up on reconnect", "attempts", a.cfg.MaxAttempts)
	return nil
}

// serve reads frames from conn until it fails.
func (a *Agent) serve(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(a.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(a.cfg.PongWait))
		return nil
	})

	stop := make(chan struct{})
	defer close(stop)
	go a.ping(conn, stop)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return err
		}
		conn.SetReadDeadline(time.Now().Add(a.cfg.PongWait))

		env, err := a.cfg.Codec.Decode(data)
		if err != nil {
			a.logger.Debug("frame dropped", "error", err)
			continue
		}
		a.handle(env)
	}
}

func (a *Agent) ping(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(a.cfg.PongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(a.cfg.WriteWait)); err != nil {
				return
			}
		}
	}
}

func (a *Agent) handle(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeWelcome:
		a.mu.Lock()
		resuming := a.awaitingResume
		if resuming {
			// Held until the resume is answered.
			a.provisional = env.Token
		}
		a.mu.Unlock()
		if !resuming {
			a.cfg.Store.Save(env.Token)
			a.emit(Update{Kind: UpdateWelcome})
		}

	case protocol.TypeReconnectOK:
		a.mu.Lock()
		a.awaitingResume = false
		a.provisional = ""
		a.room = env.Room
		a.fireLocked(EventResumed)
		a.mu.Unlock()
		a.emit(Update{Kind: UpdateResumed, Room: env.Room})

	case protocol.TypeReconnectFailed:
		a.mu.Lock()
		a.awaitingResume = false
		fresh := a.provisional
		a.provisional = ""
		a.room = ""
		a.fireLocked(EventReset)
		a.mu.Unlock()

		a.cfg.Store.Clear()
		if fresh != "" {
			a.cfg.Store.Save(fresh)
		}
		a.emit(Update{Kind: UpdateReset})

	case protocol.TypePaired:
		a.mu.Lock()
		a.room = env.Room
		a.mu.Unlock()
		a.emit(Update{Kind: UpdatePaired, Room: env.Room})

	case protocol.TypePeerLeft:
		a.mu.Lock()
		a.room = ""
		a.mu.Unlock()
		a.emit(Update{Kind: UpdatePeerLeft})

	case protocol.TypeMessage:
		a.emit(Update{Kind: UpdateMessage, Room: a.Room(), Body: env.Body})

	case protocol.TypeSignal:
		a.emit(Update{Kind: UpdateSignal, Room: a.Room(), Body: env.Body})

	default:
		a.logger.Debug("unexpected frame", "type", env.Type)
	}
}

// emit blocks until the update is taken or the agent closes.
func (a *Agent) emit(u Update) {
	select {
	case a.events <- u:
	case <-a.ctx.Done():
	}
}

func (a *Agent) write(env protocol.Envelope) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := a.cfg.Codec.Encode(env)
	if err != nil {
		return err
	}
	messageType := websocket.TextMessage
	if a.cfg.Codec.Binary() {
		messageType = websocket.BinaryMessage
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteWait))
	return conn.WriteMessage(messageType, data)
}

// Send relays a chat message to the peer.
func (a *Agent) Send(body protocol.Body) error {
	return a.relay(protocol.TypeMessage, body)
}

// Signal relays a signaling payload to the peer.
func (a *Agent) Signal(body protocol.Body) error {
	return a.relay(protocol.TypeSignal, body)
}

func (a *Agent) relay(t protocol.Type, body protocol.Body) error {
	a.mu.Lock()
	state, room := a.state, a.room
	a.mu.Unlock()
	if state != StateOpen {
		return ErrNotConnected
	}
	if room == "" {
		return ErrNotPaired
	}
	return a.write(protocol.Relay(t, body))
}

// Leave ends the session on the server, forgets the token and closes.
func (a *Agent) Leave() error {
	var err error
	if a.State() == StateOpen {
		err = a.write(protocol.Leave())
	}
	a.cfg.Store.Clear()
	a.shutdown()
	if errors.Is(err, ErrNotConnected) {
		err = nil
	}
	return err
}

// Close drops the connection without leaving. The token is kept, so the
// server holds the session for its grace window.
func (a *Agent) Close() error {
	a.shutdown()
	return nil
}

func (a *Agent) shutdown() {
	a.mu.Lock()
	a.fireLocked(EventLeft)
	conn := a.conn
	a.conn = nil
	started := a.started
	a.mu.Unlock()

	a.cancel()
	if conn != nil {
		a.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(a.cfg.WriteWait))
		a.writeMu.Unlock()
		conn.Close()
	}

	if !started {
		a.finish()
	}
	a.wg.Wait()
}

// finish reports closed and closes the update stream, exactly once.
func (a *Agent) finish() {
	a.finishOnce.Do(func() {
		a.mu.Lock()
		err := a.closeErr
		a.mu.Unlock()
		a.emit(Update{Kind: UpdateClosed, Err: err})
		close(a.events)
	})
}

// dropConn closes the socket without marking the agent closed.
func (a *Agent) dropConn() {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
