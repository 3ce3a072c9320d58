package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/internal/protocol"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
)

// Admission states of the session issued on accept.
const (
	admissionPending int32 = iota
	admissionAdmitted
	admissionClaimed
)

// connection is one WebSocket client. It implements service.Conn.
type connection struct {
	id    string
	gw    *Gateway
	ws    *websocket.Conn
	codec protocol.Codec

	// send is never closed; done signals shutdown to both pumps.
	send      chan protocol.Envelope
	done      chan struct{}
	closeOnce sync.Once

	limiter *rate.Limiter
	ctx     context.Context

	// provisional is the session issued on accept. It is set once
	// before the admission timer starts.
	provisional string
	admission   atomic.Int32
	admitTimer  *time.Timer

	mu      sync.Mutex
	session string
}

func newConnection(g *Gateway, ws *websocket.Conn, codec protocol.Codec) (*connection, error) {
	id, err := domain.GenerateConnID()
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if g.cfg.InboundRate > 0 {
		limit = rate.Limit(g.cfg.InboundRate)
	}
	burst := g.cfg.InboundBurst
	if burst <= 0 {
		burst = 1
	}
	buffer := g.cfg.SendBuffer
	if buffer <= 0 {
		buffer = 1
	}

	ctx := logger.WithConnID(context.Background(), id)
	ctx = logger.WithLogger(ctx, g.logger)

	return &connection{
		id:      id,
		gw:      g,
		ws:      ws,
		codec:   codec,
		send:    make(chan protocol.Envelope, buffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(limit, burst),
		ctx:     ctx,
	}, nil
}

// ID implements service.Conn.
func (c *connection) ID() string { return c.id }

// Send implements service.Conn. A full buffer means the client is not
// reading; the connection is closed and the frame dropped.
func (c *connection) Send(env protocol.Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- env:
		return true
	case <-c.done:
		return false
	default:
		c.gw.metrics.FramesDropped.WithLabelValues("slow_consumer").Inc()
		logger.L(c.ctx).Warn("send buffer full, closing slow consumer")
		c.close()
		return false
	}
}

// close asks the write pump to send a close frame and shut the socket,
// which in turn ends the read pump.
func (c *connection) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *connection) boundSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// bind makes id the connection's session and returns the previous one.
func (c *connection) bind(id string) string {
	c.mu.Lock()
	prev := c.session
	c.session = id
	c.mu.Unlock()

	if prev != "" && prev != id {
		c.gw.presence.Offline(prev)
	}
	if id != "" && id != prev {
		c.gw.presence.Online(id)
	}
	return prev
}

// readPump owns every inbound frame and the session bound to the
// connection. It runs until the socket fails or is closed.
func (c *connection) readPump() {
	defer c.gw.wg.Done()
	defer c.teardown()

	c.ws.SetReadLimit(c.gw.cfg.ReadLimit)
	c.ws.SetReadDeadline(time.Now().Add(c.gw.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.gw.cfg.PongWait))
		return nil
	})

	if err := c.accept(); err != nil {
		logger.L(c.ctx).Error("failed to issue session", "error", err)
		return
	}

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.L(c.ctx).Debug("connection lost", "error", err)
			}
			return
		}

		if !c.limiter.Allow() {
			c.drop("rate_limited", nil)
			continue
		}

		env, err := c.codec.Decode(data)
		if err != nil {
			if errors.Is(err, domain.ErrUnknownMessage) {
				c.drop("unknown", err)
			} else {
				c.drop("malformed", err)
			}
			continue
		}
		if !env.Type.IsInbound() {
			c.drop("unknown", domain.ErrUnknownMessage.WithDetails(string(env.Type)))
			continue
		}

		c.handle(env)
	}
}

func (c *connection) drop(reason string, err error) {
	c.gw.metrics.FramesDropped.WithLabelValues(reason).Inc()
	if err != nil {
		logger.L(c.ctx).Debug("frame dropped", "reason", reason, "error", err)
	} else {
		logger.L(c.ctx).Debug("frame dropped", "reason", reason)
	}
}

// accept issues the provisional session and starts the handshake window.
func (c *connection) accept() error {
	res, err := c.gw.core.Connect(c.ctx, c)
	if err != nil {
		return err
	}
	c.provisional = res.Session.ID
	c.bind(res.Session.ID)

	if c.gw.cfg.HandshakeWindow <= 0 {
		c.admit()
		return nil
	}
	c.admitTimer = time.AfterFunc(c.gw.cfg.HandshakeWindow, c.admit)
	return nil
}

// admit queues the provisional session unless a frame already claimed it.
func (c *connection) admit() {
	if c.admission.CompareAndSwap(admissionPending, admissionAdmitted) {
		c.gw.core.Admit(c.ctx, c.provisional)
	}
}

// claim ends the handshake window without admitting. It reports whether
// this call was the one that ended it.
func (c *connection) claim() bool {
	if !c.admission.CompareAndSwap(admissionPending, admissionClaimed) {
		return false
	}
	if c.admitTimer != nil {
		c.admitTimer.Stop()
	}
	return true
}

func (c *connection) handle(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeReconnect:
		claimed := c.claim()
		if !c.reconnect(env.Token) && claimed {
			// The client adopts the welcome token it already holds.
			c.admission.Store(admissionAdmitted)
			c.gw.core.Admit(c.ctx, c.provisional)
		}

	case protocol.TypeLeave:
		c.claim()
		c.leave()

	default:
		c.admit()
		c.relay(env)
	}
}

// reconnect resumes the session bound to tok on this connection. The
// session it replaces is discarded.
func (c *connection) reconnect(tok string) bool {
	s, err := c.gw.core.Reconnect(c.ctx, tok, c)
	if err != nil {
		logger.L(c.ctx).Info("reconnect rejected", "error", err)
		c.Send(protocol.ReconnectFailed())
		return false
	}

	prev := c.bind(s.ID)
	if prev != "" && prev != s.ID {
		c.gw.core.Discard(c.ctx, prev)
	}
	logger.L(c.ctx).Info("session resumed", "session_id", s.ID, "room_id", s.RoomID)
	return true
}

func (c *connection) leave() {
	id := c.bind("")
	if id == "" {
		return
	}
	if err := c.gw.core.Leave(c.ctx, id); err != nil {
		logger.L(c.ctx).Warn("leave failed", "session_id", id, "error", err)
	}
}

func (c *connection) relay(env protocol.Envelope) {
	id := c.boundSession()
	if id == "" {
		c.drop("no_session", nil)
		return
	}
	err := c.gw.core.Relay(c.ctx, id, env)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrMalformedMessage):
		c.drop("malformed", err)
	default:
		c.drop("not_in_room", err)
	}
}

// teardown runs once the read pump exits.
func (c *connection) teardown() {
	c.claim()
	c.close()

	if id := c.bind(""); id != "" {
		if err := c.gw.core.Disconnect(c.ctx, id, c); err != nil {
			logger.L(c.ctx).Warn("disconnect failed", "session_id", id, "error", err)
		}
	}

	c.gw.conns.Delete(c.id)
	c.gw.metrics.Connections.Dec()
	logger.L(c.ctx).Debug("connection closed")
}

// writePump is the only writer on the socket.
func (c *connection) writePump() {
	ticker := time.NewTicker(c.gw.cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		c.ws.Close()
		c.gw.wg.Done()
	}()

	messageType := websocket.TextMessage
	if c.codec.Binary() {
		messageType = websocket.BinaryMessage
	}

	for {
		select {
		case env := <-c.send:
			data, err := c.codec.Encode(env)
			if err != nil {
				c.gw.metrics.FramesDropped.WithLabelValues("encode").Inc()
				logger.L(c.ctx).Warn("failed to encode frame", "type", env.Type, "error", err)
				continue
			}
			c.ws.SetWriteDeadline(time.Now().Add(c.gw.cfg.WriteWait))
			if err := c.ws.WriteMessage(messageType, data); err != nil {
				c.close()
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.gw.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.done:
			c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.gw.cfg.WriteWait))
			return
		}
	}
}
