package service

import (
	"sync"
	"testing"
	"time"

	"github.com/yndnr/pairmesh-go/internal/protocol"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
	"github.com/yndnr/pairmesh-go/internal/telemetry/metric"
)

// fakeConn records every frame sent to it.
type fakeConn struct {
	id string

	mu     sync.Mutex
	frames []protocol.Envelope
	closed bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(env protocol.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.frames = append(c.frames, env)
	return true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) Frames() []protocol.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Envelope(nil), c.frames...)
}

func (c *fakeConn) Types() []protocol.Type {
	var types []protocol.Type
	for _, f := range c.Frames() {
		types = append(types, f.Type)
	}
	return types
}

func (c *fakeConn) Count(t protocol.Type) int {
	n := 0
	for _, f := range c.Frames() {
		if f.Type == t {
			n++
		}
	}
	return n
}

// Last returns the most recent frame of type t.
func (c *fakeConn) Last(t protocol.Type) (protocol.Envelope, bool) {
	frames := c.Frames()
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Type == t {
			return frames[i], true
		}
	}
	return protocol.Envelope{}, false
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRegistry(t *testing.T, cfg RegistryConfig) (*Registry, *metric.Registry) {
	t.Helper()
	metrics := metric.NewRegistry()
	r, err := NewRegistry(cfg, logger.Nop(), metrics)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return r, metrics
}

func newTestHub(t *testing.T, cfg HubConfig) (*Hub, *metric.Registry) {
	t.Helper()
	metrics := metric.NewRegistry()
	h, err := NewHub(cfg, logger.Nop(), metrics)
	if err != nil {
		t.Fatalf("NewHub() error = %v", err)
	}
	return h, metrics
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
