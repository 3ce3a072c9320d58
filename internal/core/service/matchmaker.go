package service

import (
	"container/list"
	"context"
	"sync"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
	"github.com/yndnr/pairmesh-go/internal/telemetry/metric"
)

// Eligibility classifies a queued session at pairing time.
type Eligibility int

const (
	// Eligible sessions are pending, connected and roomless.
	Eligible Eligibility = iota

	// Ineligible sessions left the queue's domain in a legal way
	// (disconnected or expired) and are discarded.
	Ineligible

	// Inconsistent sessions hold a room while queued. This never
	// happens legally; such sessions are torn down.
	Inconsistent
)

func (e Eligibility) String() string {
	switch e {
	case Eligible:
		return "eligible"
	case Ineligible:
		return "ineligible"
	}
	return "inconsistent"
}

// PairResult is the outcome of one pairing attempt.
type PairResult struct {
	// RoomID is set when the room was created.
	RoomID string
	A, B   Eligibility
}

// Pairer creates rooms for sessions popped off the queue.
type Pairer interface {
	// Eligibility reports whether id could be paired right now.
	Eligibility(id string) Eligibility

	// Pair atomically checks both sessions and, if both are eligible,
	// creates a room for them.
	Pair(ctx context.Context, a, b string) PairResult
}

// Matchmaker is a FIFO queue of sessions waiting for a partner. Whenever
// two or more sessions are queued, the two oldest are paired.
type Matchmaker struct {
	mu           sync.Mutex
	queue        *list.List
	index        map[string]*list.Element
	requeueFront bool

	pairer   Pairer
	teardown func(ctx context.Context, id string)

	metrics *metric.Registry
	logger  logger.Logger
}

// NewMatchmaker creates an empty matchmaker. When requeueFront is set,
// sessions whose room closed under them go to the head of the queue
// instead of the tail.
func NewMatchmaker(pairer Pairer, requeueFront bool, log logger.Logger, metrics *metric.Registry) *Matchmaker {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = metric.NewRegistry()
	}
	return &Matchmaker{
		queue:        list.New(),
		index:        make(map[string]*list.Element),
		requeueFront: requeueFront,
		pairer:       pairer,
		metrics:      metrics,
		logger:       logger.Component(log, "matchmaker"),
	}
}

// Enqueue appends id to the queue and pairs as many sessions as possible.
// Enqueueing a session that is already queued is a no-op and returns false.
func (m *Matchmaker) Enqueue(ctx context.Context, id string) bool {
	return m.enqueue(ctx, id, false)
}

// Requeue puts id back in line after its room closed, honouring the
// configured requeue position.
func (m *Matchmaker) Requeue(ctx context.Context, id string) bool {
	return m.enqueue(ctx, id, m.requeueFront)
}

func (m *Matchmaker) enqueue(ctx context.Context, id string, front bool) bool {
	m.mu.Lock()
	if _, ok := m.index[id]; ok {
		m.mu.Unlock()
		logger.Or(ctx, m.logger).Debug("session already queued", "session_id", id)
		return false
	}
	// An expiry that lands after this check dequeues through onExpired,
	// which waits for m.mu.
	if m.pairer.Eligibility(id) == Ineligible {
		m.mu.Unlock()
		logger.Or(ctx, m.logger).Debug("session not eligible for the queue", "session_id", id)
		return false
	}
	if front {
		m.index[id] = m.queue.PushFront(id)
	} else {
		m.index[id] = m.queue.PushBack(id)
	}
	broken := m.drainLocked(ctx)
	m.mu.Unlock()

	m.tearDown(ctx, broken)
	return true
}

// Dequeue removes id from the queue unless it is still eligible, which
// happens when a session reconnected between its disconnect and this call.
// Returns whether the session was removed.
func (m *Matchmaker) Dequeue(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.index[id]
	if !ok {
		return false
	}
	if m.pairer.Eligibility(id) == Eligible {
		return false
	}
	m.queue.Remove(el)
	delete(m.index, id)
	logger.Or(ctx, m.logger).Debug("session dequeued", "session_id", id)
	return true
}

// Len returns the queue depth.
func (m *Matchmaker) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

// Snapshot returns the queued session IDs, oldest first.
func (m *Matchmaker) Snapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, m.queue.Len())
	for el := m.queue.Front(); el != nil; el = el.Next() {
		ids = append(ids, el.Value.(string))
	}
	return ids
}

// drainLocked pairs the two oldest sessions until fewer than two remain.
// Ineligible sessions are discarded; eligible ones go back to the head in
// their original order. Inconsistent sessions are returned for teardown
// once the lock is released. Must be called with m.mu held.
func (m *Matchmaker) drainLocked(ctx context.Context) []string {
	var broken []string

	for m.queue.Len() >= 2 {
		a := m.popLocked()
		b := m.popLocked()

		res := m.pairer.Pair(ctx, a, b)
		if res.RoomID != "" {
			continue
		}

		var keep []string
		for _, c := range []struct {
			id string
			el Eligibility
		}{{a, res.A}, {b, res.B}} {
			switch c.el {
			case Eligible:
				keep = append(keep, c.id)
			case Ineligible:
				logger.Or(ctx, m.logger).Debug("discarding stale queue entry", "session_id", c.id)
			case Inconsistent:
				m.metrics.QueueInconsistencies.Inc()
				logger.Or(ctx, m.logger).Error("queued session holds a room",
					"session_id", c.id,
					"error", domain.ErrQueueInconsistency)
				broken = append(broken, c.id)
			}
		}
		for i := len(keep) - 1; i >= 0; i-- {
			m.index[keep[i]] = m.queue.PushFront(keep[i])
		}

		// Two eligible sessions that still failed to pair would fail again.
		if len(keep) == 2 {
			break
		}
	}
	return broken
}

func (m *Matchmaker) popLocked() string {
	el := m.queue.Front()
	id := m.queue.Remove(el).(string)
	delete(m.index, id)
	return id
}

func (m *Matchmaker) tearDown(ctx context.Context, ids []string) {
	if m.teardown == nil {
		return
	}
	for _, id := range ids {
		m.teardown(ctx, id)
	}
}
