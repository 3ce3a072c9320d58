package service

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
	"github.com/yndnr/pairmesh-go/internal/telemetry/metric"
)

// fakePairer pairs anything not marked otherwise.
type fakePairer struct {
	mu    sync.Mutex
	elig  map[string]Eligibility
	pairs [][2]string
	fail  bool
}

func newFakePairer() *fakePairer {
	return &fakePairer{elig: make(map[string]Eligibility)}
}

func (p *fakePairer) set(id string, e Eligibility) {
	p.mu.Lock()
	p.elig[id] = e
	p.mu.Unlock()
}

func (p *fakePairer) Eligibility(id string) Eligibility {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.elig[id]; ok {
		return e
	}
	return Eligible
}

func (p *fakePairer) Pair(_ context.Context, a, b string) PairResult {
	res := PairResult{A: p.Eligibility(a), B: p.Eligibility(b)}
	if res.A != Eligible || res.B != Eligible || p.fail {
		return res
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pairs = append(p.pairs, [2]string{a, b})
	res.RoomID = fmt.Sprintf("room-%d", len(p.pairs))
	return res
}

func (p *fakePairer) Pairs() [][2]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][2]string(nil), p.pairs...)
}

func newTestMatchmaker(p Pairer, front bool) (*Matchmaker, *metric.Registry) {
	metrics := metric.NewRegistry()
	return NewMatchmaker(p, front, logger.Nop(), metrics), metrics
}

func TestMatchmaker_FIFO(t *testing.T) {
	tests := []struct {
		name      string
		enqueue   []string
		wantPairs [][2]string
		wantQueue []string
	}{
		{
			name:      "single",
			enqueue:   []string{"a"},
			wantQueue: []string{"a"},
		},
		{
			name:      "pair",
			enqueue:   []string{"a", "b"},
			wantPairs: [][2]string{{"a", "b"}},
			wantQueue: []string{},
		},
		{
			name:      "arrival order",
			enqueue:   []string{"a", "b", "c", "d"},
			wantPairs: [][2]string{{"a", "b"}, {"c", "d"}},
			wantQueue: []string{},
		},
		{
			name:      "odd one waits",
			enqueue:   []string{"a", "b", "c"},
			wantPairs: [][2]string{{"a", "b"}},
			wantQueue: []string{"c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePairer()
			m, _ := newTestMatchmaker(p, false)
			for _, id := range tt.enqueue {
				if !m.Enqueue(context.Background(), id) {
					t.Fatalf("Enqueue(%s) = false", id)
				}
			}

			if got := p.Pairs(); !reflect.DeepEqual(got, tt.wantPairs) {
				t.Errorf("pairs = %v, want %v", got, tt.wantPairs)
			}
			if got := m.Snapshot(); !reflect.DeepEqual(got, tt.wantQueue) {
				t.Errorf("Snapshot() = %v, want %v", got, tt.wantQueue)
			}
			if m.Len() != len(tt.wantQueue) {
				t.Errorf("Len() = %d, want %d", m.Len(), len(tt.wantQueue))
			}
		})
	}
}

func TestMatchmaker_EnqueueDuplicate(t *testing.T) {
	m, _ := newTestMatchmaker(newFakePairer(), false)
	ctx := context.Background()

	m.Enqueue(ctx, "a")
	if m.Enqueue(ctx, "a") {
		t.Error("Enqueue() of queued session = true, want false")
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestMatchmaker_DiscardsIneligible(t *testing.T) {
	p := newFakePairer()
	m, _ := newTestMatchmaker(p, false)
	ctx := context.Background()

	// a goes stale while queued
	m.Enqueue(ctx, "a")
	p.set("a", Ineligible)
	for _, id := range []string{"b", "c"} {
		m.Enqueue(ctx, id)
	}

	want := [][2]string{{"b", "c"}}
	if got := p.Pairs(); !reflect.DeepEqual(got, want) {
		t.Errorf("pairs = %v, want %v", got, want)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestMatchmaker_RefusesIneligible(t *testing.T) {
	p := newFakePairer()
	p.set("gone", Ineligible)
	m, _ := newTestMatchmaker(p, false)

	if m.Enqueue(context.Background(), "gone") {
		t.Error("Enqueue(ineligible) = true, want false")
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}

func TestMatchmaker_TearsDownInconsistent(t *testing.T) {
	p := newFakePairer()
	p.set("a", Inconsistent)
	m, metrics := newTestMatchmaker(p, false)

	var torn []string
	m.teardown = func(_ context.Context, id string) {
		// Runs without the queue lock held.
		m.Len()
		torn = append(torn, id)
	}

	ctx := context.Background()
	m.Enqueue(ctx, "a")
	m.Enqueue(ctx, "b")

	if !reflect.DeepEqual(torn, []string{"a"}) {
		t.Errorf("torn down = %v, want [a]", torn)
	}
	if got := m.Snapshot(); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Snapshot() = %v, want [b]", got)
	}
	if v := testutil.ToFloat64(metrics.QueueInconsistencies); v != 1 {
		t.Errorf("QueueInconsistencies = %v, want 1", v)
	}
}

func TestMatchmaker_PairFailureKeepsOrder(t *testing.T) {
	p := newFakePairer()
	p.fail = true
	m, _ := newTestMatchmaker(p, false)
	ctx := context.Background()

	m.Enqueue(ctx, "a")
	m.Enqueue(ctx, "b")

	if got := m.Snapshot(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Snapshot() = %v, want [a b]", got)
	}
}

func TestMatchmaker_Requeue(t *testing.T) {
	tests := []struct {
		name  string
		front bool
		want  [][2]string
	}{
		{"back", false, [][2]string{{"b", "a"}}},
		{"front", true, [][2]string{{"a", "b"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePairer()
			m, _ := newTestMatchmaker(p, tt.front)
			ctx := context.Background()

			m.Enqueue(ctx, "b")
			m.Requeue(ctx, "a")

			if got := p.Pairs(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("pairs = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchmaker_Dequeue(t *testing.T) {
	p := newFakePairer()
	m, _ := newTestMatchmaker(p, false)
	ctx := context.Background()

	m.Enqueue(ctx, "a")

	// Still eligible: a reconnect won the race, keep it
	if m.Dequeue(ctx, "a") {
		t.Error("Dequeue(eligible) = true, want false")
	}

	p.set("a", Ineligible)
	if !m.Dequeue(ctx, "a") {
		t.Error("Dequeue(ineligible) = false, want true")
	}
	if m.Dequeue(ctx, "a") {
		t.Error("Dequeue(absent) = true, want false")
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
}
