package cmap

import (
	"math/bits"
	"math/rand/v2"
	"sync"

	"github.com/spaolacci/murmur3"
)

// DefaultShards is the shard count used by New.
const DefaultShards = 16

// Map is a sharded concurrent map.
type Map[K ~string, V any] struct {
	shards []*shard[K, V]
	mask   uint64
	seed   uint32
}

type shard[K ~string, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// New returns an empty map with DefaultShards shards.
func New[K ~string, V any]() *Map[K, V] {
	return NewWithShards[K, V](DefaultShards)
}

// NewWithShards returns an empty map with n shards rounded up to a power
// of two. n <= 0 means DefaultShards.
func NewWithShards[K ~string, V any](n int) *Map[K, V] {
	if n <= 0 {
		n = DefaultShards
	}
	n = 1 << bits.Len(uint(n-1))

	m := &Map[K, V]{
		shards: make([]*shard[K, V], n),
		mask:   uint64(n - 1),
		seed:   rand.Uint32(),
	}
	for i := range m.shards {
		m.shards[i] = &shard[K, V]{items: make(map[K]V)}
	}
	return m
}

// Shards returns the shard count.
func (m *Map[K, V]) Shards() int { return len(m.shards) }

func (m *Map[K, V]) index(key K) int {
	return int(murmur3.Sum64WithSeed([]byte(key), m.seed) & m.mask)
}

func (m *Map[K, V]) shardFor(key K) *shard[K, V] {
	return m.shards[m.index(key)]
}

// Get returns the value for key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	v, ok := s.items[key]
	s.mu.RUnlock()
	return v, ok
}

// Set stores value under key.
func (m *Map[K, V]) Set(key K, value V) {
	s := m.shardFor(key)
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
}

// SetIfAbsent stores value only if key is unused and reports whether it
// did.
func (m *Map[K, V]) SetIfAbsent(key K, value V) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.items[key]; taken {
		return false
	}
	s.items[key] = value
	return true
}

// Delete removes key.
func (m *Map[K, V]) Delete(key K) {
	s := m.shardFor(key)
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// DeleteIf removes key when keep returns true for its current value. It
// reports whether key was removed. keep runs under the shard lock and must
// not touch the map.
func (m *Map[K, V]) DeleteIf(key K, keep func(V) bool) bool {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	if !ok || !keep(v) {
		return false
	}
	delete(s.items, key)
	return true
}

// Count returns the number of entries.
func (m *Map[K, V]) Count() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}
