package cmap

import "iter"

// All yields every entry. The body runs under a shard read lock and must
// not write to the map.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, s := range m.shards {
			if !s.each(yield) {
				return
			}
		}
	}
}

func (s *shard[K, V]) each(yield func(K, V) bool) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.items {
		if !yield(k, v) {
			return false
		}
	}
	return true
}

// Keys returns a copy of the keys. Callers that need to write while
// iterating use this instead of All.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.Count())
	for k := range m.All() {
		keys = append(keys, k)
	}
	return keys
}

// Values returns a copy of the values.
func (m *Map[K, V]) Values() []V {
	values := make([]V, 0, m.Count())
	for _, v := range m.All() {
		values = append(values, v)
	}
	return values
}
