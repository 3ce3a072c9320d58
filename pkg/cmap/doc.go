// Package cmap provides a string-keyed map that is safe for concurrent use.
//
// Keys are spread over a power-of-two number of shards with seeded
// MurmurHash3, each shard behind its own RWMutex. Conditional writes
// (SetIfAbsent, DeleteIf) are atomic per key. Iteration locks one shard at
// a time and is not a snapshot of the whole map.
package cmap
