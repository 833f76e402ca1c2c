// Package fingerprint provides a bounded memoization cache keyed by content
// fingerprints.
//
// The sort engine caches generated sort rules and the executor caches the
// (hash, size) of generated files. Each cache is an explicitly constructed
// instance owned by whoever wires the engine; there are no package-level
// caches.
package fingerprint

import (
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/danieljhkim/modsync/internal/hash"
)

// DefaultSize is the capacity used when a non-positive size is requested.
const DefaultSize = 4096

// Cache maps fingerprints to values with least-recently-used eviction.
// It is safe for concurrent use.
type Cache[V any] struct {
	lru *lru.Cache[hash.Hash, V]
}

// New creates a cache holding at most size entries.
func New[V any](size int) (*Cache[V], error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[hash.Hash, V](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create fingerprint cache: %w", err)
	}
	return &Cache[V]{lru: c}, nil
}

// Get returns the value cached under key.
func (c *Cache[V]) Get(key hash.Hash) (V, bool) {
	return c.lru.Get(key)
}

// Set stores value under key, evicting the oldest entry when full.
func (c *Cache[V]) Set(key hash.Hash, value V) {
	c.lru.Add(key, value)
}

// GetOrCompute returns the cached value or stores the result of compute.
// Errors are not cached. Two goroutines missing the same key may both
// compute; the last write wins, which is harmless for fingerprinted values.
func (c *Cache[V]) GetOrCompute(key hash.Hash, compute func() (V, error)) (V, bool, error) {
	if v, ok := c.lru.Get(key); ok {
		return v, true, nil
	}
	v, err := compute()
	if err != nil {
		var zero V
		return zero, false, err
	}
	c.lru.Add(key, v)
	return v, false, nil
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}

// Entry is one cached key/value pair.
type Entry[V any] struct {
	Key   hash.Hash `json:"key"`
	Value V         `json:"value"`
}

// Snapshot returns every entry ordered by key, for persistence.
func (c *Cache[V]) Snapshot() []Entry[V] {
	keys := c.lru.Keys()
	entries := make([]Entry[V], 0, len(keys))
	for _, k := range keys {
		if v, ok := c.lru.Peek(k); ok {
			entries = append(entries, Entry[V]{Key: k, Value: v})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// Restore loads entries produced by Snapshot.
func (c *Cache[V]) Restore(entries []Entry[V]) {
	for _, e := range entries {
		c.lru.Add(e.Key, e.Value)
	}
}
