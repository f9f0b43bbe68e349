// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package smt

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	_ HashCache = (*NoopHashCache)(nil)
	_ HashCache = (*MemoHashCache)(nil)
)

// KnownHash records one evaluation of the compression function:
// HashMerge(Left, Right) == Result. It is the durable unit of hash caching.
type KnownHash struct {
	Left   Element
	Right  Element
	Result Element
}

// HashCache computes the compression function, potentially using state in
// the cache to skip the computation.
//
// Implementations must return exactly what HashMerge would return for the
// same inputs; caching may only ever change performance. An implementation
// that violates this silently corrupts root hashes, so tree construction
// should only ever be handed one of the implementations in this package.
type HashCache interface {
	Hash(left, right Element) Element
}

// NoopHashCache recomputes every hash. It is the default cache for a Tree.
type NoopHashCache struct{}

func (NoopHashCache) Hash(left, right Element) Element {
	return HashMerge(left, right)
}

type hashKey struct {
	left  Element
	right Element
}

// MemoHashCache memoizes compression function results keyed by the input
// pair. It is safe for concurrent use and safe to share between trees:
// entries are keyed purely by their inputs, so a concurrent miss re-derives
// the same value rather than observing a stale one.
type MemoHashCache struct {
	lock    sync.RWMutex
	known   map[hashKey]Element
	metrics cacheMetrics
}

// NewMemoHashCache returns an empty MemoHashCache with plain counters.
func NewMemoHashCache() *MemoHashCache {
	return &MemoHashCache{
		known:   make(map[hashKey]Element),
		metrics: &mockCacheMetrics{},
	}
}

// NewMeteredMemoHashCache is like NewMemoHashCache but additionally
// registers the call/hit/miss counters with reg.
func NewMeteredMemoHashCache(namespace string, reg prometheus.Registerer) (*MemoHashCache, error) {
	metrics, err := newCacheMetrics(namespace, reg)
	if err != nil {
		return nil, err
	}
	return &MemoHashCache{
		known:   make(map[hashKey]Element),
		metrics: metrics,
	}, nil
}

func (c *MemoHashCache) Hash(left, right Element) Element {
	c.metrics.HashCalled()

	key := hashKey{left, right}

	c.lock.RLock()
	result, ok := c.known[key]
	c.lock.RUnlock()
	if ok {
		c.metrics.CacheHit()
		return result
	}

	c.metrics.CacheMiss()
	result = HashMerge(left, right)

	c.lock.Lock()
	c.known[key] = result
	c.lock.Unlock()
	return result
}

// ProvideKnownHashes seeds the cache with previously computed hashes.
//
// The hashes are not validated; providing incorrect hashes will lead to
// incorrect results.
func (c *MemoHashCache) ProvideKnownHashes(hashes []KnownHash) {
	c.lock.Lock()
	defer c.lock.Unlock()

	for _, h := range hashes {
		c.known[hashKey{h.Left, h.Right}] = h.Result
	}
}

// Evict removes the result for one input pair. It must not be called
// concurrently with in-flight hashing of the same pair.
func (c *MemoHashCache) Evict(left, right Element) {
	c.lock.Lock()
	defer c.lock.Unlock()

	delete(c.known, hashKey{left, right})
}

// EvictAll removes every entry from the cache.
func (c *MemoHashCache) EvictAll() {
	c.lock.Lock()
	defer c.lock.Unlock()

	clear(c.known)
}

// Len returns the number of memoized hashes.
func (c *MemoHashCache) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return len(c.known)
}

// Calls returns the number of times Hash has been called.
func (c *MemoHashCache) Calls() uint64 { return c.metrics.Calls() }

// Hits returns the number of calls answered from the cache.
func (c *MemoHashCache) Hits() uint64 { return c.metrics.Hits() }

// Misses returns the number of calls that computed a new hash.
func (c *MemoHashCache) Misses() uint64 { return c.metrics.Misses() }
