// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package smt

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	_ cacheMetrics = (*mockCacheMetrics)(nil)
	_ cacheMetrics = (*prometheusCacheMetrics)(nil)
)

type cacheMetrics interface {
	HashCalled()
	CacheHit()
	CacheMiss()

	// Calls, Hits and Misses report the counters accumulated so far.
	Calls() uint64
	Hits() uint64
	Misses() uint64
}

type mockCacheMetrics struct {
	calls  atomic.Uint64
	hits   atomic.Uint64
	misses atomic.Uint64
}

func (m *mockCacheMetrics) HashCalled() { m.calls.Add(1) }
func (m *mockCacheMetrics) CacheHit()   { m.hits.Add(1) }
func (m *mockCacheMetrics) CacheMiss()  { m.misses.Add(1) }

func (m *mockCacheMetrics) Calls() uint64  { return m.calls.Load() }
func (m *mockCacheMetrics) Hits() uint64   { return m.hits.Load() }
func (m *mockCacheMetrics) Misses() uint64 { return m.misses.Load() }

type prometheusCacheMetrics struct {
	// prometheus counters don't expose their current value, so the raw
	// counts are tracked alongside them
	mockCacheMetrics

	calls  prometheus.Counter
	hits   prometheus.Counter
	misses prometheus.Counter
}

func newCacheMetrics(namespace string, reg prometheus.Registerer) (cacheMetrics, error) {
	if reg == nil {
		return &mockCacheMetrics{}, nil
	}

	m := &prometheusCacheMetrics{
		calls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hash_calls",
			Help:      "cumulative number of compression function requests",
		}),
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hash_cache_hit",
			Help:      "cumulative number of requests answered from the cache",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hash_cache_miss",
			Help:      "cumulative number of requests that computed a new hash",
		}),
	}

	for _, c := range []prometheus.Counter{m.calls, m.hits, m.misses} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *prometheusCacheMetrics) HashCalled() {
	m.mockCacheMetrics.HashCalled()
	m.calls.Inc()
}

func (m *prometheusCacheMetrics) CacheHit() {
	m.mockCacheMetrics.CacheHit()
	m.hits.Inc()
}

func (m *prometheusCacheMetrics) CacheMiss() {
	m.mockCacheMetrics.CacheMiss()
	m.misses.Inc()
}
