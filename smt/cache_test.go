// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package smt

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNoopHashCache(t *testing.T) {
	require := require.New(t)

	cache := NoopHashCache{}
	require.Equal(HashMerge(NewElement(1), NewElement(2)), cache.Hash(NewElement(1), NewElement(2)))
}

func TestMemoHashCacheCounters(t *testing.T) {
	require := require.New(t)

	cache := NewMemoHashCache()
	a, b := NewElement(1), NewElement(2)

	first := cache.Hash(a, b)
	require.Equal(HashMerge(a, b), first)
	require.Equal(uint64(1), cache.Calls())
	require.Equal(uint64(0), cache.Hits())
	require.Equal(uint64(1), cache.Misses())
	require.Equal(1, cache.Len())

	second := cache.Hash(a, b)
	require.Equal(first, second)
	require.Equal(uint64(2), cache.Calls())
	require.Equal(uint64(1), cache.Hits())
	require.Equal(uint64(1), cache.Misses())

	// argument order is part of the key
	cache.Hash(b, a)
	require.Equal(uint64(2), cache.Misses())
	require.Equal(2, cache.Len())
}

func TestMemoHashCacheProvideKnownHashes(t *testing.T) {
	require := require.New(t)

	cache := NewMemoHashCache()

	// provided hashes are trusted verbatim, so a sentinel value shows the
	// lookup really was answered from the cache
	sentinel := NewElement(0xdead)
	cache.ProvideKnownHashes([]KnownHash{
		{Left: NewElement(1), Right: NewElement(2), Result: sentinel},
	})

	require.Equal(sentinel, cache.Hash(NewElement(1), NewElement(2)))
	require.Equal(uint64(1), cache.Hits())
	require.Equal(uint64(0), cache.Misses())
}

func TestMemoHashCacheEvict(t *testing.T) {
	require := require.New(t)

	cache := NewMemoHashCache()
	cache.Hash(NewElement(1), NewElement(2))
	cache.Hash(NewElement(3), NewElement(4))
	require.Equal(2, cache.Len())

	cache.Evict(NewElement(1), NewElement(2))
	require.Equal(1, cache.Len())

	cache.EvictAll()
	require.Zero(cache.Len())

	// eviction affects performance, never results
	require.Equal(HashMerge(NewElement(1), NewElement(2)), cache.Hash(NewElement(1), NewElement(2)))
}

func TestMemoHashCacheTransparent(t *testing.T) {
	require := require.New(t)

	plain := New[string](testDepth)
	memoized := New[string](testDepth, WithHashCache(NewMemoHashCache()))

	for _, v := range []uint64{1, 2, 3, 500, 501} {
		require.NoError(plain.Insert(NewElement(v), "v"))
		require.NoError(memoized.Insert(NewElement(v), "v"))
		require.Equal(plain.RootHash(), memoized.RootHash())
	}
}

func TestMemoHashCacheSharedBetweenTrees(t *testing.T) {
	require := require.New(t)

	cache := NewMemoHashCache()
	a := New[string](testDepth, WithHashCache(cache))
	b := New[string](testDepth, WithHashCache(cache))

	require.NoError(a.Insert(NewElement(3), "v"))
	missesAfterFirst := cache.Misses()

	// the second tree performs the identical hashing work, all hits
	require.NoError(b.Insert(NewElement(3), "v"))
	require.Equal(missesAfterFirst, cache.Misses())
	require.Equal(a.RootHash(), b.RootHash())
}

func TestMeteredMemoHashCache(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	cache, err := NewMeteredMemoHashCache("smt", reg)
	require.NoError(err)

	cache.Hash(NewElement(1), NewElement(2))
	cache.Hash(NewElement(1), NewElement(2))
	require.Equal(uint64(2), cache.Calls())
	require.Equal(uint64(1), cache.Hits())
	require.Equal(uint64(1), cache.Misses())

	families, err := reg.Gather()
	require.NoError(err)
	require.Len(families, 3)

	// registering the same namespace twice collides
	_, err = NewMeteredMemoHashCache("smt", reg)
	require.Error(err)
}
