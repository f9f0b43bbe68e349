// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package smt

import (
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"go.uber.org/zap"
)

// emptyHashDepths is the number of precomputed empty-subtree hashes.
const emptyHashDepths = 257

// HashMerge is the compression function: it combines the hashes of two
// sibling nodes into the hash of their parent.
//
// The function is MiMC over the BN254 scalar field. Inputs are reduced into
// the field before hashing, so any two 256-bit elements are valid inputs.
// The operation is not symmetric: HashMerge(a, b) != HashMerge(b, a).
func HashMerge(left, right Element) Element {
	h := mimc.NewMiMC()

	var l, r fr.Element
	lb := left.Bytes32()
	rb := right.Bytes32()
	l.SetBytes(lb[:])
	r.SetBytes(rb[:])

	lc := l.Bytes()
	rc := r.Bytes()
	_, _ = h.Write(lc[:])
	_, _ = h.Write(rc[:])

	sum, err := ElementFromBytes(h.Sum(nil))
	if err != nil {
		// MiMC always produces a 32 byte digest
		panic(err)
	}
	return sum
}

var (
	emptyHashOnce  sync.Once
	emptyHashTable []Element

	deepFallbackWarnOnce sync.Once
)

// EmptyTreeHash returns the root hash of a tree of the given depth that
// contains only null elements.
//
// The recurrence is:
//
//	EmptyTreeHash(1) = Zero
//	EmptyTreeHash(n) = HashMerge(EmptyTreeHash(n-1), EmptyTreeHash(n-1))
//
// The first 257 depths are computed once and cached, so lookups within that
// range are essentially free. Greater depths fall back to computing the
// recurrence on the fly, which is much slower.
//
// Panics if depth is 0; there is no such thing as a tree with depth 0.
func EmptyTreeHash(depth int) Element {
	if depth == 0 {
		panic("the smallest possible tree has depth 1")
	}

	table := emptyHashes()
	if depth <= len(table) {
		return table[depth-1]
	}

	// if you hit this warning, consider increasing emptyHashDepths
	deepFallbackWarnOnce.Do(func() {
		zap.L().Warn("using slow fallback for empty tree hash",
			zap.Int("depth", depth),
			zap.Int("precomputed", emptyHashDepths),
		)
	})

	hash := table[len(table)-1]
	for d := len(table); d < depth; d++ {
		hash = HashMerge(hash, hash)
	}
	return hash
}

func emptyHashes() []Element {
	emptyHashOnce.Do(func() {
		table := make([]Element, emptyHashDepths)
		table[0] = Zero
		for i := 1; i < emptyHashDepths; i++ {
			table[i] = HashMerge(table[i-1], table[i-1])
		}
		emptyHashTable = table
	})
	return emptyHashTable
}
