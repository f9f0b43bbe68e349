// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package smt

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// node is the sparse representation of a conceptually complete fixed-depth
// binary tree: only the populated region is materialized.
//
// A parent exclusively owns its two children, so the usual tree recursion
// applies; there are no shared subtrees.
type node interface {
	// hash returns the cached hash of this node. For a parent this is only
	// valid while the node is not dirty.
	hash() Element
}

// emptyNode is a subtree of the given depth containing only null elements.
// Its hash is well known ahead of time.
type emptyNode struct {
	depth int
}

// leafNode is a single occupied slot at depth 1.
type leafNode struct {
	element Element
}

type parentNode struct {
	left  node
	right node

	cachedHash Element
	// dirty means a child changed without recalculating cachedHash
	dirty bool
}

func (n *emptyNode) hash() Element  { return EmptyTreeHash(n.depth) }
func (n *leafNode) hash() Element   { return n.element }
func (n *parentNode) hash() Element { return n.cachedHash }

// nodeInsert places element into the subtree rooted at n, returning the
// (possibly replaced) subtree. No hashes are computed; every parent on the
// traversal path is marked dirty instead.
//
// bits is the element's Lsb(treeDepth-1) view and bitIndex the next bit to
// route on.
func nodeInsert(n node, element Element, bits Lsb, bitIndex, treeDepth int) (node, error) {
	switch n := n.(type) {
	case *leafNode:
		// the only way to reach an existing leaf is with a colliding Lsb
		return n, &CollisionError{Collisions: []Collision{{
			InTree:   n.element,
			Inserted: element,
			Depth:    treeDepth,
			Origin:   OriginTree,
		}}}

	case *parentNode:
		var err error
		if bits.Bit(bitIndex) {
			n.right, err = nodeInsert(n.right, element, bits, bitIndex+1, treeDepth)
		} else {
			n.left, err = nodeInsert(n.left, element, bits, bitIndex+1, treeDepth)
		}
		if err != nil {
			return n, err
		}
		n.dirty = true
		return n, nil

	case *emptyNode:
		if n.depth == 1 {
			return &leafNode{element: element}, nil
		}

		// split the empty subtree into two empty halves, then route into
		// the appropriate half
		split := &parentNode{
			left:  &emptyNode{depth: n.depth - 1},
			right: &emptyNode{depth: n.depth - 1},
		}
		return nodeInsert(split, element, bits, bitIndex, treeDepth)

	default:
		panic("unknown node kind")
	}
}

// recalculateHashes refreshes every dirty parent below (and including) n,
// bottom up.
//
// The two subtrees of a parent are disjoint, so they may be hashed
// concurrently. sema bounds the number of extra goroutines; when no permit
// is available the work happens on the calling goroutine.
func recalculateHashes(n node, cache HashCache, sema *semaphore.Weighted) {
	parent, ok := n.(*parentNode)
	if !ok || !parent.dirty {
		return
	}

	if sema != nil && sema.TryAcquire(1) {
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sema.Release(1)
			recalculateHashes(parent.left, cache, sema)
		}()
		recalculateHashes(parent.right, cache, sema)
		wg.Wait()
	} else {
		recalculateHashes(parent.left, cache, sema)
		recalculateHashes(parent.right, cache, sema)
	}

	parent.cachedHash = cache.Hash(parent.left.hash(), parent.right.hash())
	parent.dirty = false
}

// nodeHashWith computes the hash the subtree rooted at n would have if all
// of extra were present, without mutating anything.
//
// extra holds only the elements whose traversal bits route into this
// subtree; it is partitioned further at each branch.
func nodeHashWith(n node, extra []Element, bitIndex, treeDepth int) Element {
	if len(extra) == 0 {
		return n.hash()
	}

	switch n := n.(type) {
	case *leafNode:
		return n.element

	case *parentNode:
		left, right := partitionByBit(extra, bitIndex, treeDepth)
		return HashMerge(
			nodeHashWith(n.left, left, bitIndex+1, treeDepth),
			nodeHashWith(n.right, right, bitIndex+1, treeDepth),
		)

	case *emptyNode:
		if n.depth == 1 {
			return extra[0]
		}

		left, right := partitionByBit(extra, bitIndex, treeDepth)
		child := &emptyNode{depth: n.depth - 1}
		return HashMerge(
			nodeHashWith(child, left, bitIndex+1, treeDepth),
			nodeHashWith(child, right, bitIndex+1, treeDepth),
		)

	default:
		panic("unknown node kind")
	}
}

func partitionByBit(elements []Element, bitIndex, treeDepth int) (left, right []Element) {
	for _, e := range elements {
		if e.Lsb(treeDepth - 1).Bit(bitIndex) {
			right = append(right, e)
		} else {
			left = append(left, e)
		}
	}
	return left, right
}

// nodeKnownHashes appends every pairwise compression evaluation held by the
// subtree rooted at n.
func nodeKnownHashes(n node, hashes []KnownHash) []KnownHash {
	parent, ok := n.(*parentNode)
	if !ok {
		return hashes
	}
	if parent.dirty {
		panic("hash should never be dirty in normal use")
	}

	hashes = append(hashes, KnownHash{
		Left:   parent.left.hash(),
		Right:  parent.right.hash(),
		Result: parent.cachedHash,
	})
	hashes = nodeKnownHashes(parent.left, hashes)
	return nodeKnownHashes(parent.right, hashes)
}
