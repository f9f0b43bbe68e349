// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package smt

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

const testDepth = 64

// soloRoot computes the root hash of a tree holding only e, folding the
// empty-subtree hashes by hand. It shares no traversal code with Tree.
func soloRoot(e Element, depth int) Element {
	bits := e.Lsb(depth - 1)
	hash := e
	for i := bits.Len() - 1; i >= 0; i-- {
		sibling := EmptyTreeHash(depth - 1 - i)
		if bits.Bit(i) {
			hash = HashMerge(sibling, hash)
		} else {
			hash = HashMerge(hash, sibling)
		}
	}
	return hash
}

func TestNewPanicsOnDepthZero(t *testing.T) {
	require.Panics(t, func() {
		New[string](0)
	})
}

func TestEmptyTree(t *testing.T) {
	require := require.New(t)

	tree := New[string](testDepth)
	require.Equal(testDepth, tree.Depth())
	require.True(tree.IsEmpty())
	require.Zero(tree.Len())
	require.Equal(EmptyTreeHash(testDepth), tree.RootHash())
	require.Empty(tree.Elements())
}

func TestInsertSingle(t *testing.T) {
	require := require.New(t)

	tree := New[string](testDepth)
	element := NewElement(3)
	require.NoError(tree.Insert(element, "three"))

	require.Equal(1, tree.Len())
	require.False(tree.IsEmpty())
	require.True(tree.ContainsElement(element))
	require.False(tree.ContainsElement(NewElement(4)))

	value, ok := tree.Get(element)
	require.True(ok)
	require.Equal("three", value)

	require.Equal(soloRoot(element, testDepth), tree.RootHash())
}

func TestInsertZeroRejected(t *testing.T) {
	require := require.New(t)

	tree := New[string](testDepth)
	err := tree.Insert(Zero, "null")

	collisionErr := &CollisionError{}
	require.ErrorAs(err, &collisionErr)
	require.Len(collisionErr.Collisions, 1)
	require.Equal(Zero, collisionErr.Collisions[0].InTree)
	require.Equal(Zero, collisionErr.Collisions[0].Inserted)
	require.True(tree.IsEmpty())
}

func TestInsertCollision(t *testing.T) {
	require := require.New(t)

	tree := New[string](testDepth)
	occupant := NewElement(1)
	require.NoError(tree.Insert(occupant, "first"))

	rootBefore := tree.RootHash()

	// differs from occupant only above the 63 routing bits
	colliding := NewElement(1).Add(NewElement(1).Shl(100))
	err := tree.Insert(colliding, "second")

	collisionErr := &CollisionError{}
	require.ErrorAs(err, &collisionErr)
	require.Len(collisionErr.Collisions, 1)
	collision := collisionErr.Collisions[0]
	require.Equal(occupant, collision.InTree)
	require.Equal(colliding, collision.Inserted)
	require.Equal(testDepth, collision.Depth)
	require.Equal(OriginTree, collision.Origin)

	// the failed insert must not have touched the tree
	require.Equal(1, tree.Len())
	require.Equal(rootBefore, tree.RootHash())
	require.False(tree.ContainsElement(colliding))
}

func TestInsertDuplicate(t *testing.T) {
	require := require.New(t)

	tree := New[string](testDepth)
	element := NewElement(42)
	require.NoError(tree.Insert(element, "a"))

	err := tree.Insert(element, "b")
	collisionErr := &CollisionError{}
	require.ErrorAs(err, &collisionErr)
	require.Equal(element, collisionErr.Collisions[0].InTree)
	require.Equal(element, collisionErr.Collisions[0].Inserted)
}

func TestRootIndependentOfInsertOrder(t *testing.T) {
	require := require.New(t)

	elements := []Element{NewElement(5), NewElement(9), NewElement(12), NewElement(300)}

	forward := New[string](testDepth)
	for _, e := range elements {
		require.NoError(forward.Insert(e, "v"))
	}

	backward := New[string](testDepth)
	for i := len(elements) - 1; i >= 0; i-- {
		require.NoError(backward.Insert(elements[i], "v"))
	}

	require.Equal(forward.RootHash(), backward.RootHash())
}

func TestRootIndependentOfValues(t *testing.T) {
	require := require.New(t)

	a := New[string](testDepth)
	b := New[int](testDepth)
	for i := uint64(1); i <= 8; i++ {
		require.NoError(a.Insert(NewElement(i), "same"))
		require.NoError(b.Insert(NewElement(i), int(i)))
	}

	require.Equal(a.RootHash(), b.RootHash())
}

func TestInsertBatchMatchesSequentialInserts(t *testing.T) {
	require := require.New(t)

	elements := []Element{NewElement(2), NewElement(7), NewElement(11), NewElement(64), NewElement(65)}

	sequential := New[string](testDepth)
	for _, e := range elements {
		require.NoError(sequential.Insert(e, "v"))
	}

	batched := New[string](testDepth)
	batch, err := BatchFromElements[string](testDepth, elements)
	require.NoError(err)
	require.NoError(batched.InsertBatch(batch))

	require.Equal(sequential.RootHash(), batched.RootHash())
	require.Equal(len(elements), batched.Len())
}

func TestInsertBatchDepthMismatch(t *testing.T) {
	require := require.New(t)

	tree := New[string](testDepth)
	batch := NewBatch[string](testDepth + 1)
	require.NoError(batch.Insert(NewElement(1), "v"))

	err := tree.InsertBatch(batch)
	require.Error(err)
	require.True(tree.IsEmpty())
}

func TestInsertBatchReportsAllCollisions(t *testing.T) {
	require := require.New(t)

	tree := New[string](testDepth)
	require.NoError(tree.Insert(NewElement(1), "a"))
	require.NoError(tree.Insert(NewElement(2), "b"))

	rootBefore := tree.RootHash()

	batch := NewBatch[string](testDepth)
	require.NoError(batch.Insert(NewElement(1).Add(NewElement(1).Shl(100)), "x"))
	require.NoError(batch.Insert(NewElement(2).Add(NewElement(1).Shl(200)), "y"))
	require.NoError(batch.Insert(NewElement(3), "z"))

	err := tree.InsertBatch(batch)
	collisionErr := &CollisionError{}
	require.ErrorAs(err, &collisionErr)
	require.Len(collisionErr.Collisions, 2)
	for _, c := range collisionErr.Collisions {
		require.Equal(OriginTree, c.Origin)
	}

	// a rejected batch leaves the tree untouched, including its clean entry
	require.Equal(2, tree.Len())
	require.Equal(rootBefore, tree.RootHash())
	require.False(tree.ContainsElement(NewElement(3)))
}

func TestRootHashWith(t *testing.T) {
	require := require.New(t)

	tree := New[string](testDepth)
	require.NoError(tree.Insert(NewElement(10), "v"))

	extra := []Element{NewElement(20), NewElement(30)}
	predicted := tree.RootHashWith(extra)

	// prediction must not mutate
	require.Equal(1, tree.Len())

	for _, e := range extra {
		require.NoError(tree.Insert(e, "v"))
	}
	require.Equal(predicted, tree.RootHash())
}

func TestRootHashWithEmptyExtra(t *testing.T) {
	require := require.New(t)

	tree := New[string](testDepth)
	require.NoError(tree.Insert(NewElement(10), "v"))
	require.Equal(tree.RootHash(), tree.RootHashWith(nil))
}

func TestInsertWithPaths(t *testing.T) {
	require := require.New(t)

	tree := New[string](testDepth)
	entries := []Entry[string]{
		{Element: NewElement(4), Value: "a"},
		{Element: NewElement(8), Value: "b"},
		{Element: NewElement(15), Value: "c"},
	}

	paths, err := tree.InsertWithPaths(entries)
	require.NoError(err)
	require.Len(paths, len(entries))

	// each path was generated against the root as of its own insertion, so
	// only the last one matches the final root
	for i, path := range paths {
		require.True(path.Proves(entries[i].Element))
	}
	require.Equal(tree.RootHash(), paths[len(paths)-1].ActualRootHash())
	require.NotEqual(tree.RootHash(), paths[0].ActualRootHash())
}

func TestInsertWithPathsStopsAtCollision(t *testing.T) {
	require := require.New(t)

	tree := New[string](testDepth)
	entries := []Entry[string]{
		{Element: NewElement(5), Value: "a"},
		{Element: NewElement(5).Add(NewElement(1).Shl(100)), Value: "b"},
		{Element: NewElement(6), Value: "c"},
	}

	_, err := tree.InsertWithPaths(entries)
	require.Error(err)

	// entries before the collision stay inserted
	require.True(tree.ContainsElement(NewElement(5)))
	require.False(tree.ContainsElement(NewElement(6)))
}

func TestElementsAscending(t *testing.T) {
	require := require.New(t)

	tree := New[uint64](testDepth)
	for _, v := range []uint64{300, 5, 77, 12} {
		require.NoError(tree.Insert(NewElement(v), v))
	}

	require.Equal(
		[]Element{NewElement(5), NewElement(12), NewElement(77), NewElement(300)},
		tree.Elements(),
	)

	entries := tree.Entries()
	require.Len(entries, 4)
	require.Equal(uint64(5), entries[0].Value)
	require.Equal(uint64(300), entries[3].Value)
}

func TestKnownHashesConsistent(t *testing.T) {
	require := require.New(t)

	tree := New[string](testDepth)
	for i := uint64(1); i <= 6; i++ {
		require.NoError(tree.Insert(NewElement(i), "v"))
	}

	hashes := tree.KnownHashes()
	require.NotEmpty(hashes)

	results := make(map[Element]struct{}, len(hashes))
	for _, h := range hashes {
		require.Equal(HashMerge(h.Left, h.Right), h.Result)
		results[h.Result] = struct{}{}
	}
	// the root is the topmost parent's result
	require.Contains(results, tree.RootHash())
}

func TestSerialHashingMatchesParallel(t *testing.T) {
	require := require.New(t)

	serial := New[string](testDepth, WithHashParallelism(0))
	parallel := New[string](testDepth, WithHashParallelism(8))

	batchA, err := BatchFromElements[string](testDepth, []Element{
		NewElement(1), NewElement(2), NewElement(3), NewElement(100), NewElement(1000),
	})
	require.NoError(err)
	batchB, err := BatchFromElements[string](testDepth, batchA.Elements())
	require.NoError(err)

	require.NoError(serial.InsertBatch(batchA))
	require.NoError(parallel.InsertBatch(batchB))
	require.Equal(serial.RootHash(), parallel.RootHash())
}

func TestRootDeterministicAcrossOrders(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("shuffled inserts share a root", prop.ForAll(
		func(values []uint64, seed uint64) bool {
			distinct := make(map[Element]struct{})
			var elements []Element
			for _, v := range values {
				e := NewElement(v + 1) // never zero
				if _, ok := distinct[e]; ok {
					continue
				}
				distinct[e] = struct{}{}
				elements = append(elements, e)
			}

			a := New[struct{}](testDepth)
			for _, e := range elements {
				if err := a.Insert(e, struct{}{}); err != nil {
					return false
				}
			}

			// xorshift shuffle so the second tree sees another order
			shuffled := append([]Element(nil), elements...)
			state := seed | 1
			for i := len(shuffled) - 1; i > 0; i-- {
				state ^= state << 13
				state ^= state >> 7
				state ^= state << 17
				j := int(state % uint64(i+1))
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			}

			b := New[struct{}](testDepth)
			for _, e := range shuffled {
				if err := b.Insert(e, struct{}{}); err != nil {
					return false
				}
			}
			return a.RootHash() == b.RootHash()
		},
		gen.SliceOfN(8, gen.UInt64Range(0, 1<<20)),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}
