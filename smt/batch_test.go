// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package smt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBatchInsert(t *testing.T) {
	require := require.New(t)

	batch := NewBatch[string](testDepth)
	require.True(batch.IsEmpty())
	require.Equal(testDepth, batch.Depth())

	require.NoError(batch.Insert(NewElement(1), "a"))
	require.NoError(batch.Insert(NewElement(2), "b"))
	require.Equal(2, batch.Len())
	require.False(batch.IsEmpty())

	// insertion order is preserved
	require.Equal([]Element{NewElement(1), NewElement(2)}, batch.Elements())
	require.Equal("a", batch.Entries()[0].Value)
}

func TestBatchRejectsZero(t *testing.T) {
	require := require.New(t)

	batch := NewBatch[string](testDepth)
	err := batch.Insert(Zero, "null")

	collisionErr := &CollisionError{}
	require.ErrorAs(err, &collisionErr)
	require.Equal(OriginBatch, collisionErr.Collisions[0].Origin)
	require.Equal(Zero, collisionErr.Collisions[0].InTree)
	require.True(batch.IsEmpty())
}

func TestBatchRejectsStagedCollision(t *testing.T) {
	require := require.New(t)

	batch := NewBatch[string](testDepth)
	staged := NewElement(1)
	require.NoError(batch.Insert(staged, "a"))

	colliding := NewElement(1).Add(NewElement(1).Shl(100))
	err := batch.Insert(colliding, "b")

	collisionErr := &CollisionError{}
	require.ErrorAs(err, &collisionErr)
	collision := collisionErr.Collisions[0]
	require.Equal(staged, collision.InTree)
	require.Equal(colliding, collision.Inserted)
	require.Equal(OriginBatch, collision.Origin)

	require.Equal(1, batch.Len())
}

func TestBatchMergeDisjoint(t *testing.T) {
	require := require.New(t)

	a, err := BatchFromElements[string](testDepth, []Element{NewElement(1), NewElement(2)})
	require.NoError(err)
	b, err := BatchFromElements[string](testDepth, []Element{NewElement(3), NewElement(4)})
	require.NoError(err)

	require.NoError(a.Merge(b))
	require.Equal(4, a.Len())
	require.ElementsMatch(
		[]Element{NewElement(1), NewElement(2), NewElement(3), NewElement(4)},
		a.Elements(),
	)
}

func TestBatchMergeReportsAllCollisions(t *testing.T) {
	require := require.New(t)

	a, err := BatchFromElements[string](testDepth, []Element{NewElement(1), NewElement(2)})
	require.NoError(err)
	b, err := BatchFromElements[string](testDepth, []Element{NewElement(2), NewElement(5)})
	require.NoError(err)

	mergeErr := a.Merge(b)
	collisionErr := &CollisionError{}
	require.ErrorAs(mergeErr, &collisionErr)
	require.Len(collisionErr.Collisions, 1)
	require.Equal(NewElement(2), collisionErr.Collisions[0].InTree)
	require.Equal(NewElement(2), collisionErr.Collisions[0].Inserted)

	// neither batch is modified by a failed merge
	require.Equal(2, a.Len())
	require.Equal(2, b.Len())
}

func TestBatchMergeDepthMismatch(t *testing.T) {
	require := require.New(t)

	// the element collides with itself at any depth, but its Lsb views at
	// different depths are distinct, so only an explicit depth guard can
	// reject this merge
	a, err := BatchFromElements[string](testDepth, []Element{NewElement(1)})
	require.NoError(err)
	b, err := BatchFromElements[string](32, []Element{NewElement(1)})
	require.NoError(err)

	require.Error(a.Merge(b))
	require.Equal(1, a.Len())
	require.Equal(1, b.Len())

	// the rejected merge must leave a fully usable, so inserting it still
	// yields the clean single-element tree
	tree := New[string](testDepth)
	require.NoError(tree.InsertBatch(a))
	require.Equal(1, tree.Len())
	require.Equal(soloRoot(NewElement(1), testDepth), tree.RootHash())
}

func TestBatchFromEntries(t *testing.T) {
	require := require.New(t)

	batch, err := BatchFromEntries(testDepth, []Entry[string]{
		{Element: NewElement(1), Value: "a"},
		{Element: NewElement(2), Value: "b"},
	})
	require.NoError(err)
	require.Equal(2, batch.Len())

	_, err = BatchFromEntries(testDepth, []Entry[string]{
		{Element: NewElement(1), Value: "a"},
		{Element: NewElement(1).Add(NewElement(1).Shl(200)), Value: "b"},
	})
	require.Error(err)
}
