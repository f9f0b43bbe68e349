// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package smt

import "fmt"

// Entry is one (element, value) pair.
type Entry[V any] struct {
	Element Element
	Value   V
}

// Batch is a validated, collision-free set of entries staged for one
// atomic insertion into a Tree of the same depth.
//
// A Batch has no relationship to any Tree until it is inserted; staging is
// cheap because no hashing takes place.
type Batch[V any] struct {
	depth   int
	entries []Entry[V]
	// staged elements by their Lsb view, for O(1) collision checks
	lsbs map[Lsb]Element
}

// NewBatch creates an empty batch for trees of the given depth. The depth
// is needed because it determines which elements collide.
func NewBatch[V any](depth int) *Batch[V] {
	return &Batch[V]{
		depth: depth,
		lsbs:  make(map[Lsb]Element),
	}
}

// BatchFromEntries builds a batch from a sequence of entries, failing on
// the first collision.
func BatchFromEntries[V any](depth int, entries []Entry[V]) (*Batch[V], error) {
	b := NewBatch[V](depth)
	for _, entry := range entries {
		if err := b.Insert(entry.Element, entry.Value); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// BatchFromElements builds a batch associating every element with the zero
// value of V.
func BatchFromElements[V any](depth int, elements []Element) (*Batch[V], error) {
	b := NewBatch[V](depth)
	var zero V
	for _, element := range elements {
		if err := b.Insert(element, zero); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Insert stages an entry. It fails if element is the null sentinel, or if
// an element with the same Lsb view is already staged (the error names the
// staged element).
func (b *Batch[V]) Insert(element Element, value V) error {
	if element.IsZero() {
		return &CollisionError{Collisions: []Collision{{
			InTree:   Zero,
			Inserted: Zero,
			Depth:    b.depth,
			Origin:   OriginBatch,
		}}}
	}

	lsb := element.Lsb(b.depth - 1)
	if staged, ok := b.lsbs[lsb]; ok {
		return &CollisionError{Collisions: []Collision{{
			InTree:   staged,
			Inserted: element,
			Depth:    b.depth,
			Origin:   OriginBatch,
		}}}
	}

	b.lsbs[lsb] = element
	b.entries = append(b.entries, Entry[V]{Element: element, Value: value})
	return nil
}

// Merge combines other into b. The batches must be staged for the same
// depth; if any Lsb view is staged in both, every such collision is
// reported. On any failure neither batch is modified.
func (b *Batch[V]) Merge(other *Batch[V]) error {
	// Lsb views of different lengths never compare equal, so a cross-depth
	// merge would slip past the collision check below
	if b.depth != other.depth {
		return fmt.Errorf("batch staged for depth %d cannot be merged into a batch staged for depth %d", other.depth, b.depth)
	}

	collisionErr := &CollisionError{}
	for lsb, element := range other.lsbs {
		if staged, ok := b.lsbs[lsb]; ok {
			collisionErr.push(Collision{
				InTree:   staged,
				Inserted: element,
				Depth:    b.depth,
				Origin:   OriginBatch,
			})
		}
	}
	if err := collisionErr.errOrNil(); err != nil {
		return err
	}

	b.entries = append(b.entries, other.entries...)
	for lsb, element := range other.lsbs {
		b.lsbs[lsb] = element
	}
	return nil
}

// Entries returns the staged entries in insertion order.
func (b *Batch[V]) Entries() []Entry[V] {
	return b.entries
}

// Elements returns the staged elements in insertion order.
func (b *Batch[V]) Elements() []Element {
	elements := make([]Element, len(b.entries))
	for i, entry := range b.entries {
		elements[i] = entry.Element
	}
	return elements
}

// Len returns the number of staged entries.
func (b *Batch[V]) Len() int {
	return len(b.entries)
}

// IsEmpty returns whether the batch has no staged entries.
func (b *Batch[V]) IsEmpty() bool {
	return len(b.entries) == 0
}

// Depth returns the tree depth this batch was staged for.
func (b *Batch[V]) Depth() int {
	return b.depth
}
