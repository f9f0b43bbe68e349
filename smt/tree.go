// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package smt

import (
	"fmt"
	"runtime"

	"github.com/google/btree"
	"golang.org/x/sync/semaphore"
)

const indexDegree = 32

// Tree is a sparse Merkle tree of a fixed depth.
//
// Conceptually a Tree is a map from Element to V whose entire content is
// committed to by a single root hash. The root hash is a pure function of
// the element set: values never affect it.
//
// A tree routes an element by the depth-1 least significant bits of the
// element, so two elements sharing those bits collide and only one may be
// stored. Trees are created empty, mutate only through batch insertion
// (a single insert is a batch of one) and never shrink.
//
// A Tree is not safe for concurrent use.
type Tree[V any] struct {
	depth   int
	root    node
	entries *btree.BTreeG[Entry[V]]
	cache   HashCache
	sema    *semaphore.Weighted
}

type config struct {
	cache       HashCache
	parallelism int
}

// Option configures a Tree at construction time.
type Option func(*config)

// WithHashCache selects the hash memoization strategy. The default is
// NoopHashCache, which recomputes every hash.
func WithHashCache(cache HashCache) Option {
	return func(c *config) {
		c.cache = cache
	}
}

// WithHashParallelism bounds the number of extra goroutines used while
// recomputing hashes. Zero disables parallel hashing.
func WithHashParallelism(n int) Option {
	return func(c *config) {
		c.parallelism = n
	}
}

// New creates an empty tree of the given depth. Depth must be at least 1.
func New[V any](depth int, opts ...Option) *Tree[V] {
	if depth < 1 {
		panic("the smallest possible tree has depth 1")
	}

	cfg := config{
		cache:       NoopHashCache{},
		parallelism: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var sema *semaphore.Weighted
	if cfg.parallelism > 0 {
		sema = semaphore.NewWeighted(int64(cfg.parallelism))
	}

	return &Tree[V]{
		depth: depth,
		root:  &emptyNode{depth: depth},
		entries: btree.NewG(indexDegree, func(a, b Entry[V]) bool {
			return a.Element.Cmp(b.Element) < 0
		}),
		cache: cfg.cache,
		sema:  sema,
	}
}

// Depth returns the fixed depth of this tree.
func (t *Tree[V]) Depth() int {
	return t.depth
}

// Cache returns the hash cache this tree was built with.
func (t *Tree[V]) Cache() HashCache {
	return t.cache
}

// Len returns the number of elements stored in this tree.
func (t *Tree[V]) Len() int {
	return t.entries.Len()
}

// IsEmpty returns whether this tree contains no elements.
func (t *Tree[V]) IsEmpty() bool {
	return t.entries.Len() == 0
}

// Get returns the value associated with element.
func (t *Tree[V]) Get(element Element) (V, bool) {
	entry, ok := t.entries.Get(Entry[V]{Element: element})
	return entry.Value, ok
}

// ContainsElement returns whether element is stored in this tree.
func (t *Tree[V]) ContainsElement(element Element) bool {
	return t.entries.Has(Entry[V]{Element: element})
}

// Elements returns every stored element in ascending order. Note that this
// is not the left-to-right order of the tree itself, which routes by the
// least significant bits instead.
func (t *Tree[V]) Elements() []Element {
	elements := make([]Element, 0, t.entries.Len())
	t.entries.Ascend(func(entry Entry[V]) bool {
		elements = append(elements, entry.Element)
		return true
	})
	return elements
}

// Entries returns every stored entry in ascending element order.
func (t *Tree[V]) Entries() []Entry[V] {
	entries := make([]Entry[V], 0, t.entries.Len())
	t.entries.Ascend(func(entry Entry[V]) bool {
		entries = append(entries, entry)
		return true
	})
	return entries
}

// RootHash returns the root hash of the tree. The value is cached
// internally, so calls are essentially free.
func (t *Tree[V]) RootHash() Element {
	return t.root.hash()
}

// RootHashWith computes what the root hash would be if all of extra were
// also present, without mutating the tree.
func (t *Tree[V]) RootHashWith(extra []Element) Element {
	return nodeHashWith(t.root, extra, 0, t.depth)
}

// Insert adds a single entry to the tree. It is equivalent to inserting a
// batch of one, and recalculates hashes immediately; prefer InsertBatch
// when adding many entries.
func (t *Tree[V]) Insert(element Element, value V) error {
	batch := NewBatch[V](t.depth)
	if err := batch.Insert(element, value); err != nil {
		return err
	}
	return t.InsertBatch(batch)
}

// InsertBatch atomically moves every staged entry into the tree.
//
// Every batch element is first checked against the existing tree content;
// if any collide, all collisions are reported and the tree is not
// modified. On success the entries are placed without hashing and a single
// hash recalculation pass runs, regardless of the batch size. This is the
// key performance property over repeated single inserts, each of which
// pays a root-to-leaf refresh.
func (t *Tree[V]) InsertBatch(batch *Batch[V]) error {
	if batch.depth != t.depth {
		return fmt.Errorf("batch staged for depth %d cannot be inserted into a tree of depth %d", batch.depth, t.depth)
	}
	if err := t.CheckCollisions(batch); err != nil {
		return err
	}

	var insertErr error
	for _, entry := range batch.entries {
		if err := t.insertWithoutHashing(entry.Element, entry.Value); err != nil {
			// collisions were checked above, so this means the batch's
			// staging invariant was broken; stop here but still refresh the
			// dirty parents so the root hash stays valid
			insertErr = err
			break
		}
	}

	recalculateHashes(t.root, t.cache, t.sema)
	return insertErr
}

// InsertWithPaths sequentially inserts every entry, returning the Path
// proving each element's presence at the moment it was inserted.
//
// Unlike InsertBatch this pays the full hashing cost per entry, so it is
// useful for audit trails rather than bulk loading. Entries inserted
// before a collision is hit remain in the tree.
func (t *Tree[V]) InsertWithPaths(entries []Entry[V]) ([]Path, error) {
	paths := make([]Path, 0, len(entries))
	for _, entry := range entries {
		if err := t.Insert(entry.Element, entry.Value); err != nil {
			return nil, err
		}
		paths = append(paths, t.PathFor(entry.Element))
	}
	return paths, nil
}

// CheckCollisions reports every batch element that would collide with an
// element already in the tree.
func (t *Tree[V]) CheckCollisions(batch *Batch[V]) error {
	collisionErr := &CollisionError{}
	for _, entry := range batch.entries {
		occupant, ok := t.occupant(entry.Element.Lsb(t.depth - 1))
		if !ok {
			continue
		}
		collisionErr.push(Collision{
			InTree:   occupant,
			Inserted: entry.Element,
			Depth:    t.depth,
			Origin:   OriginTree,
		})
	}
	return collisionErr.errOrNil()
}

// KnownHashes returns every pairwise compression-function evaluation the
// tree currently holds, i.e. one KnownHash per parent node.
func (t *Tree[V]) KnownHashes() []KnownHash {
	return nodeKnownHashes(t.root, nil)
}

// insertWithoutHashing places an entry in both the node tree and the
// ordered index, marking traversed parents dirty instead of rehashing.
func (t *Tree[V]) insertWithoutHashing(element Element, value V) error {
	if element.IsZero() {
		return &CollisionError{Collisions: []Collision{{
			InTree:   Zero,
			Inserted: Zero,
			Depth:    t.depth,
			Origin:   OriginTree,
		}}}
	}

	// a tree of depth n requires n-1 bits: one per left/right decision
	bits := element.Lsb(t.depth - 1)
	root, err := nodeInsert(t.root, element, bits, 0, t.depth)
	if err != nil {
		return err
	}
	t.root = root

	t.entries.ReplaceOrInsert(Entry[V]{Element: element, Value: value})
	return nil
}

// occupant returns the element occupying the slot addressed by lsb, if any.
func (t *Tree[V]) occupant(lsb Lsb) (Element, bool) {
	cur := t.root
	for i := 0; i < lsb.Len(); i++ {
		parent, ok := cur.(*parentNode)
		if !ok {
			break
		}
		if lsb.Bit(i) {
			cur = parent.right
		} else {
			cur = parent.left
		}
	}

	if leaf, ok := cur.(*leafNode); ok {
		return leaf.element, true
	}
	return Zero, false
}
