// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package smt

// Path is a Merkle proof of the presence or absence of one element,
// generated from a tree of a known root hash.
//
// Every bit pattern addresses a conceptual slot in the tree, occupied
// either by an element or by the null hash, so a path exists for any
// element. A path for a tree of depth n carries n-1 siblings, one per
// left/right decision.
type Path struct {
	depth int

	// the siblings, deepest first, followed by the element this path was
	// generated for
	siblings []Element

	// the root hash of the tree at generation time
	rootHash Element
}

// SiblingsDeepestFirst returns the depth-1 sibling hashes, deepest first.
func (p Path) SiblingsDeepestFirst() []Element {
	return p.siblings[:p.depth-1]
}

// Element returns the element this path addresses, i.e. the argument to
// PathFor.
func (p Path) Element() Element {
	return p.siblings[p.depth-1]
}

// Lsb returns the traversal bits of the addressed slot,
// most-significant-first.
func (p Path) Lsb() Lsb {
	return p.Element().Lsb(p.depth - 1)
}

// ActualRootHash returns the root hash of the tree this path was generated
// from.
func (p Path) ActualRootHash() Element {
	return p.rootHash
}

// ComputeRootHash returns the root hash the tree would have if the
// addressed slot held candidate. Passing Zero computes the root hash for
// the slot being empty, which is how absence is proven.
func (p Path) ComputeRootHash(candidate Element) Element {
	bits := p.Lsb()
	hash := candidate

	// siblings are deepest first, so fold from the leaf up, consuming the
	// traversal bits in reverse
	for i, sibling := range p.SiblingsDeepestFirst() {
		if bits.Bit(bits.Len() - 1 - i) {
			hash = HashMerge(sibling, hash)
		} else {
			hash = HashMerge(hash, sibling)
		}
	}
	return hash
}

// Proves returns whether this path proves that candidate occupies the
// addressed slot. Note that Proves(Zero) reports whether the slot was
// empty.
func (p Path) Proves(candidate Element) bool {
	return p.ComputeRootHash(candidate) == p.rootHash
}

// PathFor generates a Path for the slot addressed by element. It always
// succeeds: the slot may be occupied by element, by a colliding element,
// or by nothing.
func (t *Tree[V]) PathFor(element Element) Path {
	bits := element.Lsb(t.depth - 1)
	siblings := make([]Element, t.depth)

	cur := t.root
walk:
	for i := 0; i < bits.Len(); i++ {
		switch n := cur.(type) {
		case *parentNode:
			if bits.Bit(i) {
				siblings[i] = n.left.hash()
				cur = n.right
			} else {
				siblings[i] = n.right.hash()
				cur = n.left
			}

		case *emptyNode:
			// the remainder of the walk stays inside an all-empty region:
			// the sibling at each further level is an empty subtree one
			// level shallower
			for j, d := 0, n.depth-1; d >= 1; j, d = j+1, d-1 {
				siblings[i+j] = EmptyTreeHash(d)
			}
			break walk

		case *leafNode:
			// leaves only exist at depth 1, after the last decision
			panic("leaf reached before the last traversal bit")
		}
	}

	// reverse the siblings into deepest-first order, then record the
	// element itself in the final slot
	for i, j := 0, t.depth-2; i < j; i, j = i+1, j-1 {
		siblings[i], siblings[j] = siblings[j], siblings[i]
	}
	siblings[t.depth-1] = element

	return Path{
		depth:    t.depth,
		siblings: siblings,
		rootHash: t.RootHash(),
	}
}
