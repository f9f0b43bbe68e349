// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package smt

import (
	"fmt"

	"github.com/holiman/uint256"
)

// ElementLength is the length of the byte representation of an Element.
const ElementLength = 32

// Element is a 256-bit unsigned integer. It serves both as a tree key and
// as a hash value.
//
// Note that in a ZK context an Element is usually converted to an integer
// modulo "some large prime", which restricts the set of usable values to
// something approximating a u254.
type Element struct {
	inner uint256.Int
}

// Zero is the additive identity. It doubles as the null hash, the reserved
// "empty slot" value, and can never be inserted into a tree.
var Zero = Element{}

// NewElement returns the Element with the given value.
//
// This is largely provided to help readability in simple cases.
func NewElement(v uint64) Element {
	var e Element
	e.inner.SetUint64(v)
	return e
}

// ElementFromBytes interprets b as a big-endian unsigned integer. If b is
// longer than 32 bytes, an error is returned.
func ElementFromBytes(b []byte) (Element, error) {
	if len(b) > ElementLength {
		return Zero, fmt.Errorf("element must be at most %d bytes, got %d", ElementLength, len(b))
	}
	var e Element
	e.inner.SetBytes(b)
	return e, nil
}

// ElementFromHex parses a 0x-prefixed hex string.
func ElementFromHex(s string) (Element, error) {
	var e Element
	if err := e.inner.SetFromHex(s); err != nil {
		return Zero, err
	}
	return e, nil
}

// Bytes32 returns the big-endian byte representation.
func (e Element) Bytes32() [ElementLength]byte {
	return e.inner.Bytes32()
}

// IsZero returns whether this element is the null sentinel.
func (e Element) IsZero() bool {
	return e.inner.IsZero()
}

// Cmp compares two elements by integer magnitude, returning -1, 0 or 1.
func (e Element) Cmp(other Element) int {
	return e.inner.Cmp(&other.inner)
}

// Add returns e + other mod 2^256.
func (e Element) Add(other Element) Element {
	var out Element
	out.inner.Add(&e.inner, &other.inner)
	return out
}

// Shl returns e << n.
func (e Element) Shl(n uint) Element {
	var out Element
	out.inner.Lsh(&e.inner, n)
	return out
}

func (e Element) String() string {
	return e.inner.Hex()
}

// Lsb returns the count least significant bits of this element,
// most-significant-first. This view defines root-to-leaf routing: a tree of
// depth n routes by the n-1 least significant bits of the key.
func (e Element) Lsb(count int) Lsb {
	bits := e.inner.Bytes32()

	// zero everything above the view so that Lsb values compare (and hash,
	// when used as a map key) on the viewed bits only
	full := count / 8
	for i := 0; i < ElementLength-full; i++ {
		if i == ElementLength-full-1 && count%8 != 0 {
			bits[i] &= byte(1<<(count%8)) - 1
			break
		}
		bits[i] = 0
	}

	return Lsb{bits: bits, count: count}
}

// CollidesWith reports whether two elements occupy the same slot in a tree
// of the given depth, i.e. whether their depth-1 least significant bits are
// equal.
func (e Element) CollidesWith(other Element, depth int) bool {
	return e.Lsb(depth-1) == other.Lsb(depth-1)
}

// Lsb is a view of the least significant bits of an Element,
// most-significant-first.
//
// Lsb is a comparable value type: two Lsb views are equal iff they have the
// same length and the same bits.
type Lsb struct {
	bits  [ElementLength]byte
	count int
}

// Len returns the number of bits in this view.
func (l Lsb) Len() int {
	return l.count
}

// Bit returns bit i of the view, where bit 0 is the most significant bit of
// the view. True means "right", false means "left".
func (l Lsb) Bit(i int) bool {
	idx := 8*ElementLength - l.count + i
	return l.bits[idx/8]&(1<<(7-idx%8)) != 0
}

// Bits returns the bits of the view, most-significant-first.
func (l Lsb) Bits() []bool {
	out := make([]bool, l.count)
	for i := range out {
		out[i] = l.Bit(i)
	}
	return out
}
