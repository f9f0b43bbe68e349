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

func TestElementFromBytes(t *testing.T) {
	require := require.New(t)

	e, err := ElementFromBytes([]byte{0x01, 0x02})
	require.NoError(err)
	require.Equal(NewElement(0x0102), e)

	e, err = ElementFromBytes(nil)
	require.NoError(err)
	require.Equal(Zero, e)

	_, err = ElementFromBytes(make([]byte, ElementLength+1))
	require.Error(err)
}

func TestElementBytes32RoundTrip(t *testing.T) {
	require := require.New(t)

	e := NewElement(12345).Shl(100).Add(NewElement(678))
	b := e.Bytes32()
	back, err := ElementFromBytes(b[:])
	require.NoError(err)
	require.Equal(e, back)
}

func TestElementFromHex(t *testing.T) {
	require := require.New(t)

	e, err := ElementFromHex("0xff")
	require.NoError(err)
	require.Equal(NewElement(255), e)

	_, err = ElementFromHex("not hex")
	require.Error(err)
}

func TestElementCmp(t *testing.T) {
	require := require.New(t)

	require.Equal(-1, NewElement(1).Cmp(NewElement(2)))
	require.Equal(0, NewElement(7).Cmp(NewElement(7)))
	require.Equal(1, NewElement(2).Cmp(NewElement(1)))

	// ordering is by integer magnitude, not by the routing bits
	big := NewElement(1).Shl(200)
	require.Equal(1, big.Cmp(NewElement(2)))
}

func TestLsbBits(t *testing.T) {
	require := require.New(t)

	// 0b1011
	lsb := NewElement(11).Lsb(4)
	require.Equal(4, lsb.Len())
	require.Equal([]bool{true, false, true, true}, lsb.Bits())

	// a view shorter than the value masks the upper bits away
	lsb = NewElement(11).Lsb(2)
	require.Equal([]bool{true, true}, lsb.Bits())
}

func TestLsbEquality(t *testing.T) {
	require := require.New(t)

	a := NewElement(1)
	b := NewElement(1).Add(NewElement(1).Shl(100))

	// a and b differ only above bit 63
	require.Equal(a.Lsb(63), b.Lsb(63))
	require.NotEqual(a.Lsb(101), b.Lsb(101))
	require.NotEqual(a, b)
}

func TestCollidesWith(t *testing.T) {
	require := require.New(t)

	a := NewElement(1)
	b := NewElement(1).Add(NewElement(1).Shl(100))

	require.True(a.CollidesWith(b, 64))
	require.True(b.CollidesWith(a, 64))
	require.False(a.CollidesWith(b, 102))
	require.False(a.CollidesWith(NewElement(2), 64))

	// every element collides with itself
	require.True(a.CollidesWith(a, 64))
}

func TestCollisionMatchesLsbEquality(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("collision iff equal lsb views", prop.ForAll(
		func(a, b uint64, shift uint8) bool {
			ea := NewElement(a).Add(NewElement(1).Shl(64 + uint(shift)))
			eb := NewElement(b)
			depth := 64
			return ea.CollidesWith(eb, depth) == (ea.Lsb(depth-1) == eb.Lsb(depth-1))
		},
		gen.UInt64(),
		gen.UInt64(),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}
