// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"encoding/binary"
	"fmt"
	"slices"
)

// ValueCodec translates the caller's value type to and from the bytes
// embedded in a metadata record. The tree itself never looks at values, so
// the encoding is entirely the caller's business.
type ValueCodec[V any] interface {
	MarshalValue(V) ([]byte, error)
	UnmarshalValue([]byte) (V, error)
}

var (
	_ ValueCodec[[]byte] = RawCodec{}
	_ ValueCodec[string] = StringCodec{}
	_ ValueCodec[uint64] = Uint64Codec{}
)

// RawCodec stores values as-is.
type RawCodec struct{}

func (RawCodec) MarshalValue(v []byte) ([]byte, error)   { return slices.Clone(v), nil }
func (RawCodec) UnmarshalValue(b []byte) ([]byte, error) { return slices.Clone(b), nil }

// StringCodec stores values as UTF-8 bytes.
type StringCodec struct{}

func (StringCodec) MarshalValue(v string) ([]byte, error)   { return []byte(v), nil }
func (StringCodec) UnmarshalValue(b []byte) (string, error) { return string(b), nil }

// Uint64Codec stores values as 8 big-endian bytes.
type Uint64Codec struct{}

func (Uint64Codec) MarshalValue(v uint64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(nil, v), nil
}

func (Uint64Codec) UnmarshalValue(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("uint64 value must be 8 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}
