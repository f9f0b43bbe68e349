// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"fmt"

	"github.com/polybase/payy/smt"
	"github.com/polybase/payy/wire"
)

// Two record families are stored, each with a leading version
// discriminant (the version minus one, matching the original on-disk
// layout):
//
//	key v1:              [0x00][32-byte element]               (legacy)
//	key v2, element:     [0x01][0x00][32-byte element]
//	key v2, known hash:  [0x01][0x01][32-byte left][32-byte right]
//
//	value v1:                  [0x00][metadata bytes]          (legacy)
//	value v2, metadata:        [0x01][0x00][metadata bytes]
//	value v2, known hash:      [0x01][0x01][32-byte result]
//
// v1 records are read transparently and upgraded in memory; writes always
// emit v2. A v1 key is additionally tombstoned whenever the same element
// is written, so an element never has both key forms at once.

const (
	keyVersionMax   = 2
	valueVersionMax = 2

	tagElement   = 0x00
	tagKnownHash = 0x01

	tagMetadata        = 0x00
	tagKnownHashResult = 0x01
)

var (
	_ wire.Message[keyRecord]   = keyRecord{}
	_ wire.Message[valueRecord] = valueRecord{}
)

// keyRecord is the decoded form of a database key.
type keyRecord struct {
	version uint8

	// kind is tagElement or tagKnownHash; v1 keys are always elements
	kind    uint8
	element smt.Element
	left    smt.Element
	right   smt.Element
}

func elementKey(element smt.Element) keyRecord {
	return keyRecord{version: keyVersionMax, kind: tagElement, element: element}
}

func legacyElementKey(element smt.Element) keyRecord {
	return keyRecord{version: 1, kind: tagElement, element: element}
}

func knownHashKey(left, right smt.Element) keyRecord {
	return keyRecord{version: keyVersionMax, kind: tagKnownHash, left: left, right: right}
}

func (r keyRecord) Version() uint8 {
	return r.version
}

func (r keyRecord) UpgradeOnce() (keyRecord, error) {
	switch r.version {
	case 1:
		return keyRecord{version: 2, kind: tagElement, element: r.element}, nil
	default:
		return keyRecord{}, wire.ErrMaxVersion
	}
}

func (r keyRecord) bytes() []byte {
	switch r.version {
	case 1:
		e := r.element.Bytes32()
		return append([]byte{0x00}, e[:]...)
	default:
		switch r.kind {
		case tagElement:
			e := r.element.Bytes32()
			return append([]byte{0x01, tagElement}, e[:]...)
		default:
			l := r.left.Bytes32()
			rt := r.right.Bytes32()
			out := append([]byte{0x01, tagKnownHash}, l[:]...)
			return append(out, rt[:]...)
		}
	}
}

func decodeKeyRecord(b []byte) (keyRecord, error) {
	if len(b) == 0 {
		return keyRecord{}, fmt.Errorf("empty key record")
	}

	switch b[0] {
	case 0x00: // v1
		element, err := fixedElement(b[1:], "v1 key")
		if err != nil {
			return keyRecord{}, err
		}
		return wire.Upgrade(legacyElementKey(element), keyVersionMax)

	case 0x01: // v2
		if len(b) < 2 {
			return keyRecord{}, fmt.Errorf("truncated v2 key record")
		}
		switch b[1] {
		case tagElement:
			element, err := fixedElement(b[2:], "v2 element key")
			if err != nil {
				return keyRecord{}, err
			}
			return elementKey(element), nil
		case tagKnownHash:
			if len(b) != 2+2*smt.ElementLength {
				return keyRecord{}, fmt.Errorf("v2 known-hash key must be %d bytes, got %d", 2+2*smt.ElementLength, len(b))
			}
			left, err := fixedElement(b[2:2+smt.ElementLength], "v2 known-hash key")
			if err != nil {
				return keyRecord{}, err
			}
			right, err := fixedElement(b[2+smt.ElementLength:], "v2 known-hash key")
			if err != nil {
				return keyRecord{}, err
			}
			return knownHashKey(left, right), nil
		default:
			return keyRecord{}, fmt.Errorf("unknown v2 key kind %#x", b[1])
		}

	default:
		return keyRecord{}, &wire.FutureVersionError{Kind: "key", Got: b[0] + 1, Highest: keyVersionMax}
	}
}

// valueRecord is the decoded form of a database value.
type valueRecord struct {
	version uint8

	// kind is tagMetadata or tagKnownHashResult; v1 values are always
	// metadata
	kind     uint8
	metadata []byte
	result   smt.Element
}

func metadataValue(metadata []byte) valueRecord {
	return valueRecord{version: valueVersionMax, kind: tagMetadata, metadata: metadata}
}

func knownHashValue(result smt.Element) valueRecord {
	return valueRecord{version: valueVersionMax, kind: tagKnownHashResult, result: result}
}

func (r valueRecord) Version() uint8 {
	return r.version
}

func (r valueRecord) UpgradeOnce() (valueRecord, error) {
	switch r.version {
	case 1:
		return valueRecord{version: 2, kind: tagMetadata, metadata: r.metadata}, nil
	default:
		return valueRecord{}, wire.ErrMaxVersion
	}
}

func (r valueRecord) bytes() []byte {
	switch r.kind {
	case tagMetadata:
		return append([]byte{0x01, tagMetadata}, r.metadata...)
	default:
		result := r.result.Bytes32()
		return append([]byte{0x01, tagKnownHashResult}, result[:]...)
	}
}

func decodeValueRecord(b []byte) (valueRecord, error) {
	if len(b) == 0 {
		return valueRecord{}, fmt.Errorf("empty value record")
	}

	switch b[0] {
	case 0x00: // v1
		legacy := valueRecord{version: 1, kind: tagMetadata, metadata: b[1:]}
		return wire.Upgrade(legacy, valueVersionMax)

	case 0x01: // v2
		if len(b) < 2 {
			return valueRecord{}, fmt.Errorf("truncated v2 value record")
		}
		switch b[1] {
		case tagMetadata:
			return metadataValue(b[2:]), nil
		case tagKnownHashResult:
			result, err := fixedElement(b[2:], "v2 known-hash value")
			if err != nil {
				return valueRecord{}, err
			}
			return knownHashValue(result), nil
		default:
			return valueRecord{}, fmt.Errorf("unknown v2 value kind %#x", b[1])
		}

	default:
		return valueRecord{}, &wire.FutureVersionError{Kind: "value", Got: b[0] + 1, Highest: valueVersionMax}
	}
}

func fixedElement(b []byte, what string) (smt.Element, error) {
	if len(b) != smt.ElementLength {
		return smt.Zero, fmt.Errorf("%s must carry a %d byte element, got %d bytes", what, smt.ElementLength, len(b))
	}
	return smt.ElementFromBytes(b)
}
