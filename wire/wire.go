// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wire drives forward-compatible binary records.
//
// A record type carries a leading version discriminant and implements
// Message. Readers decode whatever version is on disk and then call
// Upgrade, which applies UpgradeOnce steps until the record reaches the
// version the running code works with. Upgrades are pure and applied only
// on read; writers always emit the current version.
package wire

import (
	"errors"
	"fmt"
)

// ErrMaxVersion is returned by UpgradeOnce when the message is already at
// its maximum version.
var ErrMaxVersion = errors.New("message is already at its maximum version")

// Message is a versioned record that knows how to upgrade itself one
// version at a time.
type Message[M any] interface {
	// Version returns the version this message currently has.
	Version() uint8

	// UpgradeOnce returns the same record re-expressed at the next
	// version, or ErrMaxVersion if no further upgrade applies.
	UpgradeOnce() (M, error)
}

// Upgrade applies UpgradeOnce until the message reaches maxVersion.
func Upgrade[M Message[M]](m M, maxVersion uint8) (M, error) {
	for m.Version() < maxVersion {
		next, err := m.UpgradeOnce()
		if err != nil {
			var zero M
			return zero, err
		}
		m = next
	}
	return m, nil
}

// FutureVersionError is returned when decoding a record whose version is
// newer than the running code recognizes. Retrying cannot fix it.
type FutureVersionError struct {
	Kind    string
	Got     uint8
	Highest uint8
}

func (e *FutureVersionError) Error() string {
	return fmt.Sprintf("%s record has version %d, but the highest recognized version is %d", e.Kind, e.Got, e.Highest)
}
