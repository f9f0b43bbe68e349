// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package smt

import (
	"fmt"
	"strings"
)

// CollisionOrigin names the structure that rejected an insert.
type CollisionOrigin uint8

const (
	OriginTree CollisionOrigin = iota
	OriginBatch
)

func (o CollisionOrigin) String() string {
	switch o {
	case OriginTree:
		return "tree"
	case OriginBatch:
		return "batch"
	default:
		return fmt.Sprintf("unknown origin %d", uint8(o))
	}
}

// Collision describes a single rejected insert: the element that occupies
// the slot, the element that was rejected, and the depth of the structure
// involved.
//
// Inserting the null sentinel is reported as a collision of Zero with
// itself; re-inserting an element the tree already holds is reported as a
// collision of the element with itself.
type Collision struct {
	InTree   Element
	Inserted Element
	Depth    int
	Origin   CollisionOrigin
}

func (c Collision) String() string {
	return fmt.Sprintf(
		"collision: tried to insert %s, but %s was already in the %s, which have the same least significant %d bits",
		c.Inserted, c.InTree, c.Origin, c.Depth-1,
	)
}

// CollisionError aggregates every collision found in one validation pass.
// Batch-wide checks report all collisions rather than failing on the first.
type CollisionError struct {
	Collisions []Collision
}

func (e *CollisionError) Error() string {
	if len(e.Collisions) == 1 {
		return e.Collisions[0].String()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d collisions:", len(e.Collisions))
	for _, c := range e.Collisions {
		sb.WriteString("\n\t")
		sb.WriteString(c.String())
	}
	return sb.String()
}

func (e *CollisionError) push(c Collision) {
	e.Collisions = append(e.Collisions, c)
}

func (e *CollisionError) errOrNil() error {
	if len(e.Collisions) == 0 {
		return nil
	}
	return e
}
