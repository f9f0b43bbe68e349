// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package database defines the key-value database abstraction the
// persistent tree is stored in.
package database

import (
	"errors"
	"io"
)

var (
	// ErrNotFound is returned when a key is not present in the database.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned when an operation is performed after the
	// database has been closed.
	ErrClosed = errors.New("closed")
)

// KeyValueReader wraps read access to a key-value store.
type KeyValueReader interface {
	// Has returns whether key is present.
	Has(key []byte) (bool, error)

	// Get returns the value of key, or ErrNotFound.
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter wraps write access to a key-value store.
type KeyValueWriter interface {
	// Put inserts the given value under key.
	Put(key, value []byte) error
}

// KeyValueDeleter wraps delete access to a key-value store.
type KeyValueDeleter interface {
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key []byte) error
}

// KeyValueWriterDeleter groups write and delete access.
type KeyValueWriterDeleter interface {
	KeyValueWriter
	KeyValueDeleter
}

// Batch is a set of writes and deletes applied atomically by Write.
//
// A Batch belongs to the database that created it and must not be used
// concurrently.
type Batch interface {
	KeyValueWriterDeleter

	// Size returns the number of bytes staged in the batch.
	Size() int

	// Write atomically applies the staged operations.
	Write() error

	// Reset empties the batch for reuse.
	Reset()

	// Replay applies the staged operations to w in order.
	Replay(w KeyValueWriterDeleter) error
}

// Iterator walks key-value pairs in ascending key order.
type Iterator interface {
	// Next advances the iterator, returning whether a pair is available.
	Next() bool

	// Error returns the error that stopped iteration, if any.
	Error() error

	// Key returns the current key. The slice is only valid until the next
	// call to Next.
	Key() []byte

	// Value returns the current value. The slice is only valid until the
	// next call to Next.
	Value() []byte

	// Release frees resources held by the iterator.
	Release()
}

// Database is a persistent ordered key-value store.
//
// A Database handle assumes a single owner with exclusive write access to
// the underlying path for its lifetime.
type Database interface {
	KeyValueReader
	KeyValueWriterDeleter

	// NewBatch creates an empty write batch.
	NewBatch() Batch

	// NewIterator iterates the full key space in ascending key order.
	NewIterator() Iterator

	io.Closer
}
