// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package memdb provides an ephemeral, in-memory implementation of
// database.Database, primarily for tests.
package memdb

import (
	"slices"
	"sync"

	"github.com/polybase/payy/database"
)

var (
	_ database.Database = (*Database)(nil)
	_ database.Batch    = (*batch)(nil)
	_ database.Iterator = (*iterator)(nil)
)

// Database is an ephemeral key-value store backed by a map.
type Database struct {
	lock sync.RWMutex
	db   map[string][]byte
}

// New returns an empty in-memory database.
func New() *Database {
	return &Database{db: make(map[string][]byte)}
}

func (db *Database) Close() error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if db.db == nil {
		return database.ErrClosed
	}
	db.db = nil
	return nil
}

func (db *Database) Has(key []byte) (bool, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.db == nil {
		return false, database.ErrClosed
	}
	_, ok := db.db[string(key)]
	return ok, nil
}

func (db *Database) Get(key []byte) ([]byte, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.db == nil {
		return nil, database.ErrClosed
	}
	if value, ok := db.db[string(key)]; ok {
		return slices.Clone(value), nil
	}
	return nil, database.ErrNotFound
}

func (db *Database) Put(key, value []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if db.db == nil {
		return database.ErrClosed
	}
	db.db[string(key)] = slices.Clone(value)
	return nil
}

func (db *Database) Delete(key []byte) error {
	db.lock.Lock()
	defer db.lock.Unlock()

	if db.db == nil {
		return database.ErrClosed
	}
	delete(db.db, string(key))
	return nil
}

func (db *Database) NewBatch() database.Batch {
	return &batch{db: db}
}

// NewIterator iterates a sorted snapshot of the database taken at call
// time.
func (db *Database) NewIterator() database.Iterator {
	db.lock.RLock()
	defer db.lock.RUnlock()

	if db.db == nil {
		return &iterator{err: database.ErrClosed}
	}

	keys := make([]string, 0, len(db.db))
	for key := range db.db {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	values := make([][]byte, len(keys))
	for i, key := range keys {
		values[i] = slices.Clone(db.db[key])
	}
	return &iterator{keys: keys, values: values}
}

type batch struct {
	database.BatchOps

	db *Database
}

func (b *batch) Write() error {
	b.db.lock.Lock()
	defer b.db.lock.Unlock()

	if b.db.db == nil {
		return database.ErrClosed
	}

	for _, op := range b.Ops {
		if op.Delete {
			delete(b.db.db, string(op.Key))
		} else {
			b.db.db[string(op.Key)] = op.Value
		}
	}
	return nil
}

type iterator struct {
	keys   []string
	values [][]byte
	pos    int
	err    error
}

func (it *iterator) Next() bool {
	if it.err != nil || it.pos >= len(it.keys) {
		it.pos = len(it.keys) + 1
		return false
	}
	it.pos++
	return true
}

func (it *iterator) Error() error {
	return it.err
}

func (it *iterator) Key() []byte {
	if it.pos == 0 || it.pos > len(it.keys) {
		return nil
	}
	return []byte(it.keys[it.pos-1])
}

func (it *iterator) Value() []byte {
	if it.pos == 0 || it.pos > len(it.values) {
		return nil
	}
	return it.values[it.pos-1]
}

func (it *iterator) Release() {
	it.keys = nil
	it.values = nil
}
