// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package leveldb provides a database.Database implementation backed by
// goleveldb.
package leveldb

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/polybase/payy/database"
)

var (
	_ database.Database = (*Database)(nil)
	_ database.Batch    = (*batch)(nil)
	_ database.Iterator = (*iter)(nil)
)

// Database is a persistent key-value store backed by a leveldb instance.
// The underlying store takes an exclusive file lock, so only one Database
// may own a path at a time.
type Database struct {
	db *leveldb.DB
}

// New opens (creating if necessary) the leveldb database at path.
func New(path string) (*Database, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening leveldb at %q: %w", path, err)
	}
	return &Database{db: db}, nil
}

// NewMemory returns a Database backed by in-memory leveldb storage. It
// behaves like the file-backed variant but disappears on Close.
func NewMemory() (*Database, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Database{db: db}, nil
}

func (db *Database) Has(key []byte) (bool, error) {
	has, err := db.db.Has(key, nil)
	return has, updateError(err)
}

func (db *Database) Get(key []byte) ([]byte, error) {
	value, err := db.db.Get(key, nil)
	return value, updateError(err)
}

func (db *Database) Put(key, value []byte) error {
	return updateError(db.db.Put(key, value, nil))
}

func (db *Database) Delete(key []byte) error {
	return updateError(db.db.Delete(key, nil))
}

func (db *Database) NewBatch() database.Batch {
	return &batch{db: db}
}

func (db *Database) NewIterator() database.Iterator {
	return &iter{inner: db.db.NewIterator(nil, nil)}
}

func (db *Database) Close() error {
	return updateError(db.db.Close())
}

// updateError converts goleveldb sentinel errors into their database
// equivalents.
func updateError(err error) error {
	switch err {
	case leveldb.ErrNotFound:
		return database.ErrNotFound
	case leveldb.ErrClosed:
		return database.ErrClosed
	default:
		return err
	}
}

type batch struct {
	database.BatchOps

	db *Database
}

func (b *batch) Write() error {
	inner := new(leveldb.Batch)
	for _, op := range b.Ops {
		if op.Delete {
			inner.Delete(op.Key)
		} else {
			inner.Put(op.Key, op.Value)
		}
	}
	return updateError(b.db.db.Write(inner, nil))
}

type iter struct {
	inner iterator.Iterator
}

func (it *iter) Next() bool {
	return it.inner.Next()
}

func (it *iter) Error() error {
	return updateError(it.inner.Error())
}

func (it *iter) Key() []byte {
	return it.inner.Key()
}

func (it *iter) Value() []byte {
	return it.inner.Value()
}

func (it *iter) Release() {
	it.inner.Release()
}
