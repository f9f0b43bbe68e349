// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Tests is the conformance suite every Database implementation must pass.
// Each entry receives a fresh, empty database.
var Tests = []func(t *testing.T, db Database){
	TestSimpleKeyValue,
	TestOverwrite,
	TestDeleteMissingKey,
	TestEmptyKey,
	TestBatchWrite,
	TestBatchDelete,
	TestBatchReset,
	TestBatchReplay,
	TestIteratorSorted,
	TestIteratorSnapshot,
	TestClose,
}

func TestSimpleKeyValue(t *testing.T, db Database) {
	require := require.New(t)

	key := []byte("hello")
	value := []byte("world")

	has, err := db.Has(key)
	require.NoError(err)
	require.False(has)

	_, err = db.Get(key)
	require.ErrorIs(err, ErrNotFound)

	require.NoError(db.Put(key, value))

	has, err = db.Has(key)
	require.NoError(err)
	require.True(has)

	got, err := db.Get(key)
	require.NoError(err)
	require.Equal(value, got)

	require.NoError(db.Delete(key))

	has, err = db.Has(key)
	require.NoError(err)
	require.False(has)
}

func TestOverwrite(t *testing.T, db Database) {
	require := require.New(t)

	key := []byte("key")
	require.NoError(db.Put(key, []byte("first")))
	require.NoError(db.Put(key, []byte("second")))

	got, err := db.Get(key)
	require.NoError(err)
	require.Equal([]byte("second"), got)
}

func TestDeleteMissingKey(t *testing.T, db Database) {
	// deleting a key that was never written is not an error
	require.NoError(t, db.Delete([]byte("missing")))
}

func TestEmptyKey(t *testing.T, db Database) {
	require := require.New(t)

	require.NoError(db.Put(nil, []byte("empty")))
	got, err := db.Get(nil)
	require.NoError(err)
	require.Equal([]byte("empty"), got)
}

func TestBatchWrite(t *testing.T, db Database) {
	require := require.New(t)

	batch := db.NewBatch()
	require.NoError(batch.Put([]byte("a"), []byte("1")))
	require.NoError(batch.Put([]byte("b"), []byte("2")))
	require.Positive(batch.Size())

	// nothing lands before Write
	has, err := db.Has([]byte("a"))
	require.NoError(err)
	require.False(has)

	require.NoError(batch.Write())

	got, err := db.Get([]byte("b"))
	require.NoError(err)
	require.Equal([]byte("2"), got)
}

func TestBatchDelete(t *testing.T, db Database) {
	require := require.New(t)

	require.NoError(db.Put([]byte("a"), []byte("1")))

	batch := db.NewBatch()
	require.NoError(batch.Delete([]byte("a")))
	require.NoError(batch.Put([]byte("b"), []byte("2")))
	require.NoError(batch.Write())

	has, err := db.Has([]byte("a"))
	require.NoError(err)
	require.False(has)

	has, err = db.Has([]byte("b"))
	require.NoError(err)
	require.True(has)
}

func TestBatchReset(t *testing.T, db Database) {
	require := require.New(t)

	batch := db.NewBatch()
	require.NoError(batch.Put([]byte("a"), []byte("1")))
	batch.Reset()
	require.Zero(batch.Size())
	require.NoError(batch.Write())

	has, err := db.Has([]byte("a"))
	require.NoError(err)
	require.False(has)
}

func TestBatchReplay(t *testing.T, db Database) {
	require := require.New(t)

	batch := db.NewBatch()
	require.NoError(batch.Put([]byte("a"), []byte("1")))
	require.NoError(batch.Delete([]byte("b")))

	var ops []BatchOp
	require.NoError(batch.Replay(&replayRecorder{ops: &ops}))
	require.Equal([]BatchOp{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Delete: true},
	}, ops)
}

type replayRecorder struct {
	ops *[]BatchOp
}

func (r *replayRecorder) Put(key, value []byte) error {
	*r.ops = append(*r.ops, BatchOp{Key: key, Value: value})
	return nil
}

func (r *replayRecorder) Delete(key []byte) error {
	*r.ops = append(*r.ops, BatchOp{Key: key, Delete: true})
	return nil
}

func TestIteratorSorted(t *testing.T, db Database) {
	require := require.New(t)

	require.NoError(db.Put([]byte("c"), []byte("3")))
	require.NoError(db.Put([]byte("a"), []byte("1")))
	require.NoError(db.Put([]byte("b"), []byte("2")))

	it := db.NewIterator()
	defer it.Release()

	var keys, values []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
		values = append(values, string(it.Value()))
	}
	require.NoError(it.Error())
	require.Equal([]string{"a", "b", "c"}, keys)
	require.Equal([]string{"1", "2", "3"}, values)

	// an exhausted iterator stays exhausted
	require.False(it.Next())
	require.Nil(it.Key())
	require.Nil(it.Value())
}

func TestIteratorSnapshot(t *testing.T, db Database) {
	require := require.New(t)

	require.NoError(db.Put([]byte("a"), []byte("1")))

	it := db.NewIterator()
	defer it.Release()

	// writes made after the iterator exists are not required to surface
	require.NoError(db.Put([]byte("z"), []byte("9")))

	require.True(it.Next())
	require.Equal([]byte("a"), it.Key())
}

func TestClose(t *testing.T, db Database) {
	require := require.New(t)

	require.NoError(db.Put([]byte("a"), []byte("1")))
	require.NoError(db.Close())

	_, err := db.Get([]byte("a"))
	require.ErrorIs(err, ErrClosed)
	require.ErrorIs(db.Put([]byte("a"), []byte("1")), ErrClosed)
	require.ErrorIs(db.Delete([]byte("a")), ErrClosed)
	_, err = db.Has([]byte("a"))
	require.ErrorIs(err, ErrClosed)
	require.ErrorIs(db.Close(), ErrClosed)
}
