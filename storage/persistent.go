// Copyright (C) 2023-2025, Polybase Labs Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage persists a sparse Merkle tree in a key-value database.
//
// The database is the source of truth across restarts; the in-memory tree
// is a derived, rebuildable cache of it. Two record families are stored:
// element membership (element to caller value) and known hashes (the
// durable cache of compression-function evaluations), both framed by a
// versioned binary format that reads old records transparently.
package storage

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/polybase/payy/database"
	"github.com/polybase/payy/smt"
)

// ErrDatabaseConsistency is returned when an on-disk key/value pairing
// matches no recognized combination of record kinds.
var ErrDatabaseConsistency = errors.New("the database contained inconsistent data")

// Persistent pairs an in-memory tree with a database.
//
// In-memory mutation and the durable write are not transactionally linked:
// a crash between them loses the in-memory state but leaves the database
// consistent. A nil return from InsertBatch is the durability boundary.
//
// Exactly one Persistent instance may own a database path at a time.
type Persistent[V any] struct {
	tree  *smt.Tree[V]
	cache *smt.MemoHashCache
	db    database.Database
	codec ValueCodec[V]
	log   *zap.Logger
}

type config struct {
	log         *zap.Logger
	namespace   string
	registerer  prometheus.Registerer
	parallelism int
	haveParam   bool
}

// Option configures a Persistent at construction or load time.
type Option func(*config)

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

// WithMetrics registers the hash-cache counters with reg under namespace.
func WithMetrics(namespace string, reg prometheus.Registerer) Option {
	return func(c *config) {
		c.namespace = namespace
		c.registerer = reg
	}
}

// WithHashParallelism bounds goroutines used for hash recomputation in the
// wrapped tree.
func WithHashParallelism(n int) Option {
	return func(c *config) {
		c.parallelism = n
		c.haveParam = true
	}
}

func build(opts []Option) (*config, *smt.MemoHashCache, error) {
	cfg := &config{log: zap.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}

	cache, err := smt.NewMeteredMemoHashCache(cfg.namespace, cfg.registerer)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cache, nil
}

func treeOptions(cfg *config, cache *smt.MemoHashCache) []smt.Option {
	opts := []smt.Option{smt.WithHashCache(cache)}
	if cfg.haveParam {
		opts = append(opts, smt.WithHashParallelism(cfg.parallelism))
	}
	return opts
}

// New creates an empty persistent tree over db. The database is expected
// to be empty; existing records are ignored until the next Load.
func New[V any](db database.Database, depth int, codec ValueCodec[V], opts ...Option) (*Persistent[V], error) {
	cfg, cache, err := build(opts)
	if err != nil {
		return nil, err
	}

	return &Persistent[V]{
		tree:  smt.New[V](depth, treeOptions(cfg, cache)...),
		cache: cache,
		db:    db,
		codec: codec,
		log:   cfg.log,
	}, nil
}

// Load rebuilds a persistent tree from the records in db.
//
// Every membership record is replayed into a fresh tree through a single
// batch insertion, so the hashing cost is paid once rather than per
// historical insert, and the hash cache is seeded with every stored known
// hash so previously computed pairs are never rehashed.
func Load[V any](db database.Database, depth int, codec ValueCodec[V], opts ...Option) (*Persistent[V], error) {
	cfg, cache, err := build(opts)
	if err != nil {
		return nil, err
	}

	batch := smt.NewBatch[V](depth)
	var knownHashes []smt.KnownHash

	it := db.NewIterator()
	defer it.Release()
	for it.Next() {
		key, err := decodeKeyRecord(it.Key())
		if err != nil {
			return nil, fmt.Errorf("decoding key %x: %w", it.Key(), err)
		}
		value, err := decodeValueRecord(it.Value())
		if err != nil {
			return nil, fmt.Errorf("decoding value for key %x: %w", it.Key(), err)
		}

		switch {
		case key.kind == tagElement && value.kind == tagMetadata:
			v, err := codec.UnmarshalValue(value.metadata)
			if err != nil {
				return nil, fmt.Errorf("decoding metadata for element %s: %w", key.element, err)
			}
			if err := batch.Insert(key.element, v); err != nil {
				return nil, err
			}

		case key.kind == tagKnownHash && value.kind == tagKnownHashResult:
			knownHashes = append(knownHashes, smt.KnownHash{
				Left:   key.left,
				Right:  key.right,
				Result: value.result,
			})

		default:
			return nil, fmt.Errorf("%w: key kind %#x paired with value kind %#x", ErrDatabaseConsistency, key.kind, value.kind)
		}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}

	cache.ProvideKnownHashes(knownHashes)

	tree := smt.New[V](depth, treeOptions(cfg, cache)...)
	if err := tree.InsertBatch(batch); err != nil {
		return nil, err
	}

	cfg.log.Info("loaded tree",
		zap.Int("elements", tree.Len()),
		zap.Int("knownHashes", len(knownHashes)),
		zap.Stringer("rootHash", tree.RootHash()),
	)

	return &Persistent[V]{
		tree:  tree,
		cache: cache,
		db:    db,
		codec: codec,
		log:   cfg.log,
	}, nil
}

// Tree returns the wrapped in-memory tree. Mutating it directly bypasses
// persistence; use Insert and InsertBatch instead.
func (p *Persistent[V]) Tree() *smt.Tree[V] {
	return p.tree
}

// Cache returns the hash cache shared between the tree and the database.
func (p *Persistent[V]) Cache() *smt.MemoHashCache {
	return p.cache
}

// Close closes the underlying database.
func (p *Persistent[V]) Close() error {
	return p.db.Close()
}

// Insert adds a single entry. See InsertBatch for the semantics; note the
// per-insert hashing cost.
func (p *Persistent[V]) Insert(element smt.Element, value V) error {
	batch := smt.NewBatch[V](p.tree.Depth())
	if err := batch.Insert(element, value); err != nil {
		return err
	}
	return p.InsertBatch(batch)
}

// InsertBatch inserts the batch into the in-memory tree and mirrors it
// into the database with one atomic write: a v2 membership record per
// entry, a tombstone for any legacy v1 record of the same element, every
// newly known hash, and a delete for every known hash no longer reachable
// from the tree. The deletes are cache-eviction tracking, not a
// correctness requirement; without them stale entries accumulate forever.
func (p *Persistent[V]) InsertBatch(batch *smt.Batch[V]) error {
	if batch.IsEmpty() {
		return nil
	}

	entries := batch.Entries()

	oldHashes := knownHashSet(p.tree.KnownHashes())
	if err := p.tree.InsertBatch(batch); err != nil {
		return err
	}
	newHashes := knownHashSet(p.tree.KnownHashes())

	dbBatch := p.db.NewBatch()

	for _, entry := range entries {
		metadata, err := p.codec.MarshalValue(entry.Value)
		if err != nil {
			return fmt.Errorf("encoding value for element %s: %w", entry.Element, err)
		}
		if err := dbBatch.Put(elementKey(entry.Element).bytes(), metadataValue(metadata).bytes()); err != nil {
			return err
		}
		// an element must never have both the v1 and v2 key at once
		if err := dbBatch.Delete(legacyElementKey(entry.Element).bytes()); err != nil {
			return err
		}
	}

	for hash := range oldHashes {
		if _, ok := newHashes[hash]; ok {
			continue
		}
		if err := dbBatch.Delete(knownHashKey(hash.Left, hash.Right).bytes()); err != nil {
			return err
		}
	}

	var added int
	for hash := range newHashes {
		if _, ok := oldHashes[hash]; ok {
			continue
		}
		added++
		if err := dbBatch.Put(knownHashKey(hash.Left, hash.Right).bytes(), knownHashValue(hash.Result).bytes()); err != nil {
			return err
		}
	}

	if err := dbBatch.Write(); err != nil {
		return err
	}

	p.log.Debug("inserted batch",
		zap.Int("entries", len(entries)),
		zap.Int("hashesAdded", added),
		zap.Stringer("rootHash", p.tree.RootHash()),
	)
	return nil
}

// PersistHashes flushes the tree's complete current known-hash set to the
// database, skipping records already stored.
//
// This is never called implicitly: flushing on every insert would be far
// more I/O than necessary across a sequence of inserts before a
// checkpoint.
func (p *Persistent[V]) PersistHashes() error {
	// hashes come from the tree rather than the cache, because the cache
	// may have been evicted
	inMemory := p.tree.KnownHashes()

	inDB := make(map[smt.KnownHash]struct{})
	it := p.db.NewIterator()
	defer it.Release()
	for it.Next() {
		key, err := decodeKeyRecord(it.Key())
		if err != nil || key.kind != tagKnownHash {
			continue
		}
		value, err := decodeValueRecord(it.Value())
		if err != nil || value.kind != tagKnownHashResult {
			continue
		}
		inDB[smt.KnownHash{Left: key.left, Right: key.right, Result: value.result}] = struct{}{}
	}
	if err := it.Error(); err != nil {
		return err
	}

	dbBatch := p.db.NewBatch()
	var flushed int
	for _, hash := range inMemory {
		if _, ok := inDB[hash]; ok {
			continue
		}
		flushed++
		if err := dbBatch.Put(knownHashKey(hash.Left, hash.Right).bytes(), knownHashValue(hash.Result).bytes()); err != nil {
			return err
		}
	}
	if err := dbBatch.Write(); err != nil {
		return err
	}

	p.log.Debug("persisted hashes", zap.Int("flushed", flushed), zap.Int("total", len(inMemory)))
	return nil
}

func knownHashSet(hashes []smt.KnownHash) map[smt.KnownHash]struct{} {
	set := make(map[smt.KnownHash]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	return set
}
