// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger wraps a BadgerDB instance behind context-aware transaction
// helpers. The Insight service uses it only for the semantic exemplar cache:
// small, service-local infrastructure data, not user data.
package badger

import (
	"context"
	"fmt"
	"os"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// Config controls how the database is opened.
type Config struct {
	// Path is the on-disk directory for the database. Required.
	Path string

	// SyncWrites forces fsync on every write. Off by default: the cache can
	// always be recomputed, so losing the tail on crash is acceptable.
	SyncWrites bool

	// GCInterval is how often value-log garbage collection runs.
	// Zero disables the background GC goroutine.
	GCInterval time.Duration

	// InMemory opens the database without any on-disk files. Path is ignored.
	InMemory bool
}

// DefaultConfig returns a config suitable for the semantic exemplar cache.
func DefaultConfig() Config {
	return Config{
		SyncWrites: false,
		GCInterval: 10 * time.Minute,
	}
}

// InMemoryConfig returns a config for an ephemeral database, used in tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// DB wraps a BadgerDB handle with context-aware transaction helpers.
//
// # Thread Safety
//
// Safe for concurrent use. BadgerDB transactions are per-goroutine.
type DB struct {
	db     *dgbadger.DB
	gcStop chan struct{}
}

// OpenDB opens (creating if needed) a BadgerDB at cfg.Path.
//
// # Inputs
//
//   - cfg: Open configuration. cfg.Path must be non-empty.
//
// # Outputs
//
//   - *DB: The opened wrapper. Close() must be called before process exit.
//   - error: Non-nil if the directory cannot be created or the DB cannot open.
func OpenDB(cfg Config) (*DB, error) {
	if cfg.Path == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger.OpenDB: path must not be empty")
	}
	if !cfg.InMemory {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badger.OpenDB: create dir %s: %w", cfg.Path, err)
		}
	}

	opts := dgbadger.DefaultOptions(cfg.Path).
		WithLogger(nil). // suppress BadgerDB internal logs; slog covers the service
		WithSyncWrites(cfg.SyncWrites).
		WithInMemory(cfg.InMemory)

	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger.OpenDB: open %s: %w", cfg.Path, err)
	}

	wrapped := &DB{db: db}
	if cfg.GCInterval > 0 {
		wrapped.gcStop = make(chan struct{})
		go wrapped.gcLoop(cfg.GCInterval)
	}
	return wrapped, nil
}

// gcLoop runs value-log GC periodically until Close.
func (d *DB) gcLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.gcStop:
			return
		case <-ticker.C:
			// ErrNoRewrite is the normal "nothing to collect" outcome.
			_ = d.db.RunValueLogGC(0.5)
		}
	}
}

// WithTxn runs fn inside a read-write transaction, honoring ctx cancellation
// before starting.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(fn)
}

// WithReadTxn runs fn inside a read-only transaction, honoring ctx
// cancellation before starting.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(fn)
}

// Close stops the GC loop and closes the underlying database.
func (d *DB) Close() error {
	if d.gcStop != nil {
		close(d.gcStop)
	}
	return d.db.Close()
}
