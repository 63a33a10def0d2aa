// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routing

// =============================================================================
// ExemplarCacheStore: Endpoint Embedding Persistence
// =============================================================================
//
// Endpoint exemplar vectors are expensive to compute (one embedding call per
// exemplar at startup) but change only when the endpoint registry or the
// embedding model changes. This store persists the per-endpoint centroid
// vectors in BadgerDB between service restarts.
//
// Design choices:
//
//	1. Corpus hash as cache key: SHA256(sorted endpoint IDs + exemplars +
//	   model name). Any change to the registry's exemplar text or the model
//	   produces a different hash, automatically invalidating the cached
//	   vectors. No explicit invalidation API is needed.
//
//	2. BadgerDB native TTL: 7-day expiry is enforced by BadgerDB's GC, not by
//	   application code. Expired keys return ErrKeyNotFound, which the store
//	   treats as a cache miss.
//
// Storage layout:
//
//	insight/exemplar/v1/{corpusHash}  →  gob-encoded map[string][]float32
//	                                      (endpoint ID → unit centroid vector)
//	                                      TTL: 7 days

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	badgerstore "github.com/AtlasInsightAI/AtlasInsight/services/insight/storage/badger"
	"github.com/AtlasInsightAI/AtlasInsight/services/insight/registry"
)

// exemplarCacheDefaultTTL is the default lifetime of a cached centroid entry.
const exemplarCacheDefaultTTL = 7 * 24 * time.Hour

// exemplarCacheKeyPrefix is prepended to the corpus hash to form the BadgerDB
// key. Versioned (v1) to allow future format changes without collision.
const exemplarCacheKeyPrefix = "insight/exemplar/v1/"

// errCacheMiss distinguishes "key not found" from a genuine storage error.
var errCacheMiss = errors.New("cache miss")

// ExemplarCacheStore persists endpoint centroid vectors across restarts.
//
// # Description
//
// Keyed by corpus hash, a SHA256 digest of every endpoint's ID and exemplar
// queries plus the embedding model name. A registry or model change makes the
// previous entry unreachable; it then expires via TTL.
//
// Both methods are nil-safe at the call site: the Verifier checks for a nil
// store and runs in in-memory-only mode, which is the correct behavior for
// tests and deployments without a cache directory.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type ExemplarCacheStore interface {
	// LoadCentroids retrieves cached unit-normalized endpoint centroid
	// vectors for the given corpus hash.
	//
	// Returns (nil, nil) on cache miss (key absent or TTL expired).
	// Returns (nil, error) on storage failure.
	LoadCentroids(ctx context.Context, corpusHash string) (map[string][]float32, error)

	// SaveCentroids persists unit-normalized endpoint centroid vectors for
	// the given corpus hash with the store's TTL. A persistence failure is
	// non-fatal for callers; vectors are recomputed on the next restart.
	SaveCentroids(ctx context.Context, corpusHash string, vectors map[string][]float32) error
}

// =============================================================================
// BadgerExemplarCacheStore
// =============================================================================

// BadgerExemplarCacheStore implements ExemplarCacheStore backed by a BadgerDB
// instance opened at startup. The store does not own the DB lifecycle.
//
// Vectors are gob-encoded as map[string][]float32; compact and fast for the
// dozen-endpoint scale this registry operates at.
//
// # Thread Safety
//
// Safe for concurrent use. BadgerDB transactions are per-goroutine.
type BadgerExemplarCacheStore struct {
	db     *badgerstore.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewBadgerExemplarCacheStore creates a store backed by the given DB.
//
// # Inputs
//
//   - db: Opened BadgerDB wrapper. Must not be nil.
//   - ttl: Lifetime for each cached entry. Pass 0 for the default (7 days).
//   - logger: Logger for hit/miss diagnostics. May be nil.
func NewBadgerExemplarCacheStore(db *badgerstore.DB, ttl time.Duration, logger *slog.Logger) *BadgerExemplarCacheStore {
	if db == nil {
		panic("NewBadgerExemplarCacheStore: db must not be nil")
	}
	if ttl <= 0 {
		ttl = exemplarCacheDefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerExemplarCacheStore{db: db, ttl: ttl, logger: logger}
}

// LoadCentroids retrieves cached centroid vectors. Returns (nil, nil) on miss.
func (s *BadgerExemplarCacheStore) LoadCentroids(ctx context.Context, corpusHash string) (map[string][]float32, error) {
	key := exemplarCacheKey(corpusHash)

	var raw []byte
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return errCacheMiss
		}
		if err != nil {
			return fmt.Errorf("get cache key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		return nil
	})

	if errors.Is(err, errCacheMiss) {
		s.logger.Debug("exemplar cache: miss", slog.String("hash", shortHash(corpusHash)))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("exemplar cache load: %w", err)
	}

	vectors, err := gobDecode(raw)
	if err != nil {
		return nil, fmt.Errorf("exemplar cache decode: %w", err)
	}

	s.logger.Debug("exemplar cache: hit",
		slog.String("hash", shortHash(corpusHash)),
		slog.Int("endpoint_count", len(vectors)),
	)
	return vectors, nil
}

// SaveCentroids persists centroid vectors with the store's TTL.
func (s *BadgerExemplarCacheStore) SaveCentroids(ctx context.Context, corpusHash string, vectors map[string][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	raw, err := gobEncode(vectors)
	if err != nil {
		return fmt.Errorf("exemplar cache encode: %w", err)
	}

	key := exemplarCacheKey(corpusHash)
	err = s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		entry := dgbadger.NewEntry(key, raw).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("exemplar cache save: %w", err)
	}

	s.logger.Debug("exemplar cache: saved",
		slog.String("hash", shortHash(corpusHash)),
		slog.Int("endpoint_count", len(vectors)),
		slog.Duration("ttl", s.ttl),
	)
	return nil
}

// =============================================================================
// Corpus Hash
// =============================================================================

// ComputeCorpusHash computes a deterministic SHA256 hash of the endpoint
// registry's exemplar corpus and the embedding model name.
//
// # Description
//
// The hash captures every signal that determines the centroid vectors:
// endpoint ID, its exemplar queries, and the embedding model name. Endpoints
// are hashed in sorted-ID order and exemplars sorted within each endpoint, so
// the digest is stable regardless of YAML ordering.
//
// # Outputs
//
//   - string: Lowercase hex-encoded SHA256 digest (64 characters).
func ComputeCorpusHash(reg *registry.Registry, model string) string {
	ids := reg.IDs()
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)

	h := sha256.New()
	for _, id := range sorted {
		ep := reg.Get(id)
		if ep == nil {
			continue
		}
		exemplars := make([]string, len(ep.Exemplars))
		copy(exemplars, ep.Exemplars)
		sort.Strings(exemplars)

		// Tab-delimited fields; newline terminates each endpoint entry.
		fmt.Fprintf(h, "%s\t%s\n", ep.ID, strings.Join(exemplars, "|"))
	}
	fmt.Fprintf(h, "model=%s\n", model)

	return hex.EncodeToString(h.Sum(nil))
}

// =============================================================================
// Helpers
// =============================================================================

// exemplarCacheKey builds the BadgerDB key for the given corpus hash.
func exemplarCacheKey(corpusHash string) []byte {
	return []byte(exemplarCacheKeyPrefix + corpusHash)
}

// shortHash returns the first 8 characters of a hash for log display.
func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8] + "..."
	}
	return h
}

// gobEncode serializes a map[string][]float32 using encoding/gob.
func gobEncode(vectors map[string][]float32) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(vectors); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

// gobDecode deserializes a map[string][]float32 from gob-encoded bytes.
func gobDecode(data []byte) (map[string][]float32, error) {
	var vectors map[string][]float32
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("gob decode: %w", err)
	}
	return vectors, nil
}
