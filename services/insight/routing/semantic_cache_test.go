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

import (
	"context"
	"testing"

	"github.com/AtlasInsightAI/AtlasInsight/services/insight/registry"
	badgerstore "github.com/AtlasInsightAI/AtlasInsight/services/insight/storage/badger"
)

// =============================================================================
// Helpers
// =============================================================================

// openTestDB opens an in-memory BadgerDB for testing.
func openTestDB(t *testing.T) *badgerstore.DB {
	t.Helper()
	db, err := badgerstore.OpenDB(badgerstore.InMemoryConfig())
	if err != nil {
		t.Fatalf("openTestDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func makeTestCentroids() map[string][]float32 {
	return map[string][]float32{
		"general_analysis":  {0.1, 0.2, 0.3, 0.4},
		"brand_difference":  {0.5, 0.6, 0.7, 0.8},
		"anomaly_detection": {0.9, 0.1, 0.2, 0.3},
	}
}

// =============================================================================
// BadgerExemplarCacheStore Tests
// =============================================================================

func TestExemplarCache_Load_EmptyDB(t *testing.T) {
	store := NewBadgerExemplarCacheStore(openTestDB(t), 0, nil)

	vectors, err := store.LoadCentroids(context.Background(), "nonexistenthash")
	if err != nil {
		t.Errorf("expected nil error on miss, got %v", err)
	}
	if vectors != nil {
		t.Errorf("expected nil vectors on miss, got %v", vectors)
	}
}

func TestExemplarCache_Save_EmptyVectorsIsNoOp(t *testing.T) {
	store := NewBadgerExemplarCacheStore(openTestDB(t), 0, nil)

	if err := store.SaveCentroids(context.Background(), "anyhash", nil); err != nil {
		t.Errorf("expected no error for nil vectors, got %v", err)
	}
	if err := store.SaveCentroids(context.Background(), "anyhash", map[string][]float32{}); err != nil {
		t.Errorf("expected no error for empty map, got %v", err)
	}
}

func TestExemplarCache_RoundTrip(t *testing.T) {
	store := NewBadgerExemplarCacheStore(openTestDB(t), 0, nil)
	ctx := context.Background()

	want := makeTestCentroids()
	hash := "testcorpushash0001"

	if err := store.SaveCentroids(ctx, hash, want); err != nil {
		t.Fatalf("SaveCentroids: %v", err)
	}
	got, err := store.LoadCentroids(ctx, hash)
	if err != nil {
		t.Fatalf("LoadCentroids: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for id, wantVec := range want {
		gotVec, ok := got[id]
		if !ok {
			t.Errorf("missing endpoint %s after round trip", id)
			continue
		}
		if len(gotVec) != len(wantVec) {
			t.Errorf("endpoint %s: expected %d dims, got %d", id, len(wantVec), len(gotVec))
			continue
		}
		for i := range wantVec {
			if gotVec[i] != wantVec[i] {
				t.Errorf("endpoint %s dim %d: expected %v, got %v", id, i, wantVec[i], gotVec[i])
			}
		}
	}
}

func TestExemplarCache_DifferentHashesAreIsolated(t *testing.T) {
	store := NewBadgerExemplarCacheStore(openTestDB(t), 0, nil)
	ctx := context.Background()

	if err := store.SaveCentroids(ctx, "hash-a", makeTestCentroids()); err != nil {
		t.Fatalf("SaveCentroids: %v", err)
	}
	got, err := store.LoadCentroids(ctx, "hash-b")
	if err != nil {
		t.Fatalf("LoadCentroids: %v", err)
	}
	if got != nil {
		t.Error("expected a miss for a different corpus hash")
	}
}

// =============================================================================
// ComputeCorpusHash Tests
// =============================================================================

func TestComputeCorpusHash_Deterministic(t *testing.T) {
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry.Default: %v", err)
	}

	a := ComputeCorpusHash(reg, "model-x")
	b := ComputeCorpusHash(reg, "model-x")
	if a != b {
		t.Errorf("hash not deterministic: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected a 64-character hex digest, got %d characters", len(a))
	}
}

func TestComputeCorpusHash_ModelChangesHash(t *testing.T) {
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry.Default: %v", err)
	}

	if ComputeCorpusHash(reg, "model-x") == ComputeCorpusHash(reg, "model-y") {
		t.Error("expected a model name change to change the corpus hash")
	}
}

func TestComputeCorpusHash_ExemplarChangeChangesHash(t *testing.T) {
	regA, err := registry.Load([]byte(`
endpoints:
  - id: general_analysis
    display_name: Strategic Analysis
    primary_intents: [ranking]
    confidence_threshold: 0.5
    exemplars: ["best markets"]
`))
	if err != nil {
		t.Fatalf("Load regA: %v", err)
	}
	regB, err := registry.Load([]byte(`
endpoints:
  - id: general_analysis
    display_name: Strategic Analysis
    primary_intents: [ranking]
    confidence_threshold: 0.5
    exemplars: ["strongest regions"]
`))
	if err != nil {
		t.Fatalf("Load regB: %v", err)
	}

	if ComputeCorpusHash(regA, "m") == ComputeCorpusHash(regB, "m") {
		t.Error("expected an exemplar text change to change the corpus hash")
	}
}
