// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultTuning_Loads(t *testing.T) {
	tuning := DefaultTuning()
	if tuning == nil {
		t.Fatal("expected non-nil default tuning")
	}
	if tuning.Semantic.EnhancementThreshold <= 0 || tuning.Semantic.EnhancementThreshold > 1 {
		t.Errorf("enhancement threshold out of range: %v", tuning.Semantic.EnhancementThreshold)
	}
	if tuning.TieBreakers.SpecificFloor <= tuning.TieBreakers.GenericCap {
		t.Errorf("specific floor %v must exceed generic cap %v",
			tuning.TieBreakers.SpecificFloor, tuning.TieBreakers.GenericCap)
	}
}

func TestLoadTuning_AppliesDefaultsForPartialFile(t *testing.T) {
	tuning, err := LoadTuning([]byte("validator:\n  min_query_tokens: 3\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tuning.Validator.MinQueryTokens != 3 {
		t.Errorf("expected overridden min_query_tokens=3, got %d", tuning.Validator.MinQueryTokens)
	}
	// Unspecified fields pick up embedded defaults.
	if tuning.Context.HistoryCapacity != 256 {
		t.Errorf("expected default history_capacity=256, got %d", tuning.Context.HistoryCapacity)
	}
	if tuning.Semantic.Timeout() != 100*time.Millisecond {
		t.Errorf("expected default semantic timeout 100ms, got %v", tuning.Semantic.Timeout())
	}
}

func TestLoadTuning_RejectsFloorBelowCap(t *testing.T) {
	doc := []byte("tie_breakers:\n  generic_cap: 0.99\n  specific_floor: 0.98\n")
	if _, err := LoadTuning(doc); err == nil {
		t.Error("expected validation error when specific_floor <= generic_cap")
	}
}

func TestLoadTuning_RejectsEmpty(t *testing.T) {
	if _, err := LoadTuning(nil); err == nil {
		t.Error("expected error for empty data")
	}
}

func TestStore_WatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("context:\n  history_capacity: 16\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(nil, nil)
	if err := store.Watch(path); err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	if got := store.Current().Context.HistoryCapacity; got != 16 {
		t.Fatalf("expected initial capacity 16, got %d", got)
	}

	if err := os.WriteFile(path, []byte("context:\n  history_capacity: 32\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Reload is asynchronous; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.Current().Context.HistoryCapacity == 32 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("tuning was not reloaded; capacity still %d", store.Current().Context.HistoryCapacity)
}

func TestStore_InvalidReloadKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	if err := os.WriteFile(path, []byte("context:\n  history_capacity: 16\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(nil, nil)
	if err := store.Watch(path); err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := os.WriteFile(path, []byte(":: not yaml ::"), 0o644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(200 * time.Millisecond)
	if got := store.Current().Context.HistoryCapacity; got != 16 {
		t.Errorf("invalid reload should keep previous parameters; capacity now %d", got)
	}
}

func TestDomainSynonyms_Expand(t *testing.T) {
	syn := MustLoadDomainSynonyms()
	if len(syn) == 0 {
		t.Fatal("expected non-empty synonym table")
	}

	forms := syn.Expand("market share")
	if len(forms) < 2 {
		t.Errorf("expected expansion for 'market share', got %v", forms)
	}
	if forms[0] != "market share" {
		t.Errorf("canonical term must come first, got %v", forms[0])
	}

	unknown := syn.Expand("zzz_unknown")
	if len(unknown) != 1 || unknown[0] != "zzz_unknown" {
		t.Errorf("unknown term should expand to itself, got %v", unknown)
	}
}
