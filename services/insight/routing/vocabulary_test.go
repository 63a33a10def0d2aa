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
	"testing"

	"github.com/AtlasInsightAI/AtlasInsight/services/insight/config"
	"github.com/AtlasInsightAI/AtlasInsight/services/insight/registry"
)

// =============================================================================
// Helpers
// =============================================================================

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry.Default: %v", err)
	}
	return NewAdapter(reg, config.MustLoadDomainSynonyms(), nil)
}

// =============================================================================
// DetectEntityPair Tests
// =============================================================================

func TestDetectEntityPair(t *testing.T) {
	cases := []struct {
		query       string
		wantA       string
		wantB       string
		wantOK      bool
		description string
	}{
		{"nike vs adidas", "nike", "adidas", true, "plain vs"},
		{"Nike versus Adidas in Chicago", "nike", "adidas", true, "versus with casing"},
		{"difference between red bull and monster", "red bull", "monster", true, "difference-between form"},
		{"gap between nike and adidas", "nike", "adidas", true, "gap-between form"},
		{"nike vs nike", "", "", false, "same entity both sides"},
		{"show the best markets", "", "", false, "no comparison language"},
	}
	for _, tc := range cases {
		a, b, ok := DetectEntityPair(tc.query)
		if ok != tc.wantOK {
			t.Errorf("%s: DetectEntityPair(%q) ok = %v, want %v", tc.description, tc.query, ok, tc.wantOK)
			continue
		}
		if ok && (a != tc.wantA || b != tc.wantB) {
			t.Errorf("%s: DetectEntityPair(%q) = (%q, %q), want (%q, %q)",
				tc.description, tc.query, a, b, tc.wantA, tc.wantB)
		}
	}
}

func TestNormalizeEntity_TrimsGenericSuffixes(t *testing.T) {
	if got := normalizeEntity("Nike market share"); got != "nike" {
		t.Errorf("expected trailing generic nouns trimmed, got %q", got)
	}
	if got := normalizeEntity("  Adidas  "); got != "adidas" {
		t.Errorf("expected trimmed lowercase, got %q", got)
	}
}

// =============================================================================
// Comparison Tie-Breaker Tests
// =============================================================================

func TestAdapter_ComparisonTieBreakerFires(t *testing.T) {
	a := newTestAdapter(t)
	c := NewClassifier()

	q := Query{Text: "compare nike vs adidas market share"}
	res := a.Adapt(q, c.Classify(q))

	if !res.FloorSpecific {
		t.Error("expected FloorSpecific for an explicit two-entity comparison")
	}
	if !res.CapGeneric {
		t.Error("expected CapGeneric for an explicit two-entity comparison")
	}
	if res.Deltas[differenceEndpointID] <= 0 {
		t.Errorf("expected positive delta for %s, got %.2f",
			differenceEndpointID, res.Deltas[differenceEndpointID])
	}
	if res.Deltas[competitiveEndpointID] >= 0 {
		t.Errorf("expected negative delta for %s, got %.2f",
			competitiveEndpointID, res.Deltas[competitiveEndpointID])
	}
	if res.EntityPair[0] == "" || res.EntityPair[1] == "" {
		t.Errorf("expected entity pair to be recorded, got %v", res.EntityPair)
	}
}

func TestAdapter_ComparisonLanguageWithoutEntitiesDoesNotFire(t *testing.T) {
	a := newTestAdapter(t)
	c := NewClassifier()

	// Comparison vocabulary alone, no two named entities: the tie-breaker
	// must stay out of it.
	q := Query{Text: "compare performance across all regions"}
	res := a.Adapt(q, c.Classify(q))

	if res.FloorSpecific || res.CapGeneric {
		t.Errorf("tie-breaker fired without an entity pair: %+v", res.AppliedRules)
	}
}

// =============================================================================
// Avoidance Filter Tests
// =============================================================================

func TestAdapter_SuppressesGenericOnSpecificSignal(t *testing.T) {
	a := newTestAdapter(t)
	c := NewClassifier()

	// Demographic signal in both the reasoning and the query: the generic
	// strategic endpoint must be suppressed entirely.
	q := Query{Text: "show the demographic profile by income and age"}
	res := a.Adapt(q, c.Classify(q))

	if _, ok := res.Suppressed[genericEndpointID]; !ok {
		t.Errorf("expected %s suppressed, got suppressed=%v rules=%v",
			genericEndpointID, res.Suppressed, res.AppliedRules)
	}
}

func TestAdapter_NoSuppressionWithoutQuerySideSignal(t *testing.T) {
	a := newTestAdapter(t)

	// A fabricated reasoning alone must not suppress: the query side of the
	// signal is required too.
	q := Query{Text: "rank the best markets for expansion"}
	intent := IntentResult{
		Intent:    IntentDemographicAnalysis,
		Reasoning: "intent=demographic_analysis matched=[] score=0.00/0.00",
	}
	res := a.Adapt(q, intent)

	if _, ok := res.Suppressed[genericEndpointID]; ok {
		t.Error("suppression fired on reasoning signal alone; query must corroborate")
	}
}

// =============================================================================
// Boost/Penalty Term Tests
// =============================================================================

func TestAdapter_BoostTermsRaiseEndpointDelta(t *testing.T) {
	a := newTestAdapter(t)
	c := NewClassifier()

	q := Query{Text: "rank the best markets for expansion"}
	res := a.Adapt(q, c.Classify(q))

	if res.Deltas[genericEndpointID] <= 0 {
		t.Errorf("expected positive delta for %s from boost terms, got %.2f",
			genericEndpointID, res.Deltas[genericEndpointID])
	}
}

func TestAdapter_PenaltyTermsLowerEndpointDelta(t *testing.T) {
	a := newTestAdapter(t)
	c := NewClassifier()

	// "versus" is a penalty term for the generic strategic endpoint.
	q := Query{Text: "nike versus adidas sales"}
	res := a.Adapt(q, c.Classify(q))

	// brand_difference lists "versus" as a boost term; its delta must exceed
	// the generic endpoint's.
	if res.Deltas[differenceEndpointID] <= res.Deltas[genericEndpointID] {
		t.Errorf("expected %s delta (%.2f) above %s delta (%.2f)",
			differenceEndpointID, res.Deltas[differenceEndpointID],
			genericEndpointID, res.Deltas[genericEndpointID])
	}
}
