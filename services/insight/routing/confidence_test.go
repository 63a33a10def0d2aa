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

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("registry.Default: %v", err)
	}
	return NewManager(reg, nil)
}

// =============================================================================
// Manager.Resolve Tests
// =============================================================================

func TestManager_PrimaryIntentEndpointLeads(t *testing.T) {
	m := newTestManager(t)

	intent := IntentResult{Intent: IntentCorrelation, BaseConfidence: 0.8}
	ranked := m.Resolve(intent, nil, nil)
	if len(ranked) == 0 {
		t.Fatal("expected a non-empty ranking")
	}
	if ranked[0].Endpoint != "correlation_analysis" {
		t.Errorf("expected correlation_analysis to lead, got %s", ranked[0].Endpoint)
	}
	if ranked[0].Confidence != 0.8 {
		t.Errorf("expected leader confidence 0.8, got %.2f", ranked[0].Confidence)
	}
}

func TestManager_SuppressedEndpointIsAbsent(t *testing.T) {
	m := newTestManager(t)

	intent := IntentResult{Intent: IntentRanking, BaseConfidence: 0.7}
	vocab := &VocabResult{
		Deltas:     map[string]float64{},
		Suppressed: map[string]string{"general_analysis": "specific signal"},
	}
	ranked := m.Resolve(intent, vocab, nil)
	for _, es := range ranked {
		if es.Endpoint == "general_analysis" {
			t.Fatal("suppressed endpoint must not appear in the ranking")
		}
	}
}

func TestManager_CapAndFloorBreakTies(t *testing.T) {
	m := newTestManager(t)
	tb := config.DefaultTuning().TieBreakers

	// Both endpoints pushed to saturation: without the cap/floor pair they
	// would tie at 1.0.
	intent := IntentResult{Intent: IntentComparison, BaseConfidence: 0.9}
	vocab := &VocabResult{
		Deltas: map[string]float64{
			competitiveEndpointID: 0.5,
			differenceEndpointID:  0.5,
		},
		Suppressed:    map[string]string{},
		CapGeneric:    true,
		FloorSpecific: true,
	}
	ranked := m.Resolve(intent, vocab, nil)

	scores := make(map[string]float64, len(ranked))
	for _, es := range ranked {
		scores[es.Endpoint] = es.Confidence
	}
	if scores[competitiveEndpointID] > tb.GenericCap {
		t.Errorf("generic endpoint %.3f exceeds cap %.3f", scores[competitiveEndpointID], tb.GenericCap)
	}
	if scores[differenceEndpointID] < tb.SpecificFloor {
		t.Errorf("specific endpoint %.3f under floor %.3f", scores[differenceEndpointID], tb.SpecificFloor)
	}
	if ranked[0].Endpoint != differenceEndpointID {
		t.Errorf("expected %s to win the tie-break, got %s", differenceEndpointID, ranked[0].Endpoint)
	}
}

func TestManager_ScoresClampedToUnitInterval(t *testing.T) {
	m := newTestManager(t)

	intent := IntentResult{Intent: IntentAnomaly, BaseConfidence: 0.9}
	vocab := &VocabResult{
		Deltas: map[string]float64{
			"anomaly_detection": 5.0,
			"trend_analysis":    -5.0,
		},
		Suppressed: map[string]string{},
	}
	for _, es := range m.Resolve(intent, vocab, nil) {
		if es.Confidence < 0 || es.Confidence > 1 {
			t.Errorf("endpoint %s confidence %.2f outside [0,1]", es.Endpoint, es.Confidence)
		}
	}
}

func TestManager_BelowThresholdFlag(t *testing.T) {
	m := newTestManager(t)

	// A weak base confidence leaves every endpoint under its threshold but
	// the ranking is still produced; routing never hard-fails on weakness.
	intent := IntentResult{Intent: IntentConsensus, BaseConfidence: 0.2}
	ranked := m.Resolve(intent, nil, nil)
	if len(ranked) == 0 {
		t.Fatal("expected a non-empty ranking")
	}
	if ranked[0].Endpoint != "consensus_analysis" {
		t.Errorf("expected consensus_analysis to lead, got %s", ranked[0].Endpoint)
	}
	if !ranked[0].BelowThreshold {
		t.Error("expected the below-threshold flag at confidence 0.2")
	}
}

func TestManager_DeterministicOrdering(t *testing.T) {
	m := newTestManager(t)

	intent := IntentResult{Intent: IntentRanking, BaseConfidence: 0.5}
	first := m.Resolve(intent, nil, nil)
	for i := 0; i < 10; i++ {
		again := m.Resolve(intent, nil, nil)
		if len(again) != len(first) {
			t.Fatalf("ranking length changed between runs: %d vs %d", len(first), len(again))
		}
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("ranking not deterministic at position %d: %v vs %v", j, first[j], again[j])
			}
		}
	}
}
