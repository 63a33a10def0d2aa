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
	"strings"
	"testing"
)

// =============================================================================
// Classifier Tests
// =============================================================================

func TestClassifier_IntentTable(t *testing.T) {
	c := NewClassifier()

	cases := []struct {
		query string
		want  string
	}{
		{"rank the top areas by sales", IntentRanking},
		{"what is the difference between Nike and Adidas", IntentEntityDifference},
		{"is there a correlation between income and sales", IntentCorrelation},
		{"group the neighborhoods into clusters", IntentClustering},
		{"how has market share trended over time", IntentTrend},
		{"show me unusual outliers in the data", IntentAnomaly},
		{"what if we open a new store downtown", IntentScenario},
		{"profile the lifestyle segments in each area", IntentSegmentation},
		{"which factors matter most for the prediction", IntentFeatureImportance},
		{"where do all models agree", IntentConsensus},
		{"show the demographic profile by income and age", IntentDemographicAnalysis},
		{"where do we have a competitive advantage", IntentCompetitivePositioning},
	}
	for _, tc := range cases {
		got := c.Classify(Query{Text: tc.query})
		if got.Intent != tc.want {
			t.Errorf("Classify(%q): expected %s, got %s (reasoning: %s)",
				tc.query, tc.want, got.Intent, got.Reasoning)
		}
		if got.BaseConfidence < 0.2 || got.BaseConfidence > 0.95 {
			t.Errorf("Classify(%q): confidence %.2f outside [0.2, 0.95]",
				tc.query, got.BaseConfidence)
		}
	}
}

func TestClassifier_NoMatchFallsBackToRanking(t *testing.T) {
	c := NewClassifier()

	got := c.Classify(Query{Text: "tell me about these markets"})
	if got.Intent != IntentRanking {
		t.Errorf("expected fallback to %s, got %s", IntentRanking, got.Intent)
	}
	if got.BaseConfidence != 0.2 {
		t.Errorf("expected minimum confidence 0.2 on fallback, got %.2f", got.BaseConfidence)
	}
}

func TestClassifier_ReasoningNamesTheIntent(t *testing.T) {
	c := NewClassifier()

	got := c.Classify(Query{Text: "show me outliers and anomalies"})
	if !strings.Contains(got.Reasoning, "intent="+IntentAnomaly) {
		t.Errorf("expected reasoning to carry the intent marker, got %q", got.Reasoning)
	}
}

func TestClassifier_Deterministic(t *testing.T) {
	c := NewClassifier()

	first := c.Classify(Query{Text: "compare brand performance across regions over time"})
	for i := 0; i < 10; i++ {
		again := c.Classify(Query{Text: "compare brand performance across regions over time"})
		if again.Intent != first.Intent || again.BaseConfidence != first.BaseConfidence {
			t.Fatalf("classification not deterministic: %v vs %v", first, again)
		}
	}
}

func TestClassifier_PhraseOutweighsKeyword(t *testing.T) {
	c := NewClassifier()

	// "what if" (scenario phrase, 3.0) must beat a lone weaker keyword.
	got := c.Classify(Query{Text: "what if the top market declines"})
	if got.Intent != IntentScenario {
		t.Errorf("expected %s, got %s (reasoning: %s)", IntentScenario, got.Intent, got.Reasoning)
	}
}
