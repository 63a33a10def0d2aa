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
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// Intent Signatures
// =============================================================================

// Intent signature names. Domain-agnostic: these describe what KIND of
// question is being asked, with no endpoint awareness.
const (
	IntentRanking                = "ranking"
	IntentComparison             = "comparison"
	IntentEntityDifference       = "entity_difference"
	IntentCorrelation            = "correlation"
	IntentClustering             = "clustering"
	IntentTrend                  = "trend"
	IntentAnomaly                = "anomaly"
	IntentScenario               = "scenario"
	IntentSegmentation           = "segmentation"
	IntentFeatureImportance      = "feature_importance"
	IntentConsensus              = "consensus"
	IntentDemographicAnalysis    = "demographic_analysis"
	IntentCompetitivePositioning = "competitive_positioning"
)

// intentSignature is one weighted keyword/pattern set.
type intentSignature struct {
	// name is the intent identifier.
	name string

	// keywords maps single tokens to weights.
	keywords map[string]float64

	// phrases maps multi-word phrases (whole-word substring match) to weights.
	// Phrases outweigh keywords: explicit phrasing is a stronger signal.
	phrases map[string]float64
}

// totalWeight is the maximum achievable match weight for this signature.
func (s *intentSignature) totalWeight() float64 {
	var total float64
	for _, w := range s.keywords {
		total += w
	}
	for _, w := range s.phrases {
		total += w
	}
	return total
}

// intentSignatures is the static signature table. Order is irrelevant;
// classification ties break alphabetically for determinism.
var intentSignatures = []intentSignature{
	{
		name: IntentRanking,
		keywords: map[string]float64{
			"rank": 2.0, "ranking": 2.0, "top": 1.5, "best": 1.5,
			"highest": 1.5, "lowest": 1.5, "worst": 1.5, "leading": 1.0,
		},
		phrases: map[string]float64{
			"rank by": 2.5, "top 10": 2.0, "top ten": 2.0, "best areas": 2.0,
		},
	},
	{
		name: IntentComparison,
		keywords: map[string]float64{
			"compare": 2.0, "comparison": 2.0, "contrast": 1.5,
		},
		phrases: map[string]float64{
			"compared to": 2.0, "relative to": 1.5, "against each other": 2.0,
		},
	},
	{
		name: IntentEntityDifference,
		keywords: map[string]float64{
			"versus": 2.5, "vs": 2.5, "gap": 1.5, "delta": 1.5,
		},
		phrases: map[string]float64{
			"difference between": 3.0, "head to head": 2.5, "gap between": 2.5,
		},
	},
	{
		name: IntentCorrelation,
		keywords: map[string]float64{
			"correlation": 2.5, "correlate": 2.5, "correlated": 2.5,
			"relationship": 2.0, "related": 1.5, "association": 1.5, "drives": 1.0,
		},
		phrases: map[string]float64{
			"related to": 2.0, "linked to": 1.5, "depends on": 1.5,
		},
	},
	{
		name: IntentClustering,
		keywords: map[string]float64{
			"cluster": 2.5, "clusters": 2.5, "clustering": 2.5,
			"group": 1.0, "grouping": 1.5, "alike": 1.0,
		},
		phrases: map[string]float64{
			"similar areas": 2.5, "hot spots": 2.0, "group areas": 2.0,
			"behave alike": 2.0,
		},
	},
	{
		name: IntentTrend,
		keywords: map[string]float64{
			"trend": 2.5, "trends": 2.5, "trajectory": 2.0, "momentum": 2.0,
			"growth": 1.5, "decline": 1.5, "growing": 1.5, "shrinking": 1.5,
		},
		phrases: map[string]float64{
			"over time": 2.5, "year over year": 2.5, "month over month": 2.0,
		},
	},
	{
		name: IntentAnomaly,
		keywords: map[string]float64{
			"anomaly": 2.5, "anomalies": 2.5, "outlier": 2.5, "outliers": 2.5,
			"unusual": 2.0, "unexpected": 2.0, "surprising": 2.0, "odd": 1.0,
		},
		phrases: map[string]float64{
			"stand out": 2.0, "out of line": 2.0,
		},
	},
	{
		name: IntentScenario,
		keywords: map[string]float64{
			"scenario": 2.5, "simulate": 2.5, "simulation": 2.5,
			"projection": 2.0, "hypothetical": 2.0,
		},
		phrases: map[string]float64{
			"what if": 3.0, "would happen": 2.5, "what would": 2.0,
		},
	},
	{
		name: IntentSegmentation,
		keywords: map[string]float64{
			"segment": 2.5, "segments": 2.5, "segmentation": 2.5,
			"persona": 2.0, "personas": 2.0, "lifestyle": 1.5, "profile": 1.5,
		},
		phrases: map[string]float64{
			"customer segments": 2.5, "lifestyle segments": 2.5,
		},
	},
	{
		name: IntentFeatureImportance,
		keywords: map[string]float64{
			"driver": 2.0, "drivers": 2.0, "factor": 1.5, "factors": 1.5,
			"influence": 1.5, "importance": 2.0, "shap": 2.5, "weight": 1.0,
		},
		phrases: map[string]float64{
			"feature importance": 3.0, "key drivers": 2.5,
			"important factors": 2.5, "matter most": 2.5,
		},
	},
	{
		name: IntentConsensus,
		keywords: map[string]float64{
			"consensus": 2.5, "ensemble": 2.5, "agreement": 2.0, "robust": 1.5,
		},
		phrases: map[string]float64{
			"all models": 2.5, "models agree": 2.5, "combined models": 2.5,
		},
	},
	{
		name: IntentDemographicAnalysis,
		keywords: map[string]float64{
			"demographic": 2.5, "demographics": 2.5, "population": 2.0,
			"income": 2.0, "age": 1.5, "household": 1.5, "households": 1.5,
			"diversity": 1.5,
		},
		phrases: map[string]float64{
			"demographic profile": 2.5, "median income": 2.0,
		},
	},
	{
		name: IntentCompetitivePositioning,
		keywords: map[string]float64{
			"competitive": 2.5, "competition": 2.5, "competitor": 2.5,
			"competitors": 2.5, "positioning": 2.0, "rival": 1.5,
		},
		phrases: map[string]float64{
			"market share": 2.0, "competitive advantage": 2.5,
		},
	},
}

// =============================================================================
// IntentClassifier
// =============================================================================

// IntentResult is the classifier's verdict for one query.
type IntentResult struct {
	// Intent is the winning signature name.
	Intent string

	// BaseConfidence derives from match strength relative to the signature's
	// total possible weight. Always in [0,1].
	BaseConfidence float64

	// MatchedTerms counts how many distinct query terms matched any
	// signature. Used downstream for creative-query detection.
	MatchedTerms int

	// QueryTerms counts the meaningful terms in the query.
	QueryTerms int

	// Reasoning is a short generated description of the classification,
	// consumed by the vocabulary adapter's avoidance filters.
	Reasoning string
}

// Classifier matches a validated query against the static intent signature
// table.
//
// # Description
//
// Each signature is scored by summing the weights of its matched keywords
// and phrases. The winner's base confidence is matched weight over total
// signature weight, compressed into [0.2, 0.95] so a single strong phrase
// cannot claim certainty and a weak match still routes somewhere.
//
// # Thread Safety
//
// Stateless over an immutable table. Safe for concurrent use.
type Classifier struct{}

// NewClassifier creates a Classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify returns the best-matching intent for the query.
//
// A query that matches nothing at all falls back to the ranking intent at
// minimum confidence; in-scope queries are never rejected here.
func (c *Classifier) Classify(q Query) IntentResult {
	queryLower := strings.ToLower(q.Text)
	terms := ExtractQueryTerms(q.Text)

	type scored struct {
		name    string
		score   float64
		total   float64
		matched []string
	}

	results := make([]scored, 0, len(intentSignatures))
	matchedQueryTerms := make(map[string]bool)

	for i := range intentSignatures {
		sig := &intentSignatures[i]
		var score float64
		var matched []string

		for kw, w := range sig.keywords {
			if terms[kw] {
				score += w
				matched = append(matched, kw)
				matchedQueryTerms[kw] = true
			}
		}
		for phrase, w := range sig.phrases {
			if containsPhrase(queryLower, phrase) {
				score += w
				matched = append(matched, phrase)
				for _, pt := range strings.Fields(phrase) {
					matchedQueryTerms[pt] = true
				}
			}
		}

		if score > 0 {
			sort.Strings(matched)
			results = append(results, scored{name: sig.name, score: score, total: sig.totalWeight(), matched: matched})
		}
	}

	if len(results) == 0 {
		return IntentResult{
			Intent:         IntentRanking,
			BaseConfidence: 0.2,
			QueryTerms:     len(terms),
			Reasoning:      "no intent signature matched; defaulting to ranking",
		}
	}

	// Highest score wins; ties break alphabetically for determinism.
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].name < results[j].name
	})
	best := results[0]

	// Compress the raw ratio into [0.2, 0.95].
	ratio := best.score / best.total
	confidence := 0.2 + 0.75*ratio
	if confidence > 0.95 {
		confidence = 0.95
	}

	matchedCount := 0
	for term := range terms {
		if matchedQueryTerms[term] {
			matchedCount++
		}
	}

	return IntentResult{
		Intent:         best.name,
		BaseConfidence: confidence,
		MatchedTerms:   matchedCount,
		QueryTerms:     len(terms),
		Reasoning: fmt.Sprintf("intent=%s matched=[%s] score=%.2f/%.2f",
			best.name, strings.Join(best.matched, ","), best.score, best.total),
	}
}
