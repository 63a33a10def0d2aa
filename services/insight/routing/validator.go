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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AtlasInsightAI/AtlasInsight/services/insight/config"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var validatorScopeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "insight",
	Subsystem: "validator",
	Name:      "scope_total",
	Help:      "Query scope classifications by outcome",
}, []string{"scope"})

// =============================================================================
// Domain Vocabulary
// =============================================================================

// domainVocabulary is the curated in-domain term set with weights. Terms the
// routing layers act on score high; generic analytical verbs score low but
// non-zero so "analyze the regions" still clears the floor. Multi-word
// phrases are matched as whole-word substrings.
var domainVocabulary = map[string]float64{
	// Geography and units of analysis.
	"market": 1.0, "markets": 1.0, "area": 0.8, "areas": 0.8,
	"region": 0.8, "regions": 0.8, "zip": 1.0, "zip code": 1.0,
	"neighborhood": 0.8, "territory": 0.8, "city": 0.6, "county": 0.6,
	"location": 0.6, "locations": 0.6, "store": 0.8, "stores": 0.8,

	// Commercial signal.
	"brand": 1.0, "brands": 1.0, "market share": 1.2, "share": 0.6,
	"sales": 1.0, "revenue": 1.0, "customer": 0.8, "customers": 0.8,
	"competitor": 1.0, "competitors": 1.0, "competitive": 1.0,
	"competition": 1.0, "penetration": 1.0, "expansion": 0.8,

	// Demographic signal.
	"demographic": 1.0, "demographics": 1.0, "population": 1.0,
	"income": 1.0, "household": 0.8, "households": 0.8, "age": 0.6,

	// Analytical verbs and nouns.
	"rank": 0.8, "ranking": 0.8, "compare": 0.8, "comparison": 0.8,
	"correlation": 1.0, "correlate": 1.0, "cluster": 1.0, "clusters": 1.0,
	"trend": 1.0, "trends": 1.0, "outlier": 1.0, "outliers": 1.0,
	"anomaly": 1.0, "anomalies": 1.0, "segment": 1.0, "segments": 1.0,
	"scenario": 1.0, "what if": 1.0, "forecast": 0.8, "predict": 0.8,
	"opportunity": 0.8, "performance": 0.6, "growth": 0.6,
	"analyze": 0.4, "analysis": 0.4, "insight": 0.4, "insights": 0.4,
	"data": 0.3, "score": 0.4, "scores": 0.4, "top": 0.4, "best": 0.4,
}

// =============================================================================
// QueryValidator
// =============================================================================

// ValidationResult is the scope gate's verdict for one query.
type ValidationResult struct {
	// Scope is the classification.
	Scope Scope

	// Reason explains a rejection in user-facing language. Empty when in scope.
	Reason string

	// Relevance is the weighted domain-vocabulary overlap score that drove
	// the decision. Diagnostic only.
	Relevance float64
}

// Validator classifies a query as in-scope, out-of-scope, or malformed
// before any routing work proceeds. This is a hard gate: nothing downstream
// runs on a rejected query.
//
// # Description
//
// The relevance score is a weighted overlap against the curated in-domain
// vocabulary, normalized by query length so long rambling queries do not
// accumulate relevance from volume alone. A query is OUT_OF_SCOPE only when
// the score is under the configured floor AND no domain term matched at all.
//
// # Thread Safety
//
// Pure function of static vocabulary and the query. Safe for concurrent use.
type Validator struct {
	tuning *config.Store
}

// NewValidator creates a Validator using the given tuning store.
func NewValidator(tuning *config.Store) *Validator {
	if tuning == nil {
		tuning = config.NewStore(nil, nil)
	}
	return &Validator{tuning: tuning}
}

// Validate classifies the query. No side effects beyond metrics.
func (v *Validator) Validate(q Query) ValidationResult {
	res := v.validate(q)
	validatorScopeTotal.WithLabelValues(string(res.Scope)).Inc()
	return res
}

func (v *Validator) validate(q Query) ValidationResult {
	t := v.tuning.Current()
	text := strings.TrimSpace(q.Text)

	if text == "" {
		return ValidationResult{
			Scope:  ScopeMalformed,
			Reason: "The query is empty. Ask a question about your markets, brands, or demographics.",
		}
	}

	tokens := TokenizeQuery(text)
	meaningful := 0
	for _, tok := range tokens {
		if !noiseWords[tok] && (len(tok) >= 2 || isNumeric(tok)) {
			meaningful++
		}
	}
	if meaningful < t.Validator.MinQueryTokens {
		return ValidationResult{
			Scope:  ScopeMalformed,
			Reason: "The query is too short to analyze. Add what you want to measure and where.",
		}
	}
	if !containsLetter(text) {
		return ValidationResult{
			Scope:  ScopeMalformed,
			Reason: "The query contains no words. Ask a question about your markets, brands, or demographics.",
		}
	}

	relevance, hits := v.domainRelevance(strings.ToLower(text), tokens)
	if hits == 0 && relevance < t.Validator.DomainRelevanceFloor {
		return ValidationResult{
			Scope:     ScopeOutOfScope,
			Relevance: relevance,
			Reason:    "This question is outside the market analysis domain.",
		}
	}

	return ValidationResult{Scope: ScopeInScope, Relevance: relevance}
}

// domainRelevance computes the weighted vocabulary overlap and the raw hit
// count. Multi-word vocabulary entries match as whole-word substrings;
// single words match tokens exactly.
func (v *Validator) domainRelevance(queryLower string, tokens []string) (float64, int) {
	tokenSet := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		tokenSet[tok] = true
	}

	var total float64
	hits := 0
	for term, weight := range domainVocabulary {
		matched := false
		if strings.Contains(term, " ") {
			matched = containsPhrase(queryLower, term)
		} else {
			matched = tokenSet[term]
		}
		if matched {
			total += weight
			hits++
		}
	}

	// Normalize by meaningful query length; min denominator keeps two-word
	// queries from scoring absurdly high off one weak term.
	denom := float64(len(tokens))
	if denom < 4 {
		denom = 4
	}
	return total / denom, hits
}

func containsLetter(s string) bool {
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}
