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
	"regexp"
	"strings"

	"github.com/AtlasInsightAI/AtlasInsight/services/insight/config"
	"github.com/AtlasInsightAI/AtlasInsight/services/insight/registry"
)

// =============================================================================
// VocabularyAdapter
// =============================================================================

// Endpoint IDs the adapter treats specially. The generic strategic endpoint
// is prone to hijacking specific queries; the brand-difference endpoint is
// the specific target of the comparison tie-breaker.
const (
	genericEndpointID     = "general_analysis"
	competitiveEndpointID = "competitive_analysis"
	differenceEndpointID  = "brand_difference"
)

// VocabResult carries the adapter's per-endpoint score adjustments plus the
// cap/floor directives the confidence manager applies after merging.
type VocabResult struct {
	// Deltas maps endpoint ID to the score adjustment (positive or negative).
	Deltas map[string]float64

	// Suppressed maps endpoint ID to the avoidance-filter reason that
	// removed it from eligibility for this query.
	Suppressed map[string]string

	// CapGeneric directs the confidence manager to cap the generic
	// competitive endpoint's final score below 1.0.
	CapGeneric bool

	// FloorSpecific directs the confidence manager to floor the specific
	// entity-difference endpoint's final score above the generic cap.
	FloorSpecific bool

	// EntityPair holds the two detected named entities, when present.
	EntityPair [2]string

	// AppliedRules lists the rules that fired, for the trace.
	AppliedRules []string
}

// Adapter applies domain-specific synonym expansion and avoidance filters on
// top of base intents, producing per-endpoint score adjustments.
//
// # Thread Safety
//
// All state is read-only after construction. Safe for concurrent use.
type Adapter struct {
	registry *registry.Registry
	synonyms config.DomainSynonyms
	tuning   *config.Store
}

// NewAdapter creates an Adapter over the given registry and synonym table.
func NewAdapter(reg *registry.Registry, synonyms config.DomainSynonyms, tuning *config.Store) *Adapter {
	if synonyms == nil {
		synonyms = make(config.DomainSynonyms)
	}
	if tuning == nil {
		tuning = config.NewStore(nil, nil)
	}
	return &Adapter{registry: reg, synonyms: synonyms, tuning: tuning}
}

// perTermBoost is the score contribution of one matched boost term;
// perTermPenalty of one matched penalty term. The tie-breaker constants in
// the tuning file dominate these; vocabulary hits nudge, tie-breakers decide.
const (
	perTermBoost   = 0.05
	perTermPenalty = 0.05
)

// Adapt computes per-endpoint score adjustments for the query.
//
// # Description
//
// For every endpoint, each boost-term hit (expanded through the synonym
// table) adds weight and each penalty-term hit subtracts weight. Avoidance
// filters then suppress endpoints based on the combination of the
// classifier's generated reasoning text and the original query; both
// signals are required, so a stray word in one of them cannot suppress an
// endpoint alone. Finally the explicit comparison tie-breaker fires when
// comparison language plus two distinct named entities are detected.
//
// # Thread Safety
//
// Safe for concurrent use.
func (a *Adapter) Adapt(q Query, intent IntentResult) *VocabResult {
	t := a.tuning.Current()
	queryLower := strings.ToLower(q.Text)

	res := &VocabResult{
		Deltas:     make(map[string]float64),
		Suppressed: make(map[string]string),
	}

	for _, ep := range a.registry.All() {
		var delta float64
		for _, term := range ep.BoostTerms {
			if a.matchesAnyForm(queryLower, term) {
				delta += perTermBoost
			}
		}
		for _, term := range ep.PenaltyTerms {
			if a.matchesAnyForm(queryLower, term) {
				delta -= perTermPenalty
			}
		}
		if delta != 0 {
			res.Deltas[ep.ID] = delta
		}
	}

	a.applyAvoidanceFilters(queryLower, intent, res, t)
	a.applyComparisonTieBreaker(queryLower, res, t)

	return res
}

// matchesAnyForm reports whether the query contains the term or any of its
// synonym forms as a whole-word phrase.
func (a *Adapter) matchesAnyForm(queryLower, term string) bool {
	for _, form := range a.synonyms.Expand(strings.ToLower(term)) {
		if containsPhrase(queryLower, form) {
			return true
		}
	}
	return false
}

// =============================================================================
// Avoidance Filters
// =============================================================================

// specificSignals are the reasoning-text markers that indicate a more
// specific analysis than the generic strategic endpoint provides. Each entry
// pairs the reasoning marker with the query-side phrases that must also be
// present; suppression requires BOTH the generated reasoning and the
// original query to carry the signal.
var specificSignals = []struct {
	reasoningMarker string
	queryPhrases    []string
}{
	{
		reasoningMarker: "intent=" + IntentDemographicAnalysis,
		queryPhrases:    []string{"demographic", "demographics", "population", "income", "household"},
	},
	{
		reasoningMarker: "intent=" + IntentCompetitivePositioning,
		queryPhrases:    []string{"competitive", "competitor", "competitors", "competition", "market share"},
	},
	{
		reasoningMarker: "intent=" + IntentEntityDifference,
		queryPhrases:    []string{"vs", "versus", "difference between", "gap between"},
	},
}

// applyAvoidanceFilters suppresses the generic strategic endpoint when a more
// specific signal is present in both the reasoning text and the query, and
// down-weights strategic vocabulary under the same condition.
func (a *Adapter) applyAvoidanceFilters(queryLower string, intent IntentResult, res *VocabResult, t *config.Tuning) {
	if !a.registry.Has(genericEndpointID) {
		return
	}

	for _, sig := range specificSignals {
		if !strings.Contains(intent.Reasoning, sig.reasoningMarker) {
			continue
		}
		for _, phrase := range sig.queryPhrases {
			if containsPhrase(queryLower, phrase) {
				res.Suppressed[genericEndpointID] = fmt.Sprintf(
					"specific signal %q present in reasoning and query", sig.reasoningMarker)
				res.AppliedRules = append(res.AppliedRules, "avoidance:"+genericEndpointID)
				return
			}
		}
	}

	// Not suppressed: still down-weight strategic vocabulary whenever any
	// specific query phrase co-occurs with it.
	if containsPhrase(queryLower, "strategic") || containsPhrase(queryLower, "strategy") {
		for _, sig := range specificSignals {
			for _, phrase := range sig.queryPhrases {
				if containsPhrase(queryLower, phrase) {
					res.Deltas[genericEndpointID] -= t.TieBreakers.StrategicDownweight
					res.AppliedRules = append(res.AppliedRules, "strategic_downweight")
					return
				}
			}
		}
	}
}

// =============================================================================
// Comparison Tie-Breaker
// =============================================================================

// entityPairPatterns capture "<A> vs <B>" and "difference between <A> and
// <B>" forms. Entities are one or two capitalized-or-plain words; matching
// runs on the original casing to let brand names through, then lowercases.
var entityPairPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b([\w]+(?: [\w]+)?)\s+(?:vs\.?|versus)\s+([\w]+(?: [\w]+)?)`),
	regexp.MustCompile(`(?i)difference between\s+([\w]+(?: [\w]+)?)\s+and\s+([\w]+(?: [\w]+)?)`),
	regexp.MustCompile(`(?i)gap between\s+([\w]+(?: [\w]+)?)\s+and\s+([\w]+(?: [\w]+)?)`),
}

// DetectEntityPair finds two distinct named entities joined by explicit
// comparison language. Returns ok=false when no pair is found or the two
// sides normalize to the same entity.
func DetectEntityPair(query string) (a, b string, ok bool) {
	for _, re := range entityPairPatterns {
		m := re.FindStringSubmatch(query)
		if m == nil {
			continue
		}
		left := normalizeEntity(m[1])
		right := normalizeEntity(m[2])
		if left != "" && right != "" && left != right {
			return left, right, true
		}
	}
	return "", "", false
}

// entityNoise are generic trailing nouns that are not part of an entity name,
// so "Brand A market share" and "Brand A" compare equal.
var entityNoise = map[string]bool{
	"market": true, "share": true, "sales": true, "penetration": true,
	"performance": true, "revenue": true,
}

// entityLeadVerbs are query verbs the greedy capture can drag into the left
// entity ("compare nike vs ...").
var entityLeadVerbs = map[string]bool{
	"compare": true, "comparing": true, "analyze": true, "show": true,
}

// normalizeEntity lowercases the captured span and strips leading query verbs
// and trailing generic nouns or stopwords, leaving just the entity name.
func normalizeEntity(s string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	for len(fields) > 0 && (noiseWords[fields[0]] || entityLeadVerbs[fields[0]]) {
		fields = fields[1:]
	}
	for len(fields) > 0 {
		last := fields[len(fields)-1]
		if !noiseWords[last] && !entityNoise[last] {
			break
		}
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

// applyComparisonTieBreaker prefers the specific entity-difference endpoint
// over the generic competitive endpoint when explicit comparison language
// plus two distinct named entities are present. The cap/floor pair
// guarantees the two scores can never tie at 1.0/1.0.
func (a *Adapter) applyComparisonTieBreaker(queryLower string, res *VocabResult, t *config.Tuning) {
	if !a.registry.Has(differenceEndpointID) {
		return
	}

	hasComparisonLanguage := containsPhrase(queryLower, "vs") ||
		containsPhrase(queryLower, "versus") ||
		containsPhrase(queryLower, "difference between") ||
		containsPhrase(queryLower, "gap between")
	if !hasComparisonLanguage {
		return
	}

	left, right, ok := DetectEntityPair(queryLower)
	if !ok {
		return
	}

	res.EntityPair = [2]string{left, right}
	res.Deltas[differenceEndpointID] += t.TieBreakers.ComparisonBoost
	res.FloorSpecific = true
	res.AppliedRules = append(res.AppliedRules, "comparison_tiebreak:"+differenceEndpointID)

	if a.registry.Has(competitiveEndpointID) {
		res.Deltas[competitiveEndpointID] -= t.TieBreakers.GenericPenalty
		res.CapGeneric = true
		res.AppliedRules = append(res.AppliedRules, "comparison_tiebreak_penalty:"+competitiveEndpointID)
	}
}
