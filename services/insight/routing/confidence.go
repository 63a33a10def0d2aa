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
	"sort"

	"github.com/AtlasInsightAI/AtlasInsight/services/insight/config"
	"github.com/AtlasInsightAI/AtlasInsight/services/insight/registry"
)

// =============================================================================
// ConfidenceManager
// =============================================================================

// secondaryIntentBase is the starting score for an endpoint that did NOT list
// the winning intent as primary. Such endpoints can still win on vocabulary
// strength, but they start from well behind.
const secondaryIntentBase = 0.15

// Manager merges the per-layer signals into a single calibrated confidence
// per endpoint and ranks the candidates.
//
// # Description
//
// Each endpoint starts from the classifier's base confidence when it lists
// the winning intent as primary, or from a small constant otherwise. Weighted
// vocabulary and context deltas are added, suppressed endpoints are dropped,
// the comparison cap/floor pair is enforced, and everything is clamped to
// [0,1]. Ranking is score-descending with endpoint-ID ascending as the tie
// break, so identical inputs always produce an identical ordering.
//
// # Thread Safety
//
// Stateless over immutable collaborators. Safe for concurrent use.
type Manager struct {
	registry *registry.Registry
	tuning   *config.Store
}

// NewManager creates a Manager.
func NewManager(reg *registry.Registry, tuning *config.Store) *Manager {
	if tuning == nil {
		tuning = config.NewStore(nil, nil)
	}
	return &Manager{registry: reg, tuning: tuning}
}

// Resolve merges the layer signals into a ranked endpoint list, best first.
// The list is never empty for an in-scope query unless every endpoint was
// suppressed, which the adapter's rules cannot do.
func (m *Manager) Resolve(intent IntentResult, vocab *VocabResult, ctx *ContextResult) []EndpointScore {
	t := m.tuning.Current()

	scores := make(map[string]float64, m.registry.Len())
	for _, ep := range m.registry.All() {
		if vocab != nil {
			if _, suppressed := vocab.Suppressed[ep.ID]; suppressed {
				continue
			}
		}

		base := secondaryIntentBase
		for _, primary := range ep.PrimaryIntents {
			if primary == intent.Intent {
				base = intent.BaseConfidence
				break
			}
		}

		score := base
		if vocab != nil {
			score += t.Confidence.VocabWeight * vocab.Deltas[ep.ID]
		}
		if ctx != nil {
			score += t.Confidence.ContextWeight * ctx.Deltas[ep.ID]
		}
		scores[ep.ID] = score
	}

	// Comparison tie-break cap/floor. Applied after merging so no later
	// signal can re-create a tie between the generic and specific endpoints.
	if vocab != nil {
		if vocab.CapGeneric {
			if s, ok := scores[competitiveEndpointID]; ok && s > t.TieBreakers.GenericCap {
				scores[competitiveEndpointID] = t.TieBreakers.GenericCap
			}
		}
		if vocab.FloorSpecific {
			if s, ok := scores[differenceEndpointID]; ok && s < t.TieBreakers.SpecificFloor {
				scores[differenceEndpointID] = t.TieBreakers.SpecificFloor
			}
		}
	}

	ranked := make([]EndpointScore, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, EndpointScore{
			Endpoint:       id,
			Confidence:     clamp01(score),
			BelowThreshold: clamp01(score) < m.threshold(id),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].Endpoint < ranked[j].Endpoint
	})
	return ranked
}

func (m *Manager) threshold(endpointID string) float64 {
	ep := m.registry.Get(endpointID)
	if ep == nil {
		return 0
	}
	return ep.ConfidenceThreshold
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
