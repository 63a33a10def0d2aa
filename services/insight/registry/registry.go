// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry holds the static endpoint configuration table consumed by
// the routing and processing layers. The table is loaded once from an embedded
// YAML document at process start and is read-only thereafter.
package registry

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Endpoint Configuration
// =============================================================================

//go:embed endpoints.yaml
var defaultEndpointsYAML []byte

// MaxYAMLFileSize caps the size of any YAML document the registry will parse.
// Guards against accidentally pointing the loader at a multi-megabyte file.
const MaxYAMLFileSize = 1 << 20 // 1 MiB

// =============================================================================
// Endpoint Configuration Types
// =============================================================================

// EndpointConfig describes one analysis endpoint the router can dispatch to.
//
// Description:
//
//	Pure data: identifier, display name, the intent signatures it serves,
//	its boost/penalty vocabulary, the confidence threshold below which a
//	routed result carries the low-confidence flag, and the exemplar phrases
//	the semantic verifier embeds at warm-up.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type EndpointConfig struct {
	// ID is the stable endpoint identifier (snake_case).
	ID string `yaml:"id" validate:"required"`

	// DisplayName is the human-readable name used in traces and UIs.
	DisplayName string `yaml:"display_name" validate:"required"`

	// PrimaryIntents lists the intent signature names this endpoint serves.
	PrimaryIntents []string `yaml:"primary_intents" validate:"required,min=1"`

	// BoostTerms raise this endpoint's score when found in the query.
	BoostTerms []string `yaml:"boost_terms"`

	// PenaltyTerms lower this endpoint's score when found in the query.
	PenaltyTerms []string `yaml:"penalty_terms"`

	// ConfidenceThreshold is the minimum confidence before the result is
	// flagged low-confidence. Routing still succeeds below it.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" validate:"gte=0,lte=1"`

	// ScoreFieldHint is the canonical score field this endpoint's datasets
	// tend to carry. A hint only: the score field resolver never trusts it
	// without verifying the field exists and varies.
	ScoreFieldHint string `yaml:"score_field_hint"`

	// Exemplars are representative phrasings embedded by the semantic verifier.
	Exemplars []string `yaml:"exemplars"`
}

// endpointsFile is the YAML document shape.
type endpointsFile struct {
	Endpoints []EndpointConfig `yaml:"endpoints" validate:"required,min=1,dive"`
}

// Registry is the read-only endpoint table.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Registry struct {
	byID  map[string]*EndpointConfig
	order []string // IDs in declaration order
}

// =============================================================================
// Loading
// =============================================================================

var (
	defaultRegistry     *Registry
	defaultRegistryErr  error
	defaultRegistryOnce sync.Once
)

// Default returns the registry loaded from the embedded endpoints.yaml.
//
// Description:
//
//	Loads and validates the embedded endpoint table on first call and caches
//	the result. Subsequent calls return the cached registry.
//
// Outputs:
//
//	*Registry - The loaded registry. Never nil on success.
//	error - Non-nil if parsing or validation failed.
//
// Thread Safety: Safe for concurrent use (uses sync.Once internally).
func Default() (*Registry, error) {
	defaultRegistryOnce.Do(func() {
		defaultRegistry, defaultRegistryErr = Load(defaultEndpointsYAML)
		if defaultRegistryErr == nil {
			slog.Info("endpoint registry loaded",
				slog.Int("endpoint_count", defaultRegistry.Len()),
			)
		}
	})
	return defaultRegistry, defaultRegistryErr
}

// Load parses and validates an endpoint table from YAML bytes.
//
// Description:
//
//	Parses the YAML, validates every endpoint with struct tags (required
//	fields, thresholds in [0,1]), and rejects duplicate IDs. The returned
//	registry preserves declaration order for deterministic iteration.
//
// Inputs:
//
//	data - Raw YAML bytes. Must be non-empty and under MaxYAMLFileSize.
//
// Outputs:
//
//	*Registry - The validated registry.
//	error - Non-nil if parsing or validation fails.
func Load(data []byte) (*Registry, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("registry.Load: empty YAML data")
	}
	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("registry.Load: YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}

	var file endpointsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("registry.Load: parsing YAML: %w", err)
	}

	if err := validator.New().Struct(&file); err != nil {
		return nil, fmt.Errorf("registry.Load: validation: %w", err)
	}

	reg := &Registry{
		byID:  make(map[string]*EndpointConfig, len(file.Endpoints)),
		order: make([]string, 0, len(file.Endpoints)),
	}
	for i := range file.Endpoints {
		ep := &file.Endpoints[i]
		if _, dup := reg.byID[ep.ID]; dup {
			return nil, fmt.Errorf("registry.Load: duplicate endpoint id %q", ep.ID)
		}
		reg.byID[ep.ID] = ep
		reg.order = append(reg.order, ep.ID)
	}

	return reg, nil
}

// =============================================================================
// Lookup
// =============================================================================

// Get returns the endpoint config for the given ID, or nil if unknown.
func (r *Registry) Get(id string) *EndpointConfig {
	return r.byID[id]
}

// Has reports whether an endpoint with the given ID exists.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Len returns the number of registered endpoints.
func (r *Registry) Len() int {
	return len(r.byID)
}

// All returns every endpoint config in declaration order.
//
// The returned slice is freshly allocated; the configs it points to are
// shared and must not be mutated.
func (r *Registry) All() []*EndpointConfig {
	out := make([]*EndpointConfig, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns every endpoint ID in declaration order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ByIntent returns the endpoints that list the given intent as primary,
// sorted by ID for determinism.
func (r *Registry) ByIntent(intent string) []*EndpointConfig {
	var out []*EndpointConfig
	for _, ep := range r.byID {
		for _, it := range ep.PrimaryIntents {
			if it == intent {
				out = append(out, ep)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
