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
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Domain Synonyms Configuration
// =============================================================================

//go:embed domain_synonyms.yaml
var defaultDomainSynonymsYAML []byte

// =============================================================================
// Domain Synonyms Types and Loading
// =============================================================================

// DomainSynonyms maps canonical domain concepts to the surface forms users
// actually type. The vocabulary adapter expands boost/penalty term matching
// through this table, so the endpoint registry can list one canonical term
// per concept instead of every spelling.
//
// # Thread Safety
//
// Safe for concurrent use after initialization (immutable after load).
type DomainSynonyms map[string][]string

var (
	cachedDomainSynonyms DomainSynonyms
	domainSynonymsOnce   sync.Once
	domainSynonymsErr    error
)

// LoadDomainSynonyms loads and caches the synonym mappings from the embedded
// YAML configuration. Returns the cached result on subsequent calls.
//
// # Outputs
//
//   - DomainSynonyms: The loaded mapping. Never nil on success.
//   - error: Non-nil if YAML parsing fails.
//
// # Thread Safety
//
// Safe for concurrent use (uses sync.Once internally).
func LoadDomainSynonyms() (DomainSynonyms, error) {
	domainSynonymsOnce.Do(func() {
		var raw map[string][]string
		if err := yaml.Unmarshal(defaultDomainSynonymsYAML, &raw); err != nil {
			domainSynonymsErr = fmt.Errorf("parsing domain_synonyms.yaml: %w", err)
			return
		}
		cachedDomainSynonyms = raw
		slog.Info("domain synonyms loaded",
			slog.Int("concept_count", len(raw)),
		)
	})
	return cachedDomainSynonyms, domainSynonymsErr
}

// MustLoadDomainSynonyms loads domain synonyms or returns an empty map on
// error. Logs a warning if loading fails but does not panic; matching still
// works, just without synonym expansion.
//
// # Thread Safety
//
// Safe for concurrent use.
func MustLoadDomainSynonyms() DomainSynonyms {
	synonyms, err := LoadDomainSynonyms()
	if err != nil {
		slog.Warn("domain synonyms loading failed, continuing without expansion",
			slog.String("error", err.Error()),
		)
		return make(DomainSynonyms)
	}
	return synonyms
}

// Expand returns the canonical term plus all of its synonyms. Unknown terms
// return a single-element slice containing just the term itself.
func (s DomainSynonyms) Expand(term string) []string {
	forms := []string{term}
	if alts, ok := s[term]; ok {
		forms = append(forms, alts...)
	}
	return forms
}
