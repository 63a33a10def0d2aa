// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package geo provides the geographic resolver collaborator: named-place and
// region-identifier extraction from query text, and reverse ZIP→city lookup
// for area naming. The core only depends on the Resolver contract; richer
// deployments substitute their own implementation.
package geo

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Resolver Contract
// =============================================================================

// Resolver extracts geographic signal from free text and reverses region
// identifiers into display names.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Resolver interface {
	// Resolve scans the query for known place names and region identifiers.
	// Both return slices may be empty; neither is ever nil.
	Resolve(query string) (entities []string, regionIDs []string)

	// CityForZIP reverses a ZIP code into its city name.
	CityForZIP(zip string) (string, bool)
}

// =============================================================================
// StaticResolver
// =============================================================================

//go:embed zips.yaml
var defaultZIPsYAML []byte

// zipsFile is the YAML document shape.
type zipsFile struct {
	ZIPs map[string]string `yaml:"zips"`
}

// zipPattern matches a standalone 5-digit ZIP code token.
var zipPattern = regexp.MustCompile(`\b\d{5}\b`)

// StaticResolver implements Resolver over a small embedded ZIP→city table.
//
// # Thread Safety
//
// Immutable after construction; safe for concurrent use.
type StaticResolver struct {
	zipToCity map[string]string
	cities    map[string]string // lowercase city name → canonical casing
}

var (
	defaultResolver     *StaticResolver
	defaultResolverErr  error
	defaultResolverOnce sync.Once
)

// Default returns the resolver backed by the embedded ZIP table.
func Default() (*StaticResolver, error) {
	defaultResolverOnce.Do(func() {
		defaultResolver, defaultResolverErr = Load(defaultZIPsYAML)
	})
	return defaultResolver, defaultResolverErr
}

// Load parses a ZIP table from YAML bytes and builds a StaticResolver.
func Load(data []byte) (*StaticResolver, error) {
	var file zipsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("geo.Load: parsing YAML: %w", err)
	}
	if len(file.ZIPs) == 0 {
		return nil, fmt.Errorf("geo.Load: empty ZIP table")
	}

	r := &StaticResolver{
		zipToCity: file.ZIPs,
		cities:    make(map[string]string),
	}
	for _, city := range file.ZIPs {
		r.cities[strings.ToLower(city)] = city
	}
	return r, nil
}

// Resolve scans the query for ZIP-code tokens and known city names.
func (r *StaticResolver) Resolve(query string) (entities []string, regionIDs []string) {
	entities = []string{}
	regionIDs = []string{}

	seenZIP := make(map[string]bool)
	for _, zip := range zipPattern.FindAllString(query, -1) {
		if seenZIP[zip] {
			continue
		}
		seenZIP[zip] = true
		if _, known := r.zipToCity[zip]; known {
			regionIDs = append(regionIDs, zip)
		}
	}

	lower := strings.ToLower(query)
	seenCity := make(map[string]bool)
	for cityLower, city := range r.cities {
		if seenCity[city] {
			continue
		}
		if containsWholeWord(lower, cityLower) {
			seenCity[city] = true
			entities = append(entities, city)
		}
	}
	sort.Strings(entities)
	sort.Strings(regionIDs)
	return entities, regionIDs
}

// CityForZIP reverses a ZIP code into its city name.
func (r *StaticResolver) CityForZIP(zip string) (string, bool) {
	city, ok := r.zipToCity[zip]
	return city, ok
}

// containsWholeWord reports whether s contains sub bounded by non-word runes.
func containsWholeWord(s, sub string) bool {
	idx := strings.Index(s, sub)
	for idx >= 0 {
		beforeOK := idx == 0 || !isWordByte(s[idx-1])
		end := idx + len(sub)
		afterOK := end >= len(s) || !isWordByte(s[end])
		if beforeOK && afterOK {
			return true
		}
		next := strings.Index(s[idx+1:], sub)
		if next < 0 {
			return false
		}
		idx = idx + 1 + next
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
