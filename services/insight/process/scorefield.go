// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package process

import (
	"sort"
)

// =============================================================================
// ScoreFieldResolver
// =============================================================================

// scoreFieldSampleSize bounds how many records the resolver examines. Field
// presence and variance stabilize quickly; scanning a huge batch adds nothing.
const scoreFieldSampleSize = 25

// ResolveScoreField selects the single numeric field a batch ranks by.
//
// # Description
//
// Selection runs over a representative sample:
//
//  1. Exclude fields whose name matches identifier, geometry, or
//     aggregate-count conventions.
//  2. Exclude fields that are constant (zero variance) across the sample.
//  3. Among the survivors, select by one deterministic rule: the endpoint's
//     hint if it survived, else the first canonical name present
//     (thematic_value, value, score), else the lexicographically LAST
//     surviving field name. Lexicographic order is the deterministic
//     stand-in for record declaration order, which map-shaped records
//     cannot preserve.
//
// Fails fast with ScoreFieldNotFoundError when nothing survives; a neutral
// placeholder score would produce a misleading ranking, so none is ever
// substituted.
//
// # Inputs
//
//   - records: The raw batch. Must be non-empty.
//   - hint: Optional endpoint score-field hint. Verified, never trusted.
//
// # Outputs
//
//   - ScoreFieldResolution: The chosen field, the rule that fired, and the
//     observed sample variance.
//   - error: *ScoreFieldNotFoundError when no field qualifies.
func ResolveScoreField(records []RawRecord, hint string) (ScoreFieldResolution, error) {
	if len(records) == 0 {
		return ScoreFieldResolution{}, &ScoreFieldNotFoundError{Reason: "empty record batch"}
	}

	sample := records
	if len(sample) > scoreFieldSampleSize {
		sample = sample[:scoreFieldSampleSize]
	}

	// Collect the numeric values observed per field across the sample.
	values := make(map[string][]float64)
	var examined []string
	seen := make(map[string]bool)
	for _, rec := range sample {
		for name, raw := range rec {
			if !seen[name] {
				seen[name] = true
				examined = append(examined, name)
			}
			if f, ok := asFloat(raw); ok {
				values[name] = append(values[name], f)
			}
		}
	}
	sort.Strings(examined)

	// Steps 1-2: name exclusions, then the variance check.
	var survivors []string
	for name, vals := range values {
		if isExcludedScoreField(name) {
			continue
		}
		if variance(vals) == 0 {
			continue
		}
		survivors = append(survivors, name)
	}
	if len(survivors) == 0 {
		return ScoreFieldResolution{}, &ScoreFieldNotFoundError{
			Examined: examined,
			Reason:   "every numeric field is excluded or constant",
		}
	}
	sort.Strings(survivors)

	surviving := make(map[string]bool, len(survivors))
	for _, name := range survivors {
		surviving[name] = true
	}

	// Step 3: hint, canonical names, then lexicographically last survivor.
	if hint != "" && surviving[hint] {
		return ScoreFieldResolution{
			Field:    hint,
			Method:   "hint",
			Variance: variance(values[hint]),
		}, nil
	}
	for _, name := range canonicalScoreFields {
		if surviving[name] {
			return ScoreFieldResolution{
				Field:    name,
				Method:   "canonical",
				Variance: variance(values[name]),
			}, nil
		}
	}
	last := survivors[len(survivors)-1]
	return ScoreFieldResolution{
		Field:    last,
		Method:   "lexicographic",
		Variance: variance(values[last]),
	}, nil
}

// variance computes the population variance of vals.
func variance(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))

	var sq float64
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	return sq / float64(len(vals))
}
