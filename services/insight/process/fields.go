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
	"encoding/json"
	"regexp"
	"strconv"
)

// =============================================================================
// Field Conventions
// =============================================================================

// canonicalScoreFields are checked in priority order before any other rule.
var canonicalScoreFields = []string{"thematic_value", "value", "score"}

// perRecordFallbackFields are tried per-record when the batch-resolved field
// is absent on an individual record. The record is dropped (and counted) if
// none applies; a number is never invented.
var perRecordFallbackFields = []string{"thematic_value", "value"}

// identifierFieldVariants are the identifier field names accepted by the
// flexible batch validation, in lookup priority order.
var identifierFieldVariants = []string{
	"area_id", "id", "ID", "FID", "objectid", "OBJECTID", "geoid", "GEOID",
	"zip", "zipcode", "zip_code", "ZIP",
}

// areaNameFieldVariants are the explicit name fields tried first during area
// naming, in priority order.
var areaNameFieldVariants = []string{
	"area_name", "name", "NAME", "DESCRIPTION", "area", "label", "city",
}

// Exclusion patterns for score-field resolution. A field whose NAME matches
// one of these never qualifies as the score, no matter how its values look.
var (
	identifierNamePattern = regexp.MustCompile(`(?i)(^|_)(id|ids|fid|guid|uuid|objectid|geoid|code|zip|zipcode)($|_)|_id$`)
	geometryNamePattern   = regexp.MustCompile(`(?i)(^|_)(geometry|geom|shape|lat|latitude|lon|lng|longitude|centroid|boundary|ring|coord|coords)($|_)`)
	aggregateNamePattern  = regexp.MustCompile(`(?i)(^|_)(count|counts|total|sum|num|rows|objects)($|_)|_count$|_total$`)
)

// isExcludedScoreField reports whether the field name matches an identifier,
// geometry, or aggregate-count convention.
func isExcludedScoreField(name string) bool {
	return identifierNamePattern.MatchString(name) ||
		geometryNamePattern.MatchString(name) ||
		aggregateNamePattern.MatchString(name)
}

// =============================================================================
// Value Coercion
// =============================================================================

// asFloat coerces a record value to float64. JSON decoding yields float64 for
// numbers; the other branches cover records built in Go code or decoded with
// json.Number. Strings are NOT coerced: "42" as a string is an identifier
// convention, not a score.
func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// asString coerces a record value to its identifier string form.
func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, x != ""
	case float64:
		// JSON integers arrive as float64; render without a fraction when whole.
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10), true
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case json.Number:
		return x.String(), true
	default:
		return "", false
	}
}
