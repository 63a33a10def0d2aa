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
	"fmt"
	"strings"
)

// =============================================================================
// Processing Errors
// =============================================================================

// ScoreFieldNotFoundError is raised when no numeric field survives the
// resolver's exclusion rules. It fails the whole batch; no canonical-name
// fallback is substituted silently, since a made-up score field would produce
// a misleading ranking.
type ScoreFieldNotFoundError struct {
	// Examined lists the field names considered, for diagnosis.
	Examined []string

	// Reason summarizes why nothing qualified.
	Reason string
}

// Error implements the error interface.
func (e *ScoreFieldNotFoundError) Error() string {
	return fmt.Sprintf("no score field found: %s (examined: %s)",
		e.Reason, strings.Join(e.Examined, ", "))
}

// ShapeMismatchError is raised when a record batch has no plausible
// identifier field and/or no plausible score field anywhere in the sample.
// The batch is rejected before processing begins.
type ShapeMismatchError struct {
	// MissingIdentifier is set when no sampled record carries any known
	// identifier field variant.
	MissingIdentifier bool

	// MissingScore is set when no sampled record carries any numeric
	// score-like field.
	MissingScore bool

	// Sampled is how many records were examined.
	Sampled int
}

// Error implements the error interface.
func (e *ShapeMismatchError) Error() string {
	var missing []string
	if e.MissingIdentifier {
		missing = append(missing, "identifier field")
	}
	if e.MissingScore {
		missing = append(missing, "numeric score field")
	}
	return fmt.Sprintf("record batch shape mismatch: no %s in %d sampled records",
		strings.Join(missing, " and no "), e.Sampled)
}
