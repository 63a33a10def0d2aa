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

import "testing"

// =============================================================================
// Validator Tests
// =============================================================================

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	return NewValidator(nil) // embedded default tuning
}

func TestValidator_EmptyQueryIsMalformed(t *testing.T) {
	v := newTestValidator(t)

	for _, text := range []string{"", "   ", "\t\n"} {
		res := v.Validate(Query{Text: text})
		if res.Scope != ScopeMalformed {
			t.Errorf("Validate(%q): expected MALFORMED, got %s", text, res.Scope)
		}
		if res.Reason == "" {
			t.Errorf("Validate(%q): expected a rejection reason", text)
		}
	}
}

func TestValidator_TooShortIsMalformed(t *testing.T) {
	v := newTestValidator(t)

	res := v.Validate(Query{Text: "markets"})
	if res.Scope != ScopeMalformed {
		t.Errorf("expected single-token query to be MALFORMED, got %s", res.Scope)
	}
}

func TestValidator_NoLettersIsMalformed(t *testing.T) {
	v := newTestValidator(t)

	res := v.Validate(Query{Text: "12345 67890"})
	if res.Scope != ScopeMalformed {
		t.Errorf("expected all-numeric query to be MALFORMED, got %s", res.Scope)
	}
}

func TestValidator_OffDomainIsOutOfScope(t *testing.T) {
	v := newTestValidator(t)

	cases := []string{
		"what is the capital of France",
		"write me a poem about sunsets",
		"how do I bake sourdough bread",
	}
	for _, text := range cases {
		res := v.Validate(Query{Text: text})
		if res.Scope != ScopeOutOfScope {
			t.Errorf("Validate(%q): expected OUT_OF_SCOPE, got %s (relevance %.2f)",
				text, res.Scope, res.Relevance)
		}
	}
}

func TestValidator_DomainQueriesAreInScope(t *testing.T) {
	v := newTestValidator(t)

	cases := []string{
		"rank the best markets for expansion",
		"compare Nike vs Adidas market share",
		"which demographics correlate with sales",
		"find unusual outliers in regional performance",
		"what if we open a store in this zip code",
	}
	for _, text := range cases {
		res := v.Validate(Query{Text: text})
		if res.Scope != ScopeInScope {
			t.Errorf("Validate(%q): expected IN_SCOPE, got %s (reason: %s)",
				text, res.Scope, res.Reason)
		}
	}
}

func TestValidator_SingleDomainTermClearsGate(t *testing.T) {
	v := newTestValidator(t)

	// One matched domain term is enough even when the relevance score is low:
	// rejection requires BOTH zero hits and sub-floor relevance.
	res := v.Validate(Query{Text: "tell me something interesting about these markets please if you can"})
	if res.Scope != ScopeInScope {
		t.Errorf("expected IN_SCOPE with one domain hit, got %s", res.Scope)
	}
}
