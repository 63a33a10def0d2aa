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
// ExtractQueryTerms Tests
// =============================================================================

func TestExtractQueryTerms_DropsNoiseAndShortTokens(t *testing.T) {
	terms := ExtractQueryTerms("Show me the best markets in Chicago")

	for _, want := range []string{"best", "markets", "chicago"} {
		if !terms[want] {
			t.Errorf("expected term %q to survive extraction, got %v", want, terms)
		}
	}
	for _, dropped := range []string{"show", "me", "the", "in"} {
		if terms[dropped] {
			t.Errorf("expected noise word %q to be dropped", dropped)
		}
	}
}

func TestExtractQueryTerms_KeepsNumbers(t *testing.T) {
	terms := ExtractQueryTerms("compare 60614 and 60657")
	if !terms["60614"] || !terms["60657"] {
		t.Errorf("expected ZIP-like tokens to survive, got %v", terms)
	}
}

func TestExtractQueryTerms_Deduplicates(t *testing.T) {
	terms := ExtractQueryTerms("markets markets markets")
	if len(terms) != 1 {
		t.Errorf("expected 1 unique term, got %d", len(terms))
	}
}

// =============================================================================
// TokenizeQuery Tests
// =============================================================================

func TestTokenizeQuery_PreservesOrderAndNoise(t *testing.T) {
	tokens := TokenizeQuery("What is the Trend?")
	want := []string{"what", "is", "the", "trend"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(tokens), tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("token %d: expected %q, got %q", i, want[i], tokens[i])
		}
	}
}

func TestTokenizeQuery_SplitsOnPunctuation(t *testing.T) {
	tokens := TokenizeQuery("nike,adidas;puma")
	if len(tokens) != 3 {
		t.Errorf("expected 3 tokens, got %v", tokens)
	}
}

// =============================================================================
// containsPhrase Tests
// =============================================================================

func TestContainsPhrase_WholeWordOnly(t *testing.T) {
	cases := []struct {
		query  string
		phrase string
		want   bool
	}{
		{"compare nike vs adidas", "vs", true},
		{"stopping sales decline", "top", false}, // "top" inside "stopping" must not match
		{"what is the market share here", "market share", true},
		{"supermarket shares", "market share", false},
		{"market share", "market share", true},
		{"the market share", "market share", true},
	}
	for _, c := range cases {
		if got := containsPhrase(c.query, c.phrase); got != c.want {
			t.Errorf("containsPhrase(%q, %q) = %v, want %v", c.query, c.phrase, got, c.want)
		}
	}
}

func TestTruncateForLog(t *testing.T) {
	if got := truncateForLog("short", 80); got != "short" {
		t.Errorf("expected unchanged string, got %q", got)
	}
	if got := truncateForLog("abcdefghij", 8); got != "abcde..." {
		t.Errorf("expected truncated string with ellipsis, got %q", got)
	}
}
