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
	"strings"
	"unicode"
)

// =============================================================================
// Query Term Extraction
// =============================================================================

// noiseWords are tokens that carry no routing signal. Kept deliberately
// small: words like "best" or "difference" DO carry signal and must survive.
var noiseWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"be": true, "been": true, "do": true, "does": true, "did": true,
	"of": true, "in": true, "on": true, "at": true, "to": true, "for": true,
	"by": true, "with": true, "from": true, "into": true, "about": true,
	"me": true, "my": true, "our": true, "we": true, "i": true, "you": true,
	"it": true, "its": true, "this": true, "that": true, "these": true,
	"there": true, "here": true, "and": true, "or": true, "but": true,
	"what": true, "which": true, "who": true, "how": true, "when": true,
	"can": true, "could": true, "would": true, "should": true, "will": true,
	"please": true, "show": true, "tell": true, "give": true, "like": true,
}

// ExtractQueryTerms tokenizes a query into a deduplicated set of meaningful
// terms: lowercased, split on any non-alphanumeric rune, noise words removed,
// single-letter tokens dropped (numbers survive, ZIP codes are signal).
//
// # Thread Safety
//
// Stateless. Safe for concurrent use.
func ExtractQueryTerms(text string) map[string]bool {
	terms := make(map[string]bool)
	for _, tok := range TokenizeQuery(text) {
		if noiseWords[tok] {
			continue
		}
		if len(tok) < 2 && !isNumeric(tok) {
			continue
		}
		terms[tok] = true
	}
	return terms
}

// TokenizeQuery splits a query into ordered lowercase tokens on any
// non-alphanumeric boundary. Unlike ExtractQueryTerms it preserves order,
// duplicates, and noise words; the negation and proximity logic needs them.
func TokenizeQuery(text string) []string {
	lower := strings.ToLower(text)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// isNumeric reports whether s consists only of digits.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// containsPhrase reports whether the normalized query contains the phrase as
// a whole-word substring. Both sides are expected lowercase.
func containsPhrase(queryLower, phrase string) bool {
	idx := strings.Index(queryLower, phrase)
	for idx >= 0 {
		beforeOK := idx == 0 || !isWordRune(rune(queryLower[idx-1]))
		end := idx + len(phrase)
		afterOK := end >= len(queryLower) || !isWordRune(rune(queryLower[end]))
		if beforeOK && afterOK {
			return true
		}
		next := strings.Index(queryLower[idx+1:], phrase)
		if next < 0 {
			return false
		}
		idx = idx + 1 + next
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// truncateForLog shortens a string for log output, appending an ellipsis.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
