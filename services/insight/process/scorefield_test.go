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
	"errors"
	"testing"
)

// =============================================================================
// ResolveScoreField Tests
// =============================================================================

func TestResolveScoreField_CanonicalNameWins(t *testing.T) {
	records := []RawRecord{
		{"area_id": "a", "thematic_value": 1.0, "zz_metric": 5.0},
		{"area_id": "b", "thematic_value": 2.0, "zz_metric": 7.0},
		{"area_id": "c", "thematic_value": 3.0, "zz_metric": 9.0},
	}
	res, err := ResolveScoreField(records, "")
	if err != nil {
		t.Fatalf("ResolveScoreField: %v", err)
	}
	if res.Field != "thematic_value" {
		t.Errorf("expected thematic_value, got %s", res.Field)
	}
	if res.Method != "canonical" {
		t.Errorf("expected canonical method, got %s", res.Method)
	}
}

func TestResolveScoreField_CanonicalPriorityOrder(t *testing.T) {
	records := []RawRecord{
		{"id": "a", "value": 1.0, "score": 5.0},
		{"id": "b", "value": 2.0, "score": 7.0},
	}
	res, err := ResolveScoreField(records, "")
	if err != nil {
		t.Fatalf("ResolveScoreField: %v", err)
	}
	if res.Field != "value" {
		t.Errorf("value outranks score in the canonical list, got %s", res.Field)
	}
}

func TestResolveScoreField_LexicographicallyLastOtherwise(t *testing.T) {
	records := []RawRecord{
		{"id": "a", "alpha_metric": 1.0, "omega_metric": 5.0},
		{"id": "b", "alpha_metric": 2.0, "omega_metric": 7.0},
	}
	res, err := ResolveScoreField(records, "")
	if err != nil {
		t.Fatalf("ResolveScoreField: %v", err)
	}
	if res.Field != "omega_metric" {
		t.Errorf("expected the lexicographically last survivor, got %s", res.Field)
	}
	if res.Method != "lexicographic" {
		t.Errorf("expected lexicographic method, got %s", res.Method)
	}
}

func TestResolveScoreField_HintWinsWhenItSurvives(t *testing.T) {
	records := []RawRecord{
		{"id": "a", "custom_metric": 1.0, "thematic_value": 5.0},
		{"id": "b", "custom_metric": 2.0, "thematic_value": 7.0},
	}
	res, err := ResolveScoreField(records, "custom_metric")
	if err != nil {
		t.Fatalf("ResolveScoreField: %v", err)
	}
	if res.Field != "custom_metric" || res.Method != "hint" {
		t.Errorf("expected the verified hint to win, got %s (%s)", res.Field, res.Method)
	}
}

func TestResolveScoreField_HintIsVerifiedNotTrusted(t *testing.T) {
	// The hinted field does not exist; resolution must fall through, never
	// fabricate the hint.
	records := []RawRecord{
		{"id": "a", "thematic_value": 1.0},
		{"id": "b", "thematic_value": 2.0},
	}
	res, err := ResolveScoreField(records, "ghost_field")
	if err != nil {
		t.Fatalf("ResolveScoreField: %v", err)
	}
	if res.Field != "thematic_value" {
		t.Errorf("expected fallthrough past the dead hint, got %s", res.Field)
	}
}

func TestResolveScoreField_SingleVaryingFieldAlwaysSelected(t *testing.T) {
	// Exactly one field exhibits variance; it must win regardless of name.
	records := []RawRecord{
		{"id": "a", "quirky_name_xyz": 1.0, "flat": 9.0},
		{"id": "b", "quirky_name_xyz": 2.0, "flat": 9.0},
		{"id": "c", "quirky_name_xyz": 3.0, "flat": 9.0},
	}
	res, err := ResolveScoreField(records, "")
	if err != nil {
		t.Fatalf("ResolveScoreField: %v", err)
	}
	if res.Field != "quirky_name_xyz" {
		t.Errorf("expected the only varying field, got %s", res.Field)
	}
	if res.Variance <= 0 {
		t.Errorf("expected positive variance, got %v", res.Variance)
	}
}

func TestResolveScoreField_AllConstantFails(t *testing.T) {
	records := []RawRecord{
		{"id": "a", "metric": 5.0},
		{"id": "b", "metric": 5.0},
		{"id": "c", "metric": 5.0},
	}
	_, err := ResolveScoreField(records, "")
	var notFound *ScoreFieldNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ScoreFieldNotFoundError, got %v", err)
	}
}

func TestResolveScoreField_ExcludesIdentifierGeometryAggregate(t *testing.T) {
	// Every varying numeric field matches an exclusion convention.
	records := []RawRecord{
		{"objectid": 1.0, "centroid_lat": 41.8, "row_count": 10.0},
		{"objectid": 2.0, "centroid_lat": 41.9, "row_count": 20.0},
	}
	_, err := ResolveScoreField(records, "")
	var notFound *ScoreFieldNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ScoreFieldNotFoundError for excluded-only fields, got %v", err)
	}
}

func TestResolveScoreField_EmptyBatchFails(t *testing.T) {
	_, err := ResolveScoreField(nil, "")
	var notFound *ScoreFieldNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ScoreFieldNotFoundError for an empty batch, got %v", err)
	}
}
