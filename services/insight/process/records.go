// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package process normalizes schema-free record batches into ranked, renderable
// analysis results: score-field resolution, flexible validation, area naming,
// ranking, statistics, and renderer/legend construction.
package process

// =============================================================================
// Record Types
// =============================================================================

// RawRecord is one schema-free input record. Field names vary per endpoint
// and per dataset; nothing is guaranteed to exist.
type RawRecord map[string]any

// ScoreFieldResolution names the numeric field a batch ranks by, how it was
// chosen, and the variance observed over the sample. Produced once per batch
// and reused for every record.
type ScoreFieldResolution struct {
	// Field is the chosen score field name.
	Field string `json:"field"`

	// Method records which selection rule fired: "hint", "canonical", or
	// "lexicographic".
	Method string `json:"method"`

	// Variance is the sample variance of the chosen field.
	Variance float64 `json:"variance"`
}

// ProcessedRecord is one normalized output record.
type ProcessedRecord struct {
	// AreaID is the record's stable area identifier.
	AreaID string `json:"area_id"`

	// AreaName is the human-readable area name.
	AreaName string `json:"area_name"`

	// Value is the resolved score.
	Value float64 `json:"value"`

	// Rank is the 1-based position after sorting (descending by value,
	// ties broken by AreaID ascending).
	Rank int `json:"rank"`

	// Category is an optional label (performance tier, cluster name).
	Category string `json:"category,omitempty"`

	// Properties carries every original field plus derived ones.
	Properties map[string]any `json:"properties"`
}

// Statistics summarizes the score distribution for narrative and renderer use.
type Statistics struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`

	// Quartiles holds Q1, Q2, Q3.
	Quartiles [3]float64 `json:"quartiles"`
}

// RendererSpec describes how to visualize the resolved score field.
// Field always equals the batch's ScoreFieldResolution.Field.
type RendererSpec struct {
	// Field is the field name being visualized.
	Field string `json:"field"`

	// Breaks are the ordered class-break boundaries.
	Breaks []float64 `json:"breaks"`

	// Colors is the ordered color per class. len(Colors) == len(Breaks).
	Colors []string `json:"colors"`
}

// LegendItem is one legend row.
type LegendItem struct {
	Color string  `json:"color"`
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// LegendSpec mirrors the RendererSpec breaks exactly, in count and order.
type LegendSpec struct {
	Title string       `json:"title"`
	Items []LegendItem `json:"items"`
}

// ProcessedAnalysisResult is the processor's single output for one batch.
// Created per-request and never mutated after construction.
type ProcessedAnalysisResult struct {
	// Endpoint is the analysis endpoint the batch was processed for.
	Endpoint string `json:"endpoint"`

	// TargetVariable is the resolved score field name. Stable contract for
	// narrative consumers; always equals Renderer.Field.
	TargetVariable string `json:"targetVariable"`

	// Records is the ranked output, best first.
	Records []ProcessedRecord `json:"records"`

	// Statistics summarizes the score distribution.
	Statistics Statistics `json:"statistics"`

	// Renderer is the visualization spec.
	Renderer RendererSpec `json:"renderer"`

	// Legend mirrors the renderer breaks.
	Legend LegendSpec `json:"legend"`

	// Resolution records how the score field was chosen.
	Resolution ScoreFieldResolution `json:"resolution"`

	// DroppedRecords counts individual records dropped as malformed.
	// Dropping is per-record and counted, never silent.
	DroppedRecords int `json:"dropped_records"`
}
