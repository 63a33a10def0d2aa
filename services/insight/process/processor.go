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
	"log/slog"
	"regexp"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AtlasInsightAI/AtlasInsight/services/insight/registry"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	processorBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insight",
		Subsystem: "processor",
		Name:      "batches_total",
		Help:      "Record batches processed by outcome",
	}, []string{"outcome"})

	processorDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "insight",
		Subsystem: "processor",
		Name:      "dropped_records_total",
		Help:      "Individual malformed records dropped from otherwise-valid batches",
	})
)

// =============================================================================
// RecordProcessor
// =============================================================================

// shapeSampleSize bounds how many records the batch-shape validation examines.
const shapeSampleSize = 25

// zipLikePattern recognizes a bare 5-digit identifier for reverse lookup.
var zipLikePattern = regexp.MustCompile(`^\d{5}$`)

// AreaNamer reverses a region identifier into a display name. Satisfied by
// geo.StaticResolver; nil disables reverse lookup.
type AreaNamer interface {
	CityForZIP(zip string) (string, bool)
}

// Strategy is one endpoint-specific processing behavior. Every strategy
// implements the same contract; the processor dispatches by endpoint ID from
// a registry populated at startup.
type Strategy interface {
	// CategoryFor labels one extracted record. stats covers the whole batch.
	CategoryFor(rec RawRecord, value float64, stats Statistics) string

	// LegendTitle names the legend for the given score field.
	LegendTitle(field string) string
}

// Processor normalizes schema-free record batches into ranked, renderable
// results for one endpoint.
//
// # Description
//
// The pipeline per batch: shape validation, score-field resolution, per-record
// extraction (identifier, score with documented fallbacks, area name), stable
// ranking, statistics, and renderer/legend construction. A batch that fails
// validation is rejected outright; individual malformed records are dropped
// with a count in the result metadata, never silently coerced.
//
// # Thread Safety
//
// Stateless over immutable collaborators; each call is a self-contained
// CPU-bound computation. Safe for concurrent use.
type Processor struct {
	registry   *registry.Registry
	namer      AreaNamer
	strategies map[string]Strategy
	fallback   Strategy
	logger     *slog.Logger
}

// NewProcessor creates a Processor with the default strategy registry.
//
// # Inputs
//
//   - reg: Endpoint registry, consulted for score-field hints. May be nil.
//   - namer: Reverse identifier lookup for area naming. May be nil.
//   - logger: May be nil; defaults to slog.Default().
func NewProcessor(reg *registry.Registry, namer AreaNamer, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		registry:   reg,
		namer:      namer,
		strategies: defaultStrategies(),
		fallback:   &tierStrategy{},
		logger:     logger,
	}
}

// RegisterStrategy installs or replaces the strategy for one endpoint.
// Call during startup, before Process is invoked concurrently.
func (p *Processor) RegisterStrategy(endpointID string, s Strategy) {
	p.strategies[endpointID] = s
}

// Process normalizes one record batch for the given endpoint.
//
// # Outputs
//
//   - *ProcessedAnalysisResult: The ranked, renderable result.
//   - error: *ShapeMismatchError when the batch has no plausible identifier
//     or score field; *ScoreFieldNotFoundError when resolution fails; a
//     generic error when every record was dropped.
func (p *Processor) Process(endpointID string, records []RawRecord) (*ProcessedAnalysisResult, error) {
	if err := p.validateShape(records); err != nil {
		processorBatches.WithLabelValues("shape_mismatch").Inc()
		return nil, err
	}

	resolution, err := ResolveScoreField(records, p.scoreFieldHint(endpointID))
	if err != nil {
		processorBatches.WithLabelValues("score_field_not_found").Inc()
		return nil, err
	}

	strategy := p.strategies[endpointID]
	if strategy == nil {
		strategy = p.fallback
	}

	// Per-record extraction. Malformed records are dropped and counted.
	type extracted struct {
		rec   RawRecord
		id    string
		value float64
	}
	kept := make([]extracted, 0, len(records))
	dropped := 0
	for _, rec := range records {
		id, ok := extractIdentifier(rec)
		if !ok {
			dropped++
			continue
		}
		value, ok := extractScore(rec, resolution.Field)
		if !ok {
			dropped++
			continue
		}
		kept = append(kept, extracted{rec: rec, id: id, value: value})
	}
	if len(kept) == 0 {
		processorBatches.WithLabelValues("all_dropped").Inc()
		return nil, fmt.Errorf("process %s: every record in the batch was malformed (%d dropped)", endpointID, dropped)
	}
	if dropped > 0 {
		processorDropped.Add(float64(dropped))
		p.logger.Warn("dropped malformed records",
			slog.String("endpoint", endpointID),
			slog.Int("dropped", dropped),
			slog.Int("kept", len(kept)),
		)
	}

	// Stable ranking: value descending, ties broken by identifier ascending.
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].value != kept[j].value {
			return kept[i].value > kept[j].value
		}
		return kept[i].id < kept[j].id
	})

	values := make([]float64, len(kept))
	for i, e := range kept {
		values[i] = e.value
	}
	stats := computeStatistics(values)

	processed := make([]ProcessedRecord, len(kept))
	for i, e := range kept {
		name := p.areaName(e.rec, e.id)
		props := make(map[string]any, len(e.rec)+2)
		for k, v := range e.rec {
			props[k] = v
		}
		props["area_name"] = name
		props[resolution.Field] = e.value

		processed[i] = ProcessedRecord{
			AreaID:     e.id,
			AreaName:   name,
			Value:      e.value,
			Rank:       i + 1,
			Category:   strategy.CategoryFor(e.rec, e.value, stats),
			Properties: props,
		}
	}

	renderer := buildRenderer(resolution.Field, stats)
	processorBatches.WithLabelValues("ok").Inc()

	return &ProcessedAnalysisResult{
		Endpoint:       endpointID,
		TargetVariable: resolution.Field,
		Records:        processed,
		Statistics:     stats,
		Renderer:       renderer,
		Legend:         buildLegend(strategy.LegendTitle(resolution.Field), stats, renderer),
		Resolution:     resolution,
		DroppedRecords: dropped,
	}, nil
}

// validateShape rejects batches where no sampled record carries any known
// identifier field variant, or no sampled record carries any numeric field.
// Flexible on names, rigid on presence.
func (p *Processor) validateShape(records []RawRecord) error {
	sample := records
	if len(sample) > shapeSampleSize {
		sample = sample[:shapeSampleSize]
	}

	hasIdentifier := false
	hasNumeric := false
	for _, rec := range sample {
		if !hasIdentifier {
			if _, ok := extractIdentifier(rec); ok {
				hasIdentifier = true
			}
		}
		if !hasNumeric {
			for _, v := range rec {
				if _, ok := asFloat(v); ok {
					hasNumeric = true
					break
				}
			}
		}
		if hasIdentifier && hasNumeric {
			return nil
		}
	}
	return &ShapeMismatchError{
		MissingIdentifier: !hasIdentifier,
		MissingScore:      !hasNumeric,
		Sampled:           len(sample),
	}
}

// scoreFieldHint returns the endpoint's configured score-field hint, if any.
func (p *Processor) scoreFieldHint(endpointID string) string {
	if p.registry == nil {
		return ""
	}
	ep := p.registry.Get(endpointID)
	if ep == nil {
		return ""
	}
	return ep.ScoreFieldHint
}

// extractIdentifier finds the record's identifier through the accepted
// field-name variants, in priority order.
func extractIdentifier(rec RawRecord) (string, bool) {
	for _, field := range identifierFieldVariants {
		if raw, ok := rec[field]; ok {
			if id, ok := asString(raw); ok {
				return id, true
			}
		}
	}
	return "", false
}

// extractScore reads the batch-resolved field from one record, falling
// through the documented per-record priority list when it is absent.
// A number is never invented.
func extractScore(rec RawRecord, resolvedField string) (float64, bool) {
	if raw, ok := rec[resolvedField]; ok {
		if f, ok := asFloat(raw); ok {
			return f, true
		}
	}
	for _, field := range perRecordFallbackFields {
		if field == resolvedField {
			continue
		}
		if raw, ok := rec[field]; ok {
			if f, ok := asFloat(raw); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// areaName builds the record's display name: explicit name fields first, then
// identifier plus reverse lookup, then the bare identifier. Pure: the same
// record always yields the same name.
func (p *Processor) areaName(rec RawRecord, id string) string {
	for _, field := range areaNameFieldVariants {
		if raw, ok := rec[field]; ok {
			if name, ok := raw.(string); ok && name != "" {
				return name
			}
		}
	}
	if id == "" {
		return "Unknown Area"
	}
	if p.namer != nil && zipLikePattern.MatchString(id) {
		if city, ok := p.namer.CityForZIP(id); ok {
			return fmt.Sprintf("%s (%s)", id, city)
		}
	}
	return id
}
