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

import "fmt"

// =============================================================================
// Endpoint Strategies
// =============================================================================

// defaultStrategies builds the startup strategy registry. Endpoints not
// listed here use the plain tier strategy. Flat composition, no inheritance:
// every entry implements the same Strategy contract.
func defaultStrategies() map[string]Strategy {
	return map[string]Strategy{
		"spatial_clusters":  &clusterStrategy{},
		"anomaly_detection": &anomalyStrategy{},
		"brand_difference":  &differenceStrategy{},
	}
}

// -----------------------------------------------------------------------------
// tierStrategy
// -----------------------------------------------------------------------------

// tierStrategy is the default behavior: categorize by performance tier from
// the quartile breaks.
type tierStrategy struct{}

func (s *tierStrategy) CategoryFor(_ RawRecord, value float64, stats Statistics) string {
	return tierFor(value, stats)
}

func (s *tierStrategy) LegendTitle(field string) string {
	return field
}

// -----------------------------------------------------------------------------
// clusterStrategy
// -----------------------------------------------------------------------------

// clusterFieldVariants are the field names cluster assignments arrive under.
var clusterFieldVariants = []string{"cluster", "cluster_id", "cluster_label"}

// clusterStrategy labels records by their cluster assignment when the dataset
// carries one, falling back to performance tiers when it does not.
type clusterStrategy struct{}

func (s *clusterStrategy) CategoryFor(rec RawRecord, value float64, stats Statistics) string {
	for _, field := range clusterFieldVariants {
		if raw, ok := rec[field]; ok {
			if label, ok := asString(raw); ok {
				return "Cluster " + label
			}
		}
	}
	return tierFor(value, stats)
}

func (s *clusterStrategy) LegendTitle(field string) string {
	return fmt.Sprintf("%s (by cluster)", field)
}

// -----------------------------------------------------------------------------
// anomalyStrategy
// -----------------------------------------------------------------------------

// anomalyStrategy flags records outside the interquartile fences as outliers.
type anomalyStrategy struct{}

func (s *anomalyStrategy) CategoryFor(_ RawRecord, value float64, stats Statistics) string {
	iqr := stats.Quartiles[2] - stats.Quartiles[0]
	lower := stats.Quartiles[0] - 1.5*iqr
	upper := stats.Quartiles[2] + 1.5*iqr
	if value < lower || value > upper {
		return "outlier"
	}
	return "normal"
}

func (s *anomalyStrategy) LegendTitle(field string) string {
	return fmt.Sprintf("%s (outlier detection)", field)
}

// -----------------------------------------------------------------------------
// differenceStrategy
// -----------------------------------------------------------------------------

// differenceStrategy labels signed difference scores by which entity leads.
type differenceStrategy struct{}

func (s *differenceStrategy) CategoryFor(_ RawRecord, value float64, _ Statistics) string {
	switch {
	case value > 0:
		return "first_leads"
	case value < 0:
		return "second_leads"
	default:
		return "even"
	}
}

func (s *differenceStrategy) LegendTitle(field string) string {
	return fmt.Sprintf("%s (signed difference)", field)
}
