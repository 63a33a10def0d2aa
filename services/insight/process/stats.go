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

import "sort"

// =============================================================================
// Statistics
// =============================================================================

// Performance tier labels assigned from the quartile breaks.
const (
	TierTop = "top"
	TierMid = "mid"
	TierLow = "low"
)

// computeStatistics summarizes a score distribution. values must be non-empty.
func computeStatistics(values []float64) Statistics {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	return Statistics{
		Count:  len(sorted),
		Mean:   sum / float64(len(sorted)),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: quantile(sorted, 0.5),
		Quartiles: [3]float64{
			quantile(sorted, 0.25),
			quantile(sorted, 0.5),
			quantile(sorted, 0.75),
		},
	}
}

// quantile returns the q-quantile of sorted values by linear interpolation.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// tierFor assigns a performance tier from the quartile breaks: top quartile,
// middle half, bottom quartile.
func tierFor(value float64, stats Statistics) string {
	switch {
	case value >= stats.Quartiles[2]:
		return TierTop
	case value >= stats.Quartiles[0]:
		return TierMid
	default:
		return TierLow
	}
}
