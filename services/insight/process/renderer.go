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
// Renderer and Legend Construction
// =============================================================================

// classColors is the fixed color progression for the quartile classes, low to
// high. Deterministic: the same distribution always renders identically.
var classColors = []string{"#d73027", "#fdae61", "#a6d96a", "#1a9850"}

// classLabels name the quartile classes, low to high, matching classColors.
var classLabels = []string{"Bottom quartile", "Lower middle", "Upper middle", "Top quartile"}

// buildRenderer constructs the renderer spec for the resolved field:
// quartile-based class breaks with the fixed color progression. The field is
// always the resolution's field.
func buildRenderer(field string, stats Statistics) RendererSpec {
	return RendererSpec{
		Field: field,
		Breaks: []float64{
			stats.Quartiles[0],
			stats.Quartiles[1],
			stats.Quartiles[2],
			stats.Max,
		},
		Colors: append([]string(nil), classColors...),
	}
}

// buildLegend constructs the legend mirroring the renderer breaks exactly:
// same count, same order, same colors.
func buildLegend(title string, stats Statistics, renderer RendererSpec) LegendSpec {
	lowerBounds := []float64{stats.Min, stats.Quartiles[0], stats.Quartiles[1], stats.Quartiles[2]}

	items := make([]LegendItem, len(renderer.Breaks))
	for i := range renderer.Breaks {
		items[i] = LegendItem{
			Color: renderer.Colors[i],
			Label: fmt.Sprintf("%s (%.2f to %.2f)", classLabels[i], lowerBounds[i], renderer.Breaks[i]),
			Min:   lowerBounds[i],
			Max:   renderer.Breaks[i],
		}
	}
	return LegendSpec{Title: title, Items: items}
}
