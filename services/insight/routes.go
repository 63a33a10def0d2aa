// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package insight

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all Insight routes with the router.
//
// Description:
//
//	Registers all /v1/insight/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/insight/route - Route a query to an analysis endpoint
//	POST /v1/insight/process - Normalize a raw record batch
//	POST /v1/insight/analyze - Route and process in one round trip
//	GET  /v1/insight/endpoints - List registered analysis endpoints
//	GET  /v1/insight/health - Health check
//	GET  /v1/insight/ready - Readiness check
//
// Example:
//
//	handlers := insight.NewHandlers(router, processor, reg, resolver, logger)
//
//	v1 := engine.Group("/v1")
//	insight.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	insight := rg.Group("/insight")
	{
		// Routing pipeline
		insight.POST("/route", handlers.HandleRoute)

		// Record processing
		insight.POST("/process", handlers.HandleProcess)

		// Combined round trip
		insight.POST("/analyze", handlers.HandleAnalyze)

		// Endpoint discovery
		insight.GET("/endpoints", handlers.HandleEndpoints)

		// Health checks
		insight.GET("/health", handlers.HandleHealth)
		insight.GET("/ready", handlers.HandleReady)
	}
}
