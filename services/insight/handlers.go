// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package insight exposes the query routing and record processing pipeline
// over HTTP. Handlers are thin: bind, delegate, map errors. All domain logic
// lives in the routing and process packages.
package insight

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AtlasInsightAI/AtlasInsight/services/insight/geo"
	"github.com/AtlasInsightAI/AtlasInsight/services/insight/process"
	"github.com/AtlasInsightAI/AtlasInsight/services/insight/registry"
	"github.com/AtlasInsightAI/AtlasInsight/services/insight/routing"
)

// =============================================================================
// Wire Types
// =============================================================================

// ErrorResponse is the uniform error body for every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ProcessRequest is the body for POST /v1/insight/process.
type ProcessRequest struct {
	// Endpoint is the analysis endpoint whose conventions govern processing.
	Endpoint string `json:"endpoint" binding:"required"`

	// Records is the raw record batch. Schema-free by design.
	Records []process.RawRecord `json:"records" binding:"required"`
}

// AnalyzeRequest is the body for POST /v1/insight/analyze: one query plus the
// caller's record batch, routed and processed in a single round trip.
type AnalyzeRequest struct {
	Query   routing.Query       `json:"query" binding:"required"`
	Records []process.RawRecord `json:"records" binding:"required"`
}

// AnalyzeResponse pairs the routing decision with the processed result.
// Result is nil when the query was rejected.
type AnalyzeResponse struct {
	Routing *routing.RoutingResult           `json:"routing"`
	Result  *process.ProcessedAnalysisResult `json:"result,omitempty"`
}

// EndpointInfo is one registry entry in the listing response.
type EndpointInfo struct {
	ID                  string   `json:"id"`
	DisplayName         string   `json:"display_name"`
	PrimaryIntents      []string `json:"primary_intents"`
	ConfidenceThreshold float64  `json:"confidence_threshold"`
}

// =============================================================================
// Handlers
// =============================================================================

// Handlers carries the wired pipeline collaborators for the HTTP layer.
//
// # Thread Safety
//
// Safe for concurrent use; all collaborators are concurrency-safe.
type Handlers struct {
	router    *routing.Router
	processor *process.Processor
	registry  *registry.Registry
	resolver  geo.Resolver // nil disables geographic enrichment
	logger    *slog.Logger
}

// NewHandlers creates the handler set.
//
// # Inputs
//
//   - router: The routing pipeline. Required.
//   - processor: The record processor. Required.
//   - reg: Endpoint registry for the listing endpoint. Required.
//   - resolver: Geographic resolver for query enrichment. May be nil.
//   - logger: May be nil; defaults to slog.Default().
func NewHandlers(router *routing.Router, processor *process.Processor, reg *registry.Registry, resolver geo.Resolver, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		router:    router,
		processor: processor,
		registry:  reg,
		resolver:  resolver,
		logger:    logger,
	}
}

// getOrCreateRequestID returns the caller's X-Request-ID or mints one,
// echoing it on the response either way.
func getOrCreateRequestID(c *gin.Context) string {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Header("X-Request-ID", id)
	return id
}

// enrichQuery fills RegionIDs from geographic references in the query text
// when the caller supplied none. Caller-provided filters always win.
func (h *Handlers) enrichQuery(q routing.Query) routing.Query {
	if h.resolver == nil || len(q.RegionIDs) > 0 {
		return q
	}
	_, regionIDs := h.resolver.Resolve(q.Text)
	if len(regionIDs) > 0 {
		q.RegionIDs = regionIDs
	}
	return q
}

// HandleRoute handles POST /v1/insight/route.
//
// Description:
//
//	Runs one query through the routing pipeline and returns the decision.
//	A rejected query is a 200 with scope and suggestions in the body;
//	rejection is a result, not a transport error.
//
// Response:
//
//	200 OK: routing.RoutingResult
//	400 Bad Request: Malformed JSON body
//	500 Internal Server Error: Pipeline fault
func (h *Handlers) HandleRoute(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleRoute")

	var q routing.Query
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	result, err := h.router.Route(c.Request.Context(), h.enrichQuery(q))
	if err != nil {
		logger.Error("routing failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "routing failed: " + err.Error(),
			Code:  "ROUTING_FAILED",
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleProcess handles POST /v1/insight/process.
//
// Description:
//
//	Normalizes a raw record batch under the named endpoint's conventions.
//	Batch-level contract violations (no identifier, no usable score field)
//	are 422s with a structured code; the batch is rejected, never guessed at.
//
// Response:
//
//	200 OK: process.ProcessedAnalysisResult
//	400 Bad Request: Malformed JSON body or unknown endpoint
//	422 Unprocessable Entity: Batch failed shape or score-field resolution
func (h *Handlers) HandleProcess(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleProcess")

	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}
	if !h.registry.Has(req.Endpoint) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "unknown endpoint: " + req.Endpoint,
			Code:  "UNKNOWN_ENDPOINT",
		})
		return
	}

	result, err := h.processor.Process(req.Endpoint, req.Records)
	if err != nil {
		h.writeProcessError(c, logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleAnalyze handles POST /v1/insight/analyze.
//
// Description:
//
//	The combined round trip: route the query, then process the caller's
//	records under the routed endpoint. A successful processing run confirms
//	the routing and records it in the history cache; a rejection or
//	processing failure records nothing.
//
// Response:
//
//	200 OK: AnalyzeResponse (Result nil when the query was rejected)
//	400 Bad Request: Malformed JSON body
//	422 Unprocessable Entity: Records failed shape or score-field resolution
//	500 Internal Server Error: Pipeline fault
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", "HandleAnalyze")

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	decision, err := h.router.Route(c.Request.Context(), h.enrichQuery(req.Query))
	if err != nil {
		logger.Error("routing failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "routing failed: " + err.Error(),
			Code:  "ROUTING_FAILED",
		})
		return
	}
	if decision.Scope != routing.ScopeInScope {
		c.JSON(http.StatusOK, AnalyzeResponse{Routing: decision})
		return
	}

	result, err := h.processor.Process(decision.Endpoint, req.Records)
	if err != nil {
		h.writeProcessError(c, logger, err)
		return
	}

	// Processing succeeded; the routing is confirmed.
	h.router.RecordOutcome(req.Query.Text, decision.Endpoint)

	c.JSON(http.StatusOK, AnalyzeResponse{Routing: decision, Result: result})
}

// HandleEndpoints handles GET /v1/insight/endpoints.
func (h *Handlers) HandleEndpoints(c *gin.Context) {
	eps := h.registry.All()
	out := make([]EndpointInfo, 0, len(eps))
	for _, ep := range eps {
		out = append(out, EndpointInfo{
			ID:                  ep.ID,
			DisplayName:         ep.DisplayName,
			PrimaryIntents:      ep.PrimaryIntents,
			ConfidenceThreshold: ep.ConfidenceThreshold,
		})
	}
	c.JSON(http.StatusOK, gin.H{"endpoints": out})
}

// HandleHealth handles GET /v1/insight/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// HandleReady handles GET /v1/insight/ready. Ready means the registry is
// loaded and the pipeline is wired; the semantic verifier warming in the
// background does not block readiness.
func (h *Handlers) HandleReady(c *gin.Context) {
	if h.router == nil || h.registry == nil || h.registry.Len() == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"endpoints": h.registry.Len(),
	})
}

// writeProcessError maps processing failures to structured HTTP errors.
func (h *Handlers) writeProcessError(c *gin.Context, logger *slog.Logger, err error) {
	var shape *process.ShapeMismatchError
	if errors.As(err, &shape) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: shape.Error(),
			Code:  "SHAPE_MISMATCH",
		})
		return
	}
	var notFound *process.ScoreFieldNotFoundError
	if errors.As(err, &notFound) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: notFound.Error(),
			Code:  "SCORE_FIELD_NOT_FOUND",
		})
		return
	}
	logger.Error("processing failed", slog.String("error", err.Error()))
	c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Error: err.Error(),
		Code:  "PROCESSING_FAILED",
	})
}
