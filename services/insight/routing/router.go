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
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AtlasInsightAI/AtlasInsight/services/insight/config"
	"github.com/AtlasInsightAI/AtlasInsight/services/insight/registry"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	routerDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insight",
		Subsystem: "router",
		Name:      "decisions_total",
		Help:      "Routing decisions by endpoint (or rejection scope)",
	}, []string{"endpoint"})

	routerDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "insight",
		Subsystem: "router",
		Name:      "duration_seconds",
		Help:      "End-to-end routing latency",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	routerSemanticApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "insight",
		Subsystem: "router",
		Name:      "semantic_total",
		Help:      "Semantic verification outcomes",
	}, []string{"outcome"})
)

var routerTracer = otel.Tracer("insight/routing")

// =============================================================================
// Router
// =============================================================================

// Router orchestrates the full decision pipeline for one query:
// validation, intent classification, vocabulary adaptation, context
// enhancement, confidence resolution, and optional semantic verification.
//
// # Description
//
// The pipeline is a linear state machine with no retry loop. A rejected
// query produces a structured rejection with suggestions; an accepted query
// always routes somewhere, with a low-confidence warning when the best score
// is under the winning endpoint's threshold.
//
// Route never mutates the history cache: routing the same query twice
// against unchanged state yields the identical result. The caller records a
// confirmed routing via RecordOutcome after downstream processing succeeds.
//
// # Thread Safety
//
// Safe for concurrent use.
type Router struct {
	registry   *registry.Registry
	validator  *Validator
	classifier *Classifier
	adapter    *Adapter
	enhancer   *Enhancer
	manager    *Manager
	verifier   *Verifier // nil disables semantic verification
	tuning     *config.Store
	logger     *slog.Logger
}

// NewRouter wires the pipeline layers over a shared registry and tuning
// store. verifier may be nil to run rule-based only.
func NewRouter(reg *registry.Registry, synonyms config.DomainSynonyms, tuning *config.Store, verifier *Verifier, logger *slog.Logger) (*Router, error) {
	if reg == nil {
		return nil, NewRouterError(ErrCodeRegistry, "registry must not be nil", false)
	}
	if tuning == nil {
		tuning = config.NewStore(nil, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	enhancer, err := NewEnhancer(tuning)
	if err != nil {
		return nil, fmt.Errorf("new router: %w", err)
	}

	return &Router{
		registry:   reg,
		validator:  NewValidator(tuning),
		classifier: NewClassifier(),
		adapter:    NewAdapter(reg, synonyms, tuning),
		enhancer:   enhancer,
		manager:    NewManager(reg, tuning),
		verifier:   verifier,
		tuning:     tuning,
		logger:     logger,
	}, nil
}

// Route runs the query through the pipeline and returns the decision.
//
// Returns a non-nil RoutingResult in every case; the error is non-nil only
// for pipeline faults, never for rejected queries (rejection is a result,
// not an error).
func (r *Router) Route(ctx context.Context, q Query) (*RoutingResult, error) {
	start := time.Now()
	ctx, span := routerTracer.Start(ctx, "router.Route",
		trace.WithAttributes(attribute.Int("query.length", len(q.Text))),
	)
	defer span.End()
	defer func() { routerDuration.Observe(time.Since(start).Seconds()) }()

	states := []State{StateReceived, StateValidating}

	// Scope gate. Nothing downstream runs on a rejected query.
	validation := r.validator.Validate(q)
	if validation.Scope != ScopeInScope {
		states = append(states, StateRejected)
		span.SetAttributes(attribute.String("routing.scope", string(validation.Scope)))
		routerDecisions.WithLabelValues("rejected_" + string(validation.Scope)).Inc()
		r.logger.Info("query rejected",
			slog.String("scope", string(validation.Scope)),
			slog.String("query", truncateForLog(q.Text, 80)),
		)
		return &RoutingResult{
			Scope:       validation.Scope,
			Reason:      validation.Reason,
			Suggestions: rejectionSuggestions(validation.Scope),
		}, nil
	}

	// Intent classification.
	states = append(states, StateClassifying)
	intent := r.classifier.Classify(q)

	// Vocabulary adaptation.
	states = append(states, StateAdapting)
	vocab := r.adapter.Adapt(q, intent)

	// Context enhancement. Read-only on the history cache.
	states = append(states, StateEnhancing)
	ctxRes := r.enhancer.Enhance(q)

	// Confidence resolution.
	states = append(states, StateScoring)
	ranked := r.manager.Resolve(intent, vocab, ctxRes)
	if len(ranked) == 0 {
		span.SetAttributes(attribute.String("routing.error", "no candidates"))
		return nil, NewRouterError(ErrCodeRegistry, "no routable endpoints after scoring", false)
	}

	decision := &DecisionTrace{
		Intent:           intent.Intent,
		IntentConfidence: intent.BaseConfidence,
		HistoryHit:       ctxRes.HistoryHit,
	}
	decision.Contributions = buildContributions(validation, intent, vocab, ctxRes)

	// Optional semantic verification, only when the rule-based result is
	// weak or the query is creative (low vocabulary overlap).
	t := r.tuning.Current()
	top := ranked[0]
	if r.shouldVerify(top.Confidence, intent, t) {
		states = append(states, StateSemanticVerifying)
		ranked = r.applySemantic(ctx, q, ranked, decision, t)
		top = ranked[0]
	}

	states = append(states, StateRouted)
	decision.States = states
	decision.Ranked = ranked

	span.SetAttributes(
		attribute.String("routing.endpoint", top.Endpoint),
		attribute.Float64("routing.confidence", top.Confidence),
		attribute.String("routing.intent", intent.Intent),
	)
	routerDecisions.WithLabelValues(top.Endpoint).Inc()
	r.logger.Info("query routed",
		slog.String("endpoint", top.Endpoint),
		slog.Float64("confidence", top.Confidence),
		slog.String("intent", intent.Intent),
		slog.Bool("semantic", decision.SemanticApplied),
		slog.Duration("elapsed", time.Since(start)),
	)

	return &RoutingResult{
		Scope:         ScopeInScope,
		Endpoint:      top.Endpoint,
		Confidence:    top.Confidence,
		LowConfidence: top.BelowThreshold,
		Trace:         decision,
	}, nil
}

// RecordOutcome remembers a confirmed successful routing in the history
// cache. Call after downstream processing accepted the routed endpoint.
func (r *Router) RecordOutcome(queryText, endpoint string) {
	r.enhancer.Record(queryText, endpoint)
}

// shouldVerify decides whether to consult the semantic verifier.
func (r *Router) shouldVerify(topConfidence float64, intent IntentResult, t *config.Tuning) bool {
	if r.verifier == nil || !r.verifier.IsWarmed() {
		return false
	}
	if topConfidence < t.Semantic.EnhancementThreshold {
		return true
	}
	// Creative queries: few of the query's terms matched any signature.
	if intent.QueryTerms > 0 {
		overlap := float64(intent.MatchedTerms) / float64(intent.QueryTerms)
		if overlap < t.Semantic.CreativeOverlapThreshold {
			return true
		}
	}
	return false
}

// applySemantic consults the verifier and, on agreement with the rule-based
// leader, boosts its confidence by min(weight*similarity, boost_cap). A
// disagreement or verifier failure leaves the ranking untouched; the
// verifier advises, it never overrides.
func (r *Router) applySemantic(ctx context.Context, q Query, ranked []EndpointScore, decision *DecisionTrace, t *config.Tuning) []EndpointScore {
	sem, err := r.verifier.Verify(ctx, q.Text)
	if err != nil || sem == nil {
		routerSemanticApplied.WithLabelValues("degraded").Inc()
		return ranked
	}

	decision.SemanticApplied = true
	agreed := sem.TopEndpoint == ranked[0].Endpoint
	decision.SemanticAgreed = agreed

	if !agreed {
		routerSemanticApplied.WithLabelValues("disagreed").Inc()
		decision.Contributions = append(decision.Contributions, LayerContribution{
			Layer:    "semantic",
			Detail:   fmt.Sprintf("verifier preferred %s (%.2f); rule-based result kept", sem.TopEndpoint, sem.TopScore),
			Endpoint: sem.TopEndpoint,
		})
		return ranked
	}

	boost := t.Semantic.Weight * sem.TopScore
	if boost > t.Semantic.BoostCap {
		boost = t.Semantic.BoostCap
	}
	ranked[0].Confidence = clamp01(ranked[0].Confidence + boost)
	ranked[0].BelowThreshold = ranked[0].Confidence < r.manager.threshold(ranked[0].Endpoint)

	routerSemanticApplied.WithLabelValues("agreed").Inc()
	decision.Contributions = append(decision.Contributions, LayerContribution{
		Layer:    "semantic",
		Detail:   fmt.Sprintf("verifier agreed (similarity %.2f)", sem.TopScore),
		Endpoint: ranked[0].Endpoint,
		Delta:    boost,
	})
	return ranked
}

// buildContributions assembles the per-layer trace entries in pipeline order.
func buildContributions(validation ValidationResult, intent IntentResult, vocab *VocabResult, ctxRes *ContextResult) []LayerContribution {
	contributions := []LayerContribution{
		{
			Layer:  "validator",
			Detail: fmt.Sprintf("in scope (relevance %.2f)", validation.Relevance),
		},
		{
			Layer:  "intent",
			Detail: intent.Reasoning,
		},
	}

	for ep, delta := range vocab.Deltas {
		contributions = append(contributions, LayerContribution{
			Layer:    "vocabulary",
			Detail:   "term adjustment",
			Endpoint: ep,
			Delta:    delta,
		})
	}
	for ep, reason := range vocab.Suppressed {
		contributions = append(contributions, LayerContribution{
			Layer:    "vocabulary",
			Detail:   "suppressed: " + reason,
			Endpoint: ep,
		})
	}
	for _, rule := range vocab.AppliedRules {
		contributions = append(contributions, LayerContribution{
			Layer:  "vocabulary",
			Detail: "rule " + rule,
		})
	}
	for ep, delta := range ctxRes.Deltas {
		contributions = append(contributions, LayerContribution{
			Layer:    "context",
			Detail:   "context adjustment",
			Endpoint: ep,
			Delta:    delta,
		})
	}
	for _, sig := range ctxRes.Signals {
		contributions = append(contributions, LayerContribution{
			Layer:  "context",
			Detail: "signal " + sig,
		})
	}
	return contributions
}

// rejectionSuggestions offers alternative phrasings for a rejected query.
func rejectionSuggestions(scope Scope) []string {
	switch scope {
	case ScopeMalformed:
		return []string{
			"Rank the top markets by brand performance",
			"Which demographics correlate with sales in my regions?",
		}
	case ScopeOutOfScope:
		return []string{
			"Ask about markets, brands, demographics, or regional performance",
			"Compare brand performance across regions",
			"Show me areas with unusual sales patterns",
		}
	default:
		return nil
	}
}
