// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routing implements the query→endpoint decision pipeline: scope
// validation, intent classification, vocabulary adaptation, context
// enhancement, confidence resolution, optional semantic verification, and the
// router that orchestrates them into a single RoutingResult.
package routing

// =============================================================================
// Query
// =============================================================================

// Query is one routing request. Immutable per request.
type Query struct {
	// Text is the raw free-text business question.
	Text string `json:"text"`

	// History is optional prior conversation turns, oldest first.
	History []string `json:"history,omitempty"`

	// Persona is an optional persona tag supplied by the caller.
	Persona string `json:"persona,omitempty"`

	// RegionIDs is an optional geographic filter from the caller.
	RegionIDs []string `json:"region_ids,omitempty"`

	// FieldNames optionally lists the field names available in the caller's
	// dataset. The context enhancer categorizes them by naming pattern and
	// nudges endpoints whose analyses those categories serve.
	FieldNames []string `json:"field_names,omitempty"`
}

// =============================================================================
// Scope
// =============================================================================

// Scope is the validator's categorization of a query.
type Scope string

const (
	// ScopeInScope marks a query the pipeline can answer.
	ScopeInScope Scope = "IN_SCOPE"

	// ScopeOutOfScope marks a query about a different domain entirely.
	ScopeOutOfScope Scope = "OUT_OF_SCOPE"

	// ScopeMalformed marks empty or syntactically degenerate input.
	ScopeMalformed Scope = "MALFORMED"
)

// =============================================================================
// Pipeline States
// =============================================================================

// State names one stage of the per-query routing state machine. There is no
// retry loop: a rejected query requires the user to rephrase.
type State string

const (
	StateReceived           State = "RECEIVED"
	StateValidating         State = "VALIDATING"
	StateRejected           State = "REJECTED"
	StateClassifying        State = "CLASSIFYING"
	StateAdapting           State = "ADAPTING"
	StateEnhancing          State = "ENHANCING"
	StateScoring            State = "SCORING"
	StateSemanticVerifying  State = "SEMANTIC_VERIFYING"
	StateRouted             State = "ROUTED"
)

// =============================================================================
// RoutingResult
// =============================================================================

// LayerContribution records what one pipeline layer contributed to the final
// decision, for the diagnostic trace.
type LayerContribution struct {
	// Layer is the contributing layer name (validator, intent, vocabulary,
	// context, confidence, semantic).
	Layer string `json:"layer"`

	// Detail is a short human-readable description of the contribution.
	Detail string `json:"detail"`

	// Endpoint is the endpoint the contribution applies to, when specific.
	Endpoint string `json:"endpoint,omitempty"`

	// Delta is the confidence adjustment contributed, when numeric.
	Delta float64 `json:"delta,omitempty"`
}

// DecisionTrace is the per-request diagnostic trail attached to a successful
// RoutingResult.
type DecisionTrace struct {
	// States lists the state machine transitions in order.
	States []State `json:"states"`

	// Intent is the winning intent signature.
	Intent string `json:"intent"`

	// IntentConfidence is the classifier's base confidence.
	IntentConfidence float64 `json:"intent_confidence"`

	// Contributions lists every layer's contribution in pipeline order.
	Contributions []LayerContribution `json:"contributions"`

	// SemanticApplied reports whether the semantic verifier was consulted.
	SemanticApplied bool `json:"semantic_applied"`

	// SemanticAgreed reports whether the verifier agreed with the rule-based
	// candidate. Meaningful only when SemanticApplied is true.
	SemanticAgreed bool `json:"semantic_agreed,omitempty"`

	// HistoryHit reports whether the historical-pattern cache contributed.
	HistoryHit bool `json:"history_hit,omitempty"`

	// Ranked is the final ranked endpoint list (best first).
	Ranked []EndpointScore `json:"ranked"`
}

// EndpointScore is one endpoint's final confidence in the ranked list.
type EndpointScore struct {
	// Endpoint is the endpoint ID.
	Endpoint string `json:"endpoint"`

	// Confidence is the merged confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// BelowThreshold is set when Confidence is under the endpoint's
	// configured threshold. The query still routes; consumers get a warning.
	BelowThreshold bool `json:"below_threshold,omitempty"`
}

// RoutingResult is the router's single output: a routed endpoint with
// confidence and trace, or a structured rejection. Created per-request and
// never mutated after construction.
type RoutingResult struct {
	// Scope is the validator's classification.
	Scope Scope `json:"scope"`

	// Endpoint is the chosen endpoint ID. Empty on rejection.
	Endpoint string `json:"endpoint,omitempty"`

	// Confidence is the final confidence in [0,1]. Zero on rejection.
	Confidence float64 `json:"confidence,omitempty"`

	// LowConfidence warns that Confidence is below the endpoint's threshold.
	LowConfidence bool `json:"low_confidence,omitempty"`

	// Trace is the diagnostic trail. Nil on rejection.
	Trace *DecisionTrace `json:"trace,omitempty"`

	// Reason is the human-readable rejection explanation. Empty on success.
	Reason string `json:"reason,omitempty"`

	// Suggestions offers 1-3 alternative phrasings on rejection.
	Suggestions []string `json:"suggestions,omitempty"`
}
