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

import "fmt"

// =============================================================================
// Router Errors
// =============================================================================

// Error codes for RouterError.
const (
	// ErrCodeValidation: the query was rejected by the scope gate.
	ErrCodeValidation = "VALIDATION_REJECTED"

	// ErrCodeRegistry: the endpoint registry is missing or inconsistent.
	ErrCodeRegistry = "REGISTRY_ERROR"

	// ErrCodeSemanticTimeout: the semantic verifier did not answer in time.
	// Non-fatal; the rule-based result is used as-is.
	ErrCodeSemanticTimeout = "SEMANTIC_TIMEOUT"

	// ErrCodeInternal: an unexpected pipeline failure.
	ErrCodeInternal = "INTERNAL"
)

// RouterError is a structured routing failure with a stable code.
type RouterError struct {
	// Code is one of the ErrCode* constants.
	Code string

	// Message is the human-readable detail.
	Message string

	// Retryable reports whether retrying the identical request could succeed.
	Retryable bool
}

// Error implements the error interface.
func (e *RouterError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewRouterError creates a RouterError.
func NewRouterError(code, message string, retryable bool) *RouterError {
	return &RouterError{Code: code, Message: message, Retryable: retryable}
}
