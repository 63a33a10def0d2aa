// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the tunable routing parameters and the domain synonym
// table. Both are embedded YAML documents; the tuning file can additionally be
// overridden by an on-disk file with live reload.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Tuning Parameters
// =============================================================================

//go:embed tuning.yaml
var defaultTuningYAML []byte

// MaxYAMLFileSize caps the size of any YAML document the config loader parses.
const MaxYAMLFileSize = 1 << 20 // 1 MiB

// =============================================================================
// Tuning Types
// =============================================================================

// Tuning holds every heuristic constant used by the routing confidence
// formulas, externalized per the design requirement that magic numbers be
// named configuration rather than inline literals.
//
// Thread Safety: Immutable after loading; safe for concurrent use. Live
// reload swaps the whole struct atomically via the Store.
type Tuning struct {
	Validator   ValidatorTuning   `yaml:"validator"`
	TieBreakers TieBreakerTuning  `yaml:"tie_breakers"`
	Context     ContextTuning     `yaml:"context"`
	Confidence  ConfidenceTuning  `yaml:"confidence"`
	Semantic    SemanticTuning    `yaml:"semantic"`
}

// ValidatorTuning controls the query scope gate.
type ValidatorTuning struct {
	// DomainRelevanceFloor is the minimum weighted in-domain vocabulary
	// overlap before a query with no domain term is rejected as out-of-scope.
	DomainRelevanceFloor float64 `yaml:"domain_relevance_floor"`

	// MinQueryTokens is the minimum meaningful token count for a well-formed query.
	MinQueryTokens int `yaml:"min_query_tokens"`
}

// TieBreakerTuning controls the explicit comparison tie-break and the
// strategic-term down-weight.
type TieBreakerTuning struct {
	// ComparisonBoost is added to the specific entity-difference endpoint
	// when comparison language plus two named entities are detected.
	ComparisonBoost float64 `yaml:"comparison_boost"`

	// GenericPenalty is subtracted from the generic competitive endpoint
	// under the same condition.
	GenericPenalty float64 `yaml:"generic_penalty"`

	// GenericCap caps the generic endpoint's score strictly below 1.0.
	GenericCap float64 `yaml:"generic_cap"`

	// SpecificFloor floors the specific endpoint's score above GenericCap.
	SpecificFloor float64 `yaml:"specific_floor"`

	// StrategicDownweight is subtracted from the generic strategic endpoint
	// whenever a more specific domain signal is simultaneously present.
	StrategicDownweight float64 `yaml:"strategic_downweight"`
}

// ContextTuning controls the historical-pattern cache.
type ContextTuning struct {
	// HistoryCapacity bounds the LRU cache of query->endpoint routings.
	HistoryCapacity int `yaml:"history_capacity"`

	// HistoryBoost is the confidence contribution of a cache hit.
	HistoryBoost float64 `yaml:"history_boost"`
}

// ConfidenceTuning controls signal merging in the confidence manager.
type ConfidenceTuning struct {
	VocabWeight   float64 `yaml:"vocab_weight"`
	ContextWeight float64 `yaml:"context_weight"`
}

// SemanticTuning controls the semantic verifier enhancement layer.
type SemanticTuning struct {
	// EnhancementThreshold: consult the verifier below this top confidence.
	EnhancementThreshold float64 `yaml:"enhancement_threshold"`

	// CreativeOverlapThreshold: a query is "creative" below this matched-term ratio.
	CreativeOverlapThreshold float64 `yaml:"creative_overlap_threshold"`

	// Weight scales the semantic confidence before capping.
	Weight float64 `yaml:"weight"`

	// BoostCap bounds the agreement boost.
	BoostCap float64 `yaml:"boost_cap"`

	// TimeoutMS is the hard timeout for the embedding similarity call.
	TimeoutMS int `yaml:"timeout_ms"`
}

// Timeout returns the semantic verification timeout as a duration.
func (s SemanticTuning) Timeout() time.Duration {
	if s.TimeoutMS <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// =============================================================================
// Loading
// =============================================================================

// LoadTuning parses and validates a Tuning document from YAML bytes.
//
// Description:
//
//	Parses the YAML and applies defaults for zero-valued fields so a partial
//	override file only needs to name the parameters it changes.
//
// Inputs:
//
//	data - Raw YAML bytes to parse.
//
// Outputs:
//
//	*Tuning - The validated parameters.
//	error - Non-nil if parsing or validation fails.
func LoadTuning(data []byte) (*Tuning, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("LoadTuning: empty YAML data")
	}
	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("LoadTuning: YAML data exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}

	var t Tuning
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("LoadTuning: parsing YAML: %w", err)
	}

	applyTuningDefaults(&t)

	if err := validateTuning(&t); err != nil {
		return nil, fmt.Errorf("LoadTuning: validation: %w", err)
	}
	return &t, nil
}

// DefaultTuning returns the embedded tuning parameters.
//
// Panics only if the embedded document itself is invalid, which is a build
// defect, not a runtime condition.
func DefaultTuning() *Tuning {
	t, err := LoadTuning(defaultTuningYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded tuning.yaml invalid: %v", err))
	}
	return t
}

func applyTuningDefaults(t *Tuning) {
	if t.Validator.DomainRelevanceFloor <= 0 {
		t.Validator.DomainRelevanceFloor = 0.15
	}
	if t.Validator.MinQueryTokens <= 0 {
		t.Validator.MinQueryTokens = 2
	}
	if t.TieBreakers.ComparisonBoost <= 0 {
		t.TieBreakers.ComparisonBoost = 0.25
	}
	if t.TieBreakers.GenericPenalty <= 0 {
		t.TieBreakers.GenericPenalty = 0.30
	}
	if t.TieBreakers.GenericCap <= 0 {
		t.TieBreakers.GenericCap = 0.98
	}
	if t.TieBreakers.SpecificFloor <= 0 {
		t.TieBreakers.SpecificFloor = 0.99
	}
	if t.TieBreakers.StrategicDownweight <= 0 {
		t.TieBreakers.StrategicDownweight = 0.15
	}
	if t.Context.HistoryCapacity <= 0 {
		t.Context.HistoryCapacity = 256
	}
	if t.Context.HistoryBoost <= 0 {
		t.Context.HistoryBoost = 0.08
	}
	if t.Confidence.VocabWeight <= 0 {
		t.Confidence.VocabWeight = 1.0
	}
	if t.Confidence.ContextWeight <= 0 {
		t.Confidence.ContextWeight = 1.0
	}
	if t.Semantic.EnhancementThreshold <= 0 {
		t.Semantic.EnhancementThreshold = 0.6
	}
	if t.Semantic.CreativeOverlapThreshold <= 0 {
		t.Semantic.CreativeOverlapThreshold = 0.34
	}
	if t.Semantic.Weight <= 0 {
		t.Semantic.Weight = 0.25
	}
	if t.Semantic.BoostCap <= 0 {
		t.Semantic.BoostCap = 0.15
	}
	if t.Semantic.TimeoutMS <= 0 {
		t.Semantic.TimeoutMS = 100
	}
}

func validateTuning(t *Tuning) error {
	if t.TieBreakers.GenericCap >= 1.0 {
		return fmt.Errorf("tie_breakers.generic_cap must be < 1.0, got %v", t.TieBreakers.GenericCap)
	}
	if t.TieBreakers.SpecificFloor <= t.TieBreakers.GenericCap {
		return fmt.Errorf("tie_breakers.specific_floor (%v) must exceed generic_cap (%v)",
			t.TieBreakers.SpecificFloor, t.TieBreakers.GenericCap)
	}
	if t.TieBreakers.SpecificFloor > 1.0 {
		return fmt.Errorf("tie_breakers.specific_floor must be <= 1.0, got %v", t.TieBreakers.SpecificFloor)
	}
	if t.Semantic.BoostCap >= 0.5 {
		return fmt.Errorf("semantic.boost_cap must stay well below the rule-based signal, got %v", t.Semantic.BoostCap)
	}
	if t.Context.HistoryBoost >= 0.5 {
		return fmt.Errorf("context.history_boost must stay well below the rule-based signal, got %v", t.Context.HistoryBoost)
	}
	return nil
}

// =============================================================================
// Store: atomic access with optional live reload
// =============================================================================

// Store provides shared access to the current Tuning with optional live
// reload from an on-disk override file.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	current *Tuning
	logger  *slog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewStore creates a Store seeded with the given tuning, falling back to the
// embedded defaults when t is nil.
func NewStore(t *Tuning, logger *slog.Logger) *Store {
	if t == nil {
		t = DefaultTuning()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{current: t, logger: logger}
}

// Current returns the active tuning parameters.
//
// The returned pointer is shared and must be treated as read-only.
func (s *Store) Current() *Tuning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Watch starts watching the given file and reloads the tuning whenever it
// changes. Invalid file contents are logged and skipped; the previous tuning
// stays active.
//
// Inputs:
//
//	path - Tuning YAML file to watch. Must exist at call time.
//
// Outputs:
//
//	error - Non-nil if the initial load or watcher setup fails.
//
// Thread Safety: Call once. Close() stops the watcher.
func (s *Store) Watch(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tuning watch: read %s: %w", path, err)
	}
	t, err := LoadTuning(data)
	if err != nil {
		return fmt.Errorf("tuning watch: %w", err)
	}
	s.mu.Lock()
	s.current = t
	s.mu.Unlock()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tuning watch: create watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		return fmt.Errorf("tuning watch: add %s: %w", path, err)
	}

	s.watcher = w
	s.done = make(chan struct{})

	go s.watchLoop(path)

	s.logger.Info("tuning file watch started", slog.String("path", path))
	return nil
}

func (s *Store) watchLoop(path string) {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				s.logger.Warn("tuning reload: read failed, keeping previous parameters",
					slog.String("error", err.Error()),
				)
				continue
			}
			t, err := LoadTuning(data)
			if err != nil {
				s.logger.Warn("tuning reload: invalid file, keeping previous parameters",
					slog.String("error", err.Error()),
				)
				continue
			}
			s.mu.Lock()
			s.current = t
			s.mu.Unlock()
			s.logger.Info("tuning parameters reloaded", slog.String("path", path))
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("tuning watcher error", slog.String("error", err.Error()))
		}
	}
}

// Close stops the watcher, if one was started.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	return s.watcher.Close()
}
