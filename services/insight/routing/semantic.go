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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AtlasInsightAI/AtlasInsight/services/insight/config"
	"github.com/AtlasInsightAI/AtlasInsight/services/insight/registry"
)

// =============================================================================
// Semantic Verifier
// =============================================================================

// exemplarWarmConcurrency is the number of parallel embedding calls during
// warm-up. Ten concurrent requests saturates a local embedding service
// without overwhelming it.
const exemplarWarmConcurrency = 10

// embedReq is the /api/embed request body.
type embedReq struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResp is the /api/embed response body.
type embedResp struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// SemanticResult is the verifier's verdict for one query.
type SemanticResult struct {
	// Scores maps endpoint ID to cosine similarity in [0,1]. Endpoints with
	// non-positive similarity are omitted.
	Scores map[string]float64

	// TopEndpoint is the endpoint with the highest similarity.
	TopEndpoint string

	// TopScore is that endpoint's similarity.
	TopScore float64
}

// Verifier pre-computes a centroid embedding vector per endpoint from its
// registry exemplars, then scores live queries by cosine similarity.
//
// # Description
//
// The verifier is a strictly advisory layer: it can nudge confidence but
// never overrides the rule-based decision. Every failure mode (service
// unreachable at startup, query embedding timeout, empty vector) degrades
// to (nil, nil) and the caller proceeds with the rule-based result alone.
//
// Centroids are persisted in BadgerDB (via ExemplarCacheStore) between
// restarts, keyed by the registry corpus hash for automatic invalidation.
// A nil store means in-memory-only mode.
//
// # Thread Safety
//
// Safe for concurrent use after Warm() completes.
type Verifier struct {
	mu        sync.RWMutex
	centroids map[string][]float32 // endpoint ID → unit centroid vector
	warmed    bool

	url    string
	model  string
	client *http.Client
	tuning *config.Store
	logger *slog.Logger
	store  ExemplarCacheStore // nil = in-memory-only
}

// NewVerifier creates an unwarmed Verifier.
//
// # Description
//
// Reads EMBEDDING_SERVICE_URL and EMBEDDING_MODEL from the environment. Call
// Warm() at startup before the verifier can score queries; an unwarmed
// verifier degrades gracefully (Verify returns nil, nil).
//
// # Inputs
//
//   - tuning: Tuning store for the verification timeout. May be nil.
//   - store: Optional BadgerDB persistence. Nil disables persistence.
//   - logger: Logger for warnings and debug output. May be nil.
func NewVerifier(tuning *config.Store, store ExemplarCacheStore, logger *slog.Logger) *Verifier {
	if tuning == nil {
		tuning = config.NewStore(nil, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	url := os.Getenv("EMBEDDING_SERVICE_URL")
	if url == "" {
		url = "http://host.containers.internal:11434/api/embed"
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = "nomic-embed-text-v2-moe"
	}

	return &Verifier{
		centroids: make(map[string][]float32),
		url:       url,
		model:     model,
		client: &http.Client{
			Timeout: 30 * time.Second, // warm-up only; query timeout set per-call
		},
		tuning: tuning,
		logger: logger,
		store:  store,
	}
}

// Warm pre-computes a unit centroid vector for every registry endpoint.
//
// # Description
//
// Each endpoint's exemplars are embedded in parallel (bounded by
// exemplarWarmConcurrency), averaged, and unit-normalized. An endpoint whose
// every exemplar fails to embed is skipped with a warning; it simply never
// receives a semantic score. If the embedding service is entirely
// unreachable, warmed stays false and Verify degrades gracefully.
//
// Checks the BadgerDB cache first and persists fresh centroids afterwards.
//
// # Thread Safety
//
// Not safe to call concurrently. Call once at service startup.
func (v *Verifier) Warm(ctx context.Context, reg *registry.Registry) error {
	if reg == nil || reg.Len() == 0 {
		return nil
	}

	corpusHash := ComputeCorpusHash(reg, v.model)
	if v.store != nil {
		cached, err := v.store.LoadCentroids(ctx, corpusHash)
		if err != nil {
			v.logger.Warn("semantic verifier: cache load failed, continuing with warm-up",
				slog.String("error", err.Error()),
			)
		} else if len(cached) > 0 {
			v.mu.Lock()
			for id, vec := range cached {
				v.centroids[id] = vec // unit-normalized on save
			}
			v.warmed = true
			v.mu.Unlock()
			v.logger.Info("semantic verifier: centroids loaded from cache",
				slog.Int("endpoint_count", len(cached)),
				slog.String("corpus_hash", shortHash(corpusHash)),
			)
			return nil
		}
	}

	v.logger.Info("semantic verifier: starting exemplar warm-up",
		slog.Int("endpoint_count", reg.Len()),
		slog.String("url", v.url),
		slog.String("model", v.model),
	)

	type result struct {
		endpoint string
		centroid []float32
	}

	resultCh := make(chan result, reg.Len())
	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, exemplarWarmConcurrency)

	for _, ep := range reg.All() {
		e := ep
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			centroid, err := v.embedCentroid(gctx, e.Exemplars)
			if err != nil {
				v.logger.Warn("semantic verifier: failed to embed endpoint exemplars",
					slog.String("endpoint", e.ID),
					slog.String("error", err.Error()),
				)
				// Individual failure is not fatal.
				return nil
			}
			resultCh <- result{endpoint: e.ID, centroid: centroid}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("semantic verifier warm-up: %w", err)
	}
	close(resultCh)

	v.mu.Lock()
	for r := range resultCh {
		v.centroids[r.endpoint] = r.centroid
	}
	v.warmed = len(v.centroids) > 0

	warmedCount := len(v.centroids)
	var toSave map[string][]float32
	if v.warmed && v.store != nil {
		toSave = make(map[string][]float32, len(v.centroids))
		for k, vec := range v.centroids {
			toSave[k] = vec
		}
	}
	v.mu.Unlock()

	v.logger.Info("semantic verifier: warm-up complete",
		slog.Int("warmed_endpoints", warmedCount),
		slog.Int("requested_endpoints", reg.Len()),
	)

	// Persistence failure is non-fatal: centroids are already in RAM.
	if toSave != nil {
		if err := v.store.SaveCentroids(ctx, corpusHash, toSave); err != nil {
			v.logger.Warn("semantic verifier: failed to persist centroids",
				slog.String("error", err.Error()),
				slog.String("corpus_hash", shortHash(corpusHash)),
			)
		}
	}

	return nil
}

// embedCentroid embeds each exemplar, averages the vectors, and returns the
// unit-normalized centroid. Errors only when no exemplar could be embedded.
func (v *Verifier) embedCentroid(ctx context.Context, exemplars []string) ([]float32, error) {
	var sum []float32
	embedded := 0

	for _, exemplar := range exemplars {
		vec, err := v.embed(ctx, exemplar)
		if err != nil {
			v.logger.Debug("semantic verifier: exemplar embed failed",
				slog.String("exemplar", truncateForLog(exemplar, 60)),
				slog.String("error", err.Error()),
			)
			continue
		}
		if sum == nil {
			sum = make([]float32, len(vec))
		}
		if len(vec) != len(sum) {
			continue
		}
		for i, x := range vec {
			sum[i] += x
		}
		embedded++
	}

	if embedded == 0 {
		return nil, errors.New("no exemplar embedded successfully")
	}

	for i := range sum {
		sum[i] /= float32(embedded)
	}
	norm := l2Norm(sum)
	if norm == 0 {
		return nil, errors.New("zero centroid vector")
	}
	unit := make([]float32, len(sum))
	for i, x := range sum {
		unit[i] = x / float32(norm)
	}
	return unit, nil
}

// Verify embeds the query under the tuning-configured hard timeout and
// returns cosine similarity against every endpoint centroid.
//
// # Description
//
// Returns (nil, nil), the graceful-degradation signal, when the verifier
// was never warmed, the embedding call fails or times out, or the query
// produces a zero vector. The caller must treat nil as "no semantic opinion"
// and keep the rule-based result.
//
// # Thread Safety
//
// Safe for concurrent use after Warm() completes.
func (v *Verifier) Verify(ctx context.Context, query string) (*SemanticResult, error) {
	v.mu.RLock()
	warmed := v.warmed
	v.mu.RUnlock()
	if !warmed {
		return nil, nil
	}

	timeout := v.tuning.Current().Semantic.Timeout()
	embedCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	queryVec, err := v.embed(embedCtx, query)
	if err != nil {
		v.logger.Warn("semantic verifier: query embedding failed, keeping rule-based result",
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	norm := l2Norm(queryVec)
	if norm == 0 {
		return nil, nil
	}
	queryUnit := make([]float32, len(queryVec))
	for i, x := range queryVec {
		queryUnit[i] = x / float32(norm)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	res := &SemanticResult{Scores: make(map[string]float64, len(v.centroids))}
	for id, centroid := range v.centroids {
		sim := float64(dotProduct(queryUnit, centroid))
		if sim <= 0 {
			continue
		}
		res.Scores[id] = sim
		if sim > res.TopScore || (sim == res.TopScore && id < res.TopEndpoint) {
			res.TopEndpoint = id
			res.TopScore = sim
		}
	}
	if len(res.Scores) == 0 {
		return nil, nil
	}
	return res, nil
}

// IsWarmed reports whether the verifier holds usable centroids.
func (v *Verifier) IsWarmed() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.warmed
}

// SetCentroids installs pre-computed unit centroids directly, bypassing the
// embedding service. Intended for tests.
func (v *Verifier) SetCentroids(centroids map[string][]float32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.centroids = centroids
	v.warmed = len(centroids) > 0
}

// =============================================================================
// Helpers
// =============================================================================

// embed calls the /api/embed endpoint and returns the embedding vector.
func (v *Verifier) embed(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(embedReq{Model: v.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed HTTP call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed service returned %d: %s", resp.StatusCode, string(body))
	}

	var er embedResp
	if err := json.Unmarshal(body, &er); err != nil {
		return nil, fmt.Errorf("parse embed response: %w", err)
	}
	if len(er.Embeddings) == 0 || len(er.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("embed service returned empty vector")
	}
	return er.Embeddings[0], nil
}

// l2Norm computes the L2 (Euclidean) norm of a float32 vector.
func l2Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// dotProduct computes the dot product of two float32 vectors. Mismatched
// lengths use the shorter.
func dotProduct(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
