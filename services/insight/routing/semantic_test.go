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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// =============================================================================
// Helpers
// =============================================================================

// newEmbedServer returns a stub /api/embed endpoint that always answers with
// the given vector, after an optional delay.
func newEmbedServer(t *testing.T, vector []float32, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			time.Sleep(delay)
		}
		_ = json.NewEncoder(w).Encode(embedResp{Embeddings: [][]float32{vector}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newTestVerifier builds a warmed verifier whose query embeddings come from
// the stub server and whose centroids are installed directly.
func newTestVerifier(t *testing.T, srv *httptest.Server, centroids map[string][]float32) *Verifier {
	t.Helper()
	v := NewVerifier(nil, nil, nil)
	v.url = srv.URL
	v.SetCentroids(centroids)
	return v
}

// =============================================================================
// Verifier Tests
// =============================================================================

func TestVerifier_UnwarmedDegradesGracefully(t *testing.T) {
	v := NewVerifier(nil, nil, nil)

	res, err := v.Verify(context.Background(), "rank the best markets")
	if err != nil {
		t.Errorf("expected nil error from an unwarmed verifier, got %v", err)
	}
	if res != nil {
		t.Errorf("expected nil result from an unwarmed verifier, got %+v", res)
	}
	if v.IsWarmed() {
		t.Error("verifier must not report warmed without centroids")
	}
}

func TestVerifier_ScoresAgainstCentroids(t *testing.T) {
	// Query vector aligned with brand_difference's centroid.
	srv := newEmbedServer(t, []float32{1, 0}, 0)
	v := newTestVerifier(t, srv, map[string][]float32{
		"brand_difference": {1, 0},
		"trend_analysis":   {0, 1},
	})

	res, err := v.Verify(context.Background(), "nike vs adidas")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res == nil {
		t.Fatal("expected a semantic result from a warmed verifier")
	}
	if res.TopEndpoint != "brand_difference" {
		t.Errorf("expected brand_difference on top, got %s", res.TopEndpoint)
	}
	if res.TopScore < 0.99 {
		t.Errorf("expected near-perfect similarity, got %.3f", res.TopScore)
	}
	// Orthogonal centroid contributes no positive score.
	if _, ok := res.Scores["trend_analysis"]; ok {
		t.Error("orthogonal endpoint must be omitted from the scores")
	}
}

func TestVerifier_TimeoutDegradesGracefully(t *testing.T) {
	// Default verification timeout is 100ms; the server answers in 400ms.
	srv := newEmbedServer(t, []float32{1, 0}, 400*time.Millisecond)
	v := newTestVerifier(t, srv, map[string][]float32{
		"brand_difference": {1, 0},
	})

	start := time.Now()
	res, err := v.Verify(context.Background(), "nike vs adidas")
	if err != nil {
		t.Errorf("timeout must degrade, not error: %v", err)
	}
	if res != nil {
		t.Errorf("expected nil result on timeout, got %+v", res)
	}
	if elapsed := time.Since(start); elapsed > 350*time.Millisecond {
		t.Errorf("verification did not respect the hard timeout (took %v)", elapsed)
	}
}

func TestVerifier_ServerErrorDegradesGracefully(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	v := newTestVerifier(t, srv, map[string][]float32{
		"brand_difference": {1, 0},
	})

	res, err := v.Verify(context.Background(), "nike vs adidas")
	if err != nil || res != nil {
		t.Errorf("expected graceful degradation on 503, got res=%+v err=%v", res, err)
	}
}

func TestVerifier_SetCentroidsMarksWarmed(t *testing.T) {
	v := NewVerifier(nil, nil, nil)
	v.SetCentroids(map[string][]float32{"general_analysis": {1}})
	if !v.IsWarmed() {
		t.Error("expected warmed after SetCentroids")
	}
	v.SetCentroids(nil)
	if v.IsWarmed() {
		t.Error("expected unwarmed after clearing centroids")
	}
}
