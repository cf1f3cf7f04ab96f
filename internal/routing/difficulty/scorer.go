// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package difficulty estimates how much a query would benefit from the strong
// model. The scorer projects the query embedding through a calibrated
// matrix-factorization vector and squashes the result to [0, 1]; when no
// calibration file is configured it falls back to a deterministic lexical
// model so routing keeps working without artifacts.
package difficulty

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/traylinx/switchroute/internal/embedding"
	"github.com/traylinx/switchroute/internal/routing"
)

// DifficultyThreshold is the calibrated cutoff: scores at or above it route
// to the strong tier. Calibrated offline to send roughly half of a reference
// query distribution to the strong model; retune here, nowhere else.
const DifficultyThreshold = 0.11593

// Weights is the calibrated projection applied to query embeddings.
type Weights struct {
	// Projection must match the embedding dimension of the configured
	// embedding backend.
	Projection []float32 `json:"projection"`

	// Bias shifts the logit before the sigmoid.
	Bias float64 `json:"bias"`
}

// LoadWeights reads a calibration file produced by the offline tuning job.
func LoadWeights(path string) (*Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read difficulty weights: %w", err)
	}
	var w Weights
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse difficulty weights %s: %w", path, err)
	}
	if len(w.Projection) == 0 {
		return nil, fmt.Errorf("difficulty weights %s: empty projection", path)
	}
	return &w, nil
}

// Scorer assigns each query a probability that the strong model would give a
// materially better answer. Safe for concurrent use across requests.
type Scorer struct {
	embedder embedding.Embedder
	weights  *Weights
}

// NewScorer builds a scorer. weights may be nil, selecting the lexical
// fallback model.
func NewScorer(embedder embedding.Embedder, weights *Weights) *Scorer {
	return &Scorer{embedder: embedder, weights: weights}
}

// Score returns the query's difficulty in [0, 1]. Failures of the embedding
// backend are reported as ExternalDependencyError; the policy treats them as
// unrecoverable since difficulty is the last routing step.
func (s *Scorer) Score(ctx context.Context, query string) (float64, error) {
	if s.weights == nil {
		return lexicalScore(query), nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return 0, &routing.ExternalDependencyError{Dependency: "difficulty", Err: err}
	}
	if len(vec) != len(s.weights.Projection) {
		return 0, &routing.ExternalDependencyError{
			Dependency: "difficulty",
			Err:        fmt.Errorf("embedding dimension %d does not match calibration %d", len(vec), len(s.weights.Projection)),
		}
	}

	logit := s.weights.Bias
	for i, v := range vec {
		logit += float64(v) * float64(s.weights.Projection[i])
	}
	return sigmoid(logit), nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

var codeMarkers = []string{
	"```", "func ", "def ", "class ", "import ", "console.log", "print(",
	"select ", "regex", "stack trace", "compile", "segfault", "refactor",
}

var reasoningMarkers = []string{
	"prove", "proof", "theorem", "derive", "derivative", "integral",
	"optimize", "complexity", "algorithm", "step by step", "trade-off",
	"architecture", "design a", "why does", "explain how",
}

// lexicalScore is the artifact-free fallback: a handful of surface features
// mapped through the same sigmoid so the calibrated threshold keeps meaning.
func lexicalScore(query string) float64 {
	q := strings.ToLower(query)
	words := len(strings.Fields(q))

	logit := -2.5

	chars := len(q)
	if chars > 500 {
		chars = 500
	}
	logit += float64(chars) * 0.004

	for _, m := range codeMarkers {
		if strings.Contains(q, m) {
			logit += 1.2
			break
		}
	}
	for _, m := range reasoningMarkers {
		if strings.Contains(q, m) {
			logit += 1.0
			break
		}
	}
	if strings.Count(q, "?") > 1 {
		logit += 0.6
	}
	if words > 50 {
		logit += 0.6
	}
	if words <= 4 {
		logit -= 1.0
	}

	return sigmoid(logit)
}
