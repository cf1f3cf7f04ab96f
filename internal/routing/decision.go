// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package routing implements the routing decision engine: the policy that
// composes the semantic and difficulty classifiers under a fixed precedence
// and emits one immutable routing decision per completed request.
package routing

import (
	"fmt"

	"github.com/traylinx/switchroute/internal/model"
)

// Decision is the immutable record emitted by the routing policy. It is owned
// exclusively by the request that produced it and is never mutated after the
// completion call returns; the availability fallback builds a new one.
type Decision struct {
	// Query is the last user message considered by the classifiers.
	Query string `json:"query"`

	// ChosenTier names which descriptor of the pair was selected.
	ChosenTier model.Tier `json:"chosen_tier"`

	// ChosenModelName is the backend-facing name of the chosen descriptor.
	ChosenModelName string `json:"chosen_model_name"`

	// PredictedSemantic is the matched route name. Non-nil iff the semantic
	// branch fired.
	PredictedSemantic *string `json:"predicted_semantic"`

	// OptimizationTarget echoes the request's optimization metric, if any.
	OptimizationTarget *Metric `json:"optimization_target"`

	// Basis is a one-line explanation of which branch emitted the decision:
	// "optimization:<metric>", "semantic:<name>", "difficulty", or
	// "fallback:<metric> ...".
	Basis string `json:"basis"`
}

// BasisOptimization formats the basis for the optimization short-circuit.
func BasisOptimization(m Metric) string {
	return "optimization:" + string(m)
}

// BasisLatency formats the latency basis including both throughput readings,
// so operators can see why a tier won.
func BasisLatency(chosen model.Tier, strongTPS, weakTPS float64) string {
	return fmt.Sprintf("optimization:latency (%s wins at %.0f tps vs %.0f tps)",
		chosen, strongTPS, weakTPS)
}

// BasisSemantic formats the basis for a semantic route match.
func BasisSemantic(route string) string {
	return "semantic:" + route
}

// BasisDifficulty is the basis of the difficulty fallback branch.
const BasisDifficulty = "difficulty"

// BasisAvailabilityFallback is the basis of the rebuilt decision after the
// preferred backend failed in availability mode.
const BasisAvailabilityFallback = "fallback:availability (preferred model failed)"
