// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/traylinx/switchroute/internal/model"
)

// SemanticMatch is the result of a successful semantic classification.
type SemanticMatch struct {
	// Route is the matched route name.
	Route string

	// Tier is the route's declared target tier.
	Tier model.Tier

	// Similarity is the aggregate similarity that won the match.
	Similarity float64
}

// SemanticClassifier classifies a query to a named route. A nil match with a
// nil error means no route cleared the similarity floor.
type SemanticClassifier interface {
	Classify(ctx context.Context, query string) (*SemanticMatch, error)
}

// DifficultyScorer estimates the probability in [0, 1] that the strong model
// would give a materially better answer for the query.
type DifficultyScorer interface {
	Score(ctx context.Context, query string) (float64, error)
}

// Policy composes the classifiers under the fixed precedence: optimization
// short-circuit, then semantic match, then difficulty fallback. The policy is
// deterministic given its inputs and its classifiers' outputs; it never calls
// a completion backend.
type Policy struct {
	semantic   SemanticClassifier // nil when no routes were supplied
	difficulty DifficultyScorer
	threshold  float64
}

// NewPolicy builds a policy. semantic may be nil, in which case the semantic
// step is skipped. threshold is the difficulty cutoff; scores greater than or
// equal to it route to the strong tier.
func NewPolicy(semantic SemanticClassifier, difficulty DifficultyScorer, threshold float64) *Policy {
	return &Policy{
		semantic:   semantic,
		difficulty: difficulty,
		threshold:  threshold,
	}
}

// Decide emits the routing decision for one query against one model pair.
// Exactly one of the three branches emits the decision.
func (p *Policy) Decide(ctx context.Context, query string, pair model.Pair, target *Metric) (Decision, error) {
	// Step 1: optimization short-circuit. Availability is excluded here; it
	// only changes error handling in the completion driver.
	if target != nil && *target != MetricAvailability {
		return p.decideByMetric(query, pair, *target), nil
	}

	// Step 2: semantic match.
	if p.semantic != nil {
		match, err := p.semantic.Classify(ctx, query)
		switch {
		case err == nil && match != nil:
			name := match.Route
			return Decision{
				Query:              query,
				ChosenTier:         match.Tier,
				ChosenModelName:    pair.Descriptor(match.Tier).Name,
				PredictedSemantic:  &name,
				OptimizationTarget: target,
				Basis:              BasisSemantic(match.Route),
			}, nil
		case err != nil:
			var depErr *ExternalDependencyError
			if !errors.As(err, &depErr) {
				return Decision{}, err
			}
			// Semantic step unavailable: fall through to difficulty.
			log.WithError(err).Warn("semantic classifier unavailable, falling back to difficulty")
		}
	}

	// Step 3: difficulty fallback. A scorer failure here is unrecoverable.
	score, err := p.difficulty.Score(ctx, query)
	if err != nil {
		var depErr *ExternalDependencyError
		if errors.As(err, &depErr) {
			return Decision{}, err
		}
		return Decision{}, &ExternalDependencyError{Dependency: "difficulty", Err: err}
	}

	tier := model.TierWeak
	if score >= p.threshold {
		tier = model.TierStrong
	}
	log.Debugf("difficulty score %.5f vs threshold %.5f routes to %s", score, p.threshold, tier)
	return Decision{
		Query:              query,
		ChosenTier:         tier,
		ChosenModelName:    pair.Descriptor(tier).Name,
		OptimizationTarget: target,
		Basis:              BasisDifficulty,
	}, nil
}

func (p *Policy) decideByMetric(query string, pair model.Pair, m Metric) Decision {
	var tier model.Tier
	basis := BasisOptimization(m)

	switch m {
	case MetricPerformance:
		tier = model.TierStrong
	case MetricCost:
		tier = model.TierWeak
	default: // MetricLatency
		strongTPS := pair.Strong.SimulatedThroughput
		weakTPS := pair.Weak.SimulatedThroughput
		if strongTPS > weakTPS {
			tier = model.TierStrong
		} else {
			// Ties go to the cheaper tier.
			tier = model.TierWeak
		}
		basis = BasisLatency(tier, strongTPS, weakTPS)
	}

	return Decision{
		Query:              query,
		ChosenTier:         tier,
		ChosenModelName:    pair.Descriptor(tier).Name,
		OptimizationTarget: &m,
		Basis:              basis,
	}
}
