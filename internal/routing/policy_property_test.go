// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import (
	"context"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/traylinx/switchroute/internal/model"
)

// Property-based tests for the routing policy invariants.

func genMetric() gopter.Gen {
	return gen.OneConstOf(
		string(MetricPerformance),
		string(MetricCost),
		string(MetricLatency),
		string(MetricAvailability),
		"", // absent
	)
}

func TestPropertyChosenModelMatchesPair(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("chosen model name equals pair[chosen_tier].name", prop.ForAll(
		func(metricStr string, score float64, strongTPS, weakTPS float64) bool {
			pair := model.Pair{
				Strong: model.Descriptor{Name: "strong-model", SimulatedThroughput: strongTPS},
				Weak:   model.Descriptor{Name: "weak-model", SimulatedThroughput: weakTPS},
			}
			var target *Metric
			if metricStr != "" {
				m := Metric(metricStr)
				target = &m
			}
			p := NewPolicy(nil, &stubScorer{score: score}, testThreshold)
			d, err := p.Decide(context.Background(), "query", pair, target)
			if err != nil {
				return false
			}
			if !d.ChosenTier.Valid() {
				return false
			}
			return d.ChosenModelName == pair.Descriptor(d.ChosenTier).Name
		},
		genMetric(),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1000),
		gen.Float64Range(0, 1000),
	))

	properties.TestingRun(t)
}

func TestPropertySemanticBasisIffPrediction(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("predicted_semantic non-nil iff basis starts with semantic:", prop.ForAll(
		func(metricStr string, matched bool, score float64) bool {
			pair := model.Pair{
				Strong: model.Descriptor{Name: "strong-model"},
				Weak:   model.Descriptor{Name: "weak-model"},
			}
			var target *Metric
			if metricStr != "" {
				m := Metric(metricStr)
				target = &m
			}
			sem := &stubSemantic{}
			if matched {
				sem.match = &SemanticMatch{Route: "greeting", Tier: model.TierWeak, Similarity: 0.9}
			}
			p := NewPolicy(sem, &stubScorer{score: score}, testThreshold)
			d, err := p.Decide(context.Background(), "query", pair, target)
			if err != nil {
				return false
			}
			return (d.PredictedSemantic != nil) == strings.HasPrefix(d.Basis, "semantic:")
		},
		genMetric(),
		gen.Bool(),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

func TestPropertyLatencyPicksArgmaxThroughput(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("latency routes to the higher-throughput tier, ties to weak", prop.ForAll(
		func(strongTPS, weakTPS float64) bool {
			pair := model.Pair{
				Strong: model.Descriptor{Name: "strong-model", SimulatedThroughput: strongTPS},
				Weak:   model.Descriptor{Name: "weak-model", SimulatedThroughput: weakTPS},
			}
			m := MetricLatency
			p := NewPolicy(nil, &stubScorer{}, testThreshold)
			d, err := p.Decide(context.Background(), "query", pair, &m)
			if err != nil {
				return false
			}
			if strongTPS > weakTPS {
				return d.ChosenTier == model.TierStrong
			}
			return d.ChosenTier == model.TierWeak
		},
		gen.Float64Range(0, 500),
		gen.Float64Range(0, 500),
	))

	properties.TestingRun(t)
}
