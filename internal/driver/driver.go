// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package driver runs the completion pipeline for one request: build the
// per-request classifiers, ask the policy for a decision, call the chosen
// backend, and fall back across tiers when availability mode demands it.
package driver

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
	"github.com/tiktoken-go/tokenizer"

	"github.com/traylinx/switchroute/internal/embedding"
	"github.com/traylinx/switchroute/internal/model"
	"github.com/traylinx/switchroute/internal/provider"
	"github.com/traylinx/switchroute/internal/routing"
	"github.com/traylinx/switchroute/internal/routing/semantic"
)

// Input is one completion request after gateway validation.
type Input struct {
	// Payload is the OpenAI-format body with the routing extension fields
	// already stripped. It is forwarded to the backend untouched except for
	// the model override.
	Payload []byte

	// Query is the last user message content; the classifiers only see this.
	Query string

	// Pair is the strong/weak descriptor pair for this request.
	Pair model.Pair

	// Routes are the request's semantic route definitions. Empty means the
	// semantic step is skipped entirely.
	Routes []routing.SemanticRoute

	// Target is the optional optimization metric.
	Target *routing.Metric
}

// Result is the completed pipeline output: the upstream body augmented with
// the routing envelope, plus the decision that produced it.
type Result struct {
	// Payload is the upstream completion with routing_decision and metadata
	// injected as top-level fields.
	Payload []byte

	// Decision reflects the tier that actually produced the payload. After an
	// availability fallback this is the rebuilt decision, not the first one.
	Decision routing.Decision
}

// Driver owns the shared collaborators of the completion pipeline. Safe for
// concurrent use; all per-request state lives on the stack.
type Driver struct {
	registry     *provider.Registry
	embedder     embedding.Embedder
	difficulty   routing.DifficultyScorer
	semanticOpts semantic.Options
	threshold    float64
	codec        tokenizer.Codec
}

// New builds a driver. threshold is the difficulty cutoff forwarded to the
// policy on every request.
func New(registry *provider.Registry, embedder embedding.Embedder, difficulty routing.DifficultyScorer, opts semantic.Options, threshold float64) *Driver {
	// Token counts in the response metadata are an estimate; cl100k is close
	// enough across the model families the gateway fronts.
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		log.WithError(err).Warn("tokenizer unavailable, responses omit prompt_tokens")
		codec = nil
	}
	return &Driver{
		registry:     registry,
		embedder:     embedder,
		difficulty:   difficulty,
		semanticOpts: opts,
		threshold:    threshold,
		codec:        codec,
	}
}

// Complete runs decide-call-fallback for one request. The decision strictly
// precedes the first backend call, and at most one cross-tier retry happens,
// only in availability mode.
func (d *Driver) Complete(ctx context.Context, in Input) (*Result, error) {
	// A performance/cost/latency target short-circuits the policy before the
	// semantic step, so the utterance embeddings are never consulted there.
	// Availability does not short-circuit and still needs the classifier.
	var classifier routing.SemanticClassifier
	if in.Target == nil || *in.Target == routing.MetricAvailability {
		var err error
		classifier, err = d.buildClassifier(ctx, in.Routes)
		if err != nil {
			return nil, err
		}
	}

	policy := routing.NewPolicy(classifier, d.difficulty, d.threshold)
	decision, err := policy.Decide(ctx, in.Query, in.Pair, in.Target)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := d.call(ctx, in, decision.ChosenTier)
	if err != nil {
		if !d.shouldFallback(ctx, in.Target) {
			return nil, err
		}
		log.WithFields(log.Fields{
			"failed_tier": decision.ChosenTier,
			"error":       err.Error(),
		}).Warn("Preferred model failed, retrying opposite tier")

		decision = fallbackDecision(decision, in.Pair)
		resp, err = d.call(ctx, in, decision.ChosenTier)
		if err != nil {
			return nil, err
		}
	}
	latency := time.Since(start)

	payload, err := d.envelope(resp, decision, in, latency)
	if err != nil {
		return nil, err
	}
	return &Result{Payload: payload, Decision: decision}, nil
}

// buildClassifier embeds the request's route utterances. An embedding outage
// here downgrades the request to the difficulty branch instead of failing it.
func (d *Driver) buildClassifier(ctx context.Context, routes []routing.SemanticRoute) (routing.SemanticClassifier, error) {
	if len(routes) == 0 {
		return nil, nil
	}
	classifier, err := semantic.NewClassifier(ctx, d.embedder, routes, d.semanticOpts)
	if err != nil {
		var depErr *routing.ExternalDependencyError
		if errors.As(err, &depErr) {
			log.WithError(err).Warn("Semantic routes unavailable, using difficulty only")
			return nil, nil
		}
		return nil, err
	}
	return classifier, nil
}

func (d *Driver) call(ctx context.Context, in Input, tier model.Tier) (*provider.Response, error) {
	desc := in.Pair.Descriptor(tier)
	adapter := d.registry.Resolve(desc)
	return adapter.Complete(ctx, provider.Call{
		Model:   desc.Name,
		Payload: in.Payload,
		BaseURL: desc.BaseURL,
		APIKey:  desc.Credential,
	})
}

// shouldFallback gates the single cross-tier retry: availability mode only,
// and never once the inbound request is cancelled.
func (d *Driver) shouldFallback(ctx context.Context, target *routing.Metric) bool {
	if target == nil || *target != routing.MetricAvailability {
		return false
	}
	return ctx.Err() == nil
}

// fallbackDecision rebuilds the decision for the opposite tier. The semantic
// prediction is dropped with the original basis: predicted_semantic is
// non-null only on a semantic basis.
func fallbackDecision(prev routing.Decision, pair model.Pair) routing.Decision {
	tier := prev.ChosenTier.Opposite()
	return routing.Decision{
		Query:              prev.Query,
		ChosenTier:         tier,
		ChosenModelName:    pair.Descriptor(tier).Name,
		OptimizationTarget: prev.OptimizationTarget,
		Basis:              routing.BasisAvailabilityFallback,
	}
}

// envelope injects routing_decision and metadata into the upstream body
// without disturbing any other field.
func (d *Driver) envelope(resp *provider.Response, decision routing.Decision, in Input, latency time.Duration) ([]byte, error) {
	payload, err := sjson.SetBytes(resp.Payload, "routing_decision", decision)
	if err != nil {
		return nil, err
	}

	servedModel := resp.Model
	if servedModel == "" {
		servedModel = in.Pair.Descriptor(decision.ChosenTier).WireID()
	}
	meta := map[string]interface{}{
		"model":      servedModel,
		"latency_ms": latency.Milliseconds(),
	}
	if d.codec != nil {
		if n, err := d.codec.Count(in.Query); err == nil {
			meta["prompt_tokens"] = n
		}
	}
	return sjson.SetBytes(payload, "metadata", meta)
}
