// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import "github.com/traylinx/switchroute/internal/model"

// SemanticRoute is a named cluster of exemplar utterances whose match implies
// a preferred tier. Routes are per-request; utterance order is irrelevant.
type SemanticRoute struct {
	// Name uniquely identifies the route within a request.
	Name string `json:"name" yaml:"name"`

	// TargetTier is the tier picked when this route matches.
	TargetTier model.Tier `json:"model_type" yaml:"model_type"`

	// Utterances are the reference exemplars embedded for classification.
	Utterances []string `json:"utterances" yaml:"utterances"`
}

// ValidateRoutes checks a route set for the construction-time invariants:
// non-empty unique names, a valid target tier, and at least one utterance.
func ValidateRoutes(routes []SemanticRoute) error {
	seen := make(map[string]struct{}, len(routes))
	for i, r := range routes {
		if r.Name == "" {
			return Validationf("semantic route %d has an empty name", i)
		}
		if _, dup := seen[r.Name]; dup {
			return Validationf("duplicate semantic route name %q", r.Name)
		}
		seen[r.Name] = struct{}{}
		if !r.TargetTier.Valid() {
			return Validationf("semantic route %q has unknown model_type %q", r.Name, r.TargetTier)
		}
		if len(r.Utterances) == 0 {
			return Validationf("semantic route %q has no utterances", r.Name)
		}
	}
	return nil
}

// MergeRoutes overlays request-supplied routes on the server defaults.
// A request route replaces a default route with the same name.
func MergeRoutes(defaults, request []SemanticRoute) []SemanticRoute {
	if len(request) == 0 {
		return defaults
	}
	if len(defaults) == 0 {
		return request
	}
	fromRequest := make(map[string]struct{}, len(request))
	for _, r := range request {
		fromRequest[r.Name] = struct{}{}
	}
	merged := make([]SemanticRoute, 0, len(defaults)+len(request))
	for _, r := range defaults {
		if _, shadowed := fromRequest[r.Name]; !shadowed {
			merged = append(merged, r)
		}
	}
	return append(merged, request...)
}
