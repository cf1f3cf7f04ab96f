// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package model defines the value objects that identify candidate backends:
// the per-request model descriptor and the strong/weak model pair.
package model

import (
	"fmt"
	"strings"
)

// Tier selects one descriptor of a model pair.
type Tier string

const (
	// TierStrong names the capable, expensive backend of a pair.
	TierStrong Tier = "strong"

	// TierWeak names the cheap, fast backend of a pair.
	TierWeak Tier = "weak"
)

// Valid reports whether t is one of the two known tiers.
func (t Tier) Valid() bool {
	return t == TierStrong || t == TierWeak
}

// Opposite returns the other tier of the pair.
func (t Tier) Opposite() Tier {
	if t == TierStrong {
		return TierWeak
	}
	return TierStrong
}

// Descriptor identifies a single chat-completion backend. It is immutable
// once constructed; routing never mutates a descriptor, it only reads it.
type Descriptor struct {
	// Name is the opaque model identifier exactly as the backend expects it,
	// e.g. "gpt-4o" or "llama3:8b".
	Name string

	// Provider is the optional adapter prefix ("openai", "ollama", ...).
	// Empty means the default OpenAI-compatible adapter.
	Provider string

	// BaseURL overrides the adapter's hosted default endpoint when set.
	BaseURL string

	// Credential is the API key forwarded as a bearer token. Empty means the
	// adapter falls back to the implementation-default environment credential.
	Credential string

	// SimulatedThroughput is a tokens-per-second estimate consulted only by
	// the latency optimization branch. Zero means unknown.
	SimulatedThroughput float64
}

// WireID returns the wire-level model identifier: "<provider>/<name>" when a
// provider prefix is set, otherwise the bare name.
func (d Descriptor) WireID() string {
	if d.Provider != "" {
		return d.Provider + "/" + d.Name
	}
	return d.Name
}

// String implements fmt.Stringer without leaking the credential.
func (d Descriptor) String() string {
	return d.WireID()
}

// SplitRef splits a wire-level model reference into its provider prefix and
// backend name. known reports whether a prefix names a registered adapter;
// unknown prefixes stay part of the model name so identifiers like
// "org/model" keep working against the default adapter.
func SplitRef(ref string, known func(prefix string) bool) (provider, name string) {
	idx := strings.IndexByte(ref, '/')
	if idx <= 0 {
		return "", ref
	}
	prefix := ref[:idx]
	if known != nil && !known(prefix) {
		return "", ref
	}
	return prefix, ref[idx+1:]
}

// Pair holds exactly two descriptors keyed strong and weak. Pairs are
// per-request; there is no global model registry.
type Pair struct {
	Strong Descriptor
	Weak   Descriptor
}

// NewPair validates and builds a model pair. The two descriptors must not
// identify the same backend.
func NewPair(strong, weak Descriptor) (Pair, error) {
	if strong.Name == "" {
		return Pair{}, fmt.Errorf("strong model name is empty")
	}
	if weak.Name == "" {
		return Pair{}, fmt.Errorf("weak model name is empty")
	}
	if strong.WireID() == weak.WireID() {
		return Pair{}, fmt.Errorf("strong and weak models are identical: %s", strong.WireID())
	}
	return Pair{Strong: strong, Weak: weak}, nil
}

// Descriptor returns the descriptor selected by tier.
func (p Pair) Descriptor(t Tier) Descriptor {
	if t == TierStrong {
		return p.Strong
	}
	return p.Weak
}
