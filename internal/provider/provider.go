// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package provider implements the chat-completion backend adapters. Each
// adapter speaks one upstream wire format; the registry resolves an adapter
// from a model descriptor's provider prefix.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/traylinx/switchroute/internal/model"
)

const defaultTimeout = 120 * time.Second

// Call is one materialized backend invocation: the descriptor resolved to
// concrete wire-level values plus the OpenAI-format request payload.
type Call struct {
	// Model is the backend-facing model name, without the provider prefix.
	Model string

	// Payload is the OpenAI-format chat-completion request body. The adapter
	// overrides its "model" field and forwards the rest untouched.
	Payload []byte

	// BaseURL overrides the adapter's default endpoint when set.
	BaseURL string

	// APIKey is forwarded as a bearer token when set.
	APIKey string
}

// Response is a successful upstream completion, normalized to the OpenAI
// chat-completion JSON shape regardless of the adapter's native format.
type Response struct {
	// Payload is the OpenAI-format completion body.
	Payload []byte

	// Model is the model identifier the backend reported, when available.
	Model string
}

// Adapter executes a chat completion against one family of backends.
// Implementations are stateless and shared across requests.
type Adapter interface {
	// Prefix is the provider prefix this adapter registers under.
	Prefix() string

	// Complete issues the call and returns the normalized response. Failures
	// are reported as *routing.UpstreamError.
	Complete(ctx context.Context, call Call) (*Response, error)
}

// Registry resolves adapters by provider prefix. The empty prefix resolves to
// the default OpenAI-compatible adapter.
type Registry struct {
	adapters map[string]Adapter
	fallback Adapter
}

// NewRegistry builds the standard registry: the OpenAI-compatible adapter as
// default and the Ollama adapter under its prefix.
func NewRegistry(httpClient *http.Client) *Registry {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	openai := NewOpenAIAdapter(httpClient)
	r := &Registry{
		adapters: make(map[string]Adapter),
		fallback: openai,
	}
	r.Register(openai)
	r.Register(NewOllamaAdapter(httpClient))
	return r
}

// Register adds an adapter under its prefix, replacing any previous one.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Prefix()] = a
}

// Known reports whether prefix names a registered adapter.
func (r *Registry) Known(prefix string) bool {
	_, ok := r.adapters[prefix]
	return ok
}

// Resolve returns the adapter for a descriptor's provider prefix, falling
// back to the default OpenAI-compatible adapter for the empty prefix.
func (r *Registry) Resolve(desc model.Descriptor) Adapter {
	if a, ok := r.adapters[desc.Provider]; ok {
		return a
	}
	return r.fallback
}
