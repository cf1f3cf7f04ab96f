// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package embedding provides the text-embedding backend used by the semantic
// and difficulty classifiers. The default implementation talks to an
// OpenAI-compatible embeddings endpoint; tests inject deterministic fakes.
package embedding

import (
	"context"
	"math"
)

// Embedder computes embedding vectors for text. Implementations are shared
// read-only across requests and must be safe for concurrent use.
type Embedder interface {
	// Embed computes the embedding vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// BatchEmbed computes embeddings for multiple texts in one round trip
	// where the backend supports it.
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Mismatched or empty vectors score zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	normA = math.Sqrt(normA)
	normB = math.Sqrt(normB)
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (normA * normB)
}
