// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package semantic implements embedding-based route classification. A
// classifier is built once per request from the supplied semantic routes:
// every utterance is embedded up front, and queries are matched by cosine
// similarity against the stored exemplars.
package semantic

import (
	"context"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/traylinx/switchroute/internal/embedding"
	"github.com/traylinx/switchroute/internal/model"
	"github.com/traylinx/switchroute/internal/routing"
)

const (
	// DefaultSimilarityFloor is the minimum aggregate similarity for a match.
	// Below it the classifier returns no route.
	DefaultSimilarityFloor = 0.82

	// DefaultTopK is how many of a route's most similar utterances are
	// averaged into the route's aggregate score.
	DefaultTopK = 5
)

// Options tune classification. Zero values select the defaults.
type Options struct {
	// SimilarityFloor overrides DefaultSimilarityFloor when positive.
	SimilarityFloor float64

	// TopK overrides DefaultTopK when positive.
	TopK int
}

type routeVectors struct {
	name    string
	tier    model.Tier
	vectors [][]float32
}

// Classifier matches queries to the route whose utterances they most
// resemble. Construction embeds every utterance; Classify embeds only the
// query. A classifier is immutable after construction.
type Classifier struct {
	embedder embedding.Embedder
	routes   []routeVectors
	floor    float64
	topK     int
}

// NewClassifier validates the routes and embeds their utterances. Routes with
// duplicate names are rejected with a ValidationError; an embedding backend
// failure is reported as an ExternalDependencyError so the policy can skip
// the semantic step.
func NewClassifier(ctx context.Context, embedder embedding.Embedder, routes []routing.SemanticRoute, opts Options) (*Classifier, error) {
	if err := routing.ValidateRoutes(routes); err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return nil, routing.Validationf("no semantic routes supplied")
	}

	floor := opts.SimilarityFloor
	if floor <= 0 {
		floor = DefaultSimilarityFloor
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	// One batch call for the whole request keeps construction at a single
	// round trip against the embedding backend.
	var texts []string
	for _, r := range routes {
		texts = append(texts, r.Utterances...)
	}
	vectors, err := embedder.BatchEmbed(ctx, texts)
	if err != nil {
		return nil, &routing.ExternalDependencyError{Dependency: "embedding", Err: err}
	}

	c := &Classifier{embedder: embedder, floor: floor, topK: topK}
	offset := 0
	for _, r := range routes {
		n := len(r.Utterances)
		c.routes = append(c.routes, routeVectors{
			name:    r.Name,
			tier:    r.TargetTier,
			vectors: vectors[offset : offset+n],
		})
		offset += n
	}
	log.Debugf("semantic classifier built with %d routes, %d utterances", len(c.routes), offset)
	return c, nil
}

// Classify embeds the query and returns the best route at or above the
// similarity floor, or nil when nothing clears it.
func (c *Classifier) Classify(ctx context.Context, query string) (*routing.SemanticMatch, error) {
	queryVec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &routing.ExternalDependencyError{Dependency: "embedding", Err: err}
	}

	var best *routing.SemanticMatch
	for _, r := range c.routes {
		score := c.aggregate(queryVec, r.vectors)
		if best == nil || score > best.Similarity {
			best = &routing.SemanticMatch{Route: r.name, Tier: r.tier, Similarity: score}
		}
	}
	if best == nil || best.Similarity < c.floor {
		return nil, nil
	}
	return best, nil
}

// aggregate scores one route: the mean similarity of the top-k utterances.
// Summing over a sorted copy keeps the result invariant under utterance
// reordering.
func (c *Classifier) aggregate(query []float32, vectors [][]float32) float64 {
	sims := make([]float64, 0, len(vectors))
	for _, v := range vectors {
		sims = append(sims, embedding.CosineSimilarity(query, v))
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sims)))

	k := c.topK
	if k > len(sims) {
		k = len(sims)
	}
	if k == 0 {
		return 0
	}
	var sum float64
	for _, s := range sims[:k] {
		sum += s
	}
	return sum / float64(k)
}
