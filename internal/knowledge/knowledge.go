// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package knowledge builds and queries the per-chat vector index over a
// user-supplied knowledge base. Each chat gets its own index file; retrieval
// feeds the chat endpoint's system prompt.
package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/switchroute/internal/embedding"
	"github.com/traylinx/switchroute/internal/routing"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 800

	// DefaultChunkOverlap is how many trailing characters of one chunk reopen
	// the next.
	DefaultChunkOverlap = 200

	// DefaultTopK is how many chunks retrieval returns per query.
	DefaultTopK = 4

	// DefaultScoreFloor drops chunks whose similarity falls below it.
	DefaultScoreFloor = 0.6
)

// SplitText splits a document into word-aligned chunks of roughly size
// characters, each reopening with roughly overlap characters of its
// predecessor. Words longer than size become chunks of their own.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var cur []string
	curLen := 0
	for _, w := range words {
		add := len(w)
		if curLen > 0 {
			add++ // joining space
		}
		if curLen+add > size && curLen > 0 {
			chunks = append(chunks, strings.Join(cur, " "))
			cur = overlapTail(cur, overlap)
			curLen = len(strings.Join(cur, " "))
			if curLen > 0 {
				add = len(w) + 1
			} else {
				add = len(w)
			}
		}
		cur = append(cur, w)
		curLen += add
	}
	if len(cur) > 0 {
		chunks = append(chunks, strings.Join(cur, " "))
	}
	return chunks
}

// overlapTail returns the trailing words of a chunk whose joined length stays
// within the overlap budget.
func overlapTail(words []string, overlap int) []string {
	if overlap == 0 {
		return nil
	}
	length := 0
	i := len(words)
	for i > 0 {
		add := len(words[i-1])
		if length > 0 {
			add++
		}
		if length+add > overlap {
			break
		}
		length += add
		i--
	}
	return append([]string(nil), words[i:]...)
}

// index is the on-disk shape of one chat's vector store.
type index struct {
	Chunks  []string    `json:"chunks"`
	Vectors [][]float32 `json:"vectors"`
}

// Store manages one index file per chat under a single directory.
type Store struct {
	dir      string
	embedder embedding.Embedder
}

// NewStore builds a store rooted at dir, creating it if needed.
func NewStore(dir string, embedder embedding.Embedder) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create indexes dir: %w", err)
	}
	return &Store{dir: dir, embedder: embedder}, nil
}

func (s *Store) path(chatID string) string {
	return filepath.Join(s.dir, chatID+".index")
}

// Has reports whether a chat has an index on disk.
func (s *Store) Has(chatID string) bool {
	_, err := os.Stat(s.path(chatID))
	return err == nil
}

// Build chunks the knowledge base, embeds every chunk, and writes the chat's
// index file, replacing any previous one.
func (s *Store) Build(ctx context.Context, chatID, knowledgeBase string) error {
	chunks := SplitText(knowledgeBase, DefaultChunkSize, DefaultChunkOverlap)
	if len(chunks) == 0 {
		return &routing.ValidationError{Reason: "knowledge base is empty"}
	}

	vectors, err := s.embedder.BatchEmbed(ctx, chunks)
	if err != nil {
		return &routing.ExternalDependencyError{Dependency: "embedding", Err: err}
	}
	if len(vectors) != len(chunks) {
		return &routing.ExternalDependencyError{
			Dependency: "embedding",
			Err:        fmt.Errorf("embedded %d of %d chunks", len(vectors), len(chunks)),
		}
	}

	data, err := json.Marshal(index{Chunks: chunks, Vectors: vectors})
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := os.WriteFile(s.path(chatID), data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	log.WithFields(log.Fields{"chat_id": chatID, "chunks": len(chunks)}).Info("Knowledge index created")
	return nil
}

// Search returns the retrieval context for a query: the topK most similar
// chunks at or above floor, joined with spaces in similarity order. A chat
// without an index yields the empty context.
func (s *Store) Search(ctx context.Context, chatID, query string, topK int, floor float64) (string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	data, err := os.ReadFile(s.path(chatID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read index: %w", err)
	}
	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		return "", fmt.Errorf("parse index %s: %w", s.path(chatID), err)
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return "", &routing.ExternalDependencyError{Dependency: "embedding", Err: err}
	}

	type scored struct {
		chunk string
		score float64
	}
	matches := make([]scored, 0, len(idx.Chunks))
	for i, chunk := range idx.Chunks {
		if i >= len(idx.Vectors) {
			break
		}
		score := embedding.CosineSimilarity(queryVec, idx.Vectors[i])
		if score >= floor {
			matches = append(matches, scored{chunk: chunk, score: score})
		}
	}
	sort.SliceStable(matches, func(a, b int) bool { return matches[a].score > matches[b].score })
	if len(matches) > topK {
		matches = matches[:topK]
	}

	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.chunk
	}
	return strings.Join(parts, " "), nil
}

// SystemPrompt renders the chat endpoint's system message around the
// retrieved context.
func SystemPrompt(retrievedContext string) string {
	return "You are a helpful chatbot assistant that answers user queries from a knowledge base. " +
		"You will be given relevant context along with the user query; the context is the most relevant data " +
		"found in the knowledge base and it may be empty. You will also receive the previous few messages in " +
		"the chat history. Use the context, the history, and your own reasoning to form an answer, but only " +
		"use the data provided. If the query is unclear or cannot be answered from the given context, say so " +
		"or ask for clarification instead of making up an answer. Do not reveal your underlying implementation; " +
		"prefer saying you don't have that information over mentioning your context.\n\n" +
		"Context:\n```\n" + retrievedContext + "\n```"
}
