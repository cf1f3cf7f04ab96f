// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/traylinx/switchroute/internal/routing"
)

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaAdapter speaks Ollama's native /api/chat protocol and translates
// between it and the OpenAI chat-completion shape, so callers see one format
// no matter which backend served the request.
type OllamaAdapter struct {
	client *http.Client
}

// NewOllamaAdapter builds the adapter around the given HTTP client.
func NewOllamaAdapter(client *http.Client) *OllamaAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &OllamaAdapter{client: client}
}

// Prefix implements Adapter.
func (a *OllamaAdapter) Prefix() string { return "ollama" }

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// openaiChatPayload is the subset of the OpenAI request the adapter maps onto
// Ollama's native options.
type openaiChatPayload struct {
	Messages []ollamaMessage `json:"messages"`
	// MaxTokens maps to Ollama's num_predict.
	MaxTokens   int      `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
	TopP        *float64 `json:"top_p"`
	Stop        []string `json:"stop"`
}

// Complete translates the OpenAI payload to /api/chat and the native reply
// back to an OpenAI completion object.
func (a *OllamaAdapter) Complete(ctx context.Context, call Call) (*Response, error) {
	var in openaiChatPayload
	if err := json.Unmarshal(call.Payload, &in); err != nil {
		return nil, fmt.Errorf("parse completion payload: %w", err)
	}

	options := map[string]interface{}{}
	if in.Temperature != nil {
		options["temperature"] = *in.Temperature
	}
	if in.TopP != nil {
		options["top_p"] = *in.TopP
	}
	if in.MaxTokens > 0 {
		options["num_predict"] = in.MaxTokens
	}
	if len(in.Stop) > 0 {
		options["stop"] = in.Stop
	}
	if len(options) == 0 {
		options = nil
	}

	native, err := json.Marshal(ollamaRequest{
		Model:    call.Model,
		Messages: in.Messages,
		Stream:   false,
		Options:  options,
	})
	if err != nil {
		return nil, fmt.Errorf("encode native request: %w", err)
	}

	base := call.BaseURL
	if base == "" {
		base = defaultOllamaBaseURL
	}
	url := strings.TrimRight(base, "/") + "/api/chat"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(native))
	if err != nil {
		return nil, fmt.Errorf("build native request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "switchroute")

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &routing.UpstreamError{Backend: call.Model, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &routing.UpstreamError{Backend: call.Model, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &routing.UpstreamError{
			Backend:    call.Model,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("ollama returned %s: %s", resp.Status, truncate(body, 512)),
		}
	}

	var out ollamaResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &routing.UpstreamError{
			Backend:    call.Model,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode ollama response: %w", err),
		}
	}

	payload, err := json.Marshal(map[string]interface{}{
		"id":      "chatcmpl-" + uuid.NewString(),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   out.Model,
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": out.Message.Content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]interface{}{
			"prompt_tokens":     out.PromptEvalCount,
			"completion_tokens": out.EvalCount,
			"total_tokens":      out.PromptEvalCount + out.EvalCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode completion: %w", err)
	}

	return &Response{Payload: payload, Model: out.Model}, nil
}
