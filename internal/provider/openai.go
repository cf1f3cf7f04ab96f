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
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/traylinx/switchroute/internal/routing"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIAdapter speaks the OpenAI chat-completion wire format. It serves any
// OpenAI-compatible backend (OpenAI itself, vLLM, LM Studio, llama.cpp server)
// by pointing BaseURL at it.
type OpenAIAdapter struct {
	client *http.Client
}

// NewOpenAIAdapter builds the adapter around the given HTTP client.
func NewOpenAIAdapter(client *http.Client) *OpenAIAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &OpenAIAdapter{client: client}
}

// Prefix implements Adapter. The empty prefix makes this the default.
func (a *OpenAIAdapter) Prefix() string { return "openai" }

// Complete posts the payload to {base}/chat/completions with the chosen model
// injected, and returns the body unchanged on success.
func (a *OpenAIAdapter) Complete(ctx context.Context, call Call) (*Response, error) {
	payload, err := sjson.SetBytes(call.Payload, "model", call.Model)
	if err != nil {
		return nil, fmt.Errorf("set model on payload: %w", err)
	}

	base := call.BaseURL
	if base == "" {
		base = defaultOpenAIBaseURL
	}
	url := strings.TrimRight(base, "/") + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "switchroute")
	apiKey := call.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

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
		log.WithFields(log.Fields{
			"model":  call.Model,
			"status": resp.StatusCode,
		}).Warn("Upstream completion failed")
		return nil, &routing.UpstreamError{
			Backend:    call.Model,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("upstream returned %s: %s", resp.Status, truncate(body, 512)),
		}
	}

	return &Response{
		Payload: body,
		Model:   gjson.GetBytes(body, "model").String(),
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
