// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/traylinx/switchroute/internal/config"
	"github.com/traylinx/switchroute/internal/routing"
)

const gatewayPath = "/v1/chat/completions"

func completionBody(extra string) string {
	models := `"models":{"strong":{"model":"test/strong-model"},"weak":{"model":"test/weak-model"}}`
	return fmt.Sprintf(`{"model":"placeholder","messages":[{"role":"user","content":"Hey"}],%s%s}`, models, extra)
}

func TestGatewayRoutesByDifficulty(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.do(http.MethodPost, gatewayPath, completionBody(""), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := rec.Body.Bytes()
	assert.Equal(t, "chatcmpl-test", gjson.GetBytes(body, "id").String())
	assert.Equal(t, "weak", gjson.GetBytes(body, "routing_decision.chosen_tier").String())
	assert.Equal(t, "difficulty", gjson.GetBytes(body, "routing_decision.basis").String())
	assert.True(t, gjson.GetBytes(body, "metadata").Exists())
	assert.Equal(t, []string{"weak-model"}, f.backend.calls)
}

func TestGatewayOptimizationMetric(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.do(http.MethodPost, gatewayPath, completionBody(`,"optimization_metric":"performance"`), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "strong", gjson.GetBytes(rec.Body.Bytes(), "routing_decision.chosen_tier").String())
	assert.Equal(t, []string{"strong-model"}, f.backend.calls)
}

func TestGatewaySemanticRoutes(t *testing.T) {
	f := newFixture(t, nil, nil)

	// The null embedder maps every text to the same vector, so the single
	// route matches with similarity 1.
	semantics := `,"semantics":[{"name":"greeting","model_type":"weak","utterances":["Hi","Hello"]}]`
	rec := f.do(http.MethodPost, gatewayPath, completionBody(semantics), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := rec.Body.Bytes()
	assert.Equal(t, "semantic:greeting", gjson.GetBytes(body, "routing_decision.basis").String())
	assert.Equal(t, "greeting", gjson.GetBytes(body, "routing_decision.predicted_semantic").String())
}

func TestGatewayAvailabilityFallback(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.backend.fail = map[string]error{
		"weak-model": &routing.UpstreamError{Backend: "weak-model", StatusCode: 503, Err: errors.New("down")},
	}

	rec := f.do(http.MethodPost, gatewayPath, completionBody(`,"optimization_metric":"availability"`), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := rec.Body.Bytes()
	assert.Equal(t, []string{"weak-model", "strong-model"}, f.backend.calls)
	assert.Equal(t, "strong", gjson.GetBytes(body, "routing_decision.chosen_tier").String())
	assert.Equal(t, routing.BasisAvailabilityFallback, gjson.GetBytes(body, "routing_decision.basis").String())
	assert.Equal(t, "strong-model", gjson.GetBytes(body, "model").String())
}

func TestGatewayUpstreamFailure(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.backend.fail = map[string]error{
		"weak-model": &routing.UpstreamError{Backend: "weak-model", StatusCode: 500, Err: errors.New("boom")},
	}

	rec := f.do(http.MethodPost, gatewayPath, completionBody(""), nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "upstream_error", gjson.GetBytes(rec.Body.Bytes(), "error.type").String())
}

func TestGatewayDeadlineExceeded(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) {
		cfg.RequestTimeoutSeconds = 1
	}, nil)
	f.backend.block = true

	rec := f.do(http.MethodPost, gatewayPath, completionBody(""), nil)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code, rec.Body.String())
	assert.Equal(t, "timeout", gjson.GetBytes(rec.Body.Bytes(), "error.type").String())
	assert.Equal(t, []string{"weak-model"}, f.backend.calls)
}

func TestGatewayExtensionFieldsStripped(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.do(http.MethodPost, gatewayPath, completionBody(`,"optimization_metric":"cost"`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	// The fake backend echoes nothing from the request, but the decision must
	// reflect the stripped metric.
	assert.Equal(t, "cost", gjson.GetBytes(rec.Body.Bytes(), "routing_decision.optimization_target").String())
}

func TestGatewayValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"messages":`},
		{"missing messages", `{"models":{"strong":{"model":"a"},"weak":{"model":"b"}}}`},
		{"empty messages", `{"messages":[],"models":{"strong":{"model":"a"},"weak":{"model":"b"}}}`},
		{"missing models", `{"messages":[{"role":"user","content":"Hey"}]}`},
		{"missing weak", `{"messages":[{"role":"user","content":"Hey"}],"models":{"strong":{"model":"a"}}}`},
		{"identical pair", `{"messages":[{"role":"user","content":"Hey"}],"models":{"strong":{"model":"same"},"weak":{"model":"same"}}}`},
		{"unknown metric", completionBody(`,"optimization_metric":"speed"`)},
		{"duplicate routes", completionBody(`,"semantics":[{"name":"a","model_type":"weak","utterances":["x"]},{"name":"a","model_type":"strong","utterances":["y"]}]`)},
		{"bad route tier", completionBody(`,"semantics":[{"name":"a","model_type":"medium","utterances":["x"]}]`)},
		{"route without utterances", completionBody(`,"semantics":[{"name":"a","model_type":"weak","utterances":[]}]`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, nil)
			rec := f.do(http.MethodPost, gatewayPath, tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Empty(t, f.backend.calls, "no backend call on validation failure")
		})
	}
}

func TestGatewayDefaultModelsOptIn(t *testing.T) {
	body := `{"messages":[{"role":"user","content":"Hey"}]}`

	// Without opt-in, missing models is a validation error even when defaults
	// exist.
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Models.Strong.Name = "test/strong-model"
		cfg.Models.Weak.Name = "test/weak-model"
	}, nil)
	rec := f.do(http.MethodPost, gatewayPath, body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f = newFixture(t, func(cfg *config.Config) {
		cfg.Models.UseDefaults = true
		cfg.Models.Strong.Name = "test/strong-model"
		cfg.Models.Weak.Name = "test/weak-model"
	}, nil)
	rec = f.do(http.MethodPost, gatewayPath, body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"weak-model"}, f.backend.calls)
}

func TestGatewayRequestIDHeader(t *testing.T) {
	f := newFixture(t, nil, nil)
	rec := f.do(http.MethodPost, gatewayPath, completionBody(""), map[string]string{"X-Request-ID": "fixed-id"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fixed-id", rec.Header().Get("X-Request-ID"))
}
