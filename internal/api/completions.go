// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/traylinx/switchroute/internal/driver"
	"github.com/traylinx/switchroute/internal/model"
	"github.com/traylinx/switchroute/internal/routing"
)

// extensionKeys are the routing extension fields stripped from the payload
// before it is forwarded upstream.
var extensionKeys = []string{"models", "optimization_metric", "semantics"}

// requestModel is one entry of the request's models object.
type requestModel struct {
	Model               string  `json:"model"`
	APIKey              string  `json:"api_key"`
	APIBase             string  `json:"api_base"`
	SimulatedThroughput float64 `json:"simulated_throughput"`
}

// handleChatCompletions is the OpenAI-compatible routing gateway. The inbound
// body is the usual chat-completion payload plus the extension bag; the
// response is the upstream body augmented with routing_decision and metadata.
func (s *Server) handleChatCompletions(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, routing.Validationf("unreadable request body: %v", err))
		return
	}
	if !gjson.ValidBytes(body) {
		writeError(c, routing.Validationf("request body is not valid JSON"))
		return
	}

	input, err := s.parseCompletionRequest(body)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.RequestTimeout())
	defer cancel()

	result, err := s.driver.Complete(ctx, *input)
	if err != nil {
		writeError(c, err)
		return
	}

	requestLogger(c).WithFields(map[string]interface{}{
		"tier":  result.Decision.ChosenTier,
		"model": result.Decision.ChosenModelName,
		"basis": result.Decision.Basis,
	}).Info("Completion routed")
	c.Data(http.StatusOK, "application/json", result.Payload)
}

// parseCompletionRequest validates the extension bag and builds the driver
// input. Every rejection is a ValidationError.
func (s *Server) parseCompletionRequest(body []byte) (*driver.Input, error) {
	messages := gjson.GetBytes(body, "messages")
	if !messages.Exists() || !messages.IsArray() || len(messages.Array()) == 0 {
		return nil, routing.Validationf("messages is required and must be a non-empty array")
	}
	query := lastMessageContent(messages)
	if strings.TrimSpace(query) == "" {
		return nil, routing.Validationf("last message has no content")
	}

	pair, err := s.parsePair(body)
	if err != nil {
		return nil, err
	}

	target, err := routing.ParseMetric(gjson.GetBytes(body, "optimization_metric").String())
	if err != nil {
		return nil, err
	}

	routes, err := parseSemantics(body)
	if err != nil {
		return nil, err
	}

	passthrough := body
	for _, key := range extensionKeys {
		if passthrough, err = sjson.DeleteBytes(passthrough, key); err != nil {
			return nil, routing.Validationf("malformed request body: %v", err)
		}
	}

	return &driver.Input{
		Payload: passthrough,
		Query:   query,
		Pair:    *pair,
		Routes:  routes,
		Target:  target,
	}, nil
}

// parsePair reads the models object, falling back to the configured defaults
// only when explicitly enabled.
func (s *Server) parsePair(body []byte) (*model.Pair, error) {
	modelsField := gjson.GetBytes(body, "models")
	if !modelsField.Exists() {
		if s.cfg.Models.UseDefaults {
			if pair := s.defaultPair(); pair != nil {
				return pair, nil
			}
		}
		return nil, routing.Validationf("models is required")
	}

	var parsed struct {
		Strong *requestModel `json:"strong"`
		Weak   *requestModel `json:"weak"`
	}
	if err := json.Unmarshal([]byte(modelsField.Raw), &parsed); err != nil {
		return nil, routing.Validationf("malformed models object: %v", err)
	}
	if parsed.Strong == nil || parsed.Strong.Model == "" {
		return nil, routing.Validationf("models.strong.model is required")
	}
	if parsed.Weak == nil || parsed.Weak.Model == "" {
		return nil, routing.Validationf("models.weak.model is required")
	}

	pair, err := model.NewPair(s.descriptorFromRequest(*parsed.Strong), s.descriptorFromRequest(*parsed.Weak))
	if err != nil {
		return nil, &routing.ValidationError{Reason: err.Error()}
	}
	return &pair, nil
}

func (s *Server) descriptorFromRequest(rm requestModel) model.Descriptor {
	prefix, name := model.SplitRef(rm.Model, s.registry.Known)
	return model.Descriptor{
		Name:                name,
		Provider:            prefix,
		BaseURL:             rm.APIBase,
		Credential:          rm.APIKey,
		SimulatedThroughput: rm.SimulatedThroughput,
	}
}

func parseSemantics(body []byte) ([]routing.SemanticRoute, error) {
	field := gjson.GetBytes(body, "semantics")
	if !field.Exists() {
		return nil, nil
	}
	if !field.IsArray() {
		return nil, routing.Validationf("semantics must be an array of routes")
	}

	var routes []routing.SemanticRoute
	if err := json.Unmarshal([]byte(field.Raw), &routes); err != nil {
		return nil, routing.Validationf("malformed semantics: %v", err)
	}
	if err := routing.ValidateRoutes(routes); err != nil {
		return nil, err
	}
	return routes, nil
}

// lastMessageContent returns the content of the final message; the routing
// classifiers only ever see this.
func lastMessageContent(messages gjson.Result) string {
	arr := messages.Array()
	return arr[len(arr)-1].Get("content").String()
}
