// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/traylinx/switchroute/internal/driver"
	"github.com/traylinx/switchroute/internal/knowledge"
	"github.com/traylinx/switchroute/internal/routing"
	"github.com/traylinx/switchroute/internal/store"
)

// recentHistoryDepth is how many prior turns the chat endpoint replays to the
// backend.
const recentHistoryDepth = 4

type createChatRequest struct {
	Title         string `json:"title"`
	KnowledgeBase string `json:"knowledge_base"`
}

type chatTurnRequest struct {
	Content            string                  `json:"content"`
	OptimizationMetric string                  `json:"optimization_metric"`
	Semantics          []routing.SemanticRoute `json:"semantics"`
}

// handleCreateChat creates a chat and, when a knowledge base is supplied,
// builds its retrieval index before answering.
func (s *Server) handleCreateChat(c *gin.Context) {
	if s.chats == nil {
		errorJSON(c, http.StatusServiceUnavailable, "unavailable", "chat store is not configured")
		return
	}

	var req createChatRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		writeError(c, routing.Validationf("malformed request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(c, routing.Validationf("title is required"))
		return
	}

	chat, err := s.chats.CreateChat(c.Request.Context(), req.Title)
	if err != nil {
		writeError(c, err)
		return
	}

	if strings.TrimSpace(req.KnowledgeBase) != "" {
		if s.knowledge == nil {
			errorJSON(c, http.StatusServiceUnavailable, "unavailable", "knowledge indexes are not configured")
			return
		}
		if err := s.knowledge.Build(c.Request.Context(), chat.ID, req.KnowledgeBase); err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusCreated, chat)
}

func (s *Server) handleListChats(c *gin.Context) {
	if s.chats == nil {
		errorJSON(c, http.StatusServiceUnavailable, "unavailable", "chat store is not configured")
		return
	}
	chats, err := s.chats.ListChats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (s *Server) handleGetChat(c *gin.Context) {
	if s.chats == nil {
		errorJSON(c, http.StatusServiceUnavailable, "unavailable", "chat store is not configured")
		return
	}

	chat, err := s.chats.GetChat(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		errorJSON(c, http.StatusNotFound, "not_found", "chat not found")
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	messages, err := s.chats.Messages(c.Request.Context(), chat.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": chat, "messages": messages})
}

// handleChatTurn runs one retrieval-augmented turn: gather context and
// history, route the completion, then persist both sides of the exchange.
func (s *Server) handleChatTurn(c *gin.Context) {
	if s.chats == nil {
		errorJSON(c, http.StatusServiceUnavailable, "unavailable", "chat store is not configured")
		return
	}

	var req chatTurnRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		writeError(c, routing.Validationf("malformed request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(c, routing.Validationf("content is required"))
		return
	}

	pair := s.defaultPair()
	if pair == nil {
		writeError(c, routing.Validationf("no default model pair is configured"))
		return
	}

	target, err := routing.ParseMetric(req.OptimizationMetric)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := routing.ValidateRoutes(req.Semantics); err != nil {
		writeError(c, err)
		return
	}
	// Per-turn routes overlay the server defaults by name.
	turnRoutes := routing.MergeRoutes(s.routes.Routes(), req.Semantics)

	chat, err := s.chats.GetChat(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		errorJSON(c, http.StatusNotFound, "not_found", "chat not found")
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.RequestTimeout())
	defer cancel()

	payload, err := s.buildTurnPayload(ctx, chat.ID, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := s.driver.Complete(ctx, driver.Input{
		Payload: payload,
		Query:   req.Content,
		Pair:    *pair,
		Routes:  turnRoutes,
		Target:  target,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	// A cancelled request persists nothing.
	if c.Request.Context().Err() != nil {
		writeError(c, c.Request.Context().Err())
		return
	}

	userMsg, aiMsg, err := s.persistTurn(c.Request.Context(), chat.ID, req.Content, result)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_message": userMsg, "ai_message": aiMsg})
}

// buildTurnPayload assembles the upstream message list: the retrieval-aware
// system prompt, the recent history, then the new user turn.
func (s *Server) buildTurnPayload(ctx context.Context, chatID, query string) ([]byte, error) {
	retrieved := ""
	if s.knowledge != nil {
		topK := s.cfg.Knowledge.TopK
		if topK <= 0 {
			topK = knowledge.DefaultTopK
		}
		floor := s.cfg.Knowledge.ScoreFloor
		if floor <= 0 {
			floor = knowledge.DefaultScoreFloor
		}
		var err error
		retrieved, err = s.knowledge.Search(ctx, chatID, query, topK, floor)
		if err != nil {
			return nil, err
		}
	}

	history, err := s.chats.RecentMessages(ctx, chatID, recentHistoryDepth)
	if err != nil {
		return nil, err
	}

	type wireMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	messages := make([]wireMessage, 0, len(history)+2)
	messages = append(messages, wireMessage{Role: store.RoleSystem, Content: knowledge.SystemPrompt(retrieved)})
	for _, m := range history {
		messages = append(messages, wireMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, wireMessage{Role: store.RoleUser, Content: query})

	return json.Marshal(map[string]interface{}{"messages": messages})
}

// persistTurn writes the user message annotated with the routing decision and
// the assistant message annotated with the served model.
func (s *Server) persistTurn(ctx context.Context, chatID, query string, result *driver.Result) (*store.Message, *store.Message, error) {
	decision := map[string]interface{}{
		"chosen_tier":       string(result.Decision.ChosenTier),
		"chosen_model_name": result.Decision.ChosenModelName,
		"basis":             result.Decision.Basis,
	}
	userMsg, err := s.chats.AddMessage(ctx, chatID, store.AddMessageParams{
		Role:              store.RoleUser,
		Content:           query,
		PredictedSemantic: result.Decision.PredictedSemantic,
		Metadata:          map[string]interface{}{"routing_decision": decision},
	})
	if err != nil {
		return nil, nil, err
	}

	var completion struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(result.Payload, &completion); err != nil {
		return nil, nil, err
	}
	content := ""
	if len(completion.Choices) > 0 {
		content = completion.Choices[0].Message.Content
	}
	modelUsed := completion.Model

	aiMsg, err := s.chats.AddMessage(ctx, chatID, store.AddMessageParams{
		Role:      store.RoleAssistant,
		Content:   content,
		ModelUsed: &modelUsed,
		Metadata:  map[string]interface{}{"routing_decision": decision},
	})
	if err != nil {
		return nil, nil, err
	}
	return userMsg, aiMsg, nil
}
