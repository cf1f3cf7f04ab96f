// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api exposes the HTTP surface: the OpenAI-compatible routing gateway,
// the persistent chat endpoints, and the management API.
package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/traylinx/switchroute/internal/config"
	"github.com/traylinx/switchroute/internal/driver"
	"github.com/traylinx/switchroute/internal/knowledge"
	"github.com/traylinx/switchroute/internal/model"
	"github.com/traylinx/switchroute/internal/provider"
	"github.com/traylinx/switchroute/internal/routing/semantic"
	"github.com/traylinx/switchroute/internal/store"
)

// Server wires the HTTP layer to the completion driver and its collaborators.
type Server struct {
	cfg       *config.Config
	driver    *driver.Driver
	registry  *provider.Registry
	chats     *store.Store     // nil disables the chat endpoints
	knowledge *knowledge.Store // nil disables retrieval
	routes    *semantic.RouteSource

	// modelMu guards the default pair, which the management API can swap at
	// runtime.
	modelMu sync.RWMutex
	models  config.ModelDefaults
}

// NewServer builds the server. chats and kb may be nil; the corresponding
// endpoints then answer 503.
func NewServer(cfg *config.Config, d *driver.Driver, registry *provider.Registry, chats *store.Store, kb *knowledge.Store, routes *semantic.RouteSource) *Server {
	return &Server{
		cfg:       cfg,
		driver:    d,
		registry:  registry,
		chats:     chats,
		knowledge: kb,
		routes:    routes,
		models:    cfg.Models,
	}
}

// Handler builds the gin engine with all routes registered.
func (s *Server) Handler() *gin.Engine {
	if !s.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), requestIDMiddleware(), requestLogMiddleware())

	engine.GET("/health", s.handleHealth)

	v1 := engine.Group("/v1")
	{
		v1.POST("/chat/completions", s.handleChatCompletions)
		v1.POST("/chats", s.handleCreateChat)
		v1.GET("/chats", s.handleListChats)
		v1.GET("/chats/:id", s.handleGetChat)
		v1.POST("/chats/:id/messages", s.handleChatTurn)
	}

	mgmt := engine.Group("/v0/management", s.requireManagementKey())
	{
		mgmt.GET("/models", s.handleGetModels)
		mgmt.PUT("/models", s.handleUpdateModels)
	}

	return engine
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

// RequestTimeout returns the per-request deadline.
func (s *Server) RequestTimeout() time.Duration {
	return time.Duration(s.cfg.RequestTimeoutSeconds) * time.Second
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// defaultPair materializes the configured default pair, or nil when the
// defaults are incomplete.
func (s *Server) defaultPair() *model.Pair {
	s.modelMu.RLock()
	defaults := s.models
	s.modelMu.RUnlock()

	if defaults.Strong.Name == "" || defaults.Weak.Name == "" {
		return nil
	}
	pair, err := model.NewPair(s.descriptorFromConfig(defaults.Strong), s.descriptorFromConfig(defaults.Weak))
	if err != nil {
		return nil
	}
	return &pair
}

func (s *Server) descriptorFromConfig(mc config.ModelConfig) model.Descriptor {
	name := mc.Name
	prefix := mc.Provider
	if prefix == "" {
		prefix, name = model.SplitRef(mc.Name, s.registry.Known)
	}
	return model.Descriptor{
		Name:                name,
		Provider:            prefix,
		BaseURL:             mc.BaseURL,
		Credential:          mc.APIKey,
		SimulatedThroughput: mc.SimulatedThroughput,
	}
}
