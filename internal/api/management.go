// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/traylinx/switchroute/internal/routing"
)

// handleGetModels reports the current default model pair.
func (s *Server) handleGetModels(c *gin.Context) {
	s.modelMu.RLock()
	defer s.modelMu.RUnlock()
	c.JSON(http.StatusOK, gin.H{
		"strong_model_name": s.models.Strong.Name,
		"weak_model_name":   s.models.Weak.Name,
	})
}

type updateModelsRequest struct {
	StrongModelName string `json:"strong_model_name"`
	WeakModelName   string `json:"weak_model_name"`
}

// handleUpdateModels swaps the default model pair at runtime. Only the names
// change; base URLs and credentials stay as configured.
func (s *Server) handleUpdateModels(c *gin.Context) {
	var req updateModelsRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		writeError(c, routing.Validationf("malformed request body: %v", err))
		return
	}
	strong := strings.TrimSpace(req.StrongModelName)
	weak := strings.TrimSpace(req.WeakModelName)
	if strong == "" || weak == "" {
		writeError(c, routing.Validationf("strong_model_name and weak_model_name are required"))
		return
	}
	if strong == weak {
		writeError(c, routing.Validationf("strong and weak models must differ"))
		return
	}

	s.modelMu.Lock()
	s.models.Strong.Name = strong
	s.models.Weak.Name = weak
	s.modelMu.Unlock()

	requestLogger(c).WithFields(map[string]interface{}{
		"strong": strong,
		"weak":   weak,
	}).Info("Default models updated")
	c.JSON(http.StatusOK, gin.H{
		"strong_model_name": strong,
		"weak_model_name":   weak,
	})
}
