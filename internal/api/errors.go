// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/traylinx/switchroute/internal/routing"
)

// writeError maps the routing error taxonomy onto HTTP status codes:
// validation 400, dependency and upstream failures 502, deadline 504,
// everything else 500.
func writeError(c *gin.Context, err error) {
	var (
		vErr   *routing.ValidationError
		depErr *routing.ExternalDependencyError
		upErr  *routing.UpstreamError
	)

	switch {
	case errors.As(err, &vErr):
		errorJSON(c, http.StatusBadRequest, "invalid_request_error", vErr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		errorJSON(c, http.StatusGatewayTimeout, "timeout", "request deadline exceeded")
	case errors.Is(err, context.Canceled):
		// The client went away; the status is best-effort.
		errorJSON(c, http.StatusBadRequest, "cancelled", "request cancelled")
	case errors.As(err, &upErr):
		errorJSON(c, http.StatusBadGateway, "upstream_error", upErr.Error())
	case errors.As(err, &depErr):
		errorJSON(c, http.StatusBadGateway, "dependency_error", depErr.Error())
	default:
		requestLogger(c).WithError(err).Error("Internal error")
		errorJSON(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func errorJSON(c *gin.Context, status int, errType, message string) {
	c.JSON(status, gin.H{"error": gin.H{"message": message, "type": errType}})
}
