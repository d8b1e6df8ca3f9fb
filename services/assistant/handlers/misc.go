// Copyright (C) 2025 Campusmind (maintainers@campusmind.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP endpoints of the assistant service.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusmind/campusmind/services/assistant/datatypes"
)

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListModels returns the model identifiers a request may select.
func ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models":  datatypes.SupportedModels,
		"default": datatypes.DefaultModel,
	})
}
