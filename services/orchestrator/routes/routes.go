// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/AleutianAI/ClaimsGuardian/services/codestore"
	"github.com/AleutianAI/ClaimsGuardian/services/conversation"
	"github.com/AleutianAI/ClaimsGuardian/services/orchestrator/handlers"
	"github.com/AleutianAI/ClaimsGuardian/services/validation"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes registers all HTTP routes. conversationSvc may be nil when
// no LLM backend is configured; the ask endpoint is then not mounted.
func SetupRoutes(router *gin.Engine, pipeline *validation.Pipeline,
	conversationSvc *conversation.Service, store codestore.Store) {

	router.GET("/health", handlers.HealthCheck(store))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		claimsGroup := v1.Group("/claims")
		{
			claimsGroup.POST("/validate", handlers.HandleValidateClaim(pipeline))
			if conversationSvc != nil {
				claimsGroup.POST("/:claimId/ask", handlers.HandleAskClaim(conversationSvc))
			}
		}
		v1.GET("/stats", handlers.HandleStats(pipeline))
	}
}
