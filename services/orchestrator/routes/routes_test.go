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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AleutianAI/ClaimsGuardian/services/agents"
	"github.com/AleutianAI/ClaimsGuardian/services/codestore"
	"github.com/AleutianAI/ClaimsGuardian/services/validation"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() (*gin.Engine, codestore.Store) {
	gin.SetMode(gin.TestMode)
	store := codestore.NewMemoryStore(codestore.Ruleset{})
	pipeline := validation.NewPipeline(store, agents.Config{})
	router := gin.New()
	// No conversation service: the ask endpoint must not be mounted.
	SetupRoutes(router, pipeline, nil, store)
	return router, store
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSetupRoutes(t *testing.T) {
	router, _ := newTestRouter()

	t.Run("health is mounted", func(t *testing.T) {
		w := get(router, "/health")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "rules_version")
	})

	t.Run("metrics are mounted", func(t *testing.T) {
		w := get(router, "/metrics")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("stats are mounted", func(t *testing.T) {
		w := get(router, "/v1/stats")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "claims_validated")
	})

	t.Run("validate is mounted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/claims/validate", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		// An empty claim is a structural defect, not a routing miss.
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("ask endpoint absent without a conversation service", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/claims/CLM-1/ask", strings.NewReader(`{"question":"hi"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}
