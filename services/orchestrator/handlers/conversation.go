// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/ClaimsGuardian/services/conversation"
	"github.com/AleutianAI/ClaimsGuardian/services/llm"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"
)

// AskRequest is one follow-up question about a validated claim. History
// carries earlier turns of the same conversation, oldest first.
type AskRequest struct {
	Question string        `json:"question"`
	History  []llm.Message `json:"history"`
}

// HandleAskClaim answers a question about a previously validated claim.
//
// POST /v1/claims/:claimId/ask
//
// Responses:
//   - 200 with the answer
//   - 400 when the body is invalid or the question empty
//   - 404 when the claim id has never been validated
//   - 502 when the LLM backend fails
func HandleAskClaim(svc *conversation.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := validateTracer.Start(c.Request.Context(), "HandleAskClaim")
		defer span.End()

		claimID := c.Param("claimId")

		var req AskRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the ask request", "claim_id", claimID, "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.Question == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
			return
		}

		answer, err := svc.Ask(ctx, claimID, req.Question, req.History)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if errors.Is(err, conversation.ErrContextNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "claim has not been validated"})
				return
			}
			slog.Error("Conversation.Ask failed", "claim_id", claimID, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to generate an answer"})
			return
		}
		c.JSON(http.StatusOK, answer)
	}
}
