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

	"github.com/AleutianAI/ClaimsGuardian/services/claims"
	"github.com/AleutianAI/ClaimsGuardian/services/validation"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var validateTracer = otel.Tracer("claimsguardian.orchestrator.handlers")

// validationErrorDetail is one field-level rejection in a 422 response.
type validationErrorDetail struct {
	Field  string `json:"field"`
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
}

// HandleValidateClaim runs a claim through the validation pipeline.
//
// POST /v1/claims/validate
//
// Responses:
//   - 200 with the ValidationResult
//   - 400 when the body is not valid JSON
//   - 422 when the claim fails structural validation
//   - 500 when every agent failed
func HandleValidateClaim(pipeline *validation.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := validateTracer.Start(c.Request.Context(), "HandleValidateClaim")
		defer span.End()

		var claim claims.Claim
		if err := c.BindJSON(&claim); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the claim request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		if err := claim.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Warn("Claim failed structural validation", "claim_id", claim.ClaimID, "error", err)
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "claim failed validation",
				"details": validationDetails(err),
			})
			return
		}

		result, err := pipeline.Validate(ctx, &claim)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if errors.Is(err, validation.ErrAllAgentsFailed) {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "all validation agents failed"})
				return
			}
			slog.Error("Pipeline.Validate failed", "claim_id", claim.ClaimID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// validationDetails flattens validator errors into field-level details.
func validationDetails(err error) []validationErrorDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []validationErrorDetail{{Reason: err.Error()}}
	}
	details := make([]validationErrorDetail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, validationErrorDetail{
			Field:  fe.Namespace(),
			Rule:   fe.Tag(),
			Reason: fe.Error(),
		})
	}
	return details
}

// HandleStats reports pipeline activity since startup.
//
// GET /v1/stats
func HandleStats(pipeline *validation.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, pipeline.Stats())
	}
}
