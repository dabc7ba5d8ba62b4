// Copyright (C) 2026 Harmonia Labs (oss@harmonialabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/harmonialabs/csagent/services/agent"
	"github.com/harmonialabs/csagent/services/llm"
	"github.com/harmonialabs/csagent/services/orchestrator/datatypes"
	"github.com/harmonialabs/csagent/services/orchestrator/middleware"
	"github.com/harmonialabs/csagent/services/orchestrator/observability"
)

var agentTracer = otel.Tracer("csagent.orchestrator.handlers")

// HandleAgentChat answers a customer question via the resolution
// pipeline.
//
// Error mapping: blank question 400, oversize question 400, model
// misconfiguration 500, model call failure 502, anything else 500.
func HandleAgentChat(pipeline *agent.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := agentTracer.Start(c.Request.Context(), "HandleAgentChat")
		defer span.End()

		question := c.Query("question")
		if strings.TrimSpace(question) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "question must not be empty"})
			return
		}
		if len(question) > datatypes.MaxQuestionBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "question is too long"})
			return
		}

		metrics := observability.DefaultMetrics
		defer metrics.TrackActive()()

		start := time.Now()
		answer, err := pipeline.Resolve(ctx, question)
		elapsed := time.Since(start).Seconds()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			metrics.ObserveResolution("error", elapsed)
			slog.Error("answer resolution failed",
				"error", err, "request_id", middleware.GetRequestID(c))

			switch {
			case errors.Is(err, agent.ErrEmptyQuestion):
				c.JSON(http.StatusBadRequest, gin.H{"error": "question must not be empty"})
			case llm.IsConfigurationError(err):
				c.JSON(http.StatusInternalServerError, gin.H{"error": "model backend is misconfigured"})
			case llm.IsGenerationError(err):
				c.JSON(http.StatusBadGateway, gin.H{"error": "model backend is unavailable"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}

		metrics.ObserveResolution(string(answer.Outcome), elapsed)
		if answer.Outcome == agent.OutcomeAnswered {
			metrics.ObserveHits(answer.Hits)
		}

		c.JSON(http.StatusOK, datatypes.ChatResponse{Answer: answer.Text, Hits: answer.Hits})
	}
}
