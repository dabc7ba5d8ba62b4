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
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/harmonialabs/csagent/services/knowledge"
	"github.com/harmonialabs/csagent/services/orchestrator/datatypes"
)

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// HandleKnowledgeCreate creates a knowledge base entry.
func HandleKnowledgeCreate(store *knowledge.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateKnowledgeRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		entry, err := store.Create(c.Request.Context(), req.Question, req.Answer, req.Keywords)
		if err != nil {
			slog.Error("failed to create knowledge entry", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusCreated, entry)
	}
}

// HandleKnowledgeGet returns one active entry.
func HandleKnowledgeGet(store *knowledge.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		entry, err := store.Get(c.Request.Context(), id)
		if errors.Is(err, knowledge.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "knowledge entry not found or inactive"})
			return
		}
		if err != nil {
			slog.Error("failed to load knowledge entry", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

// HandleKnowledgeUpdate partially updates an active entry.
func HandleKnowledgeUpdate(store *knowledge.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		var req datatypes.UpdateKnowledgeRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		entry, err := store.Update(c.Request.Context(), id, knowledge.UpdatePatch{
			Question: req.Question,
			Answer:   req.Answer,
			Keywords: req.Keywords,
		})
		if errors.Is(err, knowledge.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "knowledge entry not found or inactive"})
			return
		}
		if err != nil {
			slog.Error("failed to update knowledge entry", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

// HandleKnowledgeList lists active entries, optionally filtered by the
// "q" parameter.
func HandleKnowledgeList(store *knowledge.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := store.List(c.Request.Context(), c.Query("q"))
		if err != nil {
			slog.Error("failed to list knowledge entries", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if entries == nil {
			entries = []knowledge.Entry{}
		}
		c.JSON(http.StatusOK, entries)
	}
}

// HandleKnowledgeDeactivate soft-deletes an entry.
func HandleKnowledgeDeactivate(store *knowledge.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		err := store.Deactivate(c.Request.Context(), id)
		if errors.Is(err, knowledge.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "knowledge entry not found or already inactive"})
			return
		}
		if err != nil {
			slog.Error("failed to deactivate knowledge entry", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
