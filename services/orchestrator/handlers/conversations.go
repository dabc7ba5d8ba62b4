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

	"github.com/gin-gonic/gin"

	"github.com/harmonialabs/csagent/services/conversation"
	"github.com/harmonialabs/csagent/services/orchestrator/datatypes"
)

// HandleConversationCreate opens a conversation.
func HandleConversationCreate(store *conversation.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateConversationRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		conv, err := store.Create(c.Request.Context(), req.CustomerID)
		if err != nil {
			slog.Error("failed to create conversation", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusCreated, conv)
	}
}

// HandleConversationGet returns one conversation.
func HandleConversationGet(store *conversation.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		conv, err := store.Get(c.Request.Context(), id)
		if errors.Is(err, conversation.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		if err != nil {
			slog.Error("failed to load conversation", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, conv)
	}
}

// HandleConversationClose transitions a conversation to CLOSED.
func HandleConversationClose(store *conversation.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		conv, err := store.Close(c.Request.Context(), id)
		if errors.Is(err, conversation.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		if err != nil {
			slog.Error("failed to close conversation", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, conv)
	}
}

// HandleMessageAdd appends a message to an open conversation.
func HandleMessageAdd(store *conversation.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		var req datatypes.AddMessageRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		msg, err := store.AddMessage(c.Request.Context(), id,
			conversation.Sender(req.Sender), req.Content)
		switch {
		case errors.Is(err, conversation.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		case errors.Is(err, conversation.ErrConversationClosed):
			c.JSON(http.StatusConflict, gin.H{"error": "conversation is closed"})
		case errors.Is(err, conversation.ErrInvalidSender):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sender"})
		case err != nil:
			slog.Error("failed to add message", "conversation_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		default:
			c.JSON(http.StatusCreated, msg)
		}
	}
}

// HandleMessageList returns a conversation's messages oldest first.
func HandleMessageList(store *conversation.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}

		messages, err := store.ListMessages(c.Request.Context(), id)
		if errors.Is(err, conversation.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		if err != nil {
			slog.Error("failed to list messages", "conversation_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if messages == nil {
			messages = []conversation.Message{}
		}
		c.JSON(http.StatusOK, messages)
	}
}
