// Copyright (C) 2026 Harmonia Labs (oss@harmonialabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harmonialabs/csagent/services/agent"
	"github.com/harmonialabs/csagent/services/conversation"
	"github.com/harmonialabs/csagent/services/knowledge"
	"github.com/harmonialabs/csagent/services/orchestrator/handlers"
)

// SetupRoutes registers every endpoint on the router.
func SetupRoutes(router *gin.Engine, pipeline *agent.Pipeline,
	knowledgeStore *knowledge.Store, conversationStore *conversation.Store) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/agent/chat", handlers.HandleAgentChat(pipeline))

		kb := api.Group("/knowledge")
		{
			kb.POST("", handlers.HandleKnowledgeCreate(knowledgeStore))
			kb.GET("", handlers.HandleKnowledgeList(knowledgeStore))
			kb.GET("/:id", handlers.HandleKnowledgeGet(knowledgeStore))
			kb.PUT("/:id", handlers.HandleKnowledgeUpdate(knowledgeStore))
			kb.DELETE("/:id", handlers.HandleKnowledgeDeactivate(knowledgeStore))
		}

		conv := api.Group("/conversations")
		{
			conv.POST("", handlers.HandleConversationCreate(conversationStore))
			conv.GET("/:id", handlers.HandleConversationGet(conversationStore))
			conv.POST("/:id/close", handlers.HandleConversationClose(conversationStore))
			conv.POST("/:id/messages", handlers.HandleMessageAdd(conversationStore))
			conv.GET("/:id/messages", handlers.HandleMessageList(conversationStore))
		}
	}
}
