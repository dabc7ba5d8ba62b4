// Copyright (C) 2026 Harmonia Labs (oss@harmonialabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonialabs/csagent/services/agent"
	"github.com/harmonialabs/csagent/services/knowledge"
	"github.com/harmonialabs/csagent/services/llm"
)

type stubSearcher struct {
	results map[string][]knowledge.Entry
}

func (s *stubSearcher) SearchActiveTop(ctx context.Context, queryText string, limit int) ([]knowledge.Entry, error) {
	return s.results[queryText], nil
}

type stubLLM struct {
	text string
	err  error
}

func (s *stubLLM) Complete(ctx context.Context, system, user string) (string, error) {
	return s.text, s.err
}

func chatRouter(searcher agent.Searcher, client llm.CompletionClient) *gin.Engine {
	gin.SetMode(gin.TestMode)
	pipeline := agent.NewPipeline(nil, searcher, client, agent.DefaultConfig(), nil)
	router := gin.New()
	router.GET("/api/agent/chat", HandleAgentChat(pipeline))
	return router
}

func doChat(t *testing.T, router *gin.Engine, question string) *httptest.ResponseRecorder {
	t.Helper()
	target := "/api/agent/chat"
	if question != "" {
		target += "?question=" + url.QueryEscape(question)
	}
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// Input Validation Tests
// =============================================================================

func TestHandleAgentChat_MissingQuestion(t *testing.T) {
	router := chatRouter(&stubSearcher{}, &stubLLM{})

	rec := doChat(t, router, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAgentChat_BlankQuestion(t *testing.T) {
	router := chatRouter(&stubSearcher{}, &stubLLM{})

	rec := doChat(t, router, "   ")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAgentChat_OversizeQuestion(t *testing.T) {
	router := chatRouter(&stubSearcher{}, &stubLLM{})

	rec := doChat(t, router, strings.Repeat("あ", 2000))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// Resolution Tests
// =============================================================================

func TestHandleAgentChat_Answered(t *testing.T) {
	searcher := &stubSearcher{results: map[string][]knowledge.Entry{
		"黑胶VIP": {{ID: 1, Answer: "包月15元", Active: true}},
	}}
	router := chatRouter(searcher, &stubLLM{text: "15元哦～"})

	rec := doChat(t, router, "黑胶VIP")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "15元哦～", body["answer"])
	assert.EqualValues(t, 1, body["hits"])
}

func TestHandleAgentChat_Refusal(t *testing.T) {
	router := chatRouter(&stubSearcher{}, &stubLLM{text: "unused"})

	rec := doChat(t, router, "未知问题")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, agent.DefaultRefusalMessage, body["answer"])
	assert.EqualValues(t, 0, body["hits"])
}

// =============================================================================
// Error Mapping Tests
// =============================================================================

func TestHandleAgentChat_ConfigurationErrorIs500(t *testing.T) {
	searcher := &stubSearcher{results: map[string][]knowledge.Entry{
		"q": {{ID: 1, Answer: "a", Active: true}},
	}}
	router := chatRouter(searcher, &stubLLM{err: &llm.ConfigurationError{Reason: "API key is not set"}})

	rec := doChat(t, router, "q")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "API key",
		"configuration details must not leak to clients")
}

func TestHandleAgentChat_GenerationErrorIs502(t *testing.T) {
	searcher := &stubSearcher{results: map[string][]knowledge.Entry{
		"q": {{ID: 1, Answer: "a", Active: true}},
	}}
	router := chatRouter(searcher, &stubLLM{err: &llm.GenerationError{Reason: "status 500"}})

	rec := doChat(t, router, "q")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
