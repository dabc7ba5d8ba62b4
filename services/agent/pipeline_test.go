// Copyright (C) 2026 Harmonia Labs (oss@harmonialabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonialabs/csagent/services/knowledge"
)

// =============================================================================
// Test Doubles
// =============================================================================

// MockLLMClient records completion calls and replays a canned response.
type MockLLMClient struct {
	response   string
	err        error
	calls      int
	lastSystem string
	lastUser   string
}

func (m *MockLLMClient) Complete(ctx context.Context, system, user string) (string, error) {
	m.calls++
	m.lastSystem = system
	m.lastUser = user
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

// stubSearcher serves fixed results per query text and records queries.
type stubSearcher struct {
	results map[string][]knowledge.Entry
	queries []string
	err     error
}

func (s *stubSearcher) SearchActiveTop(ctx context.Context, queryText string, limit int) ([]knowledge.Entry, error) {
	s.queries = append(s.queries, queryText)
	if s.err != nil {
		return nil, s.err
	}
	return s.results[queryText], nil
}

// recordingCache is an in-memory cache.Store that records Set TTLs.
type recordingCache struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newRecordingCache() *recordingCache {
	return &recordingCache{
		values: make(map[string]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (c *recordingCache) Get(ctx context.Context, key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

func (c *recordingCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.values[key] = value
	c.ttls[key] = ttl
}

func knowledgeEntries(answers ...string) []knowledge.Entry {
	entries := make([]knowledge.Entry, 0, len(answers))
	for i, a := range answers {
		entries = append(entries, knowledge.Entry{
			ID:       int64(i + 1),
			Question: "q",
			Answer:   a,
			Active:   true,
		})
	}
	return entries
}

func newTestPipeline(store *recordingCache, searcher *stubSearcher, client *MockLLMClient) *Pipeline {
	return NewPipeline(store, searcher, client, DefaultConfig(), nil)
}

// =============================================================================
// Input Validation Tests
// =============================================================================

func TestResolve_EmptyQuestion(t *testing.T) {
	pipeline := newTestPipeline(newRecordingCache(), &stubSearcher{}, &MockLLMClient{})

	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := pipeline.Resolve(context.Background(), q)
		assert.ErrorIs(t, err, ErrEmptyQuestion, "question %q", q)
	}
}

// =============================================================================
// Cache Path Tests
// =============================================================================

func TestResolve_CacheHitShortCircuits(t *testing.T) {
	store := newRecordingCache()
	store.values[deriveKey("黑胶VIP")] = `{"answer":"cached reply","hits":2}`

	searcher := &stubSearcher{}
	client := &MockLLMClient{response: "should not be used"}
	pipeline := newTestPipeline(store, searcher, client)

	answer, err := pipeline.Resolve(context.Background(), "黑胶VIP")
	require.NoError(t, err)

	assert.Equal(t, "cached reply", answer.Text)
	assert.Equal(t, 2, answer.Hits)
	assert.Equal(t, OutcomeCacheHit, answer.Outcome)
	assert.Empty(t, searcher.queries, "retrieval must not run on a cache hit")
	assert.Zero(t, client.calls, "model must not be called on a cache hit")
}

func TestResolve_TrimmingSharesCacheKey(t *testing.T) {
	store := newRecordingCache()
	store.values[deriveKey("黑胶VIP")] = `{"answer":"cached reply","hits":1}`
	pipeline := newTestPipeline(store, &stubSearcher{}, &MockLLMClient{})

	answer, err := pipeline.Resolve(context.Background(), "  黑胶VIP  ")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCacheHit, answer.Outcome)
}

func TestResolve_UndecodableCacheEntryIsAMiss(t *testing.T) {
	store := newRecordingCache()
	key := deriveKey("黑胶VIP")
	store.values[key] = "{not json"

	searcher := &stubSearcher{results: map[string][]knowledge.Entry{
		"黑胶VIP": knowledgeEntries("包月15元"),
	}}
	client := &MockLLMClient{response: "fresh answer"}
	pipeline := newTestPipeline(store, searcher, client)

	answer, err := pipeline.Resolve(context.Background(), "黑胶VIP")
	require.NoError(t, err)
	assert.Equal(t, "fresh answer", answer.Text)

	assert.JSONEq(t, `{"answer":"fresh answer","hits":1}`, store.values[key],
		"fresh answer must overwrite the corrupt entry")
}

// =============================================================================
// Refusal Gate Tests
// =============================================================================

func TestResolve_RefusalWhenNothingRetrieved(t *testing.T) {
	store := newRecordingCache()
	searcher := &stubSearcher{}
	client := &MockLLMClient{response: "should not be used"}
	pipeline := newTestPipeline(store, searcher, client)

	answer, err := pipeline.Resolve(context.Background(), "量子物理怎么学")
	require.NoError(t, err)

	assert.Equal(t, DefaultRefusalMessage, answer.Text)
	assert.Zero(t, answer.Hits)
	assert.Equal(t, OutcomeRefusal, answer.Outcome)
	assert.Zero(t, client.calls, "refusal must not call the model")

	key := deriveKey("量子物理怎么学")
	assert.Equal(t, 30*time.Second, store.ttls[key], "refusals use the short TTL")
	assert.JSONEq(t, `{"answer":"`+DefaultRefusalMessage+`","hits":0}`, store.values[key])
}

// =============================================================================
// Retrieval Tests
// =============================================================================

func TestResolve_NormalizationFallback(t *testing.T) {
	searcher := &stubSearcher{results: map[string][]knowledge.Entry{
		"黑胶VIP": knowledgeEntries("包月15元"),
	}}
	client := &MockLLMClient{response: "15元哦～"}
	pipeline := newTestPipeline(newRecordingCache(), searcher, client)

	answer, err := pipeline.Resolve(context.Background(), "请问黑胶VIP多少钱呢？")
	require.NoError(t, err)

	require.Equal(t, []string{"请问黑胶VIP多少钱呢？", "黑胶VIP"}, searcher.queries,
		"verbatim question first, normalized form second")
	assert.Equal(t, "15元哦～", answer.Text)
	assert.Equal(t, 1, answer.Hits)
}

func TestResolve_NoFallbackWhenFirstStageHits(t *testing.T) {
	searcher := &stubSearcher{results: map[string][]knowledge.Entry{
		"黑胶VIP": knowledgeEntries("包月15元"),
	}}
	pipeline := newTestPipeline(newRecordingCache(), searcher, &MockLLMClient{response: "ok"})

	_, err := pipeline.Resolve(context.Background(), "黑胶VIP")
	require.NoError(t, err)
	assert.Equal(t, []string{"黑胶VIP"}, searcher.queries)
}

func TestResolve_RetrievalErrorPropagates(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("database is down")}
	pipeline := newTestPipeline(newRecordingCache(), searcher, &MockLLMClient{})

	_, err := pipeline.Resolve(context.Background(), "黑胶VIP")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is down")
}

// =============================================================================
// Inference Tests
// =============================================================================

func TestResolve_AnsweredPath(t *testing.T) {
	store := newRecordingCache()
	searcher := &stubSearcher{results: map[string][]knowledge.Entry{
		"黑胶VIP": knowledgeEntries("包月15元", "首月5元"),
	}}
	client := &MockLLMClient{response: "黑胶VIP包月15元，首月只要5元哦～"}
	pipeline := newTestPipeline(store, searcher, client)

	answer, err := pipeline.Resolve(context.Background(), "黑胶VIP")
	require.NoError(t, err)

	assert.Equal(t, "黑胶VIP包月15元，首月只要5元哦～", answer.Text)
	assert.Equal(t, 2, answer.Hits)
	assert.Equal(t, OutcomeAnswered, answer.Outcome)

	require.Equal(t, 1, client.calls)
	assert.Equal(t, DefaultSystemInstruction, client.lastSystem)
	assert.Equal(t,
		"已知信息：\n[1] 包月15元\n[2] 首月5元\n用户问题：黑胶VIP",
		client.lastUser)

	key := deriveKey("黑胶VIP")
	assert.Equal(t, 600*time.Second, store.ttls[key], "answers use the long TTL")
}

func TestResolve_ModelErrorPropagatesUncached(t *testing.T) {
	store := newRecordingCache()
	searcher := &stubSearcher{results: map[string][]knowledge.Entry{
		"黑胶VIP": knowledgeEntries("包月15元"),
	}}
	modelErr := errors.New("upstream exploded")
	pipeline := newTestPipeline(store, searcher, &MockLLMClient{err: modelErr})

	_, err := pipeline.Resolve(context.Background(), "黑胶VIP")
	assert.ErrorIs(t, err, modelErr)
	assert.Empty(t, store.values, "failed resolutions must not be cached")
}

// =============================================================================
// Cache Disabled Tests
// =============================================================================

func TestResolve_NilCacheDisablesCaching(t *testing.T) {
	searcher := &stubSearcher{results: map[string][]knowledge.Entry{
		"黑胶VIP": knowledgeEntries("包月15元"),
	}}
	client := &MockLLMClient{response: "ok"}
	pipeline := NewPipeline(nil, searcher, client, DefaultConfig(), nil)

	answer, err := pipeline.Resolve(context.Background(), "黑胶VIP")
	require.NoError(t, err)
	assert.Equal(t, "ok", answer.Text)

	// Second call resolves again instead of hitting a cache.
	_, err = pipeline.Resolve(context.Background(), "黑胶VIP")
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
}
