// Copyright (C) 2026 Harmonia Labs (oss@harmonialabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package agent implements the answer-resolution pipeline: cache
// lookup, knowledge retrieval with normalization fallback, the refusal
// gate, prompt assembly, model inference, and cache write-back.
package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harmonialabs/csagent/services/cache"
	"github.com/harmonialabs/csagent/services/knowledge"
	"github.com/harmonialabs/csagent/services/llm"
)

var tracer = otel.Tracer("csagent.agent")

// cacheKeyPrefix versions the cache namespace. Bump the version to
// invalidate every cached answer at once.
const cacheKeyPrefix = "agent:chat:v1:"

// ErrEmptyQuestion is returned for a blank or whitespace-only question.
var ErrEmptyQuestion = errors.New("question must not be empty")

// Outcome labels how an answer was produced. Used for logging and
// request metrics, never serialized to clients.
type Outcome string

const (
	OutcomeCacheHit Outcome = "cache_hit"
	OutcomeRefusal  Outcome = "refusal"
	OutcomeAnswered Outcome = "answered"
)

// Answer is the pipeline result. Its JSON form is both the client
// response body and the cached representation, so a cached entry
// replays byte-compatible with a fresh one.
type Answer struct {
	Text string `json:"answer"`
	Hits int    `json:"hits"`

	Outcome Outcome `json:"-"`
}

// Searcher is the retrieval dependency. *knowledge.Store satisfies it.
type Searcher interface {
	SearchActiveTop(ctx context.Context, queryText string, limit int) ([]knowledge.Entry, error)
}

// Config tunes the pipeline.
type Config struct {
	// AnswerTTL is the cache lifetime for model-produced answers.
	AnswerTTL time.Duration

	// RefusalTTL is the cache lifetime for refusals. Kept short so new
	// knowledge entries take effect quickly.
	RefusalTTL time.Duration

	// RetrievalLimit caps how many knowledge entries feed the prompt.
	RetrievalLimit int

	// SystemInstruction is the system message for every model call.
	SystemInstruction string

	// RefusalMessage is the fixed no-knowledge reply.
	RefusalMessage string

	// NormalizeRules drives the retrieval fallback.
	NormalizeRules Rules
}

// DefaultConfig returns the production pipeline configuration.
func DefaultConfig() Config {
	return Config{
		AnswerTTL:         600 * time.Second,
		RefusalTTL:        30 * time.Second,
		RetrievalLimit:    5,
		SystemInstruction: DefaultSystemInstruction,
		RefusalMessage:    DefaultRefusalMessage,
		NormalizeRules:    DefaultRules(),
	}
}

// Pipeline resolves customer questions to answers.
//
// Thread Safety: safe for concurrent use. All fields are set at
// construction and never mutated.
type Pipeline struct {
	cache    cache.Store
	searcher Searcher
	client   llm.CompletionClient
	config   Config
	logger   *slog.Logger
}

// NewPipeline wires the pipeline. A nil logger falls back to
// slog.Default(); a nil cache disables caching via cache.Disabled.
func NewPipeline(store cache.Store, searcher Searcher, client llm.CompletionClient,
	config Config, logger *slog.Logger) *Pipeline {

	if store == nil {
		store = cache.Disabled{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cache:    store,
		searcher: searcher,
		client:   client,
		config:   config,
		logger:   logger,
	}
}

// Resolve answers a customer question.
//
// The cache is consulted first; a hit short-circuits everything else.
// On a miss, retrieval runs with the trimmed question and, if that
// finds nothing, once more with its normalized form. Zero hits trigger
// the refusal gate and no model call. Otherwise the retrieved answers
// and the question are assembled into a prompt, sent to the model, and
// the result is written back to the cache best-effort.
//
// Returns ErrEmptyQuestion for a blank question. Model errors propagate
// unchanged so callers can distinguish configuration from generation
// failures.
func (p *Pipeline) Resolve(ctx context.Context, question string) (*Answer, error) {
	ctx, span := tracer.Start(ctx, "Pipeline.Resolve")
	defer span.End()

	q := strings.TrimSpace(question)
	if q == "" {
		return nil, ErrEmptyQuestion
	}

	key := deriveKey(q)
	span.SetAttributes(attribute.String("agent.cache_key", key))

	if answer, ok := p.readCache(ctx, key); ok {
		span.SetAttributes(attribute.String("agent.outcome", string(OutcomeCacheHit)))
		p.logger.Debug("answer served from cache", "key", key)
		return answer, nil
	}

	hits, err := p.retrieve(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("knowledge retrieval failed: %w", err)
	}
	span.SetAttributes(attribute.Int("agent.hits", len(hits)))

	if len(hits) == 0 {
		answer := &Answer{Text: p.config.RefusalMessage, Hits: 0, Outcome: OutcomeRefusal}
		span.SetAttributes(attribute.String("agent.outcome", string(OutcomeRefusal)))
		p.writeCache(ctx, key, answer, p.config.RefusalTTL)
		return answer, nil
	}

	payload := BuildUserPayload(hits, q)
	text, err := p.client.Complete(ctx, p.config.SystemInstruction, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	answer := &Answer{Text: text, Hits: len(hits), Outcome: OutcomeAnswered}
	span.SetAttributes(attribute.String("agent.outcome", string(OutcomeAnswered)))
	p.writeCache(ctx, key, answer, p.config.AnswerTTL)
	return answer, nil
}

// retrieve runs the two-stage lookup: the trimmed question as-is, then
// its normalized form when the first stage comes back empty and the
// normalized form is non-blank and actually different.
func (p *Pipeline) retrieve(ctx context.Context, q string) ([]knowledge.Entry, error) {
	hits, err := p.searcher.SearchActiveTop(ctx, q, p.config.RetrievalLimit)
	if err != nil {
		return nil, err
	}
	if len(hits) > 0 {
		return hits, nil
	}

	normalized := Normalize(q, p.config.NormalizeRules)
	if normalized == "" || normalized == q {
		return hits, nil
	}
	p.logger.Debug("retrying retrieval with normalized question",
		"question", q, "normalized", normalized)
	return p.searcher.SearchActiveTop(ctx, normalized, p.config.RetrievalLimit)
}

// readCache returns the cached Answer for key. Undecodable entries are
// treated as misses; the fresh answer will overwrite them.
func (p *Pipeline) readCache(ctx context.Context, key string) (*Answer, bool) {
	raw, ok := p.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var answer Answer
	if err := json.Unmarshal([]byte(raw), &answer); err != nil {
		p.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		return nil, false
	}
	answer.Outcome = OutcomeCacheHit
	return &answer, true
}

// writeCache stores answer under key best-effort. Serialization
// failures are logged and dropped, never surfaced.
func (p *Pipeline) writeCache(ctx context.Context, key string, answer *Answer, ttl time.Duration) {
	raw, err := json.Marshal(answer)
	if err != nil {
		p.logger.Warn("failed to serialize answer for cache", "key", key, "error", err)
		return
	}
	p.cache.Set(ctx, key, string(raw), ttl)
}

// deriveKey hashes the trimmed question so cache keys stay bounded and
// free of special characters regardless of what customers type.
func deriveKey(trimmedQuestion string) string {
	sum := sha256.Sum256([]byte(trimmedQuestion))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
