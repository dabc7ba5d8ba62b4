// Copyright (C) 2026 Harmonia Labs (oss@harmonialabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonialabs/csagent/services/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func strPtr(s string) *string { return &s }

// =============================================================================
// CRUD Tests
// =============================================================================

func TestCreate_ReturnsActiveEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, err := store.Create(ctx, "黑胶VIP会员价格是多少？", "请以App页面显示为准", "黑胶VIP,会员,价格")
	require.NoError(t, err)

	assert.NotZero(t, entry.ID)
	assert.True(t, entry.Active)
	assert.False(t, entry.CreatedAt.IsZero())

	got, err := store.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.Question, got.Question)
	assert.Equal(t, entry.Answer, got.Answer)
	assert.Equal(t, entry.Keywords, got.Keywords)
}

func TestGet_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_PartialPatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, err := store.Create(ctx, "original question", "original answer", "kw1,kw2")
	require.NoError(t, err)

	updated, err := store.Update(ctx, entry.ID, UpdatePatch{Answer: strPtr("new answer")})
	require.NoError(t, err)
	assert.Equal(t, "original question", updated.Question, "unpatched field stays")
	assert.Equal(t, "new answer", updated.Answer)
	assert.Equal(t, "kw1,kw2", updated.Keywords)

	got, err := store.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "new answer", got.Answer)
}

func TestUpdate_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Update(context.Background(), 9, UpdatePatch{Answer: strPtr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_DeactivatedEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, err := store.Create(ctx, "q", "a", "kw")
	require.NoError(t, err)
	require.NoError(t, store.Deactivate(ctx, entry.ID))

	_, err = store.Update(ctx, entry.ID, UpdatePatch{Answer: strPtr("x")})
	assert.ErrorIs(t, err, ErrNotFound, "inactive entries are not updatable")
}

func TestUpdate_ConsecutivePartialPatchesCompose(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, err := store.Create(ctx, "q0", "a0", "k0")
	require.NoError(t, err)

	_, err = store.Update(ctx, entry.ID, UpdatePatch{Question: strPtr("q1")})
	require.NoError(t, err)
	_, err = store.Update(ctx, entry.ID, UpdatePatch{Answer: strPtr("a1")})
	require.NoError(t, err)

	got, err := store.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "q1", got.Question, "second patch must not revert the first")
	assert.Equal(t, "a1", got.Answer)
	assert.Equal(t, "k0", got.Keywords)
}

func TestDeactivate_HidesEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, err := store.Create(ctx, "q", "a", "kw")
	require.NoError(t, err)

	require.NoError(t, store.Deactivate(ctx, entry.ID))

	_, err = store.Get(ctx, entry.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.Deactivate(ctx, entry.ID)
	assert.ErrorIs(t, err, ErrNotFound, "second deactivate reports not found")
}

func TestList_FiltersByQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "黑胶VIP会员价格是多少？", "a1", "黑胶VIP,价格")
	require.NoError(t, err)
	_, err = store.Create(ctx, "如何取消自动续费", "a2", "续费,退订")
	require.NoError(t, err)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := store.List(ctx, "续费")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "如何取消自动续费", filtered[0].Question)
}

// =============================================================================
// SearchActiveTop Tests
// =============================================================================

func TestSearchActiveTop_MatchesQuestionAndKeywords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "黑胶VIP价格", "a1", "会员,价格")
	require.NoError(t, err)
	_, err = store.Create(ctx, "如何开发票", "a2", "发票,报销")
	require.NoError(t, err)

	byQuestion, err := store.SearchActiveTop(ctx, "黑胶VIP", 5)
	require.NoError(t, err)
	require.Len(t, byQuestion, 1)
	assert.Equal(t, "黑胶VIP价格", byQuestion[0].Question)

	byKeyword, err := store.SearchActiveTop(ctx, "报销", 5)
	require.NoError(t, err)
	require.Len(t, byKeyword, 1)
	assert.Equal(t, "如何开发票", byKeyword[0].Question)
}

func TestSearchActiveTop_CaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "黑胶VIP价格", "a", "vip")
	require.NoError(t, err)

	hits, err := store.SearchActiveTop(ctx, "vip", 5)
	require.NoError(t, err)
	assert.Len(t, hits, 1, "lower-case query should match upper-case entry")
}

func TestSearchActiveTop_ExcludesInactive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, err := store.Create(ctx, "hidden question", "a", "hidden")
	require.NoError(t, err)
	require.NoError(t, store.Deactivate(ctx, entry.ID))

	hits, err := store.SearchActiveTop(ctx, "hidden", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchActiveTop_CapAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, q := range []string{"vip one", "vip two", "vip three"} {
		_, err := store.Create(ctx, q, "a", "vip")
		require.NoError(t, err)
	}

	hits, err := store.SearchActiveTop(ctx, "vip", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2, "results are capped at limit")
	assert.Equal(t, "vip one", hits[0].Question, "insertion order preserved")
	assert.Equal(t, "vip two", hits[1].Question)
}

func TestSearchActiveTop_EmptyIsNotAnError(t *testing.T) {
	store := newTestStore(t)

	hits, err := store.SearchActiveTop(context.Background(), "nothing matches this", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
