// Copyright (C) 2026 Harmonia Labs (oss@harmonialabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package knowledge manages the customer-support knowledge base.
//
// Entries are question/answer pairs with comma-separated retrieval
// keywords and a soft-delete flag. Only active entries participate in
// retrieval; the answer pipeline reads via SearchActiveTop and never
// writes.
package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when an entry does not exist or is inactive.
var ErrNotFound = errors.New("knowledge entry not found or inactive")

// Entry is a knowledge base row.
type Entry struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Keywords  string    `json:"keywords"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"create_time"`
}

// UpdatePatch holds the partial update for an entry. Nil fields are
// left unchanged.
type UpdatePatch struct {
	Question *string
	Answer   *string
	Keywords *string
}

// Store provides CRUD and retrieval over the knowledge base table.
//
// Thread Safety: safe for concurrent use; all state lives in the
// database.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store on top of an opened database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new active entry and returns it.
func (s *Store) Create(ctx context.Context, question, answer, keywords string) (*Entry, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO knowledge_base (question, answer, keywords, active, created_at)
		 VALUES (?, ?, ?, 1, ?)`,
		question, answer, keywords, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert knowledge entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read inserted id: %w", err)
	}
	return &Entry{
		ID:        id,
		Question:  question,
		Answer:    answer,
		Keywords:  keywords,
		Active:    true,
		CreatedAt: now,
	}, nil
}

// Get returns the active entry with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, question, answer, COALESCE(keywords, ''), active, created_at
		 FROM knowledge_base WHERE id = ? AND active = 1`, id)
	return scanEntry(row)
}

// Update applies a partial update to the active entry with the given
// id and returns the updated entry. Returns ErrNotFound when the entry
// does not exist or is inactive. The read-modify-write runs in one
// transaction so concurrent partial updates cannot drop each other's
// fields.
func (s *Store) Update(ctx context.Context, id int64, patch UpdatePatch) (*Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT id, question, answer, COALESCE(keywords, ''), active, created_at
		 FROM knowledge_base WHERE id = ? AND active = 1`, id)
	entry, err := scanEntry(row)
	if err != nil {
		return nil, err
	}

	if patch.Question != nil {
		entry.Question = *patch.Question
	}
	if patch.Answer != nil {
		entry.Answer = *patch.Answer
	}
	if patch.Keywords != nil {
		entry.Keywords = *patch.Keywords
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE knowledge_base SET question = ?, answer = ?, keywords = ? WHERE id = ? AND active = 1`,
		entry.Question, entry.Answer, entry.Keywords, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update knowledge entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return entry, nil
}

// List returns active entries. With a non-blank query it filters by
// case-insensitive substring match over question and keywords, the
// same predicate SearchActiveTop uses but without a cap.
func (s *Store) List(ctx context.Context, query string) ([]Entry, error) {
	query = strings.TrimSpace(query)

	var (
		rows *sql.Rows
		err  error
	)
	if query == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, question, answer, COALESCE(keywords, ''), active, created_at
			 FROM knowledge_base WHERE active = 1 ORDER BY id`)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, question, answer, COALESCE(keywords, ''), active, created_at
			 FROM knowledge_base
			 WHERE active = 1
			   AND (instr(lower(question), lower(?1)) > 0
			     OR instr(lower(COALESCE(keywords, '')), lower(?1)) > 0)
			 ORDER BY id`, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list knowledge entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Deactivate soft-deletes the active entry with the given id.
// Returns ErrNotFound when it does not exist or is already inactive.
func (s *Store) Deactivate(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE knowledge_base SET active = 0 WHERE id = ? AND active = 1`, id)
	if err != nil {
		return fmt.Errorf("deactivate knowledge entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SearchActiveTop returns up to limit active entries whose question or
// keywords contain queryText (case-insensitive substring containment).
//
// Entries come back in insertion order (ascending id). That ordering is
// what downstream prompt numbering relies on; no relevance ranking is
// applied. An empty result is a valid, non-error outcome.
func (s *Store) SearchActiveTop(ctx context.Context, queryText string, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, answer, COALESCE(keywords, ''), active, created_at
		 FROM knowledge_base
		 WHERE active = 1
		   AND (instr(lower(question), lower(?1)) > 0
		     OR instr(lower(COALESCE(keywords, '')), lower(?1)) > 0)
		 ORDER BY id
		 LIMIT ?2`, queryText, limit)
	if err != nil {
		return nil, fmt.Errorf("search knowledge entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntry(row *sql.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.Question, &e.Answer, &e.Keywords, &e.Active, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan knowledge entry: %w", err)
	}
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Question, &e.Answer, &e.Keywords, &e.Active, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan knowledge entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge entries: %w", err)
	}
	return entries, nil
}
