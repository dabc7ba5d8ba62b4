// Copyright (C) 2026 Harmonia Labs (oss@harmonialabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package conversation tracks support conversations and their messages.
//
// A conversation belongs to one customer, is OPEN until explicitly
// closed, and accumulates messages from either side. Closed
// conversations are read-only.
package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Status of a conversation. Persisted as its uppercase string form.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Sender identifies which side of a conversation wrote a message.
type Sender string

const (
	SenderCustomer Sender = "CUSTOMER"
	SenderAgent    Sender = "AGENT"
)

// Valid reports whether s is a known sender value.
func (s Sender) Valid() bool {
	return s == SenderCustomer || s == SenderAgent
}

var (
	// ErrNotFound is returned when a conversation does not exist.
	ErrNotFound = errors.New("conversation not found")

	// ErrConversationClosed is returned when writing to a closed
	// conversation.
	ErrConversationClosed = errors.New("conversation is closed")

	// ErrInvalidSender is returned for an unknown sender value.
	ErrInvalidSender = errors.New("invalid message sender")
)

// Conversation is a support conversation row.
type Conversation struct {
	ID         int64     `json:"id"`
	CustomerID string    `json:"customer_id"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"create_time"`
	UpdatedAt  time.Time `json:"update_time"`
}

// Message is a single utterance within a conversation.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Sender         Sender    `json:"sender"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"create_time"`
}

// Store provides conversation and message persistence.
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

// Create opens a new conversation for the given customer.
func (s *Store) Create(ctx context.Context, customerID string) (*Conversation, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (customer_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?)`,
		customerID, StatusOpen, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read inserted id: %w", err)
	}
	return &Conversation{
		ID:         id,
		CustomerID: customerID,
		Status:     StatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Get returns the conversation with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (*Conversation, error) {
	var c Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, customer_id, status, created_at, updated_at
		 FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.CustomerID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	return &c, nil
}

// Close transitions the conversation to CLOSED. Closing an already
// closed conversation is a no-op and returns the current row.
func (s *Store) Close(ctx context.Context, id int64) (*Conversation, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == StatusClosed {
		return c, nil
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`UPDATE conversations SET status = ?, updated_at = ? WHERE id = ?`,
		StatusClosed, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("close conversation: %w", err)
	}
	c.Status = StatusClosed
	c.UpdatedAt = now
	return c, nil
}

// AddMessage appends a message to an open conversation and bumps its
// updated_at. Returns ErrConversationClosed when the conversation is
// closed and ErrInvalidSender for an unknown sender.
func (s *Store) AddMessage(ctx context.Context, conversationID int64, sender Sender, content string) (*Message, error) {
	if !sender.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSender, sender)
	}

	c, err := s.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if c.Status == StatusClosed {
		return nil, ErrConversationClosed
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, sender, content, created_at)
		 VALUES (?, ?, ?, ?)`,
		conversationID, sender, content, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read inserted id: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, conversationID); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}

	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		CreatedAt:      now,
	}, nil
}

// ListMessages returns the conversation's messages oldest first.
// Returns ErrNotFound when the conversation does not exist.
func (s *Store) ListMessages(ctx context.Context, conversationID int64) ([]Message, error) {
	if _, err := s.Get(ctx, conversationID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, sender, content, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at, id`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}
