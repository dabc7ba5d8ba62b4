// Copyright (C) 2026 Harmonia Labs (oss@harmonialabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package cache provides the TTL answer cache backed by BadgerDB.
//
// BadgerDB gives local embedded storage with low-latency access and
// native per-entry TTL support, which is exactly the shape of the answer
// cache: versioned string keys, serialized answers, expiry handled by
// the store itself.
//
// The Store contract is deliberately non-throwing. A cache outage must
// never break the answer pipeline: failed reads report a miss, failed
// writes are swallowed. Failures are logged at Warn level so operators
// can see a degraded cache without the pipeline noticing.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Store is the cache contract consumed by the answer pipeline.
//
// Both operations are fail-safe: Get reports (value, true) only on a
// successful read of an unexpired entry, and Set is best-effort. Neither
// returns an error. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the cached value for key and whether it was found.
	// Any store failure, including an unreachable or closed store,
	// reads as a miss.
	Get(ctx context.Context, key string) (string, bool)

	// Set stores value under key with the given TTL. A ttl <= 0 means
	// "do not cache" and the call is a no-op. Failures are swallowed.
	Set(ctx context.Context, key string, value string, ttl time.Duration)
}

// =============================================================================
// Disabled Store
// =============================================================================

// Disabled is the Store used when caching is turned off via
// configuration: Get always misses and Set always no-ops.
type Disabled struct{}

// Get always reports a miss.
func (Disabled) Get(ctx context.Context, key string) (string, bool) { return "", false }

// Set is a no-op.
func (Disabled) Set(ctx context.Context, key string, value string, ttl time.Duration) {}

var _ Store = Disabled{}

// =============================================================================
// Badger-backed Store
// =============================================================================

// Config holds configuration for a badger-backed Store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Required unless InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability. The answer
	// cache is rebuildable, so production defaults leave this off.
	SyncWrites bool

	// Logger receives cache failure logs. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// DefaultConfig returns the production configuration for the given
// data directory. Sync writes are disabled: cache entries are cheap to
// regenerate and async writes keep Set latency off the request path.
func DefaultConfig(path string) Config {
	return Config{Path: path}
}

// InMemoryConfig returns configuration for tests: no disk I/O.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore implements Store on top of a BadgerDB instance.
//
// Thread Safety: safe for concurrent use; *badger.DB handles its own
// locking per key.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open creates and opens a badger-backed Store with the given
// configuration. The caller must Close() the store on shutdown.
func Open(cfg Config) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent cache")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	opts = opts.WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}

	return &BadgerStore{db: db, logger: logger}, nil
}

// Get returns the cached value for key. Expired and missing entries,
// cancelled contexts, and any store failure all read as a miss.
func (s *BadgerStore) Get(ctx context.Context, key string) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			s.logger.Warn("cache read failed, treating as miss", "key", key, "error", err)
		}
		return "", false
	}
	return string(value), true
}

// Set stores value under key with the given TTL. A ttl <= 0 is a no-op.
// Write failures are logged and swallowed; the caller's result is never
// affected by them.
func (s *BadgerStore) Set(ctx context.Context, key string, value string, ttl time.Duration) {
	if ttl <= 0 || ctx.Err() != nil {
		return
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), []byte(value)).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		s.logger.Warn("cache write failed, dropping entry", "key", key, "error", err)
	}
}

// Close releases the underlying BadgerDB instance.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

var _ Store = (*BadgerStore)(nil)
