// Copyright (C) 2025 VaultSage Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package history persists finalized chat turns in an embedded
// BadgerDB. The store is an explicitly constructed service with a
// defined lifecycle, injected into its consumers; nothing here is a
// package-level singleton.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/vaultsage/vaultsage/services/lorechat/provenance"
)

// ErrStoreClosed is returned by operations on a closed store.
var ErrStoreClosed = errors.New("history: store closed")

// TurnRecord is one finalized turn.
type TurnRecord struct {
	// ID is assigned by the store on append.
	ID string `json:"id"`

	// SessionID groups turns into a conversation.
	SessionID string `json:"sessionId"`

	// Question is the raw user message.
	Question string `json:"question"`

	// Answer is the delivered text, including abstain messages.
	Answer string `json:"answer"`

	// Sources are the turn's ranked sources.
	Sources []provenance.SourceEntry `json:"sources"`

	// Decision is the gate verdict, recorded for audit.
	Decision string `json:"decision"`

	// CreatedAt is the append time, UTC.
	CreatedAt time.Time `json:"createdAt"`
}

// Config holds store configuration.
type Config struct {
	// Path is the directory for database files. Required unless
	// InMemory is true.
	Path string

	// InMemory keeps everything in RAM. For tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger
}

// Store is a Badger-backed turn history.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db *badger.DB

	mu     sync.Mutex
	closed bool
}

// Open opens the history store.
//
// Outputs:
//
//	*Store - The opened store. Caller must Close it.
//	error - Non-nil when the path is missing or the database cannot
//	be opened.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("history: path required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("history: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	return &Store{db: db}, nil
}

// Append persists one finalized turn and returns it with its assigned
// ID and timestamp.
func (s *Store) Append(ctx context.Context, record TurnRecord) (*TurnRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, ErrStoreClosed
	}
	if record.SessionID == "" {
		return nil, errors.New("history: session id required")
	}

	record.ID = uuid.NewString()
	record.CreatedAt = time.Now().UTC()

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("history: marshal turn: %w", err)
	}

	key := turnKey(record.SessionID, record.CreatedAt, record.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, payload)
	})
	if err != nil {
		return nil, fmt.Errorf("history: append turn: %w", err)
	}
	return &record, nil
}

// Recent returns up to limit turns for a session, newest first.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]TurnRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.isClosed() {
		return nil, ErrStoreClosed
	}
	if limit <= 0 {
		limit = 20
	}

	prefix := []byte("turn:" + sessionID + ":")
	var records []TurnRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts past the prefix range.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(records) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var record TurnRecord
				if err := json.Unmarshal(val, &record); err != nil {
					return fmt.Errorf("history: decode turn: %w", err)
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close releases the database. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// turnKey orders turns by append time within a session. The ID suffix
// keeps same-nanosecond appends distinct.
func turnKey(sessionID string, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("turn:%s:%020d:%s", sessionID, at.UnixNano(), id))
}

// badgerLogger adapts slog to BadgerDB's logger interface.
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
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
