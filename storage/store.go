// Copyright 2025 BINARY Members
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage persists the totally-ordered record log in an SQLite
// table keyed by ordinal.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/B1NARY-GR0UP/logmap/pkg/logger"
	"github.com/B1NARY-GR0UP/logmap/types"
	_ "modernc.org/sqlite"
)

const _schema = `
CREATE TABLE IF NOT EXISTS records (
	ordinal   INTEGER PRIMARY KEY AUTOINCREMENT,
	key       TEXT NOT NULL,
	value     BLOB NOT NULL,
	timestamp INTEGER NOT NULL
)`

type Config struct {
	// PollInterval is the tail-scan sleep when no new records exist.
	PollInterval time.Duration
	// BatchLimit bounds how many records one tail-scan query returns.
	BatchLimit int
}

var DefaultConfig = Config{
	PollInterval: 100 * time.Millisecond,
	BatchLimit:   100,
}

func (c *Config) validate() error {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultConfig.PollInterval
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = DefaultConfig.BatchLimit
	}
	return nil
}

// ConflictError rejects a write whose latest-known ordinal is stale.
type ConflictError struct {
	Latest uint64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: latest ordinal is %d", e.Latest)
}

// Store owns the records table. The concurrency-control check and the
// insert it guards run under one lock within one transaction, so the
// latest-ordinal read is a real fence.
type Store struct {
	mu     sync.Mutex
	config Config
	logger logger.Logger
	db     *sql.DB
}

// Open creates the database file and the records table when missing.
func Open(path string, config Config) (*Store, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// A single connection keeps transactions serialized and makes the
	// in-memory DSN usable, where every connection is its own database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(_schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}

	store := &Store{
		config: config,
		logger: logger.GetLogger(),
		db:     db,
	}
	store.logger.Infof("record log opened at %s", path)
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Append assigns the next ordinal and persists the record. Internal and
// test-fixture use; remote writers go through Write.
func (s *Store) Append(ctx context.Context, key string, value []byte) (uint64, error) {
	if value == nil {
		value = []byte{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var ordinal uint64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO records (key, value, timestamp) VALUES (?, ?, ?) RETURNING ordinal`,
		key, value, time.Now().UnixMilli(),
	).Scan(&ordinal)
	if err != nil {
		return 0, fmt.Errorf("append record: %w", err)
	}
	return ordinal, nil
}

// Write is the optimistic-concurrency primitive. With L the current
// highest ordinal: a stale latestKnown (< L) fails with ConflictError(L);
// otherwise the record lands at L+1. The proposed ordinal is advisory,
// the log always assigns L+1.
func (s *Store) Write(ctx context.Context, proposed uint64, key string, value []byte, latestKnown uint64) (uint64, error) {
	_ = proposed
	if value == nil {
		value = []byte{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin write: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var latest uint64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(ordinal), 0) FROM records`).Scan(&latest); err != nil {
		return 0, fmt.Errorf("read latest ordinal: %w", err)
	}
	if latestKnown < latest {
		return 0, &ConflictError{Latest: latest}
	}

	ordinal := latest + 1
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO records (ordinal, key, value, timestamp) VALUES (?, ?, ?, ?)`,
		int64(ordinal), key, value, time.Now().UnixMilli(),
	); err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit write: %w", err)
	}
	return ordinal, nil
}

func (s *Store) MaxOrdinal(ctx context.Context) (uint64, error) {
	var latest uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(ordinal), 0) FROM records`).Scan(&latest); err != nil {
		return 0, fmt.Errorf("read latest ordinal: %w", err)
	}
	return latest, nil
}

// SubscribeFrom emits every record with ordinal > from in ascending order,
// then keeps tailing newly appended records in finite batches. It returns
// on context cancellation, a callback error, or a store failure.
func (s *Store) SubscribeFrom(ctx context.Context, from uint64, fn func(types.Record) error) error {
	next := from
	for {
		batch, err := s.scanBatch(ctx, next)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.config.PollInterval):
			}
			continue
		}
		for _, record := range batch {
			if err := fn(record); err != nil {
				return err
			}
			next = record.Ordinal
		}
	}
}

func (s *Store) scanBatch(ctx context.Context, after uint64) ([]types.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ordinal, key, value, timestamp FROM records WHERE ordinal > ? ORDER BY ordinal LIMIT ?`,
		after, s.config.BatchLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("tail scan: %w", err)
	}
	defer rows.Close()

	var batch []types.Record
	for rows.Next() {
		var record types.Record
		if err := rows.Scan(&record.Ordinal, &record.Key, &record.Value, &record.Timestamp); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		batch = append(batch, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tail scan: %w", err)
	}
	return batch, nil
}

// LiveSet returns the highest-ordinal non-tombstone value of every
// prefixed key at or below upTo, ordered by key. This is the state a
// snapshot captures.
func (s *Store) LiveSet(ctx context.Context, prefix string, upTo uint64) ([]types.KV, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM records
		 WHERE ordinal IN (
		 	SELECT MAX(ordinal) FROM records
		 	WHERE key LIKE ? AND ordinal <= ?
		 	GROUP BY key
		 )
		 AND length(value) > 0
		 ORDER BY key`,
		prefix+"%", upTo,
	)
	if err != nil {
		return nil, fmt.Errorf("live set: %w", err)
	}
	defer rows.Close()

	var kvs []types.KV
	for rows.Next() {
		var kv types.KV
		if err := rows.Scan(&kv.K, &kv.V); err != nil {
			return nil, fmt.Errorf("scan live set: %w", err)
		}
		kvs = append(kvs, kv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("live set: %w", err)
	}
	return kvs, nil
}
