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

// Package logmap is the client of the log server: an int64-keyed map
// replicated from the ordered log. Reads come straight from a local
// cache; writes go to the server under optimistic concurrency control.
package logmap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/B1NARY-GR0UP/logmap/pkg/logger"
	"github.com/B1NARY-GR0UP/logmap/types"
	"github.com/B1NARY-GR0UP/logmap/wire"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// LogMap is a replicated map handle. A single background sync worker
// (spawned at Connect) is the only cache writer; the map methods read the
// cache and push mutations through the write stream.
//
// Get after Insert only observes the write once its record has returned
// through the subscription.
type LogMap struct {
	config Config
	logger logger.Logger

	cache     *cache
	transport *transport

	writeMu   sync.Mutex
	writeConn *websocket.Conn

	// nextOrdinal is advisory; the server assigns the real one.
	nextOrdinal atomic.Uint64
	latestKnown atomic.Uint64
	lastSync    atomic.Uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// Connect establishes the write stream, spawns the sync worker, and
// returns the handle. A transport failure surfaces here.
func Connect(addr string, config Config) (*LogMap, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	t := newTransport(addr, config.DialTimeout)
	conn, err := t.openWrite()
	if err != nil {
		return nil, err
	}

	m := &LogMap{
		config:    config,
		logger:    logger.GetLogger(),
		cache:     newCache(),
		transport: t,
		writeConn: conn,
		done:      make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	worker := &syncer{
		transport:   t,
		cache:       m.cache,
		logger:      m.logger,
		lastSync:    &m.lastSync,
		latestKnown: &m.latestKnown,
		restart:     config.RestartDelay,
	}
	go func() {
		defer close(m.done)
		worker.run(ctx)
	}()

	return m, nil
}

// Close stops the sync worker and closes the write stream.
func (m *LogMap) Close() error {
	m.cancel()

	m.writeMu.Lock()
	err := m.writeConn.Close()
	m.writeMu.Unlock()

	<-m.done
	return err
}

// Get never blocks on the server.
func (m *LogMap) Get(key int64) (string, bool) {
	return m.cache.get(key)
}

func (m *LogMap) ContainsKey(key int64) bool {
	return m.cache.containsKey(key)
}

func (m *LogMap) Len() int {
	return m.cache.len()
}

func (m *LogMap) IsEmpty() bool {
	return m.cache.isEmpty()
}

func (m *LogMap) Insert(key int64, value string) error {
	return m.write(key, []byte(value))
}

// Remove writes a tombstone for the key.
func (m *LogMap) Remove(key int64) error {
	return m.write(key, nil)
}

// SyncNow is a cooperative hook called between conflict retries. The sync
// worker advances latestKnown continuously, so there is nothing to do.
func (m *LogMap) SyncNow() {}

func (m *LogMap) write(key int64, value []byte) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.config.InitialBackoff
	policy.Multiplier = m.config.BackoffFactor
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0
	policy.Reset()

	var retries int
	for {
		req := &wire.WriteRequest{
			Ordinal:     int64(m.nextOrdinal.Add(1)),
			Key:         types.EncodeMapKey(key),
			Value:       value,
			LatestKnown: int64(m.latestKnown.Load()),
		}
		resp, err := m.roundTrip(req)
		if err != nil {
			return err
		}
		if resp.Accepted {
			return nil
		}

		retries++
		if retries >= m.config.MaxRetries {
			return &ConflictError{Retries: retries, Reason: resp.Error}
		}
		m.SyncNow()
		time.Sleep(policy.NextBackOff())
	}
}

// roundTrip sends one request and waits for its single response. The
// write stream is FIFO, so holding the lock across both halves keeps the
// pairing intact.
func (m *LogMap) roundTrip(req *wire.WriteRequest) (*wire.WriteResponse, error) {
	frame, err := wire.EncodeFrame(req)
	if err != nil {
		return nil, err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := m.writeConn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return nil, fmt.Errorf("send write request: %w", err)
	}
	_, data, err := m.writeConn.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
		}
		return nil, fmt.Errorf("read write response: %w", err)
	}

	var resp wire.WriteResponse
	if err := wire.DecodeFrame(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
