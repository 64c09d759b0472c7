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

package logmap

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/B1NARY-GR0UP/logmap/pkg/logger"
	"github.com/B1NARY-GR0UP/logmap/snapshot"
	"github.com/B1NARY-GR0UP/logmap/types"
	"github.com/B1NARY-GR0UP/logmap/wire"
)

// syncer is the background worker that keeps the cache current: bootstrap
// from the latest snapshot, follow the subscription, and on any error
// re-bootstrap rather than die. It touches the rest of the client only
// through the shared cache and the two counters.
type syncer struct {
	transport *transport
	cache     *cache
	logger    logger.Logger

	lastSync    *atomic.Uint64
	latestKnown *atomic.Uint64

	restart time.Duration
}

func (s *syncer) run(ctx context.Context) {
	for {
		if err := s.syncOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Errorf("sync worker: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.restart):
		}
	}
}

func (s *syncer) syncOnce(ctx context.Context) error {
	s.bootstrap(ctx)

	conn, err := s.transport.openSubscribe(s.lastSync.Load())
	if err != nil {
		return err
	}
	defer conn.Close()

	// unblock the read below on cancellation
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("subscribe stream: %w", err)
		}
		var record wire.Record
		if err := wire.DecodeFrame(data, &record); err != nil {
			return fmt.Errorf("subscribe stream: %w", err)
		}
		s.apply(&record)
	}
}

// bootstrap loads the latest snapshot into the cache. Every failure mode
// degrades to "no snapshot": the follow phase then replays from whatever
// ordinal is already synced.
func (s *syncer) bootstrap(ctx context.Context) {
	ordinal, data, err := s.transport.getSnapshot(ctx)
	if err != nil {
		s.logger.Warnf("bootstrap: snapshot fetch failed: %v", err)
		return
	}
	if ordinal == 0 || len(data) == 0 {
		return
	}

	kvs, err := snapshot.DecodeBinary(data)
	if err != nil {
		s.logger.Warnf("bootstrap: snapshot decode failed, replaying the log: %v", err)
		return
	}

	items := make(map[int64]string, len(kvs))
	for _, kv := range kvs {
		key, ok := types.ParseMapKey(kv.K)
		// snapshots hold the live set already; dropping tombstones here is
		// belt and braces
		if !ok || len(kv.V) == 0 {
			continue
		}
		items[key] = types.LossyString(kv.V)
	}
	s.cache.insertAll(items)
	storeMax(s.lastSync, ordinal)
	storeMax(s.latestKnown, ordinal)
	s.logger.Infof("bootstrap: snapshot at ordinal %d loaded (%d entries)", ordinal, len(items))
}

// apply advances both counters for every record, so foreign keys at the
// head of the log do not leave writes stuck on a stale latestKnown; only
// records with a parseable map key touch the cache.
func (s *syncer) apply(record *wire.Record) {
	storeMax(s.lastSync, uint64(record.Ordinal))
	storeMax(s.latestKnown, uint64(record.Ordinal))

	key, ok := types.ParseMapKey(record.Key)
	if !ok {
		return
	}

	if len(record.Value) == 0 {
		s.cache.remove(key)
		return
	}
	s.cache.insert(key, types.LossyString(record.Value))
}

// storeMax advances the counter monotonically; it never moves backwards.
func storeMax(a *atomic.Uint64, v uint64) {
	for {
		cur := a.Load()
		if v <= cur || a.CompareAndSwap(cur, v) {
			return
		}
	}
}
