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

package snapshot

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"time"

	"github.com/B1NARY-GR0UP/logmap/pkg/logger"
	"github.com/B1NARY-GR0UP/logmap/pkg/utils"
	"github.com/B1NARY-GR0UP/logmap/types"
)

var errMkDir = errors.New("failed to create snapshot dir")

// Source yields the live prefixed subset of the log at a given ordinal.
type Source interface {
	LiveSet(ctx context.Context, prefix string, upTo uint64) ([]types.KV, error)
}

type Config struct {
	// Interval is the minimum ordinal distance between snapshots.
	Interval uint64
	// Prefix scopes which keys are snapshotted.
	Prefix string
	// Buffer sizes the pending-snapshot queue.
	Buffer int
	// Archive compresses superseded snapshot files once a newer pair is
	// durable.
	Archive bool

	FileMode os.FileMode
}

var DefaultConfig = Config{
	Interval: 1000,
	Prefix:   types.MapPrefix,
	Buffer:   8,
	Archive:  true,
	FileMode: 0644,
}

func (c *Config) validate() error {
	if c.Interval == 0 {
		c.Interval = DefaultConfig.Interval
	}
	if c.Prefix == "" {
		c.Prefix = DefaultConfig.Prefix
	}
	if c.Buffer <= 0 {
		c.Buffer = DefaultConfig.Buffer
	}
	if c.FileMode == 0 {
		c.FileMode = DefaultConfig.FileMode
	}
	return nil
}

// Manager decides when to snapshot and produces the files in the
// background. Accepted writes feed it through Notify.
type Manager struct {
	config Config
	logger logger.Logger
	source Source
	dir    string

	// highest ordinal a snapshot was scheduled for
	last atomic.Uint64

	snapC  chan uint64
	closeC chan struct{}
	closed chan struct{}
}

// NewManager recovers the last snapshotted ordinal from dir and starts
// the producer goroutine.
func NewManager(dir string, source Source, config Config) (*Manager, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errMkDir
	}

	m := &Manager{
		config: config,
		logger: logger.GetLogger(),
		source: source,
		dir:    dir,
		snapC:  make(chan uint64, config.Buffer),
		closeC: make(chan struct{}),
		closed: make(chan struct{}),
	}

	if pair, ok, err := latestEntry(dir); err != nil {
		return nil, err
	} else if ok {
		m.last.Store(pair.ordinal)
	}

	go m.run()
	return m, nil
}

// Close drains pending snapshots and stops the producer.
func (m *Manager) Close() {
	m.closeC <- struct{}{}
	<-m.closed
}

// Notify reports an accepted write. Once the ordinal distance since the
// last snapshot reaches the interval, a snapshot at this ordinal is
// scheduled.
func (m *Manager) Notify(ordinal uint64) {
	if ordinal == 0 {
		return
	}
	for {
		last := m.last.Load()
		if ordinal < last || ordinal-last < m.config.Interval {
			return
		}
		if m.last.CompareAndSwap(last, ordinal) {
			break
		}
	}

	select {
	case m.snapC <- ordinal:
	default:
		m.logger.Warnf("snapshot queue full, dropping snapshot at ordinal %d", ordinal)
	}
}

// Latest returns the bmap bytes of the highest snapshot ordinal on disk,
// or (0, nil, nil) when no snapshot exists. When only the textual form is
// present it is re-encoded, so callers always receive bmap bytes.
func (m *Manager) Latest() (uint64, []byte, error) {
	pair, ok, err := latestEntry(m.dir)
	if err != nil || !ok {
		return 0, nil, err
	}

	if pair.bmap != "" {
		data, err := os.ReadFile(pair.bmap)
		if err != nil {
			return 0, nil, err
		}
		return pair.ordinal, data, nil
	}

	raw, err := os.ReadFile(pair.tmap)
	if err != nil {
		return 0, nil, err
	}
	data, err := EncodeBinary(DecodeText(raw))
	if err != nil {
		return 0, nil, err
	}
	return pair.ordinal, data, nil
}

func (m *Manager) run() {
	var closed bool
LOOP:
	for {
		select {
		case ordinal := <-m.snapC:
			m.produce(ordinal)
			if closed && len(m.snapC) == 0 {
				break LOOP
			}
		case <-m.closeC:
			closed = true
			if len(m.snapC) > 0 {
				continue
			}
			break LOOP
		}
	}
	close(m.closed)
}

func (m *Manager) produce(ordinal uint64) {
	defer utils.Elapsed(time.Now(), m.logger, "snapshot produce")

	kvs, err := m.source.LiveSet(context.Background(), m.config.Prefix, ordinal)
	if err != nil {
		m.logger.Errorf("snapshot at ordinal %d: live set: %v", ordinal, err)
		return
	}

	data, err := EncodeBinary(kvs)
	if err != nil {
		m.logger.Errorf("snapshot at ordinal %d: encode: %v", ordinal, err)
		return
	}

	if err := os.WriteFile(snapshotPath(m.dir, ordinal, _extText), EncodeText(kvs), m.config.FileMode); err != nil {
		m.logger.Errorf("snapshot at ordinal %d: write tmap: %v", ordinal, err)
	}
	if err := writeFileAtomic(snapshotPath(m.dir, ordinal, _extBinary), data, m.config.FileMode); err != nil {
		m.logger.Errorf("snapshot at ordinal %d: write bmap: %v", ordinal, err)
		return
	}
	m.logger.Infof("snapshot written at ordinal %d (%d entries)", ordinal, len(kvs))

	if m.config.Archive {
		archiveOlder(m.dir, ordinal, m.logger)
	}
}
