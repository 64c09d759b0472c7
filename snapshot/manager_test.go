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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/B1NARY-GR0UP/logmap/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// liveSetFunc adapts a function to the Source interface.
type liveSetFunc func(ctx context.Context, prefix string, upTo uint64) ([]types.KV, error)

func (f liveSetFunc) LiveSet(ctx context.Context, prefix string, upTo uint64) ([]types.KV, error) {
	return f(ctx, prefix, upTo)
}

func staticSource(kvs []types.KV) Source {
	return liveSetFunc(func(context.Context, string, uint64) ([]types.KV, error) {
		return kvs, nil
	})
}

func waitForFile(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("file %s never appeared", path)
}

func TestManagerInterval(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, staticSource([]types.KV{{K: "map:1", V: []byte("x")}}), Config{
		Interval: 3,
		Archive:  false,
	})
	require.NoError(t, err)

	for ordinal := uint64(1); ordinal <= 7; ordinal++ {
		m.Notify(ordinal)
	}
	m.Close()

	assert.FileExists(t, filepath.Join(dir, "snapshot_3.bmap"))
	assert.FileExists(t, filepath.Join(dir, "snapshot_3.tmap"))
	assert.FileExists(t, filepath.Join(dir, "snapshot_6.bmap"))
	assert.NoFileExists(t, filepath.Join(dir, "snapshot_7.bmap"))

	ordinal, data, err := m.Latest()
	require.NoError(t, err)
	assert.Equal(t, uint64(6), ordinal)

	kvs, err := DecodeBinary(data)
	require.NoError(t, err)
	require.Len(t, kvs, 1)
	assert.Equal(t, "map:1", kvs[0].K)
}

func TestManagerNotifyBelowInterval(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, staticSource(nil), Config{Interval: 10})
	require.NoError(t, err)

	m.Notify(0)
	for ordinal := uint64(1); ordinal <= 9; ordinal++ {
		m.Notify(ordinal)
	}
	m.Close()

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestManagerRecoversLastOrdinal(t *testing.T) {
	dir := t.TempDir()
	data, err := EncodeBinary([]types.KV{{K: "map:1", V: []byte("x")}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapshot_20.bmap"), data, 0644))

	m, err := NewManager(dir, staticSource(nil), Config{Interval: 10})
	require.NoError(t, err)
	defer m.Close()

	// 25 is within the interval of the recovered ordinal 20
	m.Notify(25)
	time.Sleep(50 * time.Millisecond)
	assert.NoFileExists(t, filepath.Join(dir, "snapshot_25.bmap"))

	m.Notify(30)
	waitForFile(t, filepath.Join(dir, "snapshot_30.bmap"))
}

func TestManagerArchivesSuperseded(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, staticSource([]types.KV{{K: "map:1", V: []byte("x")}}), Config{
		Interval: 3,
		Archive:  true,
	})
	require.NoError(t, err)

	m.Notify(3)
	m.Notify(6)
	m.Close()

	// the superseded pair is compressed, the latest pair stays raw
	assert.NoFileExists(t, filepath.Join(dir, "snapshot_3.bmap"))
	assert.FileExists(t, filepath.Join(dir, "snapshot_3.bmap.s2"))
	assert.FileExists(t, filepath.Join(dir, "snapshot_3.tmap.s2"))
	assert.FileExists(t, filepath.Join(dir, "snapshot_6.bmap"))
	assert.FileExists(t, filepath.Join(dir, "snapshot_6.tmap"))

	// archived files never participate in latest selection
	ordinal, _, err := m.Latest()
	require.NoError(t, err)
	assert.Equal(t, uint64(6), ordinal)
}

func TestLatestEmptyDir(t *testing.T) {
	m, err := NewManager(t.TempDir(), staticSource(nil), Config{})
	require.NoError(t, err)
	defer m.Close()

	ordinal, data, err := m.Latest()
	require.NoError(t, err)
	assert.Zero(t, ordinal)
	assert.Nil(t, data)
}

func TestLatestPrefersBinary(t *testing.T) {
	dir := t.TempDir()
	bin, err := EncodeBinary([]types.KV{{K: "map:1", V: []byte("binary")}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapshot_5.bmap"), bin, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapshot_5.tmap"), EncodeText([]types.KV{{K: "map:1", V: []byte("text")}}), 0644))

	m, err := NewManager(dir, staticSource(nil), Config{})
	require.NoError(t, err)
	defer m.Close()

	ordinal, data, err := m.Latest()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), ordinal)

	kvs, err := DecodeBinary(data)
	require.NoError(t, err)
	require.Len(t, kvs, 1)
	assert.Equal(t, []byte("binary"), kvs[0].V)
}

func TestLatestTextOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapshot_9.tmap"), EncodeText([]types.KV{{K: "map:1", V: []byte("text")}}), 0644))

	m, err := NewManager(dir, staticSource(nil), Config{})
	require.NoError(t, err)
	defer m.Close()

	ordinal, data, err := m.Latest()
	require.NoError(t, err)
	assert.Equal(t, uint64(9), ordinal)

	kvs, err := DecodeBinary(data)
	require.NoError(t, err)
	require.Len(t, kvs, 1)
	assert.Equal(t, types.KV{K: "map:1", V: []byte("text")}, kvs[0])
}

func TestLatestIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapshot_abc.bmap"), []byte("junk"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("junk"), 0644))

	bin, err := EncodeBinary(nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapshot_2.bmap"), bin, 0644))

	m, err := NewManager(dir, staticSource(nil), Config{})
	require.NoError(t, err)
	defer m.Close()

	ordinal, _, err := m.Latest()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ordinal)
}
