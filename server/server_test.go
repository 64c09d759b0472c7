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

package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/B1NARY-GR0UP/logmap/snapshot"
	"github.com/B1NARY-GR0UP/logmap/storage"
	"github.com/B1NARY-GR0UP/logmap/types"
	"github.com/B1NARY-GR0UP/logmap/wire"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	store *storage.Store
	url   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.Open(filepath.Join(dir, "log.db"), storage.Config{
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	snapshots, err := snapshot.NewManager(filepath.Join(dir, "snapshots"), store, snapshot.Config{
		Interval: 1000,
	})
	require.NoError(t, err)

	srv := New(store, snapshots, DefaultConfig)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		ts.Close()
		snapshots.Close()
		_ = store.Close()
	})
	return &testServer{
		store: store,
		url:   strings.TrimPrefix(ts.URL, "http://"),
	}
}

func (ts *testServer) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ts.url+path, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func TestSubscribeStreamsRecords(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	_, err := ts.store.Append(ctx, "map:1", []byte("a"))
	require.NoError(t, err)
	_, err = ts.store.Append(ctx, "map:2", []byte("b"))
	require.NoError(t, err)

	conn := ts.dial(t, "/subscribe")
	frame, err := wire.EncodeFrame(&wire.SubscribeRequest{StartOrdinal: 0})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))

	for want := int64(1); want <= 2; want++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var record wire.Record
		require.NoError(t, wire.DecodeFrame(data, &record))
		assert.Equal(t, want, record.Ordinal)
		assert.Positive(t, record.Timestamp)
	}

	// a record appended after the subscription is tailed in
	_, err = ts.store.Append(ctx, "map:3", []byte("c"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var record wire.Record
	require.NoError(t, wire.DecodeFrame(data, &record))
	assert.Equal(t, int64(3), record.Ordinal)
	assert.Equal(t, "map:3", record.Key)
}

func TestSubscribeFromOffset(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := ts.store.Append(ctx, "map:1", []byte{byte(i)})
		require.NoError(t, err)
	}

	conn := ts.dial(t, "/subscribe")
	frame, err := wire.EncodeFrame(&wire.SubscribeRequest{StartOrdinal: 2})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var record wire.Record
	require.NoError(t, wire.DecodeFrame(data, &record))
	assert.Equal(t, int64(3), record.Ordinal)
}

func writeRequest(t *testing.T, conn *websocket.Conn, req *wire.WriteRequest) *wire.WriteResponse {
	t.Helper()
	frame, err := wire.EncodeFrame(req)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var resp wire.WriteResponse
	require.NoError(t, wire.DecodeFrame(data, &resp))
	return &resp
}

func TestWriteAcceptAndConflict(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "/write")

	resp := writeRequest(t, conn, &wire.WriteRequest{Ordinal: 1, Key: "map:1", Value: []byte("a"), LatestKnown: 0})
	assert.True(t, resp.Accepted)
	assert.Equal(t, int64(1), resp.AssignedOrdinal)
	assert.Empty(t, resp.Error)

	// stale latestKnown: the conflict travels back as a response, the
	// connection stays up
	resp = writeRequest(t, conn, &wire.WriteRequest{Ordinal: 2, Key: "map:2", Value: []byte("b"), LatestKnown: 0})
	assert.False(t, resp.Accepted)
	assert.Equal(t, int64(1), resp.AssignedOrdinal)
	assert.Contains(t, resp.Error, "conflict")

	resp = writeRequest(t, conn, &wire.WriteRequest{Ordinal: 2, Key: "map:2", Value: []byte("b"), LatestKnown: 1})
	assert.True(t, resp.Accepted)
	assert.Equal(t, int64(2), resp.AssignedOrdinal)
}

func TestWriteResponsesAreFIFO(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "/write")

	for i := int64(0); i < 5; i++ {
		resp := writeRequest(t, conn, &wire.WriteRequest{Key: "map:1", Value: []byte("v"), LatestKnown: i})
		assert.True(t, resp.Accepted)
		assert.Equal(t, i+1, resp.AssignedOrdinal)
	}
}

func TestSnapshotEmpty(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get("http://" + ts.url + "/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var sr wire.SnapshotResponse
	require.NoError(t, wire.DecodeFrame(body, &sr))
	assert.Zero(t, sr.SnapshotOrdinal)
	assert.Empty(t, sr.SnapshotData)
}

func TestSnapshotAfterInterval(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.Open(filepath.Join(dir, "log.db"), storage.Config{
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	snapshots, err := snapshot.NewManager(filepath.Join(dir, "snapshots"), store, snapshot.Config{
		Interval: 2,
	})
	require.NoError(t, err)
	srv := New(store, snapshots, DefaultConfig)
	hts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hts.Close()
		snapshots.Close()
		_ = store.Close()
	})
	url := strings.TrimPrefix(hts.URL, "http://")

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+url+"/write", nil)
	require.NoError(t, err)
	defer conn.Close()
	for i := int64(0); i < 2; i++ {
		resp := writeRequest(t, conn, &wire.WriteRequest{Key: "map:1", Value: []byte("v"), LatestKnown: i})
		require.True(t, resp.Accepted)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get("http://" + url + "/snapshot")
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		require.NoError(t, err)

		var sr wire.SnapshotResponse
		require.NoError(t, wire.DecodeFrame(body, &sr))
		if sr.SnapshotOrdinal == 2 {
			kvs, err := snapshot.DecodeBinary(sr.SnapshotData)
			require.NoError(t, err)
			require.Len(t, kvs, 1)
			assert.Equal(t, types.KV{K: "map:1", V: []byte("v")}, kvs[0])
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("snapshot never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
