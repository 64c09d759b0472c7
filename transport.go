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
	"io"
	"net/http"
	"time"

	"github.com/B1NARY-GR0UP/logmap/wire"
	"github.com/gorilla/websocket"
)

// transport dials the three server endpoints. Connections it returns are
// owned by the caller.
type transport struct {
	addr   string
	dialer *websocket.Dialer
	httpc  *http.Client
}

func newTransport(addr string, dialTimeout time.Duration) *transport {
	return &transport{
		addr: addr,
		dialer: &websocket.Dialer{
			HandshakeTimeout: dialTimeout,
		},
		httpc: &http.Client{},
	}
}

func (t *transport) openWrite() (*websocket.Conn, error) {
	conn, _, err := t.dialer.Dial("ws://"+t.addr+"/write", nil)
	if err != nil {
		return nil, fmt.Errorf("dial write stream: %w", err)
	}
	return conn, nil
}

// openSubscribe dials the subscribe endpoint and sends the start frame;
// the returned connection only yields record frames after that.
func (t *transport) openSubscribe(from uint64) (*websocket.Conn, error) {
	conn, _, err := t.dialer.Dial("ws://"+t.addr+"/subscribe", nil)
	if err != nil {
		return nil, fmt.Errorf("dial subscribe stream: %w", err)
	}

	frame, err := wire.EncodeFrame(&wire.SubscribeRequest{StartOrdinal: int64(from)})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send subscribe request: %w", err)
	}
	return conn, nil
}

func (t *transport) getSnapshot(ctx context.Context) (uint64, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+t.addr+"/snapshot", nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := t.httpc.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, nil, &RemoteError{Message: fmt.Sprintf("snapshot request failed: %s", resp.Status)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read snapshot response: %w", err)
	}

	var sr wire.SnapshotResponse
	if err := wire.DecodeFrame(body, &sr); err != nil {
		return 0, nil, err
	}
	return uint64(sr.SnapshotOrdinal), sr.SnapshotData, nil
}
