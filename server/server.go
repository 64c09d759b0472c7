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

// Package server exposes the log over three endpoints: a subscribe
// stream, a write stream, and a snapshot fetch. Streams are websocket
// connections carrying one wire frame per message.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/B1NARY-GR0UP/logmap/pkg/logger"
	"github.com/B1NARY-GR0UP/logmap/snapshot"
	"github.com/B1NARY-GR0UP/logmap/storage"
	"github.com/B1NARY-GR0UP/logmap/types"
	"github.com/B1NARY-GR0UP/logmap/wire"
	"github.com/gorilla/websocket"
)

type Config struct {
	Addr string
}

var DefaultConfig = Config{
	Addr: "127.0.0.1:50051",
}

func (c *Config) validate() error {
	if c.Addr == "" {
		c.Addr = DefaultConfig.Addr
	}
	return nil
}

// Server translates remote requests into store and snapshot operations.
// It never retries and never drops a connection for a client-induced
// logical failure: conflicts and store errors travel back as responses
// with Accepted false.
type Server struct {
	config    Config
	logger    logger.Logger
	store     *storage.Store
	snapshots *snapshot.Manager

	upgrader   websocket.Upgrader
	httpServer *http.Server
}

func New(store *storage.Store, snapshots *snapshot.Manager, config Config) *Server {
	_ = config.validate()

	s := &Server{
		config:    config,
		logger:    logger.GetLogger(),
		store:     store,
		snapshots: snapshots,
		upgrader: websocket.Upgrader{
			// clients are services, not browsers
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/subscribe", s.handleSubscribe)
	mux.HandleFunc("/write", s.handleWrite)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	s.httpServer = &http.Server{Addr: config.Addr, Handler: mux}

	return s
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until Shutdown.
func (s *Server) Run() error {
	s.logger.Infof("serving on %s", s.config.Addr)
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleSubscribe streams records from the requested start ordinal until
// the peer goes away or the store fails.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorf("subscribe upgrade: %v", err)
		return
	}
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	if err != nil {
		return
	}
	var req wire.SubscribeRequest
	if err := wire.DecodeFrame(data, &req); err != nil {
		s.logger.Warnf("subscribe: bad request frame: %v", err)
		s.closePolicyViolation(conn)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	// the peer sends nothing after the request; a read returning is the
	// disconnect signal
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	err = s.store.SubscribeFrom(ctx, uint64(req.StartOrdinal), func(record types.Record) error {
		frame, err := wire.EncodeFrame(&wire.Record{
			Ordinal:   int64(record.Ordinal),
			Key:       record.Key,
			Value:     record.Value,
			Timestamp: record.Timestamp,
		})
		if err != nil {
			return err
		}
		return conn.WriteMessage(websocket.BinaryMessage, frame)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Errorf("subscribe stream ended: %v", err)
	}
}

// handleWrite answers every request frame with exactly one response
// frame, in order.
func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorf("write upgrade: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req wire.WriteRequest
		if err := wire.DecodeFrame(data, &req); err != nil {
			s.logger.Warnf("write: bad request frame: %v", err)
			s.closePolicyViolation(conn)
			return
		}

		frame, err := wire.EncodeFrame(s.write(r.Context(), &req))
		if err != nil {
			s.logger.Errorf("write: encode response: %v", err)
			return
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return
		}
	}
}

func (s *Server) write(ctx context.Context, req *wire.WriteRequest) *wire.WriteResponse {
	ordinal, err := s.store.Write(ctx, uint64(req.Ordinal), req.Key, req.Value, uint64(req.LatestKnown))

	var conflict *storage.ConflictError
	switch {
	case err == nil:
		s.snapshots.Notify(ordinal)
		return &wire.WriteResponse{Accepted: true, AssignedOrdinal: int64(ordinal)}
	case errors.As(err, &conflict):
		return &wire.WriteResponse{
			Accepted:        false,
			Error:           conflict.Error(),
			AssignedOrdinal: int64(conflict.Latest),
		}
	default:
		s.logger.Errorf("write %q: %v", req.Key, err)
		return &wire.WriteResponse{
			Accepted: false,
			Error:    fmt.Sprintf("storage error: %v", err),
		}
	}
}

// handleSnapshot returns the latest bmap image; ordinal 0 with empty data
// means none exists.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ordinal, data, err := s.snapshots.Latest()
	if err != nil {
		s.logger.Errorf("snapshot fetch: %v", err)
		http.Error(w, "failed to load snapshot", http.StatusInternalServerError)
		return
	}

	frame, err := wire.EncodeFrame(&wire.SnapshotResponse{
		SnapshotOrdinal: int64(ordinal),
		SnapshotData:    data,
	})
	if err != nil {
		s.logger.Errorf("snapshot fetch: encode: %v", err)
		http.Error(w, "failed to encode snapshot", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(frame)
}

func (s *Server) closePolicyViolation(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad frame")
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
}
