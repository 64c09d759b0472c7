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

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/B1NARY-GR0UP/logmap/pkg/logger"
	"github.com/B1NARY-GR0UP/logmap/server"
	"github.com/B1NARY-GR0UP/logmap/snapshot"
	"github.com/B1NARY-GR0UP/logmap/storage"
)

func main() {
	addr := flag.String("addr", server.DefaultConfig.Addr, "listen address")
	db := flag.String("db", "logmap.db", "path of the record database")
	snapshotDir := flag.String("snapshot-dir", "snapshots", "snapshot directory")
	snapshotInterval := flag.Uint64("snapshot-interval", snapshot.DefaultConfig.Interval, "ordinals between snapshots")
	flag.Parse()

	log := logger.GetLogger()

	store, err := storage.Open(*db, storage.DefaultConfig)
	if err != nil {
		log.Fatalf("open store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	snapshotConfig := snapshot.DefaultConfig
	snapshotConfig.Interval = *snapshotInterval
	snapshots, err := snapshot.NewManager(*snapshotDir, store, snapshotConfig)
	if err != nil {
		log.Fatalf("open snapshot manager: %v", err)
		os.Exit(1)
	}
	defer snapshots.Close()

	srv := server.New(store, snapshots, server.Config{Addr: *addr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutdown: %v", err)
		}
	}()

	if err := srv.Run(); err != nil {
		log.Fatalf("serve: %v", err)
		os.Exit(1)
	}
}
