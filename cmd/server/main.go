// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

// Package main is the entry point for the StreamSync server.
//
// StreamSync reconciles media catalogs from multiple file servers into one
// canonical document database. It periodically fetches each server's movie
// and TV catalogs, creates records for new media, merges fields by server
// priority with per-field provenance, and prunes media no server offers.
//
// # Startup order
//
//  1. Configuration: layered via Koanf v2 (defaults, config.yaml, env)
//  2. Logging: zerolog, JSON or console format
//  3. Document store: BadgerDB at database.path
//  4. Sync manager: scheduler, fetcher, merge engine, coordinator
//  5. HTTP server: trigger, status, health and metrics endpoints
//  6. Supervision: suture tree restarting crashed layers
//
// # Configuration
//
// File servers come from the file_servers list in config.yaml or the
// FILE_SERVERS env var (JSON array). Each entry carries id, base_url,
// sync_endpoint, priority (lower wins), and exactly one entry sets
// is_default. See internal/config for the full surface.
//
// # Signal handling
//
// SIGINT/SIGTERM cancel the root context; the supervisor drains the HTTP
// server and stops the scheduler, then the store closes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apezdr/streamsync/internal/api"
	"github.com/apezdr/streamsync/internal/config"
	"github.com/apezdr/streamsync/internal/logging"
	"github.com/apezdr/streamsync/internal/registry"
	"github.com/apezdr/streamsync/internal/store"
	"github.com/apezdr/streamsync/internal/supervisor"
	syncengine "github.com/apezdr/streamsync/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "streamsync: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Int("file_servers", len(cfg.FileServers)).
		Dur("sync_interval", cfg.Sync.Interval).
		Msg("Starting StreamSync")

	st, err := store.Open(store.Options{Path: cfg.Database.Path, InMemory: cfg.Database.InMemory})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Store close failed")
		}
	}()

	reg := registry.New(cfg.FileServers)
	manager := syncengine.NewManager(cfg.Sync, st, reg)

	handler := api.NewHandler(manager, st)
	auth := api.NewAuthenticator(cfg.Security.JWTSecret, cfg.FileServers)
	router := api.NewRouter(handler, auth, cfg.Security).Setup()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(manager)
	tree.AddAPIService(supervisor.NewHTTPService(httpServer, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	logging.Info().Msg("Shutdown complete")
	return nil
}
