// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package sync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apezdr/streamsync/internal/config"
	"github.com/apezdr/streamsync/internal/logging"
	"github.com/apezdr/streamsync/internal/metrics"
	"github.com/apezdr/streamsync/internal/models"
	"github.com/apezdr/streamsync/internal/registry"
	"github.com/apezdr/streamsync/internal/store"
)

// Manager owns the sync lifecycle: the periodic schedule, on-demand
// triggers, and the run pipeline itself. It implements suture.Service and
// is restarted by the supervisor if it ever returns unexpectedly.
type Manager struct {
	cfg     config.SyncConfig
	store   *store.Store
	reg     *registry.Registry
	fetcher *Fetcher
	engine  *Engine
	meta    *MetadataClient
	coord   *Coordinator

	// runCtx is the lifecycle context runs execute under, so an HTTP
	// caller disconnecting never cancels a run the scheduler shares.
	mu     sync.Mutex
	runCtx context.Context
}

// NewManager wires the full pipeline for the configured servers.
func NewManager(cfg config.SyncConfig, st *store.Store, reg *registry.Registry) *Manager {
	meta := NewMetadataClient(cfg)
	m := &Manager{
		cfg:     cfg,
		store:   st,
		reg:     reg,
		fetcher: NewFetcher(cfg),
		engine:  NewEngine(st, reg, meta, cfg),
		meta:    meta,
		runCtx:  context.Background(),
	}
	m.coord = NewCoordinator(m.runSync)
	return m
}

func (m *Manager) String() string { return "sync-manager" }

// Serve runs the periodic schedule until ctx ends. One sync runs at
// startup, then every configured interval.
func (m *Manager) Serve(ctx context.Context) error {
	m.mu.Lock()
	m.runCtx = ctx
	m.mu.Unlock()

	interval := m.cfg.Interval
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	logging.Info().Dur("interval", interval).Msg("Sync scheduler started")

	m.scheduledSync(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.scheduledSync(ctx)
		}
	}
}

func (m *Manager) scheduledSync(ctx context.Context) {
	if _, err := m.TriggerSync(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Scheduled sync failed")
	}
}

// TriggerSync starts a sync run, or joins one already in flight. ctx only
// bounds this caller's wait; the run itself continues under the manager's
// lifecycle context.
func (m *Manager) TriggerSync(ctx context.Context) (*models.SyncResult, error) {
	m.mu.Lock()
	runCtx := m.runCtx
	m.mu.Unlock()
	return m.coord.Trigger(runCtx, ctx)
}

// Status is the snapshot returned by the sync status endpoint.
type Status struct {
	Running      bool      `json:"running"`
	LastSyncTime time.Time `json:"lastSyncTime"`
	Servers      int       `json:"servers"`

	MetadataCacheHits   int64 `json:"metadataCacheHits"`
	MetadataCacheMisses int64 `json:"metadataCacheMisses"`
	MetadataCacheSize   int   `json:"metadataCacheSize"`
}

// Status reports whether a run is in flight and when the last one
// completed.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	last, err := m.store.LastSyncTime(ctx)
	if err != nil {
		return Status{}, err
	}
	hits, misses, size := m.meta.CacheStats()
	return Status{
		Running:             m.coord.Running(),
		LastSyncTime:        last,
		Servers:             len(m.reg.All()),
		MetadataCacheHits:   hits,
		MetadataCacheMisses: misses,
		MetadataCacheSize:   size,
	}, nil
}

// runSync executes one full reconciliation: fetch all catalogs, merge each
// successful snapshot in priority order, prune orphans when safe, and stamp
// the run time. A server failure skips that server, never the run.
func (m *Manager) runSync(ctx context.Context) (*models.SyncResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &models.SyncResult{
		RunID:     uuid.NewString(),
		Servers:   make(map[string]models.ServerSyncResult),
		StartedAt: start,
	}

	servers := m.reg.All()
	logging.Info().Str("run_id", result.RunID).Int("servers", len(servers)).Msg("Sync run started")

	fetches := m.fetcher.FetchAll(ctx, servers)
	av := BuildAvailability(fetches)

	allFetched := true
	succeeded := 0
	for _, server := range servers {
		res := fetches[server.ID]
		if res.Err != nil {
			allFetched = false
			result.Errors = append(result.Errors, models.SyncError{
				ServerID: server.ID,
				Phase:    "fetch",
				Message:  res.Err.Error(),
			})
			continue
		}
		succeeded++
	}

	for _, server := range servers {
		res := fetches[server.ID]
		if res.Err != nil || res.Snapshot == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		srvResult, errs := m.engine.SyncServer(ctx, server, res.Snapshot, av)
		result.Servers[server.ID] = srvResult
		result.Errors = append(result.Errors, errs...)
	}

	switch {
	case !m.cfg.PruneEnabled:
		result.PruneSkipped = true
	case !allFetched:
		// With any snapshot missing, absence proves nothing.
		result.PruneSkipped = true
		logging.Warn().Str("run_id", result.RunID).Msg("Pruning skipped, not all servers reachable")
	default:
		prunedMovies, prunedShows, errs := m.engine.Prune(ctx, fetches)
		result.PrunedMovies = prunedMovies
		result.PrunedShows = prunedShows
		result.Errors = append(result.Errors, errs...)
	}

	if succeeded > 0 {
		if err := m.store.SetLastSyncTime(ctx, start); err != nil {
			result.Errors = append(result.Errors, models.SyncError{Phase: "finalize", Message: err.Error()})
		}
	}

	result.Duration = time.Since(start)

	status := "ok"
	switch {
	case succeeded == 0:
		status = "error"
	case len(result.Errors) > 0:
		status = "partial"
	}
	metrics.ObserveSyncRun(status, result.Duration)

	logging.Info().
		Str("run_id", result.RunID).
		Str("status", status).
		Int("servers_ok", succeeded).
		Int("errors", len(result.Errors)).
		Bool("prune_skipped", result.PruneSkipped).
		Dur("duration", result.Duration).
		Msg("Sync run finished")

	return result, nil
}
