// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package sync

import (
	"testing"
	"time"

	"github.com/apezdr/streamsync/internal/config"
	"github.com/apezdr/streamsync/internal/models"
	"github.com/apezdr/streamsync/internal/registry"
	"github.com/apezdr/streamsync/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(store.Options{InMemory: true})
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		RequestTimeout:    5 * time.Second,
		RetryAttempts:     2,
		RetryDelay:        time.Millisecond,
		WorkerLimit:       4,
		PruneEnabled:      true,
		MetadataCacheSize: 64,
		MetadataCacheTTL:  time.Minute,
		RatePerSecond:     1000,
		RateBurst:         1000,
	}
}

func testServerConfigs() []models.ServerConfig {
	return []models.ServerConfig{
		{
			ID:           "primary",
			BaseURL:      "https://a.example.com",
			PrefixPath:   "/media",
			SyncEndpoint: "https://a.example.com/sync",
			Priority:     1,
			IsDefault:    true,
		},
		{
			ID:           "backup",
			BaseURL:      "https://b.example.com",
			SyncEndpoint: "https://b.example.com/sync",
			Priority:     2,
		},
	}
}

func newTestEngine(t *testing.T) (*Engine, *store.Store, *registry.Registry) {
	t.Helper()
	st := newTestStore(t)
	reg := registry.New(testServerConfigs())
	cfg := testSyncConfig()
	engine := NewEngine(st, reg, NewMetadataClient(cfg), cfg)
	return engine, st, reg
}

// okResults wraps snapshots as successful fetch results keyed by server ID.
func okResults(reg *registry.Registry, snapshots map[string]*models.CatalogSnapshot) map[string]CatalogResult {
	results := make(map[string]CatalogResult, len(snapshots))
	for id, snap := range snapshots {
		server, _ := reg.Get(id)
		results[id] = CatalogResult{Server: server, Snapshot: snap}
	}
	return results
}

func movieSnapshot(title string, entry models.MovieEntry) *models.CatalogSnapshot {
	return &models.CatalogSnapshot{
		Movies: map[string]models.MovieEntry{title: entry},
		TV:     map[string]models.ShowEntry{},
	}
}
