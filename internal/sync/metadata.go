// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package sync

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/apezdr/streamsync/internal/cache"
	"github.com/apezdr/streamsync/internal/config"
	"github.com/apezdr/streamsync/internal/metrics"
	"github.com/apezdr/streamsync/internal/models"
)

// MetadataClient fetches enrichment documents referenced by catalog
// metadataURLs, caching them per (server, URL, record freshness). The
// record's LastUpdated stamp is part of the cache key, so updating a record
// naturally invalidates its cached metadata without explicit eviction.
type MetadataClient struct {
	client *http.Client
	cache  *cache.LRU[*models.Metadata]
}

// NewMetadataClient creates a client sized per the sync configuration.
func NewMetadataClient(cfg config.SyncConfig) *MetadataClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MetadataClient{
		client: &http.Client{Timeout: timeout},
		cache:  cache.NewLRU[*models.Metadata](cfg.MetadataCacheSize, cfg.MetadataCacheTTL),
	}
}

// Fetch retrieves the metadata document at url for the given server,
// serving from cache when the record has not changed since the cached copy
// was taken.
func (c *MetadataClient) Fetch(ctx context.Context, server models.ServerConfig, url string, recordUpdated time.Time) (*models.Metadata, error) {
	key := server.ID + "|" + url + "|" + recordUpdated.UTC().Format(time.RFC3339Nano)

	if meta, ok := c.cache.Get(key); ok {
		metrics.MetadataCacheHits.Inc()
		return meta, nil
	}
	metrics.MetadataCacheMisses.Inc()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create metadata request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if server.WebhookSecret != "" {
		req.Header.Set(webhookHeader, server.WebhookSecret)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	var meta models.Metadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode metadata from %s: %w", url, err)
	}

	c.cache.Add(key, &meta)
	return &meta, nil
}

// CacheStats exposes the underlying cache counters for the status endpoint.
func (c *MetadataClient) CacheStats() (hits, misses int64, size int) {
	return c.cache.Stats()
}
