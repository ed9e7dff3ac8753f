// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

// Package config loads and validates application configuration from layered
// sources: built-in defaults, an optional YAML file, and environment
// variables (highest priority).
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/apezdr/streamsync/internal/models"
)

// Config is the root application configuration.
type Config struct {
	// FileServers lists the catalog sources to reconcile, from YAML
	// (file_servers:) or the FILE_SERVERS env var (JSON array).
	FileServers []models.ServerConfig `koanf:"file_servers"`

	Sync     SyncConfig     `koanf:"sync"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// SyncConfig controls the reconciliation engine.
type SyncConfig struct {
	// Interval between scheduled sync runs. 0 disables the periodic loop;
	// syncs then only run via the HTTP trigger.
	Interval time.Duration `koanf:"interval"`

	// RequestTimeout bounds each catalog/metadata HTTP request.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// RetryAttempts and RetryDelay shape the fetch retry policy
	// (exponential backoff with jitter).
	RetryAttempts int           `koanf:"retry_attempts" validate:"gte=1"`
	RetryDelay    time.Duration `koanf:"retry_delay"`

	// WorkerLimit bounds per-aspect record concurrency.
	WorkerLimit int `koanf:"worker_limit" validate:"gte=1"`

	// PruneEnabled allows the post-sync removal of media absent from
	// every server. Pruning is additionally skipped for runs in which any
	// catalog fetch failed.
	PruneEnabled bool `koanf:"prune_enabled"`

	// MetadataCacheSize / MetadataCacheTTL size the cross-run metadata
	// enrichment cache.
	MetadataCacheSize int           `koanf:"metadata_cache_size" validate:"gte=1"`
	MetadataCacheTTL  time.Duration `koanf:"metadata_cache_ttl"`

	// RatePerSecond / RateBurst cap outbound requests per file server.
	RatePerSecond float64 `koanf:"rate_per_second"`
	RateBurst     int     `koanf:"rate_burst"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gt=0,lte=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// DatabaseConfig configures the badger-backed document store.
type DatabaseConfig struct {
	// Path is the badger directory. Ignored when InMemory is set.
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// SecurityConfig configures authentication on the trigger surface.
type SecurityConfig struct {
	// JWTSecret signs/verifies admin bearer tokens. Empty disables admin
	// bearer auth; webhook secrets still work.
	JWTSecret string `koanf:"jwt_secret"`

	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig configures the zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

var validate = validator.New()

// Validate checks the configuration for structural and cross-field errors.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if len(c.FileServers) == 0 {
		return fmt.Errorf("at least one file server must be configured (file_servers / FILE_SERVERS)")
	}

	seen := make(map[string]bool, len(c.FileServers))
	defaults := 0
	for i := range c.FileServers {
		s := &c.FileServers[i]
		if seen[s.ID] {
			return fmt.Errorf("duplicate file server id %q", s.ID)
		}
		seen[s.ID] = true
		if s.IsDefault {
			defaults++
		}
		if err := validateHTTPURL(s.BaseURL, s.ID+".base_url"); err != nil {
			return err
		}
		if err := validateHTTPURL(s.SyncEndpoint, s.ID+".sync_endpoint"); err != nil {
			return err
		}
		if s.InternalEndpoint != "" {
			if err := validateHTTPURL(s.InternalEndpoint, s.ID+".internal_endpoint"); err != nil {
				return err
			}
		}
	}
	if defaults != 1 {
		return fmt.Errorf("exactly one file server must set is_default, got %d", defaults)
	}

	return nil
}

// validateHTTPURL checks that a URL parses with an http(s) scheme and host.
func validateHTTPURL(rawURL, fieldName string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s: failed to parse URL: %w", fieldName, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s: scheme must be http or https, got %q", fieldName, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s: host is required", fieldName)
	}
	return nil
}
