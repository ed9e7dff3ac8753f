// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/apezdr/streamsync/internal/models"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/streamsync/config.yaml",
	"/etc/streamsync/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// FileServersEnvVar carries the file server list as a JSON array, for
// deployments that configure everything through the environment.
const FileServersEnvVar = "FILE_SERVERS"

// defaultConfig returns the built-in defaults, applied first and then
// overridden by config file and environment.
func defaultConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			Interval:          6 * time.Hour,
			RequestTimeout:    10 * time.Second,
			RetryAttempts:     4,
			RetryDelay:        2 * time.Second,
			WorkerLimit:       8,
			PruneEnabled:      true,
			MetadataCacheSize: 2048,
			MetadataCacheTTL:  time.Hour,
			RatePerSecond:     20,
			RateBurst:         40,
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    3000,
			Timeout: 10 * time.Minute, // trigger endpoint awaits a full run
		},
		Database: DatabaseConfig{
			Path: "/data/streamsync",
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds configuration from layered sources:
//  1. defaults (struct)
//  2. optional YAML config file
//  3. environment variables (highest priority)
//
// The file server list comes from the YAML file_servers list or the
// FILE_SERVERS env var (JSON array); env wins when both are present.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if raw := os.Getenv(FileServersEnvVar); raw != "" {
		var servers []models.ServerConfig
		if err := json.Unmarshal([]byte(raw), &servers); err != nil {
			return nil, fmt.Errorf("parse %s: %w", FileServersEnvVar, err)
		}
		cfg.FileServers = servers
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// they arrive as env strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to config paths.
// Unmapped variables are dropped so arbitrary environment values cannot
// pollute the configuration.
func envTransformFunc(key string) string {
	mappings := map[string]string{
		"sync_interval":            "sync.interval",
		"sync_request_timeout":     "sync.request_timeout",
		"sync_retry_attempts":      "sync.retry_attempts",
		"sync_retry_delay":         "sync.retry_delay",
		"sync_worker_limit":        "sync.worker_limit",
		"sync_prune_enabled":       "sync.prune_enabled",
		"sync_metadata_cache_size": "sync.metadata_cache_size",
		"sync_metadata_cache_ttl":  "sync.metadata_cache_ttl",
		"sync_rate_per_second":     "sync.rate_per_second",
		"sync_rate_burst":          "sync.rate_burst",

		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		"db_path":      "database.path",
		"db_in_memory": "database.in_memory",

		"jwt_secret":          "security.jwt_secret",
		"cors_origins":        "security.cors_origins",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := mappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
