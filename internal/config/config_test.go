// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/apezdr/streamsync/internal/models"
)

func validServers() []models.ServerConfig {
	return []models.ServerConfig{
		{ID: "main", BaseURL: "https://main.example.com", SyncEndpoint: "https://main.example.com/api", Priority: 1, IsDefault: true},
		{ID: "backup", BaseURL: "https://backup.example.com", SyncEndpoint: "https://backup.example.com/api", Priority: 2},
	}
}

func baseConfig() *Config {
	cfg := defaultConfig()
	cfg.FileServers = validServers()
	return cfg
}

func TestValidateOK(t *testing.T) {
	if err := baseConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			"no servers",
			func(c *Config) { c.FileServers = nil },
			"at least one file server",
		},
		{
			"duplicate ids",
			func(c *Config) { c.FileServers[1].ID = "main"; c.FileServers[1].IsDefault = false },
			"duplicate",
		},
		{
			"no default",
			func(c *Config) { c.FileServers[0].IsDefault = false },
			"is_default",
		},
		{
			"two defaults",
			func(c *Config) { c.FileServers[1].IsDefault = true },
			"is_default",
		},
		{
			"bad scheme",
			func(c *Config) { c.FileServers[0].BaseURL = "ftp://main.example.com"; c.FileServers[0].SyncEndpoint = "ftp://main.example.com" },
			"scheme",
		},
		{
			"zero priority",
			func(c *Config) { c.FileServers[0].Priority = 0 },
			"validation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(FileServersEnvVar, `[
		{"id":"main","base_url":"https://main.example.com","sync_endpoint":"https://main.example.com/api","priority":1,"is_default":true},
		{"id":"backup","base_url":"https://backup.example.com","sync_endpoint":"https://backup.example.com/api","prefix_path":"/media","priority":2}
	]`)
	t.Setenv("SYNC_RETRY_ATTEMPTS", "7")
	t.Setenv("HTTP_PORT", "8123")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.FileServers) != 2 {
		t.Fatalf("got %d file servers, want 2", len(cfg.FileServers))
	}
	if cfg.FileServers[1].PrefixPath != "/media" {
		t.Errorf("prefix_path = %q", cfg.FileServers[1].PrefixPath)
	}
	if cfg.Sync.RetryAttempts != 7 {
		t.Errorf("retry_attempts = %d, want 7", cfg.Sync.RetryAttempts)
	}
	if cfg.Server.Port != 8123 {
		t.Errorf("port = %d, want 8123", cfg.Server.Port)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("cors_origins = %v", cfg.Security.CORSOrigins)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}

	// Defaults survive where not overridden.
	if cfg.Sync.RequestTimeout != 10*time.Second {
		t.Errorf("request_timeout = %v, want 10s", cfg.Sync.RequestTimeout)
	}
}

func TestLoadRejectsMalformedFileServers(t *testing.T) {
	t.Setenv(FileServersEnvVar, `{"not":"an array"}`)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed FILE_SERVERS")
	}
}

func TestInternalEndpointFallback(t *testing.T) {
	s := models.ServerConfig{SyncEndpoint: "https://pub.example.com"}
	if got := s.Internal(); got != "https://pub.example.com" {
		t.Errorf("Internal() = %q, want sync endpoint", got)
	}
	s.InternalEndpoint = "http://10.0.0.5:3000"
	if got := s.Internal(); got != "http://10.0.0.5:3000" {
		t.Errorf("Internal() = %q, want internal endpoint", got)
	}
}
