// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

// Package models defines the shared data types of the reconciliation engine:
// file server descriptors, per-sync catalog snapshots, the canonical
// persisted media records with field-level provenance, and sync results.
package models

import "strings"

// ServerConfig describes one configured file server. Instances are built
// once at startup from configuration and are read-only afterwards.
type ServerConfig struct {
	// ID uniquely identifies the server across all configuration and
	// provenance tags.
	ID string `json:"id" koanf:"id" validate:"required"`

	// BaseURL is the public root of the server, without trailing slash.
	BaseURL string `json:"base_url" koanf:"base_url" validate:"required,url"`

	// PrefixPath is an optional path segment between the base URL and
	// resource paths (e.g. "/media").
	PrefixPath string `json:"prefix_path" koanf:"prefix_path"`

	// SyncEndpoint is the public endpoint catalogs are fetched from.
	SyncEndpoint string `json:"sync_endpoint" koanf:"sync_endpoint" validate:"required,url"`

	// InternalEndpoint is the server-to-server endpoint. Empty means
	// SyncEndpoint is used.
	InternalEndpoint string `json:"internal_endpoint" koanf:"internal_endpoint"`

	// WebhookSecret is the shared secret sent as X-Webhook-ID on catalog
	// requests and accepted on the trigger endpoint.
	WebhookSecret string `json:"webhook_secret" koanf:"webhook_secret"`

	// Priority orders servers for field merging. Lower number wins.
	Priority int `json:"priority" koanf:"priority" validate:"gt=0"`

	// IsDefault marks the server used when no ID is given. Exactly one
	// server carries it.
	IsDefault bool `json:"is_default" koanf:"is_default"`
}

// Internal returns the server-to-server endpoint, falling back to the
// public sync endpoint when none is configured.
func (s ServerConfig) Internal() string {
	if s.InternalEndpoint != "" {
		return s.InternalEndpoint
	}
	return s.SyncEndpoint
}

// TitleKey normalizes a media title into the cross-server identity key:
// case-folded, trimmed, inner whitespace collapsed. Display titles keep
// their original form; only matching goes through this key.
func TitleKey(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(title))), " ")
}
