// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

// Package sync implements the media reconciliation engine: fetching
// catalogs from every configured file server, diffing them against the
// canonical database, creating missing records, and merging each syncable
// aspect field-by-field under the server priority rules.
//
// The pipeline per run:
//
//	fetch all catalogs (concurrent, per-server isolation)
//	  -> collect field availability across servers
//	  -> per server, in ascending priority order:
//	       identify missing media -> create missing -> sync each aspect
//	  -> prune media absent from every server
//	  -> persist lastSyncTime
//
// Concurrent trigger calls are coalesced by the Coordinator: at most one
// pipeline runs at a time and late callers receive the in-flight run's
// result.
package sync
