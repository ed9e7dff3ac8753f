// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package models

import "time"

// MissingSeason lists a show season absent or incomplete on the canonical
// side. MissingEpisodes is empty when the whole season is missing.
type MissingSeason struct {
	Season          int   `json:"season"`
	MissingEpisodes []int `json:"missingEpisodes,omitempty"`
}

// MissingShow lists a show with seasons/episodes the canonical database
// lacks compared to one server's catalog.
type MissingShow struct {
	ShowTitle string          `json:"showTitle"`
	Seasons   []MissingSeason `json:"seasons"`
}

// MissingMediaSet is the per-server diff result. MissingMp4 lists titles
// present in the catalog but lacking any playable file URL; they are not
// candidates for creation.
type MissingMediaSet struct {
	Movies []string      `json:"movies"`
	TV     []MissingShow `json:"tv"`

	MissingMp4Movies []string `json:"missingMp4Movies,omitempty"`
	MissingMp4Shows  []string `json:"missingMp4Shows,omitempty"`
}

// Empty reports whether nothing is missing.
func (m MissingMediaSet) Empty() bool {
	return len(m.Movies) == 0 && len(m.TV) == 0
}

// SyncError tags one failure with the server and pipeline phase it
// occurred in.
type SyncError struct {
	ServerID string `json:"serverId"`
	Phase    string `json:"phase"`
	Title    string `json:"title,omitempty"`
	Message  string `json:"message"`
}

// ServerSyncResult accumulates one server's contribution to a run.
type ServerSyncResult struct {
	ServerID     string          `json:"serverId"`
	AddedMovies  []string        `json:"addedMovies,omitempty"`
	AddedShows   []string        `json:"addedShows,omitempty"`
	MissingMedia MissingMediaSet `json:"missingMedia"`
	Processed    int             `json:"processed"`
	FieldsSet    int             `json:"fieldsSet"`
}

// SyncResult is the orchestrator's output for one full run. It is returned
// to HTTP callers and never persisted; only LastSyncTime survives as a
// database document.
type SyncResult struct {
	RunID        string                      `json:"runId"`
	Servers      map[string]ServerSyncResult `json:"servers"`
	Errors       []SyncError                 `json:"errors,omitempty"`
	PrunedMovies []string                    `json:"prunedMovies,omitempty"`
	PrunedShows  []string                    `json:"prunedShows,omitempty"`
	PruneSkipped bool                        `json:"pruneSkipped,omitempty"`
	StartedAt    time.Time                   `json:"startedAt"`
	Duration     time.Duration               `json:"durationMs"`
}
