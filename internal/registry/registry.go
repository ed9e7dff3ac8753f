// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

// Package registry indexes the configured file servers and answers the
// priority questions the merge engine asks. The registry is built once at
// startup and is read-only afterwards.
package registry

import (
	"fmt"
	"sort"

	"github.com/apezdr/streamsync/internal/models"
)

// ErrServerNotFound is returned for lookups of unregistered server IDs.
var ErrServerNotFound = fmt.Errorf("file server not found")

// Registry holds the immutable set of configured file servers.
type Registry struct {
	byID      map[string]models.ServerConfig
	ordered   []models.ServerConfig
	defaultID string
}

// New builds a registry from configuration. Servers are ordered by
// ascending priority (ties broken by ID) so orchestration order is
// deterministic.
func New(servers []models.ServerConfig) *Registry {
	r := &Registry{byID: make(map[string]models.ServerConfig, len(servers))}

	r.ordered = make([]models.ServerConfig, len(servers))
	copy(r.ordered, servers)
	sort.Slice(r.ordered, func(i, j int) bool {
		if r.ordered[i].Priority != r.ordered[j].Priority {
			return r.ordered[i].Priority < r.ordered[j].Priority
		}
		return r.ordered[i].ID < r.ordered[j].ID
	})

	for _, s := range r.ordered {
		r.byID[s.ID] = s
		if s.IsDefault {
			r.defaultID = s.ID
		}
	}
	return r
}

// Get returns the server with the given ID. An empty ID returns the
// configured default server.
func (r *Registry) Get(id string) (models.ServerConfig, error) {
	if id == "" {
		id = r.defaultID
	}
	s, ok := r.byID[id]
	if !ok {
		return models.ServerConfig{}, fmt.Errorf("%w: %q", ErrServerNotFound, id)
	}
	return s, nil
}

// All returns every configured server in ascending priority order.
// The returned slice must not be mutated.
func (r *Registry) All() []models.ServerConfig {
	return r.ordered
}

// Priority returns the priority number of the given server.
func (r *Registry) Priority(id string) (int, error) {
	s, ok := r.byID[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrServerNotFound, id)
	}
	return s.Priority, nil
}

// IsHigherOrEqualPriority reports whether candidateID may overwrite a field
// currently owned by existingID. True when existingID is empty (no incumbent
// to beat) or the candidate's priority number is <= the incumbent's.
//
// Ties are allowed deliberately: a re-sync from the same server that owns a
// field must still refresh it.
func (r *Registry) IsHigherOrEqualPriority(existingID, candidateID string) bool {
	if existingID == "" {
		return true
	}

	existing, ok := r.byID[existingID]
	if !ok {
		// Provenance from a server that is no longer configured does not
		// block updates.
		return true
	}
	candidate, ok := r.byID[candidateID]
	if !ok {
		return false
	}
	return candidate.Priority <= existing.Priority
}
