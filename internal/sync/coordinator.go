// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package sync

import (
	"context"
	"sync"

	"github.com/apezdr/streamsync/internal/metrics"
	"github.com/apezdr/streamsync/internal/models"
)

// Coordinator collapses concurrent sync triggers into one run. The first
// trigger starts the pipeline; triggers arriving while it runs subscribe to
// the in-flight run and receive its exact result. A subscriber whose
// context ends early gets its context error while the run continues for
// everyone else.
type Coordinator struct {
	run func(ctx context.Context) (*models.SyncResult, error)

	mu      sync.Mutex
	current *runHandle
}

type runHandle struct {
	done   chan struct{}
	result *models.SyncResult
	err    error
}

// NewCoordinator creates a coordinator around the given run function. The
// run context governs the pipeline's lifetime, not any one subscriber's.
func NewCoordinator(run func(ctx context.Context) (*models.SyncResult, error)) *Coordinator {
	return &Coordinator{run: run}
}

// Running reports whether a sync run is in flight.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Trigger starts a run, or joins the in-flight one. runCtx drives the
// pipeline itself (only consulted when this trigger starts the run);
// waitCtx bounds how long this caller waits for the result.
func (c *Coordinator) Trigger(runCtx, waitCtx context.Context) (*models.SyncResult, error) {
	c.mu.Lock()
	if h := c.current; h != nil {
		c.mu.Unlock()
		metrics.SyncCoalescedTriggers.Inc()
		select {
		case <-h.done:
			return h.result, h.err
		case <-waitCtx.Done():
			return nil, waitCtx.Err()
		}
	}

	h := &runHandle{done: make(chan struct{})}
	c.current = h
	c.mu.Unlock()

	h.result, h.err = c.run(runCtx)

	// Clear before signaling so a trigger racing with completion starts a
	// fresh run instead of joining a finished one.
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	close(h.done)

	return h.result, h.err
}
