// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package cache

import (
	"testing"
	"time"
)

func TestLRUGetAdd(t *testing.T) {
	c := NewLRU[string](4, time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Fatal("empty cache returned a value")
	}

	c.Add("a", "1")
	v, ok := c.Get("a")
	if !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v", v, ok)
	}

	c.Add("a", "2")
	if v, _ := c.Get("a"); v != "2" {
		t.Errorf("refresh lost: %q", v)
	}
}

func TestLRUEviction(t *testing.T) {
	c := NewLRU[int](2, time.Minute)

	c.Add("a", 1)
	c.Add("b", 2)
	c.Get("a") // a is now most recently used
	c.Add("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry survived eviction")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("recently used entry evicted")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestLRUExpiry(t *testing.T) {
	c := NewLRU[int](8, 10*time.Millisecond)

	c.Add("a", 1)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Error("expired entry returned")
	}
}

func TestLRURemove(t *testing.T) {
	c := NewLRU[int](8, time.Minute)

	c.Add("a", 1)
	if !c.Remove("a") {
		t.Error("Remove(a) = false for existing key")
	}
	if c.Remove("a") {
		t.Error("Remove(a) = true for removed key")
	}
}
