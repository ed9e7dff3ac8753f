// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// applyFieldPath sets value at the dotted path inside doc, creating
// intermediate objects as needed. Numeric segments index existing array
// elements; structural changes (new seasons, new episodes) go through whole
// record writes, not field paths. A nil value unsets the final key.
func applyFieldPath(doc map[string]any, path string, value any) error {
	segments := strings.Split(path, ".")
	if len(segments) == 0 || path == "" {
		return fmt.Errorf("empty field path")
	}

	normalized, err := normalizeValue(value)
	if err != nil {
		return err
	}

	var container any = doc
	for i := 0; i < len(segments)-1; i++ {
		next, err := descend(container, segments[i], segments[i+1])
		if err != nil {
			return fmt.Errorf("segment %q: %w", segments[i], err)
		}
		container = next
	}

	last := segments[len(segments)-1]
	switch c := container.(type) {
	case map[string]any:
		if normalized == nil {
			delete(c, last)
			return nil
		}
		c[last] = normalized
	case []any:
		idx, err := strconv.Atoi(last)
		if err != nil || idx < 0 || idx >= len(c) {
			return fmt.Errorf("invalid array index %q", last)
		}
		c[idx] = normalized
	default:
		return fmt.Errorf("cannot set %q on %T", last, container)
	}
	return nil
}

// descend returns the container under segment, creating a map or array when
// absent. nextSegment decides whether a created child is an array (numeric)
// or an object.
func descend(container any, segment, nextSegment string) (any, error) {
	switch c := container.(type) {
	case map[string]any:
		child, ok := c[segment]
		if !ok || child == nil {
			child = newChild(nextSegment)
			c[segment] = child
		}
		return normalizeContainer(c, segment, child)
	case []any:
		idx, err := strconv.Atoi(segment)
		if err != nil {
			return nil, fmt.Errorf("array container needs numeric segment, got %q", segment)
		}
		if idx < 0 || idx >= len(c) {
			return nil, fmt.Errorf("array index %d out of range (len %d)", idx, len(c))
		}
		if c[idx] == nil {
			c[idx] = newChild(nextSegment)
		}
		return c[idx], nil
	default:
		return nil, fmt.Errorf("cannot descend into %T", container)
	}
}

// normalizeContainer re-homes a child that unmarshaled to an unexpected
// concrete type (e.g. map[string]string) as map[string]any so descent can
// continue. Returns the (possibly replaced) child.
func normalizeContainer(parent map[string]any, segment string, child any) (any, error) {
	switch child.(type) {
	case map[string]any, []any:
		return child, nil
	default:
		converted, err := normalizeValue(child)
		if err != nil {
			return nil, err
		}
		switch converted.(type) {
		case map[string]any, []any:
			parent[segment] = converted
			return converted, nil
		}
		return nil, fmt.Errorf("path segment %q addresses scalar %T", segment, child)
	}
}

func newChild(nextSegment string) any {
	if _, err := strconv.Atoi(nextSegment); err == nil {
		return []any{}
	}
	return map[string]any{}
}

// normalizeValue converts typed values (structs, maps of structs) into the
// plain map/slice/scalar shapes JSON documents are made of.
func normalizeValue(value any) (any, error) {
	switch value.(type) {
	case nil, string, bool, float64, int, int64, map[string]any, []any:
		return value, nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	return out, nil
}
