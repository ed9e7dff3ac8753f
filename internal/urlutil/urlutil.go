// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

// Package urlutil builds and compares the resource URLs exchanged with file
// servers. Catalogs carry server-relative paths; the canonical database
// stores fully-qualified URLs. The Resolver converts between the two so
// values from different servers stay comparable.
//
// All functions are pure string transforms with no I/O.
package urlutil

import "strings"

// Resolver normalizes URLs for one file server.
type Resolver struct {
	baseURL    string
	prefixPath string
}

// NewResolver creates a resolver for the given base URL and prefix path.
// Trailing/leading slashes are normalized once here so the methods can
// join segments without re-checking.
func NewResolver(baseURL, prefixPath string) Resolver {
	return Resolver{
		baseURL:    strings.TrimRight(baseURL, "/"),
		prefixPath: normalizeSegment(prefixPath),
	}
}

// normalizeSegment returns the segment with exactly one leading slash and
// no trailing slash, or "" for empty input.
func normalizeSegment(s string) string {
	s = strings.Trim(s, "/")
	if s == "" {
		return ""
	}
	return "/" + s
}

// StripPrefixPath removes the resolver's baseURL+prefixPath (and any
// leading slash) from url, returning the server-relative path. Inputs that
// do not carry the prefix are returned unchanged, so the function is
// idempotent on already-relative paths.
func (r Resolver) StripPrefixPath(url string) string {
	if url == "" {
		return ""
	}

	full := r.baseURL + r.prefixPath
	if full != "" && strings.HasPrefix(url, full) {
		return strings.TrimPrefix(strings.TrimPrefix(url, full), "/")
	}
	if r.baseURL != "" && strings.HasPrefix(url, r.baseURL) {
		return strings.TrimPrefix(strings.TrimPrefix(url, r.baseURL), "/")
	}
	return url
}

// FullURL joins baseURL + (prefix when withPrefix) + path, normalizing
// duplicate or missing slashes. An empty path returns "" rather than a
// malformed URL pointing at the server root.
func (r Resolver) FullURL(path string, withPrefix bool) string {
	if path == "" {
		return ""
	}

	segment := normalizeSegment(path)
	if withPrefix {
		segment = r.prefixPath + segment
	}
	return r.baseURL + segment
}

// NeedsUpdate reports whether the stored absolute URL should be replaced by
// the catalog's relative path: true when newRelative is non-empty and
// differs from the stripped current value, or when nothing is stored yet.
func (r Resolver) NeedsUpdate(currentAbsolute, newRelative string) bool {
	if newRelative == "" {
		return false
	}
	if currentAbsolute == "" {
		return true
	}
	return r.StripPrefixPath(currentAbsolute) != strings.TrimPrefix(newRelative, "/")
}
