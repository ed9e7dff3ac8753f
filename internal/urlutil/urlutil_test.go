// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package urlutil

import "testing"

func TestStripPrefixPath(t *testing.T) {
	r := NewResolver("https://cdn.example.com", "/media")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"full url with prefix", "https://cdn.example.com/media/movies/poster.jpg", "movies/poster.jpg"},
		{"full url without prefix", "https://cdn.example.com/movies/poster.jpg", "movies/poster.jpg"},
		{"already relative", "movies/poster.jpg", "movies/poster.jpg"},
		{"foreign host unchanged", "https://other.example.com/x.jpg", "https://other.example.com/x.jpg"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.StripPrefixPath(tt.in); got != tt.want {
				t.Errorf("StripPrefixPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripPrefixPathIdempotent(t *testing.T) {
	r := NewResolver("https://cdn.example.com", "media")

	in := "https://cdn.example.com/media/tv/show/s1e1.mp4"
	once := r.StripPrefixPath(in)
	twice := r.StripPrefixPath(once)
	if once != twice {
		t.Errorf("not idempotent: first %q, second %q", once, twice)
	}
}

func TestFullURL(t *testing.T) {
	r := NewResolver("https://cdn.example.com/", "/media/")

	tests := []struct {
		name       string
		path       string
		withPrefix bool
		want       string
	}{
		{"with prefix", "movies/poster.jpg", true, "https://cdn.example.com/media/movies/poster.jpg"},
		{"leading slash path", "/movies/poster.jpg", true, "https://cdn.example.com/media/movies/poster.jpg"},
		{"without prefix", "api/metadata", false, "https://cdn.example.com/api/metadata"},
		{"empty path", "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.FullURL(tt.path, tt.withPrefix); got != tt.want {
				t.Errorf("FullURL(%q, %v) = %q, want %q", tt.path, tt.withPrefix, got, tt.want)
			}
		})
	}
}

// Round trip: StripPrefixPath(FullURL(p)) == p for slash-normalized paths.
func TestRoundTrip(t *testing.T) {
	bases := []string{"https://a.example.com", "http://b.example.com:8080/"}
	prefixes := []string{"", "/media", "files/"}
	paths := []string{"movies/x.mp4", "tv/show/Season 1/e1.mp4", "a/b/c.jpg"}

	for _, b := range bases {
		for _, p := range prefixes {
			r := NewResolver(b, p)
			for _, path := range paths {
				got := r.StripPrefixPath(r.FullURL(path, true))
				if got != path {
					t.Errorf("base=%q prefix=%q: round trip of %q gave %q", b, p, path, got)
				}
			}
		}
	}
}

func TestNeedsUpdate(t *testing.T) {
	r := NewResolver("https://cdn.example.com", "media")

	tests := []struct {
		name    string
		current string
		next    string
		want    bool
	}{
		{"same path", "https://cdn.example.com/media/p.jpg", "p.jpg", false},
		{"different path", "https://cdn.example.com/media/p.jpg", "q.jpg", true},
		{"empty current", "", "p.jpg", true},
		{"empty next", "https://cdn.example.com/media/p.jpg", "", false},
		{"both empty", "", "", false},
		{"leading slash equal", "https://cdn.example.com/media/p.jpg", "/p.jpg", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.NeedsUpdate(tt.current, tt.next); got != tt.want {
				t.Errorf("NeedsUpdate(%q, %q) = %v, want %v", tt.current, tt.next, got, tt.want)
			}
		})
	}
}
