// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/apezdr/streamsync/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMovieCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetMovie(ctx, "inception"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetMovie on empty store = %v, want ErrNotFound", err)
	}

	m := &models.Movie{Title: "Inception", VideoURL: "https://a/x.mp4", VideoSource: "main"}
	if err := s.PutMovie(ctx, "inception", m); err != nil {
		t.Fatalf("PutMovie: %v", err)
	}

	got, err := s.GetMovie(ctx, "inception")
	if err != nil {
		t.Fatalf("GetMovie: %v", err)
	}
	if got.Title != "Inception" || got.VideoSource != "main" {
		t.Errorf("got %+v", got)
	}
	if got.LastUpdated.IsZero() {
		t.Error("LastUpdated not stamped on put")
	}

	movies, err := s.ListMovies(ctx)
	if err != nil {
		t.Fatalf("ListMovies: %v", err)
	}
	if len(movies) != 1 || movies["inception"] == nil {
		t.Errorf("ListMovies = %v", movies)
	}

	if err := s.DeleteMovie(ctx, "inception"); err != nil {
		t.Fatalf("DeleteMovie: %v", err)
	}
	if _, err := s.GetMovie(ctx, "inception"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: %v, want ErrNotFound", err)
	}
}

func TestUpdateMovieFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := &models.Movie{
		Title:        "Heat",
		PosterURL:    "https://a/old.jpg",
		PosterSource: "backup",
		BackdropURL:  "https://a/bd.jpg",
	}
	if err := s.PutMovie(ctx, "heat", m); err != nil {
		t.Fatalf("PutMovie: %v", err)
	}
	before, _ := s.GetMovie(ctx, "heat")

	err := s.UpdateMovieFields(ctx, "heat", map[string]any{
		"posterURL":    "https://a/new.jpg",
		"posterSource": "main",
		"metadata":     &models.Metadata{Overview: "crime drama"},
	})
	if err != nil {
		t.Fatalf("UpdateMovieFields: %v", err)
	}

	got, err := s.GetMovie(ctx, "heat")
	if err != nil {
		t.Fatalf("GetMovie: %v", err)
	}
	if got.PosterURL != "https://a/new.jpg" || got.PosterSource != "main" {
		t.Errorf("poster not updated: %+v", got)
	}
	if got.Metadata == nil || got.Metadata.Overview != "crime drama" {
		t.Errorf("metadata not set: %+v", got.Metadata)
	}
	// Sibling fields untouched.
	if got.BackdropURL != "https://a/bd.jpg" {
		t.Errorf("backdrop clobbered: %q", got.BackdropURL)
	}
	if !got.LastUpdated.After(before.LastUpdated) {
		t.Error("LastUpdated not bumped by field update")
	}
}

func TestUpdateMovieFieldsNestedPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := &models.Movie{Title: "Alien", Metadata: &models.Metadata{Overview: "old", Rating: 8.5}}
	if err := s.PutMovie(ctx, "alien", m); err != nil {
		t.Fatalf("PutMovie: %v", err)
	}

	if err := s.UpdateMovieFields(ctx, "alien", map[string]any{"metadata.overview": "new overview"}); err != nil {
		t.Fatalf("UpdateMovieFields: %v", err)
	}

	got, _ := s.GetMovie(ctx, "alien")
	if got.Metadata.Overview != "new overview" {
		t.Errorf("overview = %q", got.Metadata.Overview)
	}
	if got.Metadata.Rating != 8.5 {
		t.Errorf("sibling metadata field clobbered: rating = %v", got.Metadata.Rating)
	}
}

func TestUpdateShowFieldsArrayPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	show := &models.TVShow{
		Title: "X",
		Seasons: []models.Season{
			{SeasonNumber: 1, Episodes: []models.Episode{
				{EpisodeNumber: 1, VideoURL: "https://a/e1.mp4"},
				{EpisodeNumber: 2},
			}},
		},
	}
	if err := s.PutShow(ctx, "x", show); err != nil {
		t.Fatalf("PutShow: %v", err)
	}

	err := s.UpdateShowFields(ctx, "x", map[string]any{
		"seasons.0.episodes.1.videoURL":    "https://a/e2.mp4",
		"seasons.0.episodes.1.videoSource": "main",
	})
	if err != nil {
		t.Fatalf("UpdateShowFields: %v", err)
	}

	got, err := s.GetShow(ctx, "x")
	if err != nil {
		t.Fatalf("GetShow: %v", err)
	}
	ep := got.Seasons[0].FindEpisode(2)
	if ep == nil || ep.VideoURL != "https://a/e2.mp4" || ep.VideoSource != "main" {
		t.Errorf("episode update lost: %+v", ep)
	}
	// Episode 1 untouched.
	if e1 := got.Seasons[0].FindEpisode(1); e1 == nil || e1.VideoURL != "https://a/e1.mp4" {
		t.Errorf("sibling episode clobbered: %+v", e1)
	}
}

func TestUpdateFieldsUnknownDocument(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateMovieFields(context.Background(), "ghost", map[string]any{"posterURL": "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestLastSyncTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ts, err := s.LastSyncTime(ctx)
	if err != nil {
		t.Fatalf("LastSyncTime: %v", err)
	}
	if !ts.IsZero() {
		t.Errorf("expected zero time before first sync, got %v", ts)
	}

	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	if err := s.SetLastSyncTime(ctx, now); err != nil {
		t.Fatalf("SetLastSyncTime: %v", err)
	}

	ts, err = s.LastSyncTime(ctx)
	if err != nil {
		t.Fatalf("LastSyncTime: %v", err)
	}
	if !ts.Equal(now) {
		t.Errorf("got %v, want %v", ts, now)
	}
}
