// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package sync

import (
	"context"
	"testing"
	"time"

	"github.com/apezdr/streamsync/internal/models"
)

func TestSyncServerCreatesMovieWithAbsoluteURLs(t *testing.T) {
	engine, st, reg := newTestEngine(t)
	ctx := context.Background()

	primary, _ := reg.Get("primary")
	snap := movieSnapshot("Inception", models.MovieEntry{
		VideoURL:       "movies/Inception/movie.mp4",
		PosterURL:      "movies/Inception/poster.webp",
		PosterBlurhash: "LEHV6nWB2yk8",
		Duration:       8880000,
		Dimensions:     "1920x1080",
	})
	av := BuildAvailability(okResults(reg, map[string]*models.CatalogSnapshot{"primary": snap}))

	result, errs := engine.SyncServer(ctx, primary, snap, av)
	if len(errs) != 0 {
		t.Fatalf("unexpected sync errors: %+v", errs)
	}
	if len(result.AddedMovies) != 1 || result.AddedMovies[0] != "Inception" {
		t.Fatalf("AddedMovies = %v, want [Inception]", result.AddedMovies)
	}

	rec, err := st.GetMovie(ctx, models.TitleKey("Inception"))
	if err != nil {
		t.Fatalf("GetMovie: %v", err)
	}
	if want := "https://a.example.com/media/movies/Inception/movie.mp4"; rec.VideoURL != want {
		t.Errorf("VideoURL = %q, want %q", rec.VideoURL, want)
	}
	if rec.VideoSource != "primary" {
		t.Errorf("VideoSource = %q, want primary", rec.VideoSource)
	}
	if want := "https://a.example.com/media/movies/Inception/poster.webp"; rec.PosterURL != want {
		t.Errorf("PosterURL = %q, want %q", rec.PosterURL, want)
	}
	if rec.PosterBlurhash != "LEHV6nWB2yk8" || rec.PosterBlurhashSource != "primary" {
		t.Errorf("blurhash = %q source %q, want value with primary provenance", rec.PosterBlurhash, rec.PosterBlurhashSource)
	}
	if rec.Duration != 8880000 || rec.Dimensions != "1920x1080" {
		t.Errorf("playback facts not set: duration=%d dimensions=%q", rec.Duration, rec.Dimensions)
	}
}

func TestSyncServerCreatesShowStructure(t *testing.T) {
	engine, st, reg := newTestEngine(t)
	ctx := context.Background()

	primary, _ := reg.Get("primary")
	snap := &models.CatalogSnapshot{
		Movies: map[string]models.MovieEntry{},
		TV: map[string]models.ShowEntry{
			"Severance": {
				PosterURL: "tv/Severance/poster.webp",
				Seasons: map[string]models.SeasonEntry{
					"Season 1": {
						PosterURL: "tv/Severance/1/poster.webp",
						Episodes: map[string]models.EpisodeEntry{
							"S01E01 - Good News About Hell.mp4": {VideoURL: "tv/Severance/1/e01.mp4"},
							"S01E02 - Half Loop.mp4":            {VideoURL: "tv/Severance/1/e02.mp4"},
						},
					},
				},
			},
		},
	}
	av := BuildAvailability(okResults(reg, map[string]*models.CatalogSnapshot{"primary": snap}))

	result, errs := engine.SyncServer(ctx, primary, snap, av)
	if len(errs) != 0 {
		t.Fatalf("unexpected sync errors: %+v", errs)
	}
	if len(result.AddedShows) != 1 {
		t.Fatalf("AddedShows = %v, want one show", result.AddedShows)
	}

	rec, err := st.GetShow(ctx, models.TitleKey("Severance"))
	if err != nil {
		t.Fatalf("GetShow: %v", err)
	}
	season := rec.FindSeason(1)
	if season == nil {
		t.Fatal("season 1 not created")
	}
	if got := season.EpisodeNumbers(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("episode numbers = %v, want [1 2]", got)
	}
	ep := season.FindEpisode(2)
	if want := "https://a.example.com/media/tv/Severance/1/e02.mp4"; ep.VideoURL != want {
		t.Errorf("episode videoURL = %q, want %q", ep.VideoURL, want)
	}
	if ep.VideoSource != "primary" {
		t.Errorf("episode videoSource = %q, want primary", ep.VideoSource)
	}
	if season.PosterURL == "" || season.PosterSource != "primary" {
		t.Errorf("season poster = %q source %q", season.PosterURL, season.PosterSource)
	}
}

func TestMergeLowerPriorityNeverOverwrites(t *testing.T) {
	engine, st, reg := newTestEngine(t)
	ctx := context.Background()

	primary, _ := reg.Get("primary")
	backup, _ := reg.Get("backup")

	primarySnap := movieSnapshot("Dune", models.MovieEntry{
		VideoURL:  "movies/Dune/movie.mp4",
		PosterURL: "movies/Dune/poster.webp",
	})
	backupSnap := movieSnapshot("Dune", models.MovieEntry{
		VideoURL:  "dune/video.mp4",
		PosterURL: "dune/other-poster.webp",
	})
	av := BuildAvailability(okResults(reg, map[string]*models.CatalogSnapshot{
		"primary": primarySnap,
		"backup":  backupSnap,
	}))

	if _, errs := engine.SyncServer(ctx, primary, primarySnap, av); len(errs) != 0 {
		t.Fatalf("primary sync errors: %+v", errs)
	}
	before, _ := st.GetMovie(ctx, models.TitleKey("Dune"))

	if _, errs := engine.SyncServer(ctx, backup, backupSnap, av); len(errs) != 0 {
		t.Fatalf("backup sync errors: %+v", errs)
	}
	after, err := st.GetMovie(ctx, models.TitleKey("Dune"))
	if err != nil {
		t.Fatalf("GetMovie: %v", err)
	}

	if after.PosterURL != before.PosterURL || after.PosterSource != "primary" {
		t.Errorf("poster overwritten by lower priority: %q (source %q)", after.PosterURL, after.PosterSource)
	}
	if after.VideoURL != before.VideoURL || after.VideoSource != "primary" {
		t.Errorf("video overwritten by lower priority: %q (source %q)", after.VideoURL, after.VideoSource)
	}
}

func TestMergeOrderIndependence(t *testing.T) {
	// Processing the lower-priority server first must not let it claim a
	// field the better server also offers this run.
	engine, st, reg := newTestEngine(t)
	ctx := context.Background()

	primary, _ := reg.Get("primary")
	backup, _ := reg.Get("backup")

	primarySnap := movieSnapshot("Arrival", models.MovieEntry{
		VideoURL:  "movies/Arrival/movie.mp4",
		PosterURL: "movies/Arrival/poster.webp",
	})
	backupSnap := movieSnapshot("Arrival", models.MovieEntry{
		VideoURL:  "arrival/video.mp4",
		PosterURL: "arrival/poster.webp",
	})
	av := BuildAvailability(okResults(reg, map[string]*models.CatalogSnapshot{
		"primary": primarySnap,
		"backup":  backupSnap,
	}))

	if _, errs := engine.SyncServer(ctx, backup, backupSnap, av); len(errs) != 0 {
		t.Fatalf("backup sync errors: %+v", errs)
	}
	if _, errs := engine.SyncServer(ctx, primary, primarySnap, av); len(errs) != 0 {
		t.Fatalf("primary sync errors: %+v", errs)
	}

	rec, err := st.GetMovie(ctx, models.TitleKey("Arrival"))
	if err != nil {
		t.Fatalf("GetMovie: %v", err)
	}
	if rec.PosterSource != "primary" {
		t.Errorf("PosterSource = %q, want primary regardless of processing order", rec.PosterSource)
	}
	if want := "https://a.example.com/media/movies/Arrival/poster.webp"; rec.PosterURL != want {
		t.Errorf("PosterURL = %q, want %q", rec.PosterURL, want)
	}
}

func TestMergeBackfillsFieldsPrimaryLacks(t *testing.T) {
	engine, st, reg := newTestEngine(t)
	ctx := context.Background()

	primary, _ := reg.Get("primary")
	backup, _ := reg.Get("backup")

	primarySnap := movieSnapshot("Tenet", models.MovieEntry{
		VideoURL: "movies/Tenet/movie.mp4",
	})
	backupSnap := movieSnapshot("Tenet", models.MovieEntry{
		VideoURL: "tenet/video.mp4",
		LogoURL:  "tenet/logo.png",
	})
	av := BuildAvailability(okResults(reg, map[string]*models.CatalogSnapshot{
		"primary": primarySnap,
		"backup":  backupSnap,
	}))

	if _, errs := engine.SyncServer(ctx, primary, primarySnap, av); len(errs) != 0 {
		t.Fatalf("primary sync errors: %+v", errs)
	}
	if _, errs := engine.SyncServer(ctx, backup, backupSnap, av); len(errs) != 0 {
		t.Fatalf("backup sync errors: %+v", errs)
	}

	rec, err := st.GetMovie(ctx, models.TitleKey("Tenet"))
	if err != nil {
		t.Fatalf("GetMovie: %v", err)
	}
	if want := "https://b.example.com/tenet/logo.png"; rec.LogoURL != want {
		t.Errorf("LogoURL = %q, want backfill %q", rec.LogoURL, want)
	}
	if rec.LogoSource != "backup" {
		t.Errorf("LogoSource = %q, want backup", rec.LogoSource)
	}
	if rec.VideoSource != "primary" {
		t.Errorf("VideoSource = %q, want primary", rec.VideoSource)
	}
}

func TestMergeOwnerRefreshesOwnField(t *testing.T) {
	engine, st, reg := newTestEngine(t)
	ctx := context.Background()

	primary, _ := reg.Get("primary")

	first := movieSnapshot("Heat", models.MovieEntry{
		VideoURL:  "movies/Heat/movie.mp4",
		PosterURL: "movies/Heat/poster-v1.webp",
	})
	av := BuildAvailability(okResults(reg, map[string]*models.CatalogSnapshot{"primary": first}))
	if _, errs := engine.SyncServer(ctx, primary, first, av); len(errs) != 0 {
		t.Fatalf("first sync errors: %+v", errs)
	}

	second := movieSnapshot("Heat", models.MovieEntry{
		VideoURL:  "movies/Heat/movie.mp4",
		PosterURL: "movies/Heat/poster-v2.webp",
	})
	av = BuildAvailability(okResults(reg, map[string]*models.CatalogSnapshot{"primary": second}))
	if _, errs := engine.SyncServer(ctx, primary, second, av); len(errs) != 0 {
		t.Fatalf("second sync errors: %+v", errs)
	}

	rec, err := st.GetMovie(ctx, models.TitleKey("Heat"))
	if err != nil {
		t.Fatalf("GetMovie: %v", err)
	}
	if want := "https://a.example.com/media/movies/Heat/poster-v2.webp"; rec.PosterURL != want {
		t.Errorf("PosterURL = %q, want refreshed %q", rec.PosterURL, want)
	}
}

func TestMergeMatchesTitlesAcrossCaseAndSpacing(t *testing.T) {
	engine, st, reg := newTestEngine(t)
	ctx := context.Background()

	primary, _ := reg.Get("primary")
	backup, _ := reg.Get("backup")

	primarySnap := movieSnapshot("The Matrix", models.MovieEntry{VideoURL: "movies/TheMatrix/movie.mp4"})
	backupSnap := movieSnapshot("the  matrix", models.MovieEntry{
		VideoURL: "matrix/video.mp4",
		LogoURL:  "matrix/logo.png",
	})
	av := BuildAvailability(okResults(reg, map[string]*models.CatalogSnapshot{
		"primary": primarySnap,
		"backup":  backupSnap,
	}))

	if _, errs := engine.SyncServer(ctx, primary, primarySnap, av); len(errs) != 0 {
		t.Fatalf("primary sync errors: %+v", errs)
	}
	result, errs := engine.SyncServer(ctx, backup, backupSnap, av)
	if len(errs) != 0 {
		t.Fatalf("backup sync errors: %+v", errs)
	}
	if len(result.AddedMovies) != 0 {
		t.Fatalf("backup created duplicate record for variant spelling: %v", result.AddedMovies)
	}

	rec, err := st.GetMovie(ctx, models.TitleKey("THE MATRIX"))
	if err != nil {
		t.Fatalf("GetMovie by variant key: %v", err)
	}
	if rec.Title != "The Matrix" {
		t.Errorf("display title = %q, want first-seen form preserved", rec.Title)
	}
	if rec.LogoSource != "backup" {
		t.Errorf("LogoSource = %q, want backup backfill under shared record", rec.LogoSource)
	}
}

func TestPruneRemovesOrphans(t *testing.T) {
	engine, st, reg := newTestEngine(t)
	ctx := context.Background()

	primary, _ := reg.Get("primary")

	first := &models.CatalogSnapshot{
		Movies: map[string]models.MovieEntry{
			"Keeper": {VideoURL: "movies/Keeper/movie.mp4"},
			"Goner":  {VideoURL: "movies/Goner/movie.mp4"},
		},
		TV: map[string]models.ShowEntry{
			"Lost": {
				Seasons: map[string]models.SeasonEntry{
					"Season 1": {Episodes: map[string]models.EpisodeEntry{
						"S01E01.mp4": {VideoURL: "tv/Lost/1/e01.mp4"},
						"S01E02.mp4": {VideoURL: "tv/Lost/1/e02.mp4"},
					}},
				},
			},
		},
	}
	av := BuildAvailability(okResults(reg, map[string]*models.CatalogSnapshot{"primary": first}))
	if _, errs := engine.SyncServer(ctx, primary, first, av); len(errs) != 0 {
		t.Fatalf("seed sync errors: %+v", errs)
	}

	// Second run: Goner and episode 2 gone everywhere.
	second := &models.CatalogSnapshot{
		Movies: map[string]models.MovieEntry{
			"Keeper": {VideoURL: "movies/Keeper/movie.mp4"},
		},
		TV: map[string]models.ShowEntry{
			"Lost": {
				Seasons: map[string]models.SeasonEntry{
					"Season 1": {Episodes: map[string]models.EpisodeEntry{
						"S01E01.mp4": {VideoURL: "tv/Lost/1/e01.mp4"},
					}},
				},
			},
		},
	}
	results := okResults(reg, map[string]*models.CatalogSnapshot{"primary": second})

	prunedMovies, prunedShows, errs := engine.Prune(ctx, results)
	if len(errs) != 0 {
		t.Fatalf("prune errors: %+v", errs)
	}
	if len(prunedMovies) != 1 || prunedMovies[0] != "Goner" {
		t.Errorf("prunedMovies = %v, want [Goner]", prunedMovies)
	}
	if len(prunedShows) != 0 {
		t.Errorf("prunedShows = %v, want none", prunedShows)
	}

	if _, err := st.GetMovie(ctx, models.TitleKey("Goner")); err == nil {
		t.Error("pruned movie still present")
	}
	show, err := st.GetShow(ctx, models.TitleKey("Lost"))
	if err != nil {
		t.Fatalf("GetShow: %v", err)
	}
	season := show.FindSeason(1)
	if season == nil {
		t.Fatal("season 1 removed entirely")
	}
	if got := season.EpisodeNumbers(); len(got) != 1 || got[0] != 1 {
		t.Errorf("episodes after prune = %v, want [1]", got)
	}
}

func TestSyncServerSkipsRecordsWithoutPlayableFile(t *testing.T) {
	engine, st, reg := newTestEngine(t)
	ctx := context.Background()

	primary, _ := reg.Get("primary")
	snap := movieSnapshot("Unreleased", models.MovieEntry{
		PosterURL: "movies/Unreleased/poster.webp",
	})
	av := BuildAvailability(okResults(reg, map[string]*models.CatalogSnapshot{"primary": snap}))

	result, errs := engine.SyncServer(ctx, primary, snap, av)
	if len(errs) != 0 {
		t.Fatalf("sync errors: %+v", errs)
	}
	if len(result.AddedMovies) != 0 {
		t.Errorf("AddedMovies = %v, want none", result.AddedMovies)
	}
	if len(result.MissingMedia.MissingMp4Movies) != 1 {
		t.Errorf("MissingMp4Movies = %v, want [Unreleased]", result.MissingMedia.MissingMp4Movies)
	}
	if _, err := st.GetMovie(ctx, models.TitleKey("Unreleased")); err == nil {
		t.Error("record created for title without playable file")
	}
}

func TestMediaLastModifiedRefreshesPlaybackFacts(t *testing.T) {
	engine, st, reg := newTestEngine(t)
	ctx := context.Background()

	primary, _ := reg.Get("primary")
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first := movieSnapshot("Alien", models.MovieEntry{
		VideoURL:          "movies/Alien/movie.mp4",
		Duration:          6000000,
		MediaLastModified: old,
	})
	av := BuildAvailability(okResults(reg, map[string]*models.CatalogSnapshot{"primary": first}))
	if _, errs := engine.SyncServer(ctx, primary, first, av); len(errs) != 0 {
		t.Fatalf("first sync errors: %+v", errs)
	}

	// Same URL, newer file: duration must refresh even though the URL did not change.
	second := movieSnapshot("Alien", models.MovieEntry{
		VideoURL:          "movies/Alien/movie.mp4",
		Duration:          6100000,
		MediaLastModified: old.Add(24 * time.Hour),
	})
	av = BuildAvailability(okResults(reg, map[string]*models.CatalogSnapshot{"primary": second}))
	if _, errs := engine.SyncServer(ctx, primary, second, av); len(errs) != 0 {
		t.Fatalf("second sync errors: %+v", errs)
	}

	rec, err := st.GetMovie(ctx, models.TitleKey("Alien"))
	if err != nil {
		t.Fatalf("GetMovie: %v", err)
	}
	if rec.Duration != 6100000 {
		t.Errorf("Duration = %d, want refreshed 6100000", rec.Duration)
	}
	if !rec.MediaLastModified.Equal(old.Add(24 * time.Hour)) {
		t.Errorf("MediaLastModified = %v, want bumped", rec.MediaLastModified)
	}
}
