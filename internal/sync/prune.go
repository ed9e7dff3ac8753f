// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package sync

import (
	"context"
	"sort"

	"github.com/apezdr/streamsync/internal/metrics"
	"github.com/apezdr/streamsync/internal/models"
)

// catalogUnion is the set of titles, seasons and episodes offered by at
// least one server this run. Anything canonical outside the union is
// orphaned and eligible for pruning.
type catalogUnion struct {
	movies map[string]struct{}
	shows  map[string]map[int]map[int]struct{}
}

func buildUnion(results map[string]CatalogResult) catalogUnion {
	u := catalogUnion{
		movies: make(map[string]struct{}),
		shows:  make(map[string]map[int]map[int]struct{}),
	}
	for _, res := range results {
		if res.Err != nil || res.Snapshot == nil {
			continue
		}
		for title := range res.Snapshot.Movies {
			u.movies[models.TitleKey(title)] = struct{}{}
		}
		for title, entry := range res.Snapshot.TV {
			key := models.TitleKey(title)
			seasons, ok := u.shows[key]
			if !ok {
				seasons = make(map[int]map[int]struct{})
				u.shows[key] = seasons
			}
			for label, season := range entry.Seasons {
				num, ok := parseSeasonNumber(label)
				if !ok {
					continue
				}
				episodes, ok := seasons[num]
				if !ok {
					episodes = make(map[int]struct{})
					seasons[num] = episodes
				}
				for _, ep := range catalogEpisodeNumbers(season) {
					episodes[ep] = struct{}{}
				}
			}
		}
	}
	return u
}

// Prune deletes canonical records, seasons and episodes that no server
// offered this run. The orchestrator only calls it when every server's
// fetch succeeded; with any snapshot missing, absence proves nothing.
func (e *Engine) Prune(ctx context.Context, results map[string]CatalogResult) (prunedMovies, prunedShows []string, errs []models.SyncError) {
	union := buildUnion(results)

	movieRecs, err := e.store.ListMovies(ctx)
	if err != nil {
		return nil, nil, []models.SyncError{{Phase: "prune", Message: err.Error()}}
	}
	for key, rec := range movieRecs {
		if _, ok := union.movies[key]; ok {
			continue
		}
		if err := e.store.DeleteMovie(ctx, key); err != nil {
			errs = append(errs, models.SyncError{Phase: "prune", Title: rec.Title, Message: err.Error()})
			continue
		}
		prunedMovies = append(prunedMovies, rec.Title)
		metrics.MediaPruned.WithLabelValues("movie").Inc()
	}

	showRecs, err := e.store.ListShows(ctx)
	if err != nil {
		errs = append(errs, models.SyncError{Phase: "prune", Message: err.Error()})
		sort.Strings(prunedMovies)
		return prunedMovies, nil, errs
	}
	for key, rec := range showRecs {
		seasons, ok := union.shows[key]
		if !ok {
			if err := e.store.DeleteShow(ctx, key); err != nil {
				errs = append(errs, models.SyncError{Phase: "prune", Title: rec.Title, Message: err.Error()})
				continue
			}
			prunedShows = append(prunedShows, rec.Title)
			metrics.MediaPruned.WithLabelValues("tv").Inc()
			continue
		}

		if trimShow(rec, seasons) {
			if err := e.store.PutShow(ctx, key, rec); err != nil {
				errs = append(errs, models.SyncError{Phase: "prune", Title: rec.Title, Message: err.Error()})
			}
		}
	}

	sort.Strings(prunedMovies)
	sort.Strings(prunedShows)
	return prunedMovies, prunedShows, errs
}

// trimShow drops seasons and episodes absent from the union, reporting
// whether anything changed.
func trimShow(rec *models.TVShow, union map[int]map[int]struct{}) bool {
	changed := false

	kept := rec.Seasons[:0]
	for _, season := range rec.Seasons {
		episodes, ok := union[season.SeasonNumber]
		if !ok {
			changed = true
			continue
		}

		keptEps := season.Episodes[:0]
		for _, ep := range season.Episodes {
			if _, ok := episodes[ep.EpisodeNumber]; !ok {
				changed = true
				continue
			}
			keptEps = append(keptEps, ep)
		}
		season.Episodes = keptEps
		kept = append(kept, season)
	}
	rec.Seasons = kept

	return changed
}
