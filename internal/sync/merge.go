// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package sync

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/apezdr/streamsync/internal/config"
	"github.com/apezdr/streamsync/internal/logging"
	"github.com/apezdr/streamsync/internal/metrics"
	"github.com/apezdr/streamsync/internal/models"
	"github.com/apezdr/streamsync/internal/registry"
	"github.com/apezdr/streamsync/internal/store"
	"github.com/apezdr/streamsync/internal/urlutil"
)

// Engine merges one server's catalog snapshot into the canonical database.
// Servers are processed one at a time in priority order; within one server
// the aspects run sequentially and the titles of each aspect run
// concurrently, bounded by the worker limit.
//
// Field writes obey the priority invariant: a field owned by a
// better-priority server is never overwritten, and a field another
// better-priority server also offers this run is left for that server.
type Engine struct {
	store *store.Store
	reg   *registry.Registry
	meta  *MetadataClient
	cfg   config.SyncConfig

	priorities map[string]int
}

// NewEngine wires the merge engine.
func NewEngine(st *store.Store, reg *registry.Registry, meta *MetadataClient, cfg config.SyncConfig) *Engine {
	priorities := make(map[string]int)
	for _, s := range reg.All() {
		priorities[s.ID] = s.Priority
	}
	return &Engine{store: st, reg: reg, meta: meta, cfg: cfg, priorities: priorities}
}

// serverContext bundles the per-server state the aspect handlers need.
type serverContext struct {
	engine   *Engine
	server   models.ServerConfig
	resolver urlutil.Resolver
	av       *Availability
}

const (
	kindMovie = "movie"
	kindTV    = "tv"
)

// SyncServer runs the full per-server pipeline: create records the
// database lacks, then merge every aspect of the snapshot into them.
// Failures are accumulated per title, never aborting the rest.
func (e *Engine) SyncServer(ctx context.Context, server models.ServerConfig, snapshot *models.CatalogSnapshot, av *Availability) (models.ServerSyncResult, []models.SyncError) {
	result := models.ServerSyncResult{ServerID: server.ID}
	var syncErrs []models.SyncError

	sc := &serverContext{
		engine:   e,
		server:   server,
		resolver: urlutil.NewResolver(server.BaseURL, server.PrefixPath),
		av:       av,
	}

	missing, errs := e.createMissing(ctx, server, snapshot, &result)
	syncErrs = append(syncErrs, errs...)
	result.MissingMedia = missing

	for _, a := range aspectTable {
		select {
		case <-ctx.Done():
			syncErrs = append(syncErrs, models.SyncError{
				ServerID: server.ID,
				Phase:    a.name,
				Message:  ctx.Err().Error(),
			})
			return result, syncErrs
		default:
		}

		fieldsSet, processed, errs := e.runAspect(ctx, sc, a, snapshot)
		result.FieldsSet += fieldsSet
		result.Processed += processed
		syncErrs = append(syncErrs, errs...)
	}

	return result, syncErrs
}

// createMissing diffs the snapshot against the database and creates base
// records for everything the diff reports. Created records start with
// identity fields only; the aspect passes fill in the rest.
func (e *Engine) createMissing(ctx context.Context, server models.ServerConfig, snapshot *models.CatalogSnapshot, result *models.ServerSyncResult) (models.MissingMediaSet, []models.SyncError) {
	var syncErrs []models.SyncError

	movieRecs, err := e.store.ListMovies(ctx)
	if err != nil {
		syncErrs = append(syncErrs, models.SyncError{ServerID: server.ID, Phase: "diff", Message: err.Error()})
		return models.MissingMediaSet{}, syncErrs
	}
	showRecs, err := e.store.ListShows(ctx)
	if err != nil {
		syncErrs = append(syncErrs, models.SyncError{ServerID: server.ID, Phase: "diff", Message: err.Error()})
		return models.MissingMediaSet{}, syncErrs
	}

	movies := make([]models.Movie, 0, len(movieRecs))
	for _, m := range movieRecs {
		movies = append(movies, *m)
	}
	shows := make([]models.TVShow, 0, len(showRecs))
	for _, s := range showRecs {
		shows = append(shows, *s)
	}

	missing := IdentifyMissing(snapshot, movies, shows)

	for _, title := range missing.Movies {
		rec := &models.Movie{Title: title}
		if err := e.store.PutMovie(ctx, models.TitleKey(title), rec); err != nil {
			syncErrs = append(syncErrs, models.SyncError{ServerID: server.ID, Phase: "create", Title: title, Message: err.Error()})
			continue
		}
		result.AddedMovies = append(result.AddedMovies, title)
		metrics.MediaCreated.WithLabelValues("movie").Inc()
	}

	for _, ms := range missing.TV {
		added, err := e.createShowStructure(ctx, snapshot, ms)
		if err != nil {
			syncErrs = append(syncErrs, models.SyncError{ServerID: server.ID, Phase: "create", Title: ms.ShowTitle, Message: err.Error()})
			continue
		}
		if added {
			result.AddedShows = append(result.AddedShows, ms.ShowTitle)
			metrics.MediaCreated.WithLabelValues("tv").Inc()
		}
	}

	return missing, syncErrs
}

// createShowStructure creates the show record (when absent) and the missing
// season and episode skeletons the diff named. Returns whether a new show
// record was created.
func (e *Engine) createShowStructure(ctx context.Context, snapshot *models.CatalogSnapshot, ms models.MissingShow) (bool, error) {
	entry := snapshot.TV[ms.ShowTitle]
	key := models.TitleKey(ms.ShowTitle)

	created := false
	rec, err := e.store.GetShow(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		rec = &models.TVShow{Title: ms.ShowTitle}
		created = true
	} else if err != nil {
		return false, err
	}

	for _, sm := range ms.Seasons {
		label, ok := seasonLabelFor(entry, sm.Season)
		if !ok {
			continue
		}
		catalogSeason := entry.Seasons[label]

		season := rec.FindSeason(sm.Season)
		if season == nil {
			rec.Seasons = append(rec.Seasons, models.Season{SeasonNumber: sm.Season})
			sort.Slice(rec.Seasons, func(i, j int) bool {
				return rec.Seasons[i].SeasonNumber < rec.Seasons[j].SeasonNumber
			})
			season = rec.FindSeason(sm.Season)
		}

		episodes := sm.MissingEpisodes
		if len(episodes) == 0 {
			episodes = catalogEpisodeNumbers(catalogSeason)
		}
		for _, ep := range episodes {
			if season.FindEpisode(ep) != nil {
				continue
			}
			name, _ := episodeFileName(catalogSeason, ep)
			season.Episodes = append(season.Episodes, models.Episode{EpisodeNumber: ep, FileName: name})
		}
		sort.Slice(season.Episodes, func(i, j int) bool {
			return season.Episodes[i].EpisodeNumber < season.Episodes[j].EpisodeNumber
		})
	}

	if err := e.store.PutShow(ctx, key, rec); err != nil {
		return false, err
	}
	return created, nil
}

// runAspect processes every snapshot title through one aspect, fanning out
// across titles with a bounded worker pool. Per-title failures are
// collected, never propagated.
func (e *Engine) runAspect(ctx context.Context, sc *serverContext, a aspect, snapshot *models.CatalogSnapshot) (int, int, []models.SyncError) {
	limit := e.cfg.WorkerLimit
	if limit <= 0 {
		limit = 8
	}
	sem := make(chan struct{}, limit)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		errs      []models.SyncError
		fieldsSet int
		processed int
	)

	run := func(title string, fn func(context.Context) (int, error)) {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			n, err := fn(ctx)

			mu.Lock()
			defer mu.Unlock()
			processed++
			fieldsSet += n
			if err != nil {
				errs = append(errs, models.SyncError{
					ServerID: sc.server.ID,
					Phase:    a.name,
					Title:    title,
					Message:  err.Error(),
				})
			}
		}()
	}

	if a.movie != nil {
		for title, entry := range snapshot.Movies {
			if !entry.HasPlayableFile() {
				continue
			}
			run(title, func(ctx context.Context) (int, error) {
				return e.mergeMovie(ctx, sc, a, title, entry)
			})
		}
	}
	if a.show != nil {
		for title, entry := range snapshot.TV {
			run(title, func(ctx context.Context) (int, error) {
				return e.mergeShow(ctx, sc, a, title, entry)
			})
		}
	}

	wg.Wait()
	return fieldsSet, processed, errs
}

// mergeMovie applies one aspect of one catalog movie to its canonical
// record.
func (e *Engine) mergeMovie(ctx context.Context, sc *serverContext, a aspect, title string, entry models.MovieEntry) (int, error) {
	key := models.TitleKey(title)

	rec, err := e.store.GetMovie(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		// Not a canonical record; creation was skipped or failed earlier.
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	fields := make(map[string]any)
	if err := a.movie(ctx, sc, key, entry, rec, fields); err != nil {
		return 0, err
	}
	if len(fields) == 0 {
		return 0, nil
	}

	if err := e.store.UpdateMovieFields(ctx, key, fields); err != nil {
		return 0, err
	}
	metrics.FieldsUpdated.WithLabelValues(a.name, sc.server.ID).Add(float64(len(fields)))
	logging.Debug().
		Str("server", sc.server.ID).
		Str("aspect", a.name).
		Str("title", title).
		Int("fields", len(fields)).
		Msg("Updated movie fields")
	return len(fields), nil
}

// mergeShow applies one aspect of one catalog show (including its seasons
// and episodes) to its canonical record.
func (e *Engine) mergeShow(ctx context.Context, sc *serverContext, a aspect, title string, entry models.ShowEntry) (int, error) {
	key := models.TitleKey(title)

	rec, err := e.store.GetShow(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	fields := make(map[string]any)
	if err := a.show(ctx, sc, key, entry, rec, fields); err != nil {
		return 0, err
	}
	if len(fields) == 0 {
		return 0, nil
	}

	if err := e.store.UpdateShowFields(ctx, key, fields); err != nil {
		return 0, err
	}
	metrics.FieldsUpdated.WithLabelValues(a.name, sc.server.ID).Add(float64(len(fields)))
	logging.Debug().
		Str("server", sc.server.ID).
		Str("aspect", a.name).
		Str("title", title).
		Int("fields", len(fields)).
		Msg("Updated show fields")
	return len(fields), nil
}
