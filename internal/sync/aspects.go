// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package sync

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/apezdr/streamsync/internal/models"
)

// aspect is one merge pass over a snapshot. Aspects run in a fixed order so
// dependent fields (blurhashes after their images) land consistently.
type aspect struct {
	name  string
	movie func(ctx context.Context, sc *serverContext, titleKey string, entry models.MovieEntry, rec *models.Movie, fields map[string]any) error
	show  func(ctx context.Context, sc *serverContext, titleKey string, entry models.ShowEntry, rec *models.TVShow, fields map[string]any) error
}

var aspectTable = []aspect{
	{name: "metadata", movie: mergeMovieMetadata, show: mergeShowMetadata},
	{name: "captions", movie: mergeMovieCaptions, show: mergeShowCaptions},
	{name: "chapters", movie: mergeMovieChapters, show: mergeShowChapters},
	{name: "videoURL", movie: mergeMovieVideoURL, show: mergeShowVideoURL},
	{name: "logos", movie: mergeMovieLogo, show: mergeShowLogo},
	{name: "videoInfo", movie: mergeMovieVideoInfo, show: mergeShowVideoInfo},
	{name: "thumbnails", movie: mergeMovieThumbnails, show: mergeShowThumbnails},
	{name: "posters", movie: mergeMoviePoster, show: mergeShowPosters},
	{name: "backdrop", movie: mergeMovieBackdrop, show: mergeShowBackdrop},
	{name: "blurhash", movie: mergeMovieBlurhash, show: mergeShowBlurhash},
}

// provenancePath maps a field path to its companion source field:
// "videoURL" -> "videoSource", "seasons.0.posterBlurhash" ->
// "seasons.0.posterBlurhashSource".
func provenancePath(fieldPath string) string {
	prefix, last := "", fieldPath
	if i := strings.LastIndexByte(fieldPath, '.'); i >= 0 {
		prefix, last = fieldPath[:i+1], fieldPath[i+1:]
	}
	return prefix + strings.TrimSuffix(last, "URL") + "Source"
}

// allow applies the two priority gates for a field write: another server
// offering the same field at strictly better priority wins it, and a
// non-empty field owned by a better-priority server stays untouched.
func (sc *serverContext) allow(kind, titleKey, avPath, currentSource string, currentEmpty bool) bool {
	var offered []string
	if kind == kindMovie {
		offered = sc.av.MovieServers(titleKey, avPath)
	} else {
		offered = sc.av.TVServers(titleKey, avPath)
	}
	if hasStrictlyHigherPriority(sc.engine.priorities, offered, sc.server.ID) {
		return false
	}
	if currentEmpty {
		return true
	}
	return sc.engine.reg.IsHigherOrEqualPriority(currentSource, sc.server.ID)
}

// setURL stages an absolute URL write for a catalog-relative path when the
// priority gates allow it and the value actually changes.
func (sc *serverContext) setURL(fields map[string]any, kind, titleKey, fieldPath, current, currentSource, rel string) bool {
	return sc.setURLAt(fields, kind, titleKey, fieldPath, fieldPath, current, currentSource, rel)
}

// setURLAt is setURL with distinct availability and document paths; season
// and episode fields are indexed by number in the availability index but by
// slice position in the stored document.
func (sc *serverContext) setURLAt(fields map[string]any, kind, titleKey, avPath, fieldPath, current, currentSource, rel string) bool {
	if rel == "" {
		return false
	}
	if !sc.allow(kind, titleKey, avPath, currentSource, current == "") {
		return false
	}
	if !sc.resolver.NeedsUpdate(current, rel) {
		return false
	}
	fields[fieldPath] = sc.resolver.FullURL(rel, true)
	fields[provenancePath(fieldPath)] = sc.server.ID
	return true
}

// setValue stages a non-URL field write (blurhash strings, caption maps,
// track listings) under the same priority gates, using structural equality
// to suppress no-op writes.
func (sc *serverContext) setValue(fields map[string]any, kind, titleKey, fieldPath string, current any, currentSource string, next any) bool {
	return sc.setValueAt(fields, kind, titleKey, fieldPath, fieldPath, current, currentSource, next)
}

func (sc *serverContext) setValueAt(fields map[string]any, kind, titleKey, avPath, fieldPath string, current any, currentSource string, next any) bool {
	if isEmptyValue(next) {
		return false
	}
	if !sc.allow(kind, titleKey, avPath, currentSource, isEmptyValue(current)) {
		return false
	}
	if jsonEqual(current, next) {
		return false
	}
	fields[fieldPath] = next
	fields[provenancePath(fieldPath)] = sc.server.ID
	return true
}

func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case map[string]models.CaptionTrack:
		return len(x) == 0
	case *models.VideoInfo:
		return x == nil
	case *models.Metadata:
		return x == nil
	default:
		return false
	}
}

// jsonEqual compares two values by their JSON encoding. The stored document
// round-trips through JSON anyway, so this is the equality that matters.
func jsonEqual(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// resolveCaptions rewrites every caption track path to an absolute URL.
func resolveCaptions(sc *serverContext, captions map[string]models.CaptionTrack) map[string]models.CaptionTrack {
	if len(captions) == 0 {
		return nil
	}
	out := make(map[string]models.CaptionTrack, len(captions))
	for lang, track := range captions {
		out[lang] = models.CaptionTrack{
			SRT: sc.resolver.FullURL(track.SRT, true),
			VTT: sc.resolver.FullURL(track.VTT, true),
		}
	}
	return out
}

// walkEpisodes pairs each catalog episode with its canonical record,
// handing the closure the availability path prefix (season and episode
// numbers) and the document path prefix (slice indexes). Episodes the
// canonical record lacks are skipped; creation happens before the aspect
// passes.
func walkEpisodes(entry models.ShowEntry, rec *models.TVShow, fn func(avPrefix, docPrefix string, ep models.EpisodeEntry, canonical *models.Episode)) {
	walkSeasons(entry, rec, func(avPrefix, docPrefix string, catalogSeason models.SeasonEntry, season *models.Season) {
		for _, epNum := range catalogEpisodeNumbers(catalogSeason) {
			name, ok := episodeFileName(catalogSeason, epNum)
			if !ok {
				continue
			}
			epIdx := -1
			for i := range season.Episodes {
				if season.Episodes[i].EpisodeNumber == epNum {
					epIdx = i
					break
				}
			}
			if epIdx < 0 {
				continue
			}
			fn(
				avPrefix+".episodes."+strconv.Itoa(epNum)+".",
				docPrefix+".episodes."+strconv.Itoa(epIdx)+".",
				catalogSeason.Episodes[name],
				&season.Episodes[epIdx],
			)
		}
	})
}

// walkSeasons pairs each parseable catalog season with its canonical
// counterpart.
func walkSeasons(entry models.ShowEntry, rec *models.TVShow, fn func(avPrefix, docPrefix string, catalogSeason models.SeasonEntry, season *models.Season)) {
	for label, catalogSeason := range entry.Seasons {
		num, ok := parseSeasonNumber(label)
		if !ok {
			continue
		}
		idx := -1
		for i := range rec.Seasons {
			if rec.Seasons[i].SeasonNumber == num {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		fn("seasons."+strconv.Itoa(num), "seasons."+strconv.Itoa(idx), catalogSeason, &rec.Seasons[idx])
	}
}

// Metadata aspect. Enrichment documents are fetched through the caching
// client; a document is applied when the record has none yet or the fetched
// copy is newer.

func mergeMovieMetadata(ctx context.Context, sc *serverContext, titleKey string, entry models.MovieEntry, rec *models.Movie, fields map[string]any) error {
	return stageMetadata(ctx, sc, kindMovie, titleKey, "metadata", "metadata", entry.MetadataURL, rec.Metadata, rec.MetadataSource, rec.LastUpdated, fields)
}

func mergeShowMetadata(ctx context.Context, sc *serverContext, titleKey string, entry models.ShowEntry, rec *models.TVShow, fields map[string]any) error {
	if err := stageMetadata(ctx, sc, kindTV, titleKey, "metadata", "metadata", entry.MetadataURL, rec.Metadata, rec.MetadataSource, rec.LastUpdated, fields); err != nil {
		return err
	}

	var firstErr error
	walkEpisodes(entry, rec, func(avPrefix, docPrefix string, ep models.EpisodeEntry, canonical *models.Episode) {
		err := stageMetadata(ctx, sc, kindTV, titleKey, avPrefix+"metadata", docPrefix+"metadata", ep.MetadataURL, canonical.Metadata, canonical.MetadataSource, rec.LastUpdated, fields)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	})
	return firstErr
}

func stageMetadata(ctx context.Context, sc *serverContext, kind, titleKey, avPath, fieldPath, metadataURL string, current *models.Metadata, currentSource string, recordUpdated time.Time, fields map[string]any) error {
	if metadataURL == "" {
		return nil
	}
	if !sc.allow(kind, titleKey, avPath, currentSource, current == nil) {
		return nil
	}

	url := sc.resolver.FullURL(metadataURL, true)
	meta, err := sc.engine.meta.Fetch(ctx, sc.server, url, recordUpdated)
	if err != nil {
		return err
	}

	if current != nil {
		// Only replace with a provably newer document. A zero incoming
		// stamp cannot prove anything.
		if meta.LastUpdated.IsZero() || !meta.LastUpdated.After(current.LastUpdated) {
			return nil
		}
	}

	fields[fieldPath] = meta
	fields[provenancePath(fieldPath)] = sc.server.ID
	return nil
}

// Captions aspect.

func mergeMovieCaptions(_ context.Context, sc *serverContext, titleKey string, entry models.MovieEntry, rec *models.Movie, fields map[string]any) error {
	sc.setValue(fields, kindMovie, titleKey, "captions", rec.Captions, rec.CaptionsSource, resolveCaptions(sc, entry.Captions))
	return nil
}

func mergeShowCaptions(_ context.Context, sc *serverContext, titleKey string, entry models.ShowEntry, rec *models.TVShow, fields map[string]any) error {
	walkEpisodes(entry, rec, func(avPrefix, docPrefix string, ep models.EpisodeEntry, canonical *models.Episode) {
		sc.setValueAt(fields, kindTV, titleKey, avPrefix+"captions", docPrefix+"captions", canonical.Captions, canonical.CaptionsSource, resolveCaptions(sc, ep.Captions))
	})
	return nil
}

// Chapters aspect.

func mergeMovieChapters(_ context.Context, sc *serverContext, titleKey string, entry models.MovieEntry, rec *models.Movie, fields map[string]any) error {
	sc.setURL(fields, kindMovie, titleKey, "chaptersURL", rec.ChaptersURL, rec.ChaptersSource, entry.ChaptersURL)
	return nil
}

func mergeShowChapters(_ context.Context, sc *serverContext, titleKey string, entry models.ShowEntry, rec *models.TVShow, fields map[string]any) error {
	walkEpisodes(entry, rec, func(avPrefix, docPrefix string, ep models.EpisodeEntry, canonical *models.Episode) {
		sc.setURLAt(fields, kindTV, titleKey, avPrefix+"chaptersURL", docPrefix+"chaptersURL", canonical.ChaptersURL, canonical.ChaptersSource, ep.ChaptersURL)
	})
	return nil
}

// Video URL aspect. The playback facts (duration, dimensions, HDR, media
// modification time) travel with videoURL ownership rather than carrying
// their own provenance.

func mergeMovieVideoURL(_ context.Context, sc *serverContext, titleKey string, entry models.MovieEntry, rec *models.Movie, fields map[string]any) error {
	wrote := sc.setURL(fields, kindMovie, titleKey, "videoURL", rec.VideoURL, rec.VideoSource, entry.VideoURL)

	refreshed := !entry.MediaLastModified.IsZero() &&
		entry.MediaLastModified.After(rec.MediaLastModified) &&
		sc.allow(kindMovie, titleKey, "videoURL", rec.VideoSource, rec.VideoURL == "")

	if wrote || refreshed {
		stagePlaybackFacts(fields, "", entry.Duration, entry.Dimensions, entry.HDR, rec.Duration, rec.Dimensions, rec.HDR)
		if !entry.MediaLastModified.IsZero() && entry.MediaLastModified.After(rec.MediaLastModified) {
			fields["mediaLastModified"] = entry.MediaLastModified
		}
	}
	return nil
}

func mergeShowVideoURL(_ context.Context, sc *serverContext, titleKey string, entry models.ShowEntry, rec *models.TVShow, fields map[string]any) error {
	walkEpisodes(entry, rec, func(avPrefix, docPrefix string, ep models.EpisodeEntry, canonical *models.Episode) {
		wrote := sc.setURLAt(fields, kindTV, titleKey, avPrefix+"videoURL", docPrefix+"videoURL", canonical.VideoURL, canonical.VideoSource, ep.VideoURL)

		refreshed := !ep.MediaLastModified.IsZero() &&
			ep.MediaLastModified.After(canonical.MediaLastModified) &&
			sc.allow(kindTV, titleKey, avPrefix+"videoURL", canonical.VideoSource, canonical.VideoURL == "")

		if wrote || refreshed {
			stagePlaybackFacts(fields, docPrefix, ep.Duration, ep.Dimensions, ep.HDR, canonical.Duration, canonical.Dimensions, canonical.HDR)
			if !ep.MediaLastModified.IsZero() && ep.MediaLastModified.After(canonical.MediaLastModified) {
				fields[docPrefix+"mediaLastModified"] = ep.MediaLastModified
			}
		}
	})
	return nil
}

func stagePlaybackFacts(fields map[string]any, docPrefix string, duration int64, dimensions, hdr string, curDuration int64, curDimensions, curHDR string) {
	if duration > 0 && duration != curDuration {
		fields[docPrefix+"duration"] = duration
	}
	if dimensions != "" && dimensions != curDimensions {
		fields[docPrefix+"dimensions"] = dimensions
	}
	if hdr != "" && hdr != curHDR {
		fields[docPrefix+"hdr"] = hdr
	}
}

// Logo aspect.

func mergeMovieLogo(_ context.Context, sc *serverContext, titleKey string, entry models.MovieEntry, rec *models.Movie, fields map[string]any) error {
	sc.setURL(fields, kindMovie, titleKey, "logoURL", rec.LogoURL, rec.LogoSource, entry.LogoURL)
	return nil
}

func mergeShowLogo(_ context.Context, sc *serverContext, titleKey string, entry models.ShowEntry, rec *models.TVShow, fields map[string]any) error {
	sc.setURL(fields, kindTV, titleKey, "logoURL", rec.LogoURL, rec.LogoSource, entry.LogoURL)
	return nil
}

// Video info aspect.

func mergeMovieVideoInfo(_ context.Context, sc *serverContext, titleKey string, entry models.MovieEntry, rec *models.Movie, fields map[string]any) error {
	sc.setValue(fields, kindMovie, titleKey, "videoInfo", rec.VideoInfo, rec.VideoInfoSource, entry.VideoInfo)
	return nil
}

func mergeShowVideoInfo(_ context.Context, sc *serverContext, titleKey string, entry models.ShowEntry, rec *models.TVShow, fields map[string]any) error {
	walkEpisodes(entry, rec, func(avPrefix, docPrefix string, ep models.EpisodeEntry, canonical *models.Episode) {
		sc.setValueAt(fields, kindTV, titleKey, avPrefix+"videoInfo", docPrefix+"videoInfo", canonical.VideoInfo, canonical.VideoInfoSource, ep.VideoInfo)
	})
	return nil
}

// Thumbnails aspect. Movies carry a sprite-sheet URL, episodes individual
// thumbnails.

func mergeMovieThumbnails(_ context.Context, sc *serverContext, titleKey string, entry models.MovieEntry, rec *models.Movie, fields map[string]any) error {
	sc.setURL(fields, kindMovie, titleKey, "thumbnailsURL", rec.ThumbnailsURL, rec.ThumbnailsSource, entry.ThumbnailsURL)
	return nil
}

func mergeShowThumbnails(_ context.Context, sc *serverContext, titleKey string, entry models.ShowEntry, rec *models.TVShow, fields map[string]any) error {
	walkEpisodes(entry, rec, func(avPrefix, docPrefix string, ep models.EpisodeEntry, canonical *models.Episode) {
		sc.setURLAt(fields, kindTV, titleKey, avPrefix+"thumbnailURL", docPrefix+"thumbnailURL", canonical.ThumbnailURL, canonical.ThumbnailSource, ep.ThumbnailURL)
	})
	return nil
}

// Poster aspect.

func mergeMoviePoster(_ context.Context, sc *serverContext, titleKey string, entry models.MovieEntry, rec *models.Movie, fields map[string]any) error {
	sc.setURL(fields, kindMovie, titleKey, "posterURL", rec.PosterURL, rec.PosterSource, entry.PosterURL)
	return nil
}

func mergeShowPosters(_ context.Context, sc *serverContext, titleKey string, entry models.ShowEntry, rec *models.TVShow, fields map[string]any) error {
	sc.setURL(fields, kindTV, titleKey, "posterURL", rec.PosterURL, rec.PosterSource, entry.PosterURL)
	walkSeasons(entry, rec, func(avPrefix, docPrefix string, catalogSeason models.SeasonEntry, season *models.Season) {
		sc.setURLAt(fields, kindTV, titleKey, avPrefix+".posterURL", docPrefix+".posterURL", season.PosterURL, season.PosterSource, catalogSeason.PosterURL)
	})
	return nil
}

// Backdrop aspect.

func mergeMovieBackdrop(_ context.Context, sc *serverContext, titleKey string, entry models.MovieEntry, rec *models.Movie, fields map[string]any) error {
	sc.setURL(fields, kindMovie, titleKey, "backdropURL", rec.BackdropURL, rec.BackdropSource, entry.BackdropURL)
	return nil
}

func mergeShowBackdrop(_ context.Context, sc *serverContext, titleKey string, entry models.ShowEntry, rec *models.TVShow, fields map[string]any) error {
	sc.setURL(fields, kindTV, titleKey, "backdropURL", rec.BackdropURL, rec.BackdropSource, entry.BackdropURL)
	return nil
}

// Blurhash aspect. Blurhash strings are inline data, not server-relative
// paths, so they compare directly.

func mergeMovieBlurhash(_ context.Context, sc *serverContext, titleKey string, entry models.MovieEntry, rec *models.Movie, fields map[string]any) error {
	sc.setValue(fields, kindMovie, titleKey, "posterBlurhash", rec.PosterBlurhash, rec.PosterBlurhashSource, entry.PosterBlurhash)
	sc.setValue(fields, kindMovie, titleKey, "backdropBlurhash", rec.BackdropBlurhash, rec.BackdropBlurhashSource, entry.BackdropBlurhash)
	return nil
}

func mergeShowBlurhash(_ context.Context, sc *serverContext, titleKey string, entry models.ShowEntry, rec *models.TVShow, fields map[string]any) error {
	sc.setValue(fields, kindTV, titleKey, "posterBlurhash", rec.PosterBlurhash, rec.PosterBlurhashSource, entry.PosterBlurhash)
	sc.setValue(fields, kindTV, titleKey, "backdropBlurhash", rec.BackdropBlurhash, rec.BackdropBlurhashSource, entry.BackdropBlurhash)

	walkSeasons(entry, rec, func(avPrefix, docPrefix string, catalogSeason models.SeasonEntry, season *models.Season) {
		sc.setValueAt(fields, kindTV, titleKey, avPrefix+".posterBlurhash", docPrefix+".posterBlurhash", season.PosterBlurhash, season.PosterBlurhashSource, catalogSeason.PosterBlurhash)
	})
	walkEpisodes(entry, rec, func(avPrefix, docPrefix string, ep models.EpisodeEntry, canonical *models.Episode) {
		sc.setValueAt(fields, kindTV, titleKey, avPrefix+"thumbnailBlurhash", docPrefix+"thumbnailBlurhash", canonical.ThumbnailBlurhash, canonical.ThumbnailBlurhashSource, ep.ThumbnailBlurhash)
	})
	return nil
}
