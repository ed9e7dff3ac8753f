// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package sync

import (
	"strconv"

	"github.com/apezdr/streamsync/internal/models"
)

// Availability indexes which servers offer a value for each field of each
// title, built once per run from all successful snapshots. The merge engine
// consults it to skip writing a field that a strictly better-priority
// server also provides, so a run's outcome does not depend on server
// processing order.
//
// Keys are normalized title keys; field paths mirror the canonical
// document's dotted paths ("posterURL", "seasons.1.episodes.3.videoURL").
type Availability struct {
	movies map[string]map[string][]string
	tv     map[string]map[string][]string
}

// BuildAvailability indexes every successful snapshot in results. Failed
// servers contribute nothing, which keeps their absence from blocking
// lower-priority servers' writes.
func BuildAvailability(results map[string]CatalogResult) *Availability {
	av := &Availability{
		movies: make(map[string]map[string][]string),
		tv:     make(map[string]map[string][]string),
	}
	for serverID, res := range results {
		if res.Err != nil || res.Snapshot == nil {
			continue
		}
		for title, entry := range res.Snapshot.Movies {
			av.indexMovie(models.TitleKey(title), serverID, entry)
		}
		for title, entry := range res.Snapshot.TV {
			av.indexShow(models.TitleKey(title), serverID, entry)
		}
	}
	return av
}

// MovieServers returns the IDs of servers offering the field for the title.
func (a *Availability) MovieServers(titleKey, fieldPath string) []string {
	return a.movies[titleKey][fieldPath]
}

// TVServers returns the IDs of servers offering the field for the show.
func (a *Availability) TVServers(titleKey, fieldPath string) []string {
	return a.tv[titleKey][fieldPath]
}

func (a *Availability) indexMovie(titleKey, serverID string, entry models.MovieEntry) {
	add := a.adder(a.movies, titleKey, serverID)

	add("videoURL", entry.VideoURL != "")
	add("metadata", entry.MetadataURL != "")
	add("posterURL", entry.PosterURL != "")
	add("posterBlurhash", entry.PosterBlurhash != "")
	add("backdropURL", entry.BackdropURL != "")
	add("backdropBlurhash", entry.BackdropBlurhash != "")
	add("logoURL", entry.LogoURL != "")
	add("chaptersURL", entry.ChaptersURL != "")
	add("thumbnailsURL", entry.ThumbnailsURL != "")
	add("captions", len(entry.Captions) > 0)
	add("videoInfo", entry.VideoInfo != nil)
}

func (a *Availability) indexShow(titleKey, serverID string, entry models.ShowEntry) {
	add := a.adder(a.tv, titleKey, serverID)

	add("metadata", entry.MetadataURL != "")
	add("posterURL", entry.PosterURL != "")
	add("posterBlurhash", entry.PosterBlurhash != "")
	add("backdropURL", entry.BackdropURL != "")
	add("backdropBlurhash", entry.BackdropBlurhash != "")
	add("logoURL", entry.LogoURL != "")

	for label, season := range entry.Seasons {
		num, ok := parseSeasonNumber(label)
		if !ok {
			continue
		}
		prefix := "seasons." + strconv.Itoa(num) + "."
		add(prefix+"posterURL", season.PosterURL != "")
		add(prefix+"posterBlurhash", season.PosterBlurhash != "")

		for _, epNum := range catalogEpisodeNumbers(season) {
			name, ok := episodeFileName(season, epNum)
			if !ok {
				continue
			}
			ep := season.Episodes[name]
			epPrefix := prefix + "episodes." + strconv.Itoa(epNum) + "."
			add(epPrefix+"videoURL", ep.VideoURL != "")
			add(epPrefix+"metadata", ep.MetadataURL != "")
			add(epPrefix+"thumbnailURL", ep.ThumbnailURL != "")
			add(epPrefix+"thumbnailBlurhash", ep.ThumbnailBlurhash != "")
			add(epPrefix+"chaptersURL", ep.ChaptersURL != "")
			add(epPrefix+"captions", len(ep.Captions) > 0)
			add(epPrefix+"videoInfo", ep.VideoInfo != nil)
		}
	}
}

// adder returns a closure appending serverID under (titleKey, fieldPath)
// when present is true.
func (a *Availability) adder(index map[string]map[string][]string, titleKey, serverID string) func(fieldPath string, present bool) {
	fields, ok := index[titleKey]
	if !ok {
		fields = make(map[string][]string)
		index[titleKey] = fields
	}
	return func(fieldPath string, present bool) {
		if present {
			fields[fieldPath] = append(fields[fieldPath], serverID)
		}
	}
}
