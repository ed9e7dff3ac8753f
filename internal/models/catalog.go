// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package models

import "time"

// Catalog documents are fetched fresh from each file server every sync run
// and discarded after the merge. Paths inside them are relative to the
// server's base URL + prefix; the urlutil resolver rebuilds absolute URLs.

// MovieCatalog is the payload of GET {syncEndpoint}/media/movies.
type MovieCatalog struct {
	Version int                   `json:"version"`
	Movies  map[string]MovieEntry `json:"movies"`
}

// TVCatalog is the payload of GET {syncEndpoint}/media/tv.
type TVCatalog struct {
	Version int                  `json:"version"`
	TV      map[string]ShowEntry `json:"tv"`
}

// CatalogSnapshot combines one server's movie and TV catalogs for a run.
type CatalogSnapshot struct {
	Movies map[string]MovieEntry
	TV     map[string]ShowEntry
}

// CaptionTrack is one subtitle track offered for a media item.
type CaptionTrack struct {
	SRT string `json:"srt,omitempty"`
	VTT string `json:"vtt,omitempty"`
}

// VideoInfo is the technical track listing probed from the media file.
type VideoInfo struct {
	Video []VideoTrack `json:"video,omitempty"`
	Audio []AudioTrack `json:"audio,omitempty"`
}

// VideoTrack describes one video stream.
type VideoTrack struct {
	Codec      string  `json:"codec,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	FrameRate  float64 `json:"frameRate,omitempty"`
	BitRate    int64   `json:"bitRate,omitempty"`
	ColorSpace string  `json:"colorSpace,omitempty"`
}

// AudioTrack describes one audio stream.
type AudioTrack struct {
	Codec    string `json:"codec,omitempty"`
	Channels int    `json:"channels,omitempty"`
	Language string `json:"language,omitempty"`
	BitRate  int64  `json:"bitRate,omitempty"`
}

// MovieEntry is one movie as described by a file server catalog.
type MovieEntry struct {
	FileNames         []string                `json:"fileNames,omitempty"`
	VideoURL          string                  `json:"videoURL,omitempty"`
	MetadataURL       string                  `json:"metadataURL,omitempty"`
	PosterURL         string                  `json:"posterURL,omitempty"`
	PosterBlurhash    string                  `json:"posterBlurhash,omitempty"`
	BackdropURL       string                  `json:"backdropURL,omitempty"`
	BackdropBlurhash  string                  `json:"backdropBlurhash,omitempty"`
	LogoURL           string                  `json:"logoURL,omitempty"`
	ChaptersURL       string                  `json:"chaptersURL,omitempty"`
	ThumbnailsURL     string                  `json:"thumbnailsURL,omitempty"`
	Captions          map[string]CaptionTrack `json:"captions,omitempty"`
	VideoInfo         *VideoInfo              `json:"videoInfo,omitempty"`
	Duration          int64                   `json:"duration,omitempty"`
	Dimensions        string                  `json:"dimensions,omitempty"`
	HDR               string                  `json:"hdr,omitempty"`
	MediaLastModified time.Time               `json:"mediaLastModified,omitempty"`
}

// HasPlayableFile reports whether the entry carries a playable video URL.
// Entries without one are tracked separately and never created as canonical
// records (there is nothing to play).
func (m MovieEntry) HasPlayableFile() bool {
	return m.VideoURL != ""
}

// ShowEntry is one TV show as described by a file server catalog.
type ShowEntry struct {
	MetadataURL      string                 `json:"metadataURL,omitempty"`
	PosterURL        string                 `json:"posterURL,omitempty"`
	PosterBlurhash   string                 `json:"posterBlurhash,omitempty"`
	BackdropURL      string                 `json:"backdropURL,omitempty"`
	BackdropBlurhash string                 `json:"backdropBlurhash,omitempty"`
	LogoURL          string                 `json:"logoURL,omitempty"`
	Seasons          map[string]SeasonEntry `json:"seasons,omitempty"`
}

// SeasonEntry is one season under a catalog show, keyed by its label
// (e.g. "Season 1").
type SeasonEntry struct {
	FileNames      []string                `json:"fileNames,omitempty"`
	PosterURL      string                  `json:"posterURL,omitempty"`
	PosterBlurhash string                  `json:"posterBlurhash,omitempty"`
	Episodes       map[string]EpisodeEntry `json:"episodes,omitempty"`
}

// HasFiles reports whether the season offers at least one episode file.
func (s SeasonEntry) HasFiles() bool {
	return len(s.FileNames) > 0 || len(s.Episodes) > 0
}

// EpisodeEntry is one episode file under a catalog season, keyed by its
// file name.
type EpisodeEntry struct {
	VideoURL          string                  `json:"videoURL,omitempty"`
	MetadataURL       string                  `json:"metadataURL,omitempty"`
	ThumbnailURL      string                  `json:"thumbnailURL,omitempty"`
	ThumbnailBlurhash string                  `json:"thumbnailBlurhash,omitempty"`
	ChaptersURL       string                  `json:"chaptersURL,omitempty"`
	Captions          map[string]CaptionTrack `json:"captions,omitempty"`
	VideoInfo         *VideoInfo              `json:"videoInfo,omitempty"`
	Duration          int64                   `json:"duration,omitempty"`
	Dimensions        string                  `json:"dimensions,omitempty"`
	HDR               string                  `json:"hdr,omitempty"`
	MediaLastModified time.Time               `json:"mediaLastModified,omitempty"`
}

// Metadata is the enrichment document referenced by a catalog metadataURL.
// It is stored as an opaque subtree on the canonical record; the engine only
// interprets LastUpdated for staleness comparisons.
type Metadata struct {
	Title       string         `json:"title,omitempty"`
	Overview    string         `json:"overview,omitempty"`
	ReleaseDate string         `json:"release_date,omitempty"`
	Genres      []string       `json:"genres,omitempty"`
	Rating      float64        `json:"rating,omitempty"`
	TMDBID      int64          `json:"tmdb_id,omitempty"`
	LastUpdated time.Time      `json:"last_updated,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}
