// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package models

import "time"

// Canonical records are the merged, persisted representation of media.
// Every syncable field carries a companion <Field>Source tag naming the
// server that last supplied its value. The merge invariant: a field is never
// overwritten by a server whose priority number is worse (higher) than the
// provenance server's, unless the field is empty or stale.

// Movie is the canonical record for one movie title.
type Movie struct {
	Title string `json:"title"`

	VideoURL    string `json:"videoURL,omitempty"`
	VideoSource string `json:"videoSource,omitempty"`

	PosterURL    string `json:"posterURL,omitempty"`
	PosterSource string `json:"posterSource,omitempty"`

	PosterBlurhash       string `json:"posterBlurhash,omitempty"`
	PosterBlurhashSource string `json:"posterBlurhashSource,omitempty"`

	BackdropURL    string `json:"backdropURL,omitempty"`
	BackdropSource string `json:"backdropSource,omitempty"`

	BackdropBlurhash       string `json:"backdropBlurhash,omitempty"`
	BackdropBlurhashSource string `json:"backdropBlurhashSource,omitempty"`

	LogoURL    string `json:"logoURL,omitempty"`
	LogoSource string `json:"logoSource,omitempty"`

	ChaptersURL    string `json:"chaptersURL,omitempty"`
	ChaptersSource string `json:"chaptersSource,omitempty"`

	ThumbnailsURL    string `json:"thumbnailsURL,omitempty"`
	ThumbnailsSource string `json:"thumbnailsSource,omitempty"`

	Captions       map[string]CaptionTrack `json:"captions,omitempty"`
	CaptionsSource string                  `json:"captionsSource,omitempty"`

	Metadata       *Metadata `json:"metadata,omitempty"`
	MetadataSource string    `json:"metadataSource,omitempty"`

	VideoInfo       *VideoInfo `json:"videoInfo,omitempty"`
	VideoInfoSource string     `json:"videoInfoSource,omitempty"`

	Duration          int64     `json:"duration,omitempty"`
	Dimensions        string    `json:"dimensions,omitempty"`
	HDR               string    `json:"hdr,omitempty"`
	MediaLastModified time.Time `json:"mediaLastModified,omitempty"`

	// LastUpdated is bumped on every write and keys metadata cache
	// invalidation.
	LastUpdated time.Time `json:"lastUpdated,omitempty"`
}

// TVShow is the canonical record for one show title.
type TVShow struct {
	Title string `json:"title"`

	PosterURL    string `json:"posterURL,omitempty"`
	PosterSource string `json:"posterSource,omitempty"`

	PosterBlurhash       string `json:"posterBlurhash,omitempty"`
	PosterBlurhashSource string `json:"posterBlurhashSource,omitempty"`

	BackdropURL    string `json:"backdropURL,omitempty"`
	BackdropSource string `json:"backdropSource,omitempty"`

	BackdropBlurhash       string `json:"backdropBlurhash,omitempty"`
	BackdropBlurhashSource string `json:"backdropBlurhashSource,omitempty"`

	LogoURL    string `json:"logoURL,omitempty"`
	LogoSource string `json:"logoSource,omitempty"`

	Metadata       *Metadata `json:"metadata,omitempty"`
	MetadataSource string    `json:"metadataSource,omitempty"`

	// Seasons is ordered ascending by SeasonNumber.
	Seasons []Season `json:"seasons,omitempty"`

	LastUpdated time.Time `json:"lastUpdated,omitempty"`
}

// Season holds one show's season and its episodes, ordered ascending by
// EpisodeNumber and uniquely keyed by (SeasonNumber, EpisodeNumber).
type Season struct {
	SeasonNumber int `json:"seasonNumber"`

	PosterURL    string `json:"posterURL,omitempty"`
	PosterSource string `json:"posterSource,omitempty"`

	PosterBlurhash       string `json:"posterBlurhash,omitempty"`
	PosterBlurhashSource string `json:"posterBlurhashSource,omitempty"`

	Episodes []Episode `json:"episodes,omitempty"`
}

// Episode is one canonical episode record.
type Episode struct {
	EpisodeNumber int    `json:"episodeNumber"`
	FileName      string `json:"fileName,omitempty"`

	VideoURL    string `json:"videoURL,omitempty"`
	VideoSource string `json:"videoSource,omitempty"`

	ThumbnailURL    string `json:"thumbnailURL,omitempty"`
	ThumbnailSource string `json:"thumbnailSource,omitempty"`

	ThumbnailBlurhash       string `json:"thumbnailBlurhash,omitempty"`
	ThumbnailBlurhashSource string `json:"thumbnailBlurhashSource,omitempty"`

	ChaptersURL    string `json:"chaptersURL,omitempty"`
	ChaptersSource string `json:"chaptersSource,omitempty"`

	Captions       map[string]CaptionTrack `json:"captions,omitempty"`
	CaptionsSource string                  `json:"captionsSource,omitempty"`

	Metadata       *Metadata `json:"metadata,omitempty"`
	MetadataSource string    `json:"metadataSource,omitempty"`

	VideoInfo       *VideoInfo `json:"videoInfo,omitempty"`
	VideoInfoSource string     `json:"videoInfoSource,omitempty"`

	Duration          int64     `json:"duration,omitempty"`
	Dimensions        string    `json:"dimensions,omitempty"`
	HDR               string    `json:"hdr,omitempty"`
	MediaLastModified time.Time `json:"mediaLastModified,omitempty"`
}

// FindSeason returns the season with the given number, or nil.
func (s *TVShow) FindSeason(number int) *Season {
	for i := range s.Seasons {
		if s.Seasons[i].SeasonNumber == number {
			return &s.Seasons[i]
		}
	}
	return nil
}

// FindEpisode returns the episode with the given number, or nil.
func (s *Season) FindEpisode(number int) *Episode {
	for i := range s.Episodes {
		if s.Episodes[i].EpisodeNumber == number {
			return &s.Episodes[i]
		}
	}
	return nil
}

// EpisodeNumbers returns the season's episode numbers in order.
func (s *Season) EpisodeNumbers() []int {
	nums := make([]int, len(s.Episodes))
	for i := range s.Episodes {
		nums[i] = s.Episodes[i].EpisodeNumber
	}
	return nums
}
