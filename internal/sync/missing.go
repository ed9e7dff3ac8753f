// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package sync

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/apezdr/streamsync/internal/models"
)

var (
	seasonNumberRe  = regexp.MustCompile(`(?i)season\s*(\d+)`)
	episodeNumberRe = regexp.MustCompile(`(?i)s\d{1,4}e(\d{1,4})`)
)

// parseSeasonNumber extracts the season number from a season label such as
// "Season 1". Labels without a recognizable number return ok=false and the
// season is skipped.
func parseSeasonNumber(label string) (int, bool) {
	m := seasonNumberRe.FindStringSubmatch(label)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseEpisodeNumber extracts the episode number from a file name. SxxEyy
// markers take precedence; otherwise the position within the sorted file
// list is used (1-based).
func parseEpisodeNumber(fileName string, position int) int {
	if m := episodeNumberRe.FindStringSubmatch(fileName); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return position
}

// IdentifyMissing diffs one server's catalog snapshot against the canonical
// records and returns what the database lacks. Canonical lookups are keyed
// by normalized title so letter case and spacing differences between
// servers never duplicate records.
//
// Titles without any playable file stay out of Movies/TV and are reported
// under MissingMp4Movies/MissingMp4Shows instead.
func IdentifyMissing(snapshot *models.CatalogSnapshot, movies []models.Movie, shows []models.TVShow) models.MissingMediaSet {
	var set models.MissingMediaSet

	haveMovies := make(map[string]struct{}, len(movies))
	for _, m := range movies {
		haveMovies[models.TitleKey(m.Title)] = struct{}{}
	}
	haveShows := make(map[string]*models.TVShow, len(shows))
	for i := range shows {
		haveShows[models.TitleKey(shows[i].Title)] = &shows[i]
	}

	for title, entry := range snapshot.Movies {
		if !entry.HasPlayableFile() {
			set.MissingMp4Movies = append(set.MissingMp4Movies, title)
			continue
		}
		if _, ok := haveMovies[models.TitleKey(title)]; !ok {
			set.Movies = append(set.Movies, title)
		}
	}

	for title, entry := range snapshot.TV {
		missing := diffShow(entry, haveShows[models.TitleKey(title)])
		if missing == nil {
			continue
		}
		if len(missing.Seasons) == 0 {
			// Show exists in the catalog but offers no episode files at all.
			set.MissingMp4Shows = append(set.MissingMp4Shows, title)
			continue
		}
		missing.ShowTitle = title
		set.TV = append(set.TV, *missing)
	}

	sort.Strings(set.Movies)
	sort.Strings(set.MissingMp4Movies)
	sort.Strings(set.MissingMp4Shows)
	sort.Slice(set.TV, func(i, j int) bool { return set.TV[i].ShowTitle < set.TV[j].ShowTitle })

	return set
}

// diffShow compares one catalog show against its canonical record (nil when
// the show is unknown). It returns nil when nothing is missing, and a
// MissingShow with zero seasons when the catalog show has no files at all.
func diffShow(entry models.ShowEntry, have *models.TVShow) *models.MissingShow {
	anyFiles := false
	var missing models.MissingShow

	for label, season := range entry.Seasons {
		if !season.HasFiles() {
			continue
		}
		anyFiles = true

		num, ok := parseSeasonNumber(label)
		if !ok {
			continue
		}

		wantEpisodes := catalogEpisodeNumbers(season)
		if len(wantEpisodes) == 0 {
			continue
		}

		var haveSeason *models.Season
		if have != nil {
			haveSeason = have.FindSeason(num)
		}
		if haveSeason == nil {
			missing.Seasons = append(missing.Seasons, models.MissingSeason{Season: num})
			continue
		}

		var missingEps []int
		for _, ep := range wantEpisodes {
			if haveSeason.FindEpisode(ep) == nil {
				missingEps = append(missingEps, ep)
			}
		}
		if len(missingEps) > 0 {
			missing.Seasons = append(missing.Seasons, models.MissingSeason{Season: num, MissingEpisodes: missingEps})
		}
	}

	if !anyFiles {
		if have == nil {
			return &models.MissingShow{}
		}
		return nil
	}
	if len(missing.Seasons) == 0 {
		return nil
	}

	sort.Slice(missing.Seasons, func(i, j int) bool {
		return missing.Seasons[i].Season < missing.Seasons[j].Season
	})
	return &missing
}

// catalogEpisodeNumbers returns the sorted, de-duplicated episode numbers a
// catalog season offers. File names sort first so positional fallback
// numbering is stable across runs.
func catalogEpisodeNumbers(season models.SeasonEntry) []int {
	fileNames := make([]string, 0, len(season.Episodes))
	for name := range season.Episodes {
		fileNames = append(fileNames, name)
	}
	sort.Strings(fileNames)

	seen := make(map[int]struct{}, len(fileNames))
	nums := make([]int, 0, len(fileNames))
	for i, name := range fileNames {
		n := parseEpisodeNumber(name, i+1)
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// episodeFileName finds the catalog file name that maps to the given
// episode number, mirroring catalogEpisodeNumbers' assignment.
func episodeFileName(season models.SeasonEntry, episode int) (string, bool) {
	fileNames := make([]string, 0, len(season.Episodes))
	for name := range season.Episodes {
		fileNames = append(fileNames, name)
	}
	sort.Strings(fileNames)

	seen := make(map[int]struct{}, len(fileNames))
	for i, name := range fileNames {
		n := parseEpisodeNumber(name, i+1)
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		if n == episode {
			return name, true
		}
	}
	return "", false
}

// seasonLabelFor returns the catalog label whose parsed number matches the
// given season.
func seasonLabelFor(entry models.ShowEntry, season int) (string, bool) {
	labels := make([]string, 0, len(entry.Seasons))
	for label := range entry.Seasons {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		if n, ok := parseSeasonNumber(label); ok && n == season {
			return label, true
		}
	}
	return "", false
}

// hasStrictlyHigherPriority reports whether any server in ids outranks
// (lower priority number than) the given server. Used to skip work a better
// server will do for the same field.
func hasStrictlyHigherPriority(priorities map[string]int, ids []string, serverID string) bool {
	self, ok := priorities[serverID]
	if !ok {
		return false
	}
	for _, id := range ids {
		if p, ok := priorities[id]; ok && p < self {
			return true
		}
	}
	return false
}
