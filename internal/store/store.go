// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

// Package store persists the canonical media database in BadgerDB as JSON
// documents: one document per movie or show title plus a single system
// document for the last sync timestamp.
//
// Updates are expressed as dotted-field-path partial updates (the document
// store discipline of the merge engine: own your field, never replace whole
// records). Each update is a read-modify-write inside one badger
// transaction, making a single record+field write atomic.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/apezdr/streamsync/internal/models"
)

// Key prefixes for the badger keyspace.
const (
	movieKeyPrefix = "movie:"
	showKeyPrefix  = "tv:"
	lastSyncKey    = "system:last_sync_time"
)

// ErrNotFound is returned for lookups of documents that do not exist.
var ErrNotFound = errors.New("document not found")

// Options configures the store.
type Options struct {
	// Path is the badger directory. Ignored when InMemory is set.
	Path string

	// InMemory runs badger without disk persistence (tests).
	InMemory bool
}

// Store is the badger-backed canonical media database.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store.
func Open(opts Options) (*Store, error) {
	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		badgerOpts = badger.DefaultOptions(opts.Path)
	}
	// Badger logs through its own interface; keep it quiet and let the
	// caller log open/close events.
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", opts.Path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the store is usable (readiness checks).
func (s *Store) Ping(ctx context.Context) error {
	return s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(lastSyncKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// get unmarshals one document into out, mapping missing keys to ErrNotFound.
func (s *Store) get(key string, out any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

// put marshals and stores one document.
func (s *Store) put(key string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// GetMovie returns the canonical movie stored under the given title key.
func (s *Store) GetMovie(ctx context.Context, titleKey string) (*models.Movie, error) {
	var m models.Movie
	if err := s.get(movieKeyPrefix+titleKey, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// PutMovie stores a canonical movie, stamping LastUpdated.
func (s *Store) PutMovie(ctx context.Context, titleKey string, m *models.Movie) error {
	m.LastUpdated = time.Now().UTC()
	return s.put(movieKeyPrefix+titleKey, m)
}

// DeleteMovie removes a canonical movie. Deleting a missing key is not an
// error.
func (s *Store) DeleteMovie(ctx context.Context, titleKey string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(movieKeyPrefix + titleKey))
	})
}

// ListMovies returns all canonical movies keyed by title key.
func (s *Store) ListMovies(ctx context.Context) (map[string]*models.Movie, error) {
	out := make(map[string]*models.Movie)
	err := s.list(movieKeyPrefix, func(key string, val []byte) error {
		var m models.Movie
		if err := json.Unmarshal(val, &m); err != nil {
			return fmt.Errorf("unmarshal movie %s: %w", key, err)
		}
		out[key] = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetShow returns the canonical show stored under the given title key.
func (s *Store) GetShow(ctx context.Context, titleKey string) (*models.TVShow, error) {
	var show models.TVShow
	if err := s.get(showKeyPrefix+titleKey, &show); err != nil {
		return nil, err
	}
	return &show, nil
}

// PutShow stores a canonical show, stamping LastUpdated.
func (s *Store) PutShow(ctx context.Context, titleKey string, show *models.TVShow) error {
	show.LastUpdated = time.Now().UTC()
	return s.put(showKeyPrefix+titleKey, show)
}

// DeleteShow removes a canonical show.
func (s *Store) DeleteShow(ctx context.Context, titleKey string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(showKeyPrefix + titleKey))
	})
}

// ListShows returns all canonical shows keyed by title key.
func (s *Store) ListShows(ctx context.Context) (map[string]*models.TVShow, error) {
	out := make(map[string]*models.TVShow)
	err := s.list(showKeyPrefix, func(key string, val []byte) error {
		var show models.TVShow
		if err := json.Unmarshal(val, &show); err != nil {
			return fmt.Errorf("unmarshal show %s: %w", key, err)
		}
		out[key] = &show
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// list iterates every document under prefix.
func (s *Store) list(prefix string, fn func(key string, val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key()[len(prefix):])
			if err := item.Value(func(val []byte) error {
				return fn(key, val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateMovieFields applies a $set-style partial update to one movie
// document and bumps its lastUpdated timestamp. A nil value unsets the
// field. The whole update is one transaction.
func (s *Store) UpdateMovieFields(ctx context.Context, titleKey string, fields map[string]any) error {
	return s.updateFields(movieKeyPrefix+titleKey, fields)
}

// UpdateShowFields applies a $set-style partial update to one show
// document. Array elements are addressed with numeric path segments
// (e.g. "seasons.0.episodes.2.videoURL").
func (s *Store) UpdateShowFields(ctx context.Context, titleKey string, fields map[string]any) error {
	return s.updateFields(showKeyPrefix+titleKey, fields)
}

func (s *Store) updateFields(key string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}

		var doc map[string]any
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		}); err != nil {
			return fmt.Errorf("unmarshal %s: %w", key, err)
		}

		for path, value := range fields {
			if err := applyFieldPath(doc, path, value); err != nil {
				return fmt.Errorf("apply %s on %s: %w", path, key, err)
			}
		}
		doc["lastUpdated"] = time.Now().UTC().Format(time.RFC3339Nano)

		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		return txn.Set([]byte(key), data)
	})
}

// LastSyncTime returns the persisted end-of-run timestamp, zero when no
// sync has completed yet.
func (s *Store) LastSyncTime(ctx context.Context) (time.Time, error) {
	var doc struct {
		Timestamp time.Time `json:"timestamp"`
	}
	err := s.get(lastSyncKey, &doc)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return doc.Timestamp, nil
}

// SetLastSyncTime persists the end-of-run timestamp, the only state a sync
// run leaves behind besides the media documents themselves.
func (s *Store) SetLastSyncTime(ctx context.Context, t time.Time) error {
	return s.put(lastSyncKey, map[string]any{"timestamp": t.UTC()})
}
