// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package sync

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/apezdr/streamsync/internal/config"
	"github.com/apezdr/streamsync/internal/logging"
	"github.com/apezdr/streamsync/internal/metrics"
	"github.com/apezdr/streamsync/internal/models"
)

// Expected catalog document versions. A mismatch is tolerated with a
// warning so older and newer file servers keep syncing.
const (
	ExpectedMovieCatalogVersion = 1
	ExpectedTVCatalogVersion    = 1
)

// webhookHeader authenticates server-to-server catalog requests.
const webhookHeader = "X-Webhook-ID"

// CatalogResult is one server's fetch outcome: a snapshot or a captured
// error, never both. Errors stay per-server so one failing server cannot
// abort the others.
type CatalogResult struct {
	Server   models.ServerConfig
	Snapshot *models.CatalogSnapshot
	Err      error
}

// Fetcher retrieves catalog documents from file servers with per-request
// timeouts, transient-error retries, a per-server circuit breaker, and a
// per-server rate limiter.
type Fetcher struct {
	client *http.Client
	cfg    config.SyncConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*models.CatalogSnapshot]
	limiters map[string]*rate.Limiter
}

// NewFetcher creates a fetcher for the given sync configuration.
func NewFetcher(cfg config.SyncConfig) *Fetcher {
	return &Fetcher{
		// Timeout is enforced per request via context; the client itself
		// stays unbounded so retries control their own deadlines.
		client:   &http.Client{},
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker[*models.CatalogSnapshot]),
		limiters: make(map[string]*rate.Limiter),
	}
}

// FetchAll retrieves every server's catalogs concurrently and returns one
// result per server ID.
func (f *Fetcher) FetchAll(ctx context.Context, servers []models.ServerConfig) map[string]CatalogResult {
	results := make(map[string]CatalogResult, len(servers))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, server := range servers {
		wg.Add(1)
		go func(server models.ServerConfig) {
			defer wg.Done()

			snapshot, err := f.fetchServer(ctx, server)
			outcome := "ok"
			if err != nil {
				outcome = "error"
				logging.Warn().Err(err).Str("server", server.ID).Msg("Catalog fetch failed")
			}
			metrics.CatalogFetchesTotal.WithLabelValues(server.ID, outcome).Inc()

			mu.Lock()
			results[server.ID] = CatalogResult{Server: server, Snapshot: snapshot, Err: err}
			mu.Unlock()
		}(server)
	}
	wg.Wait()

	return results
}

// fetchServer retrieves one server's TV and movie catalogs concurrently,
// behind that server's circuit breaker.
func (f *Fetcher) fetchServer(ctx context.Context, server models.ServerConfig) (*models.CatalogSnapshot, error) {
	return f.breaker(server.ID).Execute(func() (*models.CatalogSnapshot, error) {
		var (
			movieCat models.MovieCatalog
			tvCat    models.TVCatalog
			movieErr error
			tvErr    error
			wg       sync.WaitGroup
		)

		wg.Add(2)
		go func() {
			defer wg.Done()
			movieErr = f.fetchCatalog(ctx, server, server.Internal()+"/media/movies", &movieCat)
		}()
		go func() {
			defer wg.Done()
			tvErr = f.fetchCatalog(ctx, server, server.Internal()+"/media/tv", &tvCat)
		}()
		wg.Wait()

		if movieErr != nil {
			return nil, fmt.Errorf("movie catalog: %w", movieErr)
		}
		if tvErr != nil {
			return nil, fmt.Errorf("tv catalog: %w", tvErr)
		}

		checkCatalogVersion(server.ID, "movies", movieCat.Version, ExpectedMovieCatalogVersion)
		checkCatalogVersion(server.ID, "tv", tvCat.Version, ExpectedTVCatalogVersion)

		return &models.CatalogSnapshot{Movies: movieCat.Movies, TV: tvCat.TV}, nil
	})
}

// fetchCatalog retrieves and decodes one catalog document with retries.
func (f *Fetcher) fetchCatalog(ctx context.Context, server models.ServerConfig, url string, out any) error {
	policy := DefaultRetryPolicy(f.cfg.RetryAttempts, f.cfg.RetryDelay)
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		metrics.CatalogFetchRetries.WithLabelValues(server.ID).Inc()
		logging.Warn().Err(err).
			Str("server", server.ID).
			Str("url", url).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Retrying catalog fetch")
	}

	_, err := RetryDo(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, f.doGet(ctx, server, url, out)
	})
	return err
}

// doGet performs one rate-limited, timeout-bounded GET and decodes the
// JSON body into out.
func (f *Fetcher) doGet(ctx context.Context, server models.ServerConfig, url string, out any) error {
	if err := f.limiter(server.ID).Wait(ctx); err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.requestTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if server.WebhookSecret != "" {
		req.Header.Set(webhookHeader, server.WebhookSecret)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}

func (f *Fetcher) requestTimeout() time.Duration {
	if f.cfg.RequestTimeout > 0 {
		return f.cfg.RequestTimeout
	}
	return 10 * time.Second
}

// breaker returns (creating on first use) the server's circuit breaker.
func (f *Fetcher) breaker(serverID string) *gobreaker.CircuitBreaker[*models.CatalogSnapshot] {
	f.mu.Lock()
	defer f.mu.Unlock()

	cb, ok := f.breakers[serverID]
	if !ok {
		cb = gobreaker.NewCircuitBreaker[*models.CatalogSnapshot](gobreaker.Settings{
			Name:        "catalog-" + serverID,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Info().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Circuit breaker state change")
			},
		})
		f.breakers[serverID] = cb
	}
	return cb
}

// limiter returns (creating on first use) the server's rate limiter.
func (f *Fetcher) limiter(serverID string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.limiters[serverID]
	if !ok {
		perSecond := f.cfg.RatePerSecond
		if perSecond <= 0 {
			perSecond = 20
		}
		burst := f.cfg.RateBurst
		if burst <= 0 {
			burst = int(perSecond) * 2
		}
		l = rate.NewLimiter(rate.Limit(perSecond), burst)
		f.limiters[serverID] = l
	}
	return l
}

func checkCatalogVersion(serverID, kind string, got, want int) {
	if got == 0 || got == want {
		return
	}
	logging.Warn().
		Str("server", serverID).
		Str("catalog", kind).
		Int("got", got).
		Int("want", want).
		Msg("Catalog version mismatch, continuing")
}
