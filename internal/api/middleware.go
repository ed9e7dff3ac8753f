// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/apezdr/streamsync/internal/logging"
	"github.com/apezdr/streamsync/internal/metrics"
	"github.com/apezdr/streamsync/internal/models"
)

const requestIDHeader = "X-Request-ID"

// webhookHeader carries the shared secret a file server presents when
// triggering a sync. The same header authenticates our catalog requests in
// the other direction.
const webhookHeader = "X-Webhook-ID"

// RequestID assigns each request an ID, honoring one supplied by the
// caller, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request and feeds the HTTP duration
// histogram.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		metrics.ObserveHTTPRequest(r.Method, r.URL.Path, ww.Status(), elapsed)
		logging.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("remote", r.RemoteAddr).
			Str("request_id", ww.Header().Get(requestIDHeader)).
			Dur("duration", elapsed).
			Msg("HTTP request")
	})
}

// Authenticator guards the sync trigger surface. A request passes with a
// webhook secret matching any configured file server, or with an admin
// bearer token signed by the configured JWT secret. With neither secret
// configured the surface is open, which only makes sense in development.
type Authenticator struct {
	jwtSecret      []byte
	webhookSecrets [][]byte
}

// NewAuthenticator collects the accepted credentials from configuration.
func NewAuthenticator(jwtSecret string, servers []models.ServerConfig) *Authenticator {
	a := &Authenticator{}
	if jwtSecret != "" {
		a.jwtSecret = []byte(jwtSecret)
	}
	for _, s := range servers {
		if s.WebhookSecret != "" {
			a.webhookSecrets = append(a.webhookSecrets, []byte(s.WebhookSecret))
		}
	}
	if len(a.webhookSecrets) == 0 && a.jwtSecret == nil {
		logging.Warn().Msg("No webhook secrets or JWT secret configured, sync trigger endpoint is unauthenticated")
	}
	return a
}

// Middleware rejects unauthenticated requests with 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.authorized(r) {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) authorized(r *http.Request) bool {
	if len(a.webhookSecrets) == 0 && a.jwtSecret == nil {
		return true
	}

	if secret := r.Header.Get(webhookHeader); secret != "" {
		candidate := []byte(secret)
		for _, known := range a.webhookSecrets {
			if subtle.ConstantTimeCompare(candidate, known) == 1 {
				return true
			}
		}
	}

	if a.jwtSecret != nil {
		if token := bearerToken(r); token != "" {
			return a.validToken(token)
		}
	}
	return false
}

func (a *Authenticator) validToken(tokenStr string) bool {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		logging.Debug().Err(err).Msg("Rejected bearer token")
		return false
	}
	return token.Valid
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
