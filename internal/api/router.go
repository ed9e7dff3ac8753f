// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

// Package api exposes the HTTP surface: the sync trigger, status and health
// endpoints, and Prometheus metrics.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/apezdr/streamsync/internal/config"
)

// Router assembles the chi handler tree.
type Router struct {
	handler *Handler
	auth    *Authenticator
	sec     config.SecurityConfig
}

// NewRouter creates the router.
func NewRouter(handler *Handler, auth *Authenticator, sec config.SecurityConfig) *Router {
	return &Router{handler: handler, auth: auth, sec: sec}
}

// Setup builds the full middleware and route tree.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.sec.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", webhookHeader},
		MaxAge:         86400,
	}))

	r.Route("/api/v1/health", func(r chi.Router) {
		// Permissive limit so monitoring can poll freely.
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/live", rt.handler.HealthLive)
		r.Get("/ready", rt.handler.HealthReady)
	})

	r.Route("/api/v1/sync", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rt.rateLimitRequests(), rt.rateLimitWindow()))
		r.Use(rt.auth.Middleware)
		r.Post("/", rt.handler.TriggerSync)
		r.Get("/status", rt.handler.SyncStatus)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (rt *Router) rateLimitRequests() int {
	if rt.sec.RateLimitReqs > 0 {
		return rt.sec.RateLimitReqs
	}
	return 100
}

func (rt *Router) rateLimitWindow() time.Duration {
	if rt.sec.RateLimitWindow > 0 {
		return rt.sec.RateLimitWindow
	}
	return time.Minute
}
