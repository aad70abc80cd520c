// Package server wires HTTP routes, middleware, and services into the API handler.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	healthhandler "magnos-hutch/backend/internal/health/handler"
	metricshandler "magnos-hutch/backend/internal/metrics/handler"
	metricsservice "magnos-hutch/backend/internal/metrics/service"
	sessionhandler "magnos-hutch/backend/internal/session/handler"
	sessionservice "magnos-hutch/backend/internal/session/service"
	"magnos-hutch/backend/internal/telemetry"
)

// Deps carries everything the router needs.
type Deps struct {
	Ingest  *sessionservice.IngestService
	Daily   *metricsservice.DailyService
	Hist    *metricsservice.HistogramService
	DB      healthhandler.Pinger
	Emitter telemetry.EventEmitter

	// AllowedOrigins configures the CORS middleware. Empty disables CORS headers.
	AllowedOrigins []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(d.AllowedOrigins) > 0 {
		r.Use(corsMiddleware(d.AllowedOrigins))
	}

	healthhandler.New(d.DB).RegisterRoutes(r)

	ingestHandler := sessionhandler.New(d.Ingest, d.Emitter)
	metricsHandler := metricshandler.New(d.Daily, d.Hist)

	r.Route("/api", func(api chi.Router) {
		ingestHandler.RegisterRoutes(api)
		metricsHandler.RegisterRoutes(api)
	})

	return r
}
