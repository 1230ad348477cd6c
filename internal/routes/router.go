package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"

	"github.com/amopromo/flightdeck/internal/api"
	"github.com/amopromo/flightdeck/internal/cache"
	"github.com/amopromo/flightdeck/internal/importer"
	"github.com/amopromo/flightdeck/internal/logging"
	"github.com/amopromo/flightdeck/internal/metrics"
	"github.com/amopromo/flightdeck/internal/middleware"
	"github.com/amopromo/flightdeck/internal/search"
)

// Dependencies carries everything the routes need, wired in cmd/server
type Dependencies struct {
	SQLDB    *sqlx.DB
	Fast     cache.Cache
	Store    *cache.AirportStore
	Pipeline *importer.Pipeline
	Search   *search.Service
	Metrics  *metrics.MetricsRegistry
	UpSince  time.Time
}

func RegisterRoutes(deps *Dependencies) http.Handler {

	r := chi.NewRouter()

	// global middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.MetricsMiddleware(deps.Metrics))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	logging.Info("Router initialized with metrics and logging middleware")

	r.Get("/healthCheck", api.HealthCheckHandler(deps.SQLDB, deps.Fast, deps.UpSince))

	r.Route("/api", func(r chi.Router) {
		r.With(middleware.RateLimitMiddleware).
			Get("/flights/search/", api.FlightSearchHandler(deps.Search))

		r.Route("/v1/admin", func(r chi.Router) {
			r.Post("/import-airports", api.ImportAirportsHandler(deps.Pipeline))
			r.Post("/clear-airport-cache", api.ClearAirportCacheHandler(deps.Store))
		})
	})

	return r
}
