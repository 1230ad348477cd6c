package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/amopromo/flightdeck/internal/cache"
)

// ServiceStatus is one dependency's health
type ServiceStatus struct {
	Status  string `json:"status"`
	Details string `json:"details"`
}

// HealthCheckResponse is the /healthCheck payload
type HealthCheckResponse struct {
	Status   string                   `json:"status"`
	Uptime   string                   `json:"uptime"`
	Services map[string]ServiceStatus `json:"services"`
}

// HealthCheckHandler handles GET /healthCheck
func HealthCheckHandler(db *sqlx.DB, fast cache.Cache, upSince time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		services := make(map[string]ServiceStatus)

		pgStatus := "ok"
		pgDetails := "Postgres Connected"
		if err := db.Ping(); err != nil {
			pgStatus = "down"
			pgDetails = err.Error()
		}
		services["postgres"] = ServiceStatus{Status: pgStatus, Details: pgDetails}

		// A down fast layer degrades reads but does not take the service down
		cacheStatus := "ok"
		cacheDetails := "Cache reachable"
		if err := fast.Ping(r.Context()); err != nil {
			cacheStatus = "degraded"
			cacheDetails = err.Error()
		}
		services["cache"] = ServiceStatus{Status: cacheStatus, Details: cacheDetails}

		overallStatus := "ok"
		if pgStatus != "ok" {
			overallStatus = "down"
		}

		resp := HealthCheckResponse{
			Status:   overallStatus,
			Uptime:   time.Since(upSince).Round(time.Second).String(),
			Services: services,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
