package api

import (
	"errors"
	"net/http"

	"github.com/amopromo/flightdeck/internal/cache"
	"github.com/amopromo/flightdeck/internal/importer"
	"github.com/amopromo/flightdeck/internal/logging"
	"github.com/amopromo/flightdeck/internal/upstream"
)

// ImportAirportsHandler handles POST /api/v1/admin/import-airports
//
// Query params force_update and dry_run mirror the importctl flags.
func ImportAirportsHandler(pipeline *importer.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := r.URL.Query()
		mode, err := importer.ParseMode(params.Get("mode"))
		if err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts := importer.Options{
			Mode:        mode,
			ForceUpdate: params.Get("force_update") == "true",
			DryRun:      params.Get("dry_run") == "true",
		}

		run, err := pipeline.Run(r.Context(), opts)
		if err != nil {
			switch {
			case errors.Is(err, importer.ErrImportInProgress):
				respondWithError(w, http.StatusConflict, err.Error())
			case errors.Is(err, upstream.ErrUnavailable),
				errors.Is(err, upstream.ErrAuth),
				errors.Is(err, upstream.ErrMalformedPayload):
				logging.Error("Airport import upstream failure", "error", err.Error())
				respondWithError(w, http.StatusBadGateway, "airports service unavailable")
			default:
				logging.Error("Airport import failed", "error", err.Error())
				respondWithError(w, http.StatusInternalServerError, "import failed")
			}
			return
		}

		respondWithSuccess(w, http.StatusOK, run)
	}
}

// ClearAirportCacheHandler handles POST /api/v1/admin/clear-airport-cache
//
// Flushes the fast layer only; the durable store is untouched.
func ClearAirportCacheHandler(store *cache.AirportStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.InvalidateAll(r.Context()); err != nil {
			logging.Error("Failed to clear airport cache", "error", err.Error())
			respondWithError(w, http.StatusBadGateway, "cache unavailable")
			return
		}

		msg := "airport cache cleared"
		respondWithSuccess(w, http.StatusOK, &msg)
	}
}
