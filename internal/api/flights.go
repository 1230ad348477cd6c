package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/amopromo/flightdeck/internal/logging"
	"github.com/amopromo/flightdeck/internal/search"
	"github.com/amopromo/flightdeck/internal/upstream"
)

// FlightSearcher is the aggregator contract the handler depends on
type FlightSearcher interface {
	Search(ctx context.Context, q search.Query) (*search.Result, error)
}

// FlightSearchHandler handles GET /api/flights/search/
//
// Maps typed aggregator failures onto statuses: bad query and unknown
// airport are 4xx, upstream trouble is 502, everything else 500. An empty
// offer list is a plain 200.
func FlightSearchHandler(searcher FlightSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := r.URL.Query()
		query := search.Query{
			Origin:        params.Get("origin"),
			Destination:   params.Get("destination"),
			DepartureDate: params.Get("departure_date"),
			ReturnDate:    params.Get("return_date"),
		}

		result, err := searcher.Search(r.Context(), query)
		if err != nil {
			var validationErr *search.ValidationError
			var unknownErr *search.UnknownAirportError
			switch {
			case errors.As(err, &validationErr):
				respondWithError(w, http.StatusBadRequest, validationErr.Error())
			case errors.As(err, &unknownErr):
				respondWithError(w, http.StatusBadRequest, unknownErr.Error())
			case errors.Is(err, upstream.ErrUnavailable),
				errors.Is(err, upstream.ErrAuth),
				errors.Is(err, upstream.ErrMalformedPayload):
				logging.Error("Flight search upstream failure", "error", err.Error())
				respondWithError(w, http.StatusBadGateway, "flights service unavailable")
			default:
				logging.Error("Flight search failed", "error", err.Error())
				respondWithError(w, http.StatusInternalServerError, "internal server error")
			}
			return
		}

		respondWithSuccess(w, http.StatusOK, result)
	}
}
