package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/amopromo/flightdeck/internal/cache"
	"github.com/amopromo/flightdeck/internal/logging"
	"github.com/amopromo/flightdeck/internal/metrics"
	"github.com/amopromo/flightdeck/internal/models"
	"github.com/amopromo/flightdeck/internal/upstream"
)

const dateLayout = "2006-01-02"

// Boarding fee: 10% of the fare with a 40.00 floor
const (
	feeRate  = 0.10
	feeFloor = 40.0
)

// Query is the validated value object for one flight search. Dates are
// YYYY-MM-DD; ReturnDate empty means one-way.
type Query struct {
	Origin        string
	Destination   string
	DepartureDate string
	ReturnDate    string
}

// AirportSummary is the resolved airport metadata included in results
type AirportSummary struct {
	IATA  string  `json:"iata"`
	Name  string  `json:"name,omitempty"`
	City  string  `json:"city"`
	State string  `json:"state,omitempty"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

// LegSummary describes one direction of travel
type LegSummary struct {
	DepartureDate string         `json:"departure_date"`
	From          AirportSummary `json:"from"`
	To            AirportSummary `json:"to"`
	Currency      string         `json:"currency"`
}

// Combination pairs one outbound offer with one return offer
type Combination struct {
	Outbound      upstream.FlightOffer `json:"outbound"`
	Return        upstream.FlightOffer `json:"return"`
	CombinedPrice upstream.OfferPrice  `json:"combined_price"`
}

// Result is the shaped flight-search response. Offers holds the outbound
// options; for round trips ReturnOffers and Combinations are filled in too.
// An empty offer list is a valid result.
type Result struct {
	Outbound     LegSummary             `json:"outbound"`
	Return       *LegSummary            `json:"return,omitempty"`
	Offers       []upstream.FlightOffer `json:"offers"`
	ReturnOffers []upstream.FlightOffer `json:"return_offers,omitempty"`
	Combinations []Combination          `json:"combinations,omitempty"`
}

// OffersFetcher is the upstream flights collaborator contract
type OffersFetcher interface {
	FetchOffers(ctx context.Context, from, to, date string) (*upstream.OffersResponse, error)
}

// Config holds search policy knobs
type Config struct {
	// AllowPastDeparture permits departure dates before today
	AllowPastDeparture bool
}

// Service resolves airport codes through the cache store, fetches offers
// from the upstream flights API and shapes the combined result
type Service struct {
	store   *cache.AirportStore
	flights OffersFetcher
	cfg     Config
	metrics *metrics.MetricsRegistry

	// Now is injectable for tests; defaults to time.Now
	Now func() time.Time
}

func NewService(store *cache.AirportStore, flights OffersFetcher, cfg Config, reg *metrics.MetricsRegistry) *Service {
	return &Service{
		store:   store,
		flights: flights,
		cfg:     cfg,
		metrics: reg,
		Now:     time.Now,
	}
}

// Search validates the query, resolves both codes, fetches offers and
// shapes the result. Unknown codes fail before the flights upstream is
// ever called.
func (s *Service) Search(ctx context.Context, q Query) (*Result, error) {
	q.Origin = cache.NormalizeCode(q.Origin)
	q.Destination = cache.NormalizeCode(q.Destination)

	depDate, retDate, err := s.validate(q)
	if err != nil {
		s.countSearch("invalid_query")
		return nil, err
	}

	origin, found, err := s.store.Get(ctx, q.Origin)
	if err != nil {
		s.countSearch("store_error")
		return nil, fmt.Errorf("resolving origin: %w", err)
	}
	if !found {
		s.countSearch("unknown_airport")
		return nil, &UnknownAirportError{Code: q.Origin}
	}

	dest, found, err := s.store.Get(ctx, q.Destination)
	if err != nil {
		s.countSearch("store_error")
		return nil, fmt.Errorf("resolving destination: %w", err)
	}
	if !found {
		s.countSearch("unknown_airport")
		return nil, &UnknownAirportError{Code: q.Destination}
	}

	distance := haversine(origin.Latitude, origin.Longitude, dest.Latitude, dest.Longitude)

	outbound, err := s.flights.FetchOffers(ctx, q.Origin, q.Destination, depDate.Format(dateLayout))
	if err != nil {
		s.countSearch("upstream_error")
		return nil, fmt.Errorf("fetching outbound offers: %w", err)
	}
	processOffers(outbound.Options, distance)

	result := &Result{
		Outbound: legSummary(q.DepartureDate, origin, dest, outbound.Summary.Currency),
		Offers:   outbound.Options,
	}
	if result.Offers == nil {
		result.Offers = []upstream.FlightOffer{}
	}

	if retDate != nil {
		ret, err := s.flights.FetchOffers(ctx, q.Destination, q.Origin, retDate.Format(dateLayout))
		if err != nil {
			s.countSearch("upstream_error")
			return nil, fmt.Errorf("fetching return offers: %w", err)
		}
		processOffers(ret.Options, distance)

		retLeg := legSummary(q.ReturnDate, dest, origin, ret.Summary.Currency)
		result.Return = &retLeg
		result.ReturnOffers = ret.Options
		result.Combinations = combine(outbound.Options, ret.Options)
	}

	logging.Debug("Flight search completed",
		"origin", q.Origin, "destination", q.Destination,
		"offers", len(result.Offers), "combinations", len(result.Combinations))
	s.countSearch("success")
	return result, nil
}

func (s *Service) validate(q Query) (time.Time, *time.Time, error) {
	if !validCode(q.Origin) {
		return time.Time{}, nil, &ValidationError{Field: "origin", Reason: "must be a 3-letter IATA code"}
	}
	if !validCode(q.Destination) {
		return time.Time{}, nil, &ValidationError{Field: "destination", Reason: "must be a 3-letter IATA code"}
	}
	if q.Origin == q.Destination {
		return time.Time{}, nil, &ValidationError{Field: "destination", Reason: "origin and destination cannot be the same"}
	}

	if q.DepartureDate == "" {
		return time.Time{}, nil, &ValidationError{Field: "departure_date", Reason: "required"}
	}
	depDate, err := time.Parse(dateLayout, q.DepartureDate)
	if err != nil {
		return time.Time{}, nil, &ValidationError{Field: "departure_date", Reason: "must be YYYY-MM-DD"}
	}

	if !s.cfg.AllowPastDeparture {
		today := s.Now().UTC().Truncate(24 * time.Hour)
		if depDate.Before(today) {
			return time.Time{}, nil, &ValidationError{Field: "departure_date", Reason: "cannot be in the past"}
		}
	}

	if q.ReturnDate == "" {
		return depDate, nil, nil
	}
	retDate, err := time.Parse(dateLayout, q.ReturnDate)
	if err != nil {
		return time.Time{}, nil, &ValidationError{Field: "return_date", Reason: "must be YYYY-MM-DD"}
	}
	if retDate.Before(depDate) {
		return time.Time{}, nil, &ValidationError{Field: "return_date", Reason: "cannot precede departure_date"}
	}
	return depDate, &retDate, nil
}

func validCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// processOffers applies the pricing policy and per-offer meta in place
func processOffers(offers []upstream.FlightOffer, distanceKM float64) {
	for i := range offers {
		fare := offers[i].Price.Fare
		fee := math.Max(feeRate*fare, feeFloor)
		offers[i].Price = upstream.OfferPrice{
			Fare:  fare,
			Fee:   fee,
			Total: fare + fee,
		}

		meta := &upstream.OfferMeta{Range: int(math.Round(distanceKM))}
		if hours := offerDurationHours(offers[i]); hours > 0 {
			meta.CruiseSpeedKMH = int(math.Round(distanceKM / hours))
		}
		if distanceKM > 0 {
			meta.CostPerKM = math.Round(fare/distanceKM*100) / 100
		}
		offers[i].Meta = meta
	}
}

func offerDurationHours(offer upstream.FlightOffer) float64 {
	dep, err1 := parseOfferTime(offer.DepartureTime)
	arr, err2 := parseOfferTime(offer.ArrivalTime)
	if err1 != nil || err2 != nil {
		return 0
	}
	return arr.Sub(dep).Hours()
}

func parseOfferTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", value)
}

// combine builds every outbound/return pairing, cheapest combined total
// first
func combine(outbound, ret []upstream.FlightOffer) []Combination {
	combinations := make([]Combination, 0, len(outbound)*len(ret))
	for _, out := range outbound {
		for _, back := range ret {
			combinations = append(combinations, Combination{
				Outbound: out,
				Return:   back,
				CombinedPrice: upstream.OfferPrice{
					Fare:  out.Price.Fare + back.Price.Fare,
					Fee:   out.Price.Fee + back.Price.Fee,
					Total: out.Price.Total + back.Price.Total,
				},
			})
		}
	}
	sort.SliceStable(combinations, func(i, j int) bool {
		return combinations[i].CombinedPrice.Total < combinations[j].CombinedPrice.Total
	})
	return combinations
}

func legSummary(date string, from, to *models.AirportRecord, currency string) LegSummary {
	if currency == "" {
		currency = "BRL"
	}
	return LegSummary{
		DepartureDate: date,
		From:          airportSummary(from),
		To:            airportSummary(to),
		Currency:      currency,
	}
}

func airportSummary(rec *models.AirportRecord) AirportSummary {
	return AirportSummary{
		IATA:  rec.IATA,
		Name:  rec.Name,
		City:  rec.City,
		State: rec.State,
		Lat:   rec.Latitude,
		Lon:   rec.Longitude,
	}
}

func (s *Service) countSearch(outcome string) {
	if s.metrics != nil {
		s.metrics.FlightSearchesTotal.WithLabelValues(outcome).Inc()
	}
}
