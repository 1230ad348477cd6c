package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/amopromo/flightdeck/internal/metrics"
)

// FlightsClient fetches flight offers from the upstream flights API
type FlightsClient struct {
	BaseURL  string
	APIKey   string
	Login    string
	Password string
	Client   *http.Client
	Metrics  *metrics.MetricsRegistry
}

// NewFlightsClient creates a new instance, reading config from environment variables
func NewFlightsClient(reg *metrics.MetricsRegistry) *FlightsClient {
	timeout := 30 * time.Second
	if v := os.Getenv("API_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}
	return &FlightsClient{
		BaseURL:  strings.TrimRight(os.Getenv("FLIGHTS_API_URL"), "/"),
		APIKey:   os.Getenv("API_KEY"),
		Login:    os.Getenv("API_LOGIN"),
		Password: os.Getenv("API_PASSWORD"),
		Client:   &http.Client{Timeout: timeout},
		Metrics:  reg,
	}
}

// OfferPrice carries the fare as quoted upstream; fee and total are filled
// in by the search aggregator
type OfferPrice struct {
	Fare  float64 `json:"fare"`
	Fee   float64 `json:"fee,omitempty"`
	Total float64 `json:"total,omitempty"`
}

// OfferMeta is computed per offer by the search aggregator
type OfferMeta struct {
	Range          int     `json:"range"`
	CruiseSpeedKMH int     `json:"cruise_speed_kmh"`
	CostPerKM      float64 `json:"cost_per_km"`
}

// FlightOffer is one option returned by the flights API. Aircraft is passed
// through opaque.
type FlightOffer struct {
	DepartureTime string          `json:"departure_time"`
	ArrivalTime   string          `json:"arrival_time"`
	Price         OfferPrice      `json:"price"`
	Aircraft      json.RawMessage `json:"aircraft,omitempty"`
	Meta          *OfferMeta      `json:"meta,omitempty"`
}

// OffersSummary is the upstream summary block for one leg
type OffersSummary struct {
	Currency string `json:"currency"`
}

// OffersResponse is the flights API response for one origin/destination/date
type OffersResponse struct {
	Summary OffersSummary `json:"summary"`
	Options []FlightOffer `json:"options"`
}

// FetchOffers retrieves flight offers for one leg. An empty options list is
// a valid result, not an error.
func (c *FlightsClient) FetchOffers(ctx context.Context, from, to, date string) (*OffersResponse, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/%s/%s", c.BaseURL, c.APIKey, from, to, date)

	start := time.Now()
	resp, err := c.doGET(ctx, endpoint)
	c.observe(start, err)
	return resp, err
}

func (c *FlightsClient) doGET(ctx context.Context, endpoint string) (*OffersResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.Login, c.Password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var result OffersResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &result, nil
}

func (c *FlightsClient) observe(start time.Time, err error) {
	if c.Metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.Metrics.UpstreamRequestsTotal.WithLabelValues("flights", outcome).Inc()
	c.Metrics.UpstreamRequestDuration.WithLabelValues("flights").Observe(time.Since(start).Seconds())
}
