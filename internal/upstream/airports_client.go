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

	"github.com/amopromo/flightdeck/internal/logging"
	"github.com/amopromo/flightdeck/internal/metrics"
	"github.com/amopromo/flightdeck/internal/models"
)

const fetchAttempts = 3

// AirportsClient fetches the airport reference dataset from the upstream
// airports API
type AirportsClient struct {
	BaseURL  string
	Login    string
	Password string
	Client   *http.Client
	Metrics  *metrics.MetricsRegistry
}

// NewAirportsClient creates a new instance, reading config from environment variables
func NewAirportsClient(reg *metrics.MetricsRegistry) *AirportsClient {
	timeout := 30 * time.Second
	if v := os.Getenv("API_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}
	return &AirportsClient{
		BaseURL:  os.Getenv("AIRPORTS_API_URL"),
		Login:    os.Getenv("API_LOGIN"),
		Password: os.Getenv("API_PASSWORD"),
		Client:   &http.Client{Timeout: timeout},
		Metrics:  reg,
	}
}

// rawAirport is the upstream wire shape, validated before anything deeper
// in the pipeline sees it
type rawAirport struct {
	IATA    string   `json:"iata"`
	Name    string   `json:"name"`
	City    string   `json:"city"`
	State   string   `json:"state"`
	Country string   `json:"country"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

// FetchAirports retrieves the full airport dataset. Records failing schema
// validation are returned as ParseErrors alongside the valid set; only a
// total fetch failure returns a non-nil error.
func (c *AirportsClient) FetchAirports(ctx context.Context) (map[string]models.AirportRecord, []ParseError, error) {
	start := time.Now()
	raw, err := c.fetch(ctx)
	c.observe("airports", start, err)
	if err != nil {
		return nil, nil, err
	}

	airports := make(map[string]models.AirportRecord, len(raw))
	var parseErrs []ParseError
	for key, r := range raw {
		rec, perr := validateAirport(key, r)
		if perr != nil {
			parseErrs = append(parseErrs, *perr)
			continue
		}
		airports[rec.IATA] = rec
	}

	logging.Info("Fetched airports from upstream",
		"valid", len(airports), "invalid", len(parseErrs))
	return airports, parseErrs, nil
}

func (c *AirportsClient) fetch(ctx context.Context) (map[string]rawAirport, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL, nil)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.Login, c.Password)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "Flightdeck-Airport-Sync/1.0")

		resp, err := c.Client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrUnavailable, err)
			logging.Warn("Airports fetch attempt failed", "attempt", attempt, "error", err.Error())
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			resp.Body.Close()
			return nil, fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			resp.Body.Close()
			return nil, fmt.Errorf("%w: unexpected status %d", ErrMalformedPayload, resp.StatusCode)
		}

		var raw map[string]rawAirport
		err = json.NewDecoder(resp.Body).Decode(&raw)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return raw, nil
	}
	return nil, lastErr
}

func validateAirport(key string, r rawAirport) (models.AirportRecord, *ParseError) {
	code := strings.ToUpper(strings.TrimSpace(r.IATA))
	if code == "" {
		code = strings.ToUpper(strings.TrimSpace(key))
	}
	if !validIATA(code) {
		return models.AirportRecord{}, &ParseError{Code: key, Reason: "missing or malformed iata code"}
	}
	if strings.TrimSpace(r.City) == "" {
		return models.AirportRecord{}, &ParseError{Code: code, Reason: "missing city"}
	}
	if r.Lat == nil || r.Lon == nil {
		return models.AirportRecord{}, &ParseError{Code: code, Reason: "missing coordinates"}
	}
	if *r.Lat < -90 || *r.Lat > 90 || *r.Lon < -180 || *r.Lon > 180 {
		return models.AirportRecord{}, &ParseError{Code: code, Reason: "coordinates out of range"}
	}

	return models.AirportRecord{
		IATA:      code,
		Name:      strings.TrimSpace(r.Name),
		City:      strings.TrimSpace(r.City),
		State:     strings.TrimSpace(r.State),
		Country:   strings.TrimSpace(r.Country),
		Latitude:  *r.Lat,
		Longitude: *r.Lon,
	}, nil
}

func validIATA(code string) bool {
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

func (c *AirportsClient) observe(service string, start time.Time, err error) {
	if c.Metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.Metrics.UpstreamRequestsTotal.WithLabelValues(service, outcome).Inc()
	c.Metrics.UpstreamRequestDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
}
