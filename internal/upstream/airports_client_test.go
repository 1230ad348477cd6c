package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestAirportsClient(url string) *AirportsClient {
	return &AirportsClient{
		BaseURL:  url,
		Login:    "login",
		Password: "password",
		Client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func TestAirportsClient_FetchAirports_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "login" || pass != "password" {
			t.Errorf("Expected basic auth credentials, got %s/%s", user, pass)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"POA": {"iata": "POA", "city": "Porto Alegre", "lat": -29.994428, "lon": -51.166592, "state": "RS"},
			"MAO": {"iata": "MAO", "city": "Manaus", "lat": -3.038611, "lon": -60.049721, "state": "AM"}
		}`))
	}))
	defer server.Close()

	client := newTestAirportsClient(server.URL)
	airports, parseErrs, err := client.FetchAirports(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(parseErrs) != 0 {
		t.Errorf("Expected no parse errors, got %v", parseErrs)
	}
	if len(airports) != 2 {
		t.Fatalf("Expected 2 airports, got %d", len(airports))
	}
	if airports["POA"].City != "Porto Alegre" {
		t.Errorf("Unexpected POA record: %+v", airports["POA"])
	}
}

func TestAirportsClient_FetchAirports_MalformedRecordsReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"POA": {"iata": "POA", "city": "Porto Alegre", "lat": -29.994428, "lon": -51.166592},
			"BAD": {"iata": "TOOLONG", "city": "Nowhere", "lat": 1.0, "lon": 1.0},
			"NOC": {"iata": "NOC", "city": "", "lat": 1.0, "lon": 1.0},
			"OOB": {"iata": "OOB", "city": "Offworld", "lat": 120.0, "lon": 10.0},
			"MIS": {"iata": "MIS", "city": "Missing"}
		}`))
	}))
	defer server.Close()

	client := newTestAirportsClient(server.URL)
	airports, parseErrs, err := client.FetchAirports(context.Background())
	if err != nil {
		t.Fatalf("Per-record problems must not fail the fetch: %v", err)
	}
	if len(airports) != 1 {
		t.Errorf("Expected only POA valid, got %d records", len(airports))
	}
	if len(parseErrs) != 4 {
		t.Errorf("Expected 4 parse errors, got %d: %v", len(parseErrs), parseErrs)
	}
}

func TestAirportsClient_FetchAirports_AuthFailureNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestAirportsClient(server.URL)
	_, _, err := client.FetchAirports(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("Expected ErrAuth, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Auth failures must not be retried, got %d attempts", attempts)
	}
}

func TestAirportsClient_FetchAirports_RetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"POA": {"iata": "POA", "city": "Porto Alegre", "lat": -29.99, "lon": -51.16}}`))
	}))
	defer server.Close()

	client := newTestAirportsClient(server.URL)
	airports, _, err := client.FetchAirports(context.Background())
	if err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
	if len(airports) != 1 {
		t.Errorf("Expected 1 airport, got %d", len(airports))
	}
}

func TestAirportsClient_FetchAirports_ExhaustedRetriesUnavailable(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestAirportsClient(server.URL)
	_, _, err := client.FetchAirports(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
	if attempts != fetchAttempts {
		t.Errorf("Expected %d attempts, got %d", fetchAttempts, attempts)
	}
}

func TestAirportsClient_FetchAirports_MalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["not", "a", "mapping"]`))
	}))
	defer server.Close()

	client := newTestAirportsClient(server.URL)
	_, _, err := client.FetchAirports(context.Background())
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("Expected ErrMalformedPayload, got %v", err)
	}
}
