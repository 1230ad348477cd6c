package importer

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	gormlib "gorm.io/gorm"

	"github.com/amopromo/flightdeck/internal/cache"
	"github.com/amopromo/flightdeck/internal/db/repositories"
	"github.com/amopromo/flightdeck/internal/models"
	gormmodels "github.com/amopromo/flightdeck/internal/models/gorm"
	"github.com/amopromo/flightdeck/internal/upstream"
)

type mockFetcher struct {
	fetchFunc func(ctx context.Context) (map[string]models.AirportRecord, []upstream.ParseError, error)
}

func (m *mockFetcher) FetchAirports(ctx context.Context) (map[string]models.AirportRecord, []upstream.ParseError, error) {
	return m.fetchFunc(ctx)
}

func setupTestDB(t *testing.T) *gormlib.DB {
	db, err := gormlib.Open(sqlite.Open(":memory:"), &gormlib.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(&gormmodels.Airport{}); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	return db
}

func testDataset() map[string]models.AirportRecord {
	return map[string]models.AirportRecord{
		"POA": {IATA: "POA", City: "Porto Alegre", State: "RS", Latitude: -29.994428, Longitude: -51.166592},
		"MAO": {IATA: "MAO", City: "Manaus", State: "AM", Latitude: -3.038611, Longitude: -60.049721},
		"GRU": {IATA: "GRU", City: "Guarulhos", State: "SP", Latitude: -23.435556, Longitude: -46.473056},
	}
}

func newTestPipeline(t *testing.T, fetcher AirportsFetcher) (*Pipeline, *repositories.AirportRepository, *cache.AirportStore) {
	db := setupTestDB(t)
	repo := repositories.NewAirportRepository(db)
	store := cache.NewAirportStore(cache.NewMemoryCache(time.Minute, 0), repo, time.Minute, nil)
	return NewPipeline(fetcher, repo, store, nil), repo, store
}

func staticFetcher(dataset map[string]models.AirportRecord, parseErrs []upstream.ParseError) *mockFetcher {
	return &mockFetcher{
		fetchFunc: func(ctx context.Context) (map[string]models.AirportRecord, []upstream.ParseError, error) {
			return dataset, parseErrs, nil
		},
	}
}

func TestPipeline_Run_RejectsUnknownMode(t *testing.T) {
	fetched := false
	fetcher := &mockFetcher{
		fetchFunc: func(ctx context.Context) (map[string]models.AirportRecord, []upstream.ParseError, error) {
			fetched = true
			return testDataset(), nil, nil
		},
	}
	pipeline, _, _ := newTestPipeline(t, fetcher)

	if _, err := pipeline.Run(context.Background(), Options{Mode: "bogus"}); err == nil {
		t.Fatal("Expected an error for an unknown mode")
	}
	if fetched {
		t.Error("An invalid mode must be rejected before any upstream fetch")
	}

	// Empty mode defaults to full
	run, err := pipeline.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.Mode != ModeFull {
		t.Errorf("Expected empty mode to default to full, got %q", run.Mode)
	}
}

func TestPipeline_Run_FullImportCreates(t *testing.T) {
	dataset := testDataset()
	pipeline, repo, store := newTestPipeline(t, staticFetcher(dataset, nil))
	ctx := context.Background()

	run, err := pipeline.Run(ctx, Options{Mode: ModeFull})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Counts.Created != 3 || run.Counts.Updated != 0 || run.Counts.Skipped != 0 || run.Counts.Failed != 0 {
		t.Errorf("Unexpected counts: %+v", run.Counts)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 durable rows, got %d", count)
	}

	// Cache-durable consistency: every imported code must be servable from
	// the store and equal to the imported record
	for code, want := range dataset {
		rec, found, err := store.Get(ctx, code)
		if err != nil || !found {
			t.Fatalf("Expected %s in store after import, found=%v err=%v", code, found, err)
		}
		if rec.City != want.City || rec.Latitude != want.Latitude {
			t.Errorf("Store returned %+v for %s, want %+v", rec, code, want)
		}
	}
}

func TestPipeline_Run_SecondRunIsIdempotent(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t, staticFetcher(testDataset(), nil))
	ctx := context.Background()

	if _, err := pipeline.Run(ctx, Options{Mode: ModeFull}); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	run, err := pipeline.Run(ctx, Options{Mode: ModeFull})
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if run.Counts.Created != 0 || run.Counts.Updated != 0 {
		t.Errorf("Second run with identical data must be a no-op, got %+v", run.Counts)
	}
	if run.Counts.Skipped != 3 {
		t.Errorf("Expected 3 skipped, got %d", run.Counts.Skipped)
	}
}

func TestPipeline_Run_ChangedFieldIsUpdated(t *testing.T) {
	dataset := testDataset()
	pipeline, repo, _ := newTestPipeline(t, staticFetcher(dataset, nil))
	ctx := context.Background()

	if _, err := pipeline.Run(ctx, Options{Mode: ModeFull}); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	changed := dataset["POA"]
	changed.City = "Porto Alegre - Salgado Filho"
	dataset["POA"] = changed

	run, err := pipeline.Run(ctx, Options{Mode: ModeFull})
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if run.Counts.Updated != 1 || run.Counts.Skipped != 2 {
		t.Errorf("Expected 1 updated / 2 skipped, got %+v", run.Counts)
	}

	row, err := repo.FindByIATA(ctx, "POA")
	if err != nil || row == nil {
		t.Fatalf("FindByIATA failed: row=%v err=%v", row, err)
	}
	if row.City != "Porto Alegre - Salgado Filho" {
		t.Errorf("Durable row not updated: %s", row.City)
	}
}

func TestPipeline_Run_ForceUpdateOverwrites(t *testing.T) {
	pipeline, _, _ := newTestPipeline(t, staticFetcher(testDataset(), nil))
	ctx := context.Background()

	if _, err := pipeline.Run(ctx, Options{Mode: ModeFull}); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	run, err := pipeline.Run(ctx, Options{Mode: ModeFull, ForceUpdate: true})
	if err != nil {
		t.Fatalf("Force run failed: %v", err)
	}
	if run.Counts.Updated != 3 || run.Counts.Skipped != 0 {
		t.Errorf("Force update must overwrite all, got %+v", run.Counts)
	}
}

func TestPipeline_Run_DryRunMutatesNothing(t *testing.T) {
	pipeline, repo, store := newTestPipeline(t, staticFetcher(testDataset(), nil))
	ctx := context.Background()

	run, err := pipeline.Run(ctx, Options{Mode: ModeFull, DryRun: true, ForceUpdate: true})
	if err != nil {
		t.Fatalf("Dry run failed: %v", err)
	}
	if !run.DryRun {
		t.Error("Run must report dry_run")
	}
	if run.Counts.Created != 3 {
		t.Errorf("Dry run must still report would-be counts, got %+v", run.Counts)
	}

	count, _ := repo.Count(ctx)
	if count != 0 {
		t.Errorf("Dry run wrote %d durable rows", count)
	}
	if _, ok := store.LastSync(ctx); ok {
		t.Error("Dry run must not prime the cache store")
	}
}

func TestPipeline_Run_MalformedRecordsCountedNotFatal(t *testing.T) {
	parseErrs := []upstream.ParseError{
		{Code: "??", Reason: "missing or malformed iata code"},
		{Code: "ZZZ", Reason: "coordinates out of range"},
	}
	pipeline, repo, _ := newTestPipeline(t, staticFetcher(testDataset(), parseErrs))
	ctx := context.Background()

	run, err := pipeline.Run(ctx, Options{Mode: ModeFull})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if run.Counts.Failed != 2 {
		t.Errorf("Expected 2 failed, got %d", run.Counts.Failed)
	}
	if run.Counts.Created != 3 {
		t.Errorf("Valid records must still be imported, got %+v", run.Counts)
	}

	count, _ := repo.Count(ctx)
	if count != 3 {
		t.Errorf("Expected 3 durable rows, got %d", count)
	}
}

func TestPipeline_Run_TotalFetchFailureAborts(t *testing.T) {
	fetchErr := upstream.ErrUnavailable
	fetcher := &mockFetcher{
		fetchFunc: func(ctx context.Context) (map[string]models.AirportRecord, []upstream.ParseError, error) {
			return nil, nil, fetchErr
		},
	}
	pipeline, repo, _ := newTestPipeline(t, fetcher)

	_, err := pipeline.Run(context.Background(), Options{Mode: ModeFull})
	if !errors.Is(err, upstream.ErrUnavailable) {
		t.Fatalf("Expected run-level upstream failure, got %v", err)
	}

	count, _ := repo.Count(context.Background())
	if count != 0 {
		t.Errorf("Aborted run must not write rows, got %d", count)
	}
}

func TestPipeline_Run_FullModeDeactivatesMissing(t *testing.T) {
	dataset := testDataset()
	pipeline, repo, _ := newTestPipeline(t, staticFetcher(dataset, nil))
	ctx := context.Background()

	if _, err := pipeline.Run(ctx, Options{Mode: ModeFull}); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	delete(dataset, "GRU")
	run, err := pipeline.Run(ctx, Options{Mode: ModeFull})
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if run.Counts.Deactivated != 1 {
		t.Errorf("Expected 1 deactivated, got %d", run.Counts.Deactivated)
	}

	row, err := repo.FindByIATA(ctx, "GRU")
	if err != nil || row == nil {
		t.Fatalf("GRU must still exist as a row: row=%v err=%v", row, err)
	}
	if row.IsActive {
		t.Error("GRU should be inactive after vanishing from a full snapshot")
	}
}

func TestPipeline_Run_ConcurrentRunRejected(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	fetcher := &mockFetcher{
		fetchFunc: func(ctx context.Context) (map[string]models.AirportRecord, []upstream.ParseError, error) {
			close(started)
			<-release
			return testDataset(), nil, nil
		},
	}
	pipeline, _, _ := newTestPipeline(t, fetcher)

	done := make(chan error, 1)
	go func() {
		_, err := pipeline.Run(context.Background(), Options{Mode: ModeFull})
		done <- err
	}()

	<-started
	_, err := pipeline.Run(context.Background(), Options{Mode: ModeFull})
	if !errors.Is(err, ErrImportInProgress) {
		t.Errorf("Expected ErrImportInProgress, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("First run failed: %v", err)
	}
}
