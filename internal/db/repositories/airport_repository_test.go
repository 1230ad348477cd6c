package repositories

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	gormlib "gorm.io/gorm"

	"github.com/amopromo/flightdeck/internal/models/gorm"
)

func setupTestDB(t *testing.T) *gormlib.DB {
	db, err := gormlib.Open(sqlite.Open(":memory:"), &gormlib.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(&gorm.Airport{}); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	return db
}

func testAirport(iata, city string) gorm.Airport {
	return gorm.Airport{
		IATA: iata, City: city, Latitude: -29.99, Longitude: -51.16, IsActive: true,
	}
}

func TestAirportRepository_FindByIATA_CaseInsensitive(t *testing.T) {
	repo := NewAirportRepository(setupTestDB(t))
	ctx := context.Background()

	poa := testAirport("POA", "Porto Alegre")
	if err := repo.Create(ctx, &poa); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	found, err := repo.FindByIATA(ctx, "poa")
	if err != nil {
		t.Fatalf("FindByIATA failed: %v", err)
	}
	if found == nil || found.City != "Porto Alegre" {
		t.Errorf("Expected Porto Alegre, got %+v", found)
	}

	missing, err := repo.FindByIATA(ctx, "XXX")
	if err != nil {
		t.Fatalf("FindByIATA failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for unknown code, got %+v", missing)
	}
}

func TestAirportRepository_CreateEnforcesUniqueIATA(t *testing.T) {
	repo := NewAirportRepository(setupTestDB(t))
	ctx := context.Background()

	first := testAirport("POA", "Porto Alegre")
	if err := repo.Create(ctx, &first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	dup := testAirport("POA", "Somewhere Else")
	if err := repo.Create(ctx, &dup); err == nil {
		t.Fatal("Expected unique constraint violation on duplicate IATA")
	}
}

func TestAirportRepository_UpsertCreatesThenUpdates(t *testing.T) {
	repo := NewAirportRepository(setupTestDB(t))
	ctx := context.Background()

	poa := testAirport("POA", "Porto Alegre")
	if err := repo.Upsert(ctx, &poa); err != nil {
		t.Fatalf("Upsert (create) failed: %v", err)
	}

	changed := testAirport("POA", "Porto Alegre - Salgado Filho")
	if err := repo.Upsert(ctx, &changed); err != nil {
		t.Fatalf("Upsert (update) failed: %v", err)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("Upsert must not duplicate rows, got %d", count)
	}

	row, _ := repo.FindByIATA(ctx, "POA")
	if row.City != "Porto Alegre - Salgado Filho" {
		t.Errorf("Expected updated city, got %s", row.City)
	}
}

func TestAirportRepository_DeactivateMissing(t *testing.T) {
	repo := NewAirportRepository(setupTestDB(t))
	ctx := context.Background()

	for _, a := range []gorm.Airport{
		testAirport("POA", "Porto Alegre"),
		testAirport("MAO", "Manaus"),
		testAirport("GRU", "Guarulhos"),
	} {
		airport := a
		if err := repo.Create(ctx, &airport); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	deactivated, err := repo.DeactivateMissing(ctx, []string{"POA", "MAO"})
	if err != nil {
		t.Fatalf("DeactivateMissing failed: %v", err)
	}
	if deactivated != 1 {
		t.Errorf("Expected 1 deactivated, got %d", deactivated)
	}

	gru, _ := repo.FindByIATA(ctx, "GRU")
	if gru.IsActive {
		t.Error("GRU should be inactive")
	}
	poa, _ := repo.FindByIATA(ctx, "POA")
	if !poa.IsActive {
		t.Error("POA should stay active")
	}

	// Empty keep list is a guard, not a mass deactivation
	n, err := repo.DeactivateMissing(ctx, nil)
	if err != nil || n != 0 {
		t.Errorf("Empty keep list must be a no-op, got n=%d err=%v", n, err)
	}
}

func TestAirportRepository_FindAllOrdered(t *testing.T) {
	repo := NewAirportRepository(setupTestDB(t))
	ctx := context.Background()

	for _, iata := range []string{"MAO", "GRU", "POA"} {
		airport := testAirport(iata, "City")
		if err := repo.Create(ctx, &airport); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	all, err := repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 airports, got %d", len(all))
	}
	if all[0].IATA != "GRU" || all[1].IATA != "MAO" || all[2].IATA != "POA" {
		t.Errorf("Expected IATA ordering, got %s %s %s", all[0].IATA, all[1].IATA, all[2].IATA)
	}
}
