package repositories

import (
	"context"

	gormlib "gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amopromo/flightdeck/internal/models/gorm"
)

// AirportRepository handles airport table operations
type AirportRepository struct {
	db *gormlib.DB
}

// NewAirportRepository creates a new airport repository
func NewAirportRepository(db *gormlib.DB) *AirportRepository {
	return &AirportRepository{db: db}
}

// FindByIATA finds an airport by IATA code (case-insensitive)
func (r *AirportRepository) FindByIATA(ctx context.Context, iata string) (*gorm.Airport, error) {
	var airport gorm.Airport

	err := r.db.WithContext(ctx).
		Where("UPPER(iata) = UPPER(?)", iata).
		First(&airport).Error

	if err != nil {
		if err == gormlib.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	return &airport, nil
}

// FindAll returns every airport ordered by IATA code
func (r *AirportRepository) FindAll(ctx context.Context) ([]gorm.Airport, error) {
	var airports []gorm.Airport
	err := r.db.WithContext(ctx).
		Order("iata").
		Find(&airports).Error
	return airports, err
}

// Create inserts a new airport. The unique index on iata is the backstop
// against concurrent double-creation; conflicts surface as an error.
func (r *AirportRepository) Create(ctx context.Context, airport *gorm.Airport) error {
	return r.db.WithContext(ctx).Create(airport).Error
}

// Update overwrites the descriptive fields of an existing airport row
func (r *AirportRepository) Update(ctx context.Context, airport *gorm.Airport) error {
	return r.db.WithContext(ctx).
		Model(&gorm.Airport{}).
		Where("iata = ?", airport.IATA).
		Updates(map[string]interface{}{
			"name":      airport.Name,
			"city":      airport.City,
			"state":     airport.State,
			"country":   airport.Country,
			"latitude":  airport.Latitude,
			"longitude": airport.Longitude,
			"is_active": airport.IsActive,
			"last_sync": airport.LastSync,
		}).Error
}

// Upsert inserts the airport or, on an iata conflict, updates its
// descriptive fields in place
func (r *AirportRepository) Upsert(ctx context.Context, airport *gorm.Airport) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "iata"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "city", "state", "country", "latitude", "longitude", "is_active", "last_sync", "updated_at",
			}),
		}).
		Create(airport).Error
}

// DeactivateMissing soft-deletes every airport whose IATA code is not in keep
func (r *AirportRepository) DeactivateMissing(ctx context.Context, keep []string) (int64, error) {
	if len(keep) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&gorm.Airport{}).
		Where("is_active = ?", true).
		Where("iata NOT IN ?", keep).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

// Count returns total number of airports
func (r *AirportRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&gorm.Airport{}).Count(&count).Error
	return count, err
}
