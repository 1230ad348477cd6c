package gorm

import (
	"time"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"
)

// Airport represents an airport reference record with geographic coordinates
type Airport struct {
	ID        string    `gorm:"column:id;primaryKey;type:uuid"`
	IATA      string    `gorm:"column:iata;type:varchar(3);not null;uniqueIndex"`
	Name      string    `gorm:"column:name;type:text"`
	City      string    `gorm:"column:city;type:varchar(100);not null"`
	State     string    `gorm:"column:state;type:varchar(100)"`
	Country   string    `gorm:"column:country;type:varchar(100)"`
	Latitude  float64   `gorm:"column:latitude;type:numeric(10,7);not null"`
	Longitude float64   `gorm:"column:longitude;type:numeric(10,7);not null"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	LastSync  time.Time `gorm:"column:last_sync"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Airport) TableName() string {
	return "airports"
}

// BeforeCreate assigns a UUID primary key when none is set
func (a *Airport) BeforeCreate(_ *gormlib.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// FieldsEqual reports whether the descriptive fields of two records match.
// Identity (ID, IATA) and bookkeeping timestamps are excluded.
func (a Airport) FieldsEqual(other Airport) bool {
	return a.Name == other.Name &&
		a.City == other.City &&
		a.State == other.State &&
		a.Country == other.Country &&
		a.Latitude == other.Latitude &&
		a.Longitude == other.Longitude &&
		a.IsActive == other.IsActive
}
