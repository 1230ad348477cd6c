package models

import (
	gormmodels "github.com/amopromo/flightdeck/internal/models/gorm"
)

// AirportRecord is the cacheable projection of an airport row. Field names
// on the wire follow the upstream airports API payload.
type AirportRecord struct {
	IATA      string  `json:"iata"`
	Name      string  `json:"name,omitempty"`
	City      string  `json:"city"`
	State     string  `json:"state,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// RecordFromEntity projects a durable airport row into its cache record
func RecordFromEntity(a *gormmodels.Airport) AirportRecord {
	return AirportRecord{
		IATA:      a.IATA,
		Name:      a.Name,
		City:      a.City,
		State:     a.State,
		Country:   a.Country,
		Latitude:  a.Latitude,
		Longitude: a.Longitude,
	}
}

// Entity converts a cache record back into a durable row shape
func (r AirportRecord) Entity() gormmodels.Airport {
	return gormmodels.Airport{
		IATA:      r.IATA,
		Name:      r.Name,
		City:      r.City,
		State:     r.State,
		Country:   r.Country,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		IsActive:  true,
	}
}
