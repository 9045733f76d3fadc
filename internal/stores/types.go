// Package stores holds the store records shared by the ranking, status and
// persistence layers.
package stores

import (
	"github.com/kosarica/store-service/internal/hours"
)

// Location is a WGS84 coordinate in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks that the coordinate lies within the valid degree ranges.
func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return ErrInvalidLocation{Field: "latitude", Reason: "must be between -90 and 90"}
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return ErrInvalidLocation{Field: "longitude", Reason: "must be between -180 and 180"}
	}
	return nil
}

// Store is a physical shop as read from the store tables.
type Store struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Brand        string             `json:"brand,omitempty"`
	Category     string             `json:"category,omitempty"`
	Address      string             `json:"address,omitempty"`
	City         string             `json:"city,omitempty"`
	PostalCode   string             `json:"postalCode,omitempty"`
	Location     *Location          `json:"location,omitempty"` // nil when the store was never geocoded
	Phone        *string            `json:"phone,omitempty"`
	Rating       *float64           `json:"rating,omitempty"`
	OpeningHours hours.OpeningHours `json:"openingHours"`
}

// ErrInvalidLocation is returned when a coordinate is out of range.
type ErrInvalidLocation struct {
	Field  string
	Reason string
}

func (e ErrInvalidLocation) Error() string {
	return "location." + e.Field + ": " + e.Reason
}
