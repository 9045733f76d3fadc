package database

import (
	"errors"
	"time"

	"github.com/kosarica/store-service/internal/ranking"
	"github.com/kosarica/store-service/internal/stores"
)

// ErrStoreNotFound is returned when a store ID has no row.
var ErrStoreNotFound = errors.New("store not found")

// StoreFilter narrows a store listing to a radius around a point. A nil
// Center or a non-positive RadiusKm disables the radius filter. Stores
// without coordinates are always kept; the ranker places them last.
type StoreFilter struct {
	Center   *stores.Location
	RadiusKm float64
}

func (f StoreFilter) active() bool {
	return f.Center != nil && f.RadiusKm > 0
}

// Matches reports whether a store at loc passes the filter.
func (f StoreFilter) Matches(loc *stores.Location) bool {
	if !f.active() || loc == nil {
		return true
	}
	d := ranking.HaversineKm(f.Center.Latitude, f.Center.Longitude, loc.Latitude, loc.Longitude)
	return d <= f.RadiusKm
}

// ProductStores is everything the ranker needs for one product.
type ProductStores struct {
	Stores  []stores.Store
	Carried ranking.StoreSet
	Prices  ranking.PriceIndex
}

// PriceReport is one observed shelf price.
type PriceReport struct {
	StoreID    string
	ProductID  string
	PriceCents int64
	ReportedAt time.Time
}
