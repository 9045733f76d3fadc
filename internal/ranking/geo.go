package ranking

import (
	"math"

	"github.com/kosarica/store-service/internal/stores"
)

// EarthRadiusKm is the mean Earth radius used for all distance figures.
const EarthRadiusKm = 6371.0

// HaversineKm calculates the great-circle distance between two points in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// DistanceKm returns the distance between two locations, or nil when either is missing.
func DistanceKm(from, to *stores.Location) *float64 {
	if from == nil || to == nil {
		return nil
	}
	d := HaversineKm(from.Latitude, from.Longitude, to.Latitude, to.Longitude)
	return &d
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
