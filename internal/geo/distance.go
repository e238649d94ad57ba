package geo

import (
	"math"

	"github.com/FACorreiaa/loci-pubmap/internal/types"
)

// EarthRadiusKm is the mean Earth radius used by DistanceKm.
const EarthRadiusKm = 6371

// DistanceKm returns the great circle distance between two coordinates using the
// haversine formula.
func DistanceKm(a, b types.Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dlat := (b.Latitude - a.Latitude) * math.Pi / 180
	dlon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// Centroid is the arithmetic mean of the valid coordinates. ok is false when none are
// valid.
func Centroid(points []types.Coordinate) (types.Coordinate, bool) {
	var sumLat, sumLon float64
	n := 0
	for _, p := range points {
		if !p.Valid() {
			continue
		}
		sumLat += p.Latitude
		sumLon += p.Longitude
		n++
	}
	if n == 0 {
		return types.Coordinate{}, false
	}
	return types.Coordinate{Latitude: sumLat / float64(n), Longitude: sumLon / float64(n)}, true
}
