// Package geo provides great-circle math and a Google Maps client used to
// attach nearest-transit-station information to scraped listings.
package geo

import (
	"math"

	"hdbscout/models"
)

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64
	Lng float64
}

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between a and b in
// kilometres. An approximation of real-world straight-line distance.
func HaversineKm(a, b LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lon1 := a.Lng * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	lon2 := b.Lng * math.Pi / 180

	dlat := lat2 - lat1
	dlon := lon2 - lon1

	h := math.Pow(math.Sin(dlat/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dlon/2), 2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Nearest returns the station minimizing great-circle distance to point,
// along with that distance in kilometres. Ties keep the earliest station in
// the slice. ok is false when stations is empty.
func Nearest(point LatLng, stations []models.Station) (nearest models.Station, distanceKm float64, ok bool) {
	for i, st := range stations {
		d := HaversineKm(point, LatLng{Lat: st.Lat, Lng: st.Lon})
		if i == 0 || d < distanceKm {
			nearest = st
			distanceKm = d
		}
	}
	return nearest, distanceKm, len(stations) > 0
}
