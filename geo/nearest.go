package geo

import (
	"context"
	"fmt"
	"log/slog"

	"hdbscout/models"
)

// NearestResolver computes nearest-station info for postal codes, caching
// results for the duration of one pipeline run. Input sorted by postal code
// makes the cache very effective; the resolver is owned by the pipeline, not
// shared across runs.
type NearestResolver struct {
	maps     MapsAPI
	stations []models.Station
	cache    map[string]*models.NearestStationInfo
}

// NewNearestResolver creates a resolver over the precomputed station table.
func NewNearestResolver(maps MapsAPI, stations []models.Station) *NearestResolver {
	return &NearestResolver{
		maps:     maps,
		stations: stations,
		cache:    make(map[string]*models.NearestStationInfo),
	}
}

// ForPostalCode geocodes the postal code, picks the station minimizing
// great-circle distance, and asks the Maps API for the walking route to it.
// Returns ErrNotFound when the postal code cannot be geocoded.
func (r *NearestResolver) ForPostalCode(ctx context.Context, postalCode string) (*models.NearestStationInfo, error) {
	if info, ok := r.cache[postalCode]; ok {
		slog.Debug("nearest-station cache hit", "postalCode", postalCode)
		return info, nil
	}
	slog.Debug("nearest-station cache miss", "postalCode", postalCode)

	address := fmt.Sprintf("%s, Singapore", postalCode)
	point, err := r.maps.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}

	station, straightKm, ok := Nearest(point, r.stations)
	if !ok {
		return nil, models.NewScrapeError(models.ErrCodeBadTable, "station table is empty", nil)
	}
	slog.Debug("nearest station by straight-line distance",
		"postalCode", postalCode, "station", station.Name, "km", straightKm)

	route, err := r.maps.WalkingRoute(ctx, address, station.Name)
	if err != nil {
		return nil, err
	}
	slog.Debug("walking route resolved",
		"postalCode", postalCode, "station", station.Name,
		"mins", float64(route.DurationSeconds)/60)

	info := &models.NearestStationInfo{
		Station:          station.Name,
		StraightLineKm:   straightKm,
		WalkingKm:        float64(route.DistanceMeters) / 1000,
		WalkingDurationM: float64(route.DurationSeconds) / 60,
	}
	r.cache[postalCode] = info
	return info, nil
}
