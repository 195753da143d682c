package geo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hdbscout/models"
)

type fakeMaps struct {
	coords       map[string]LatLng
	route        Route
	geocodeCalls int
	routeCalls   int
}

func (f *fakeMaps) Geocode(_ context.Context, address string) (LatLng, error) {
	f.geocodeCalls++
	p, ok := f.coords[address]
	if !ok {
		return LatLng{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeMaps) WalkingRoute(context.Context, string, string) (Route, error) {
	f.routeCalls++
	return f.route, nil
}

func TestNearestResolver_ResolvesAndCaches(t *testing.T) {
	maps := &fakeMaps{
		coords: map[string]LatLng{
			"560123, Singapore": {Lat: 1.37, Lng: 103.85},
		},
		route: Route{DistanceMeters: 900, DurationSeconds: 660},
	}
	stations := []models.Station{
		{Name: "Ang Mo Kio MRT station", Lat: 1.3700, Lon: 103.8496},
		{Name: "Bishan MRT station", Lat: 1.3513, Lon: 103.8492},
	}
	r := NewNearestResolver(maps, stations)

	info, err := r.ForPostalCode(context.Background(), "560123")
	require.NoError(t, err)
	assert.Equal(t, "Ang Mo Kio MRT station", info.Station)
	assert.InDelta(t, 0.9, info.WalkingKm, 1e-9)
	assert.InDelta(t, 11.0, info.WalkingDurationM, 1e-9)

	// Second lookup for the same postal code must come from the cache.
	again, err := r.ForPostalCode(context.Background(), "560123")
	require.NoError(t, err)
	assert.Same(t, info, again)
	assert.Equal(t, 1, maps.geocodeCalls)
	assert.Equal(t, 1, maps.routeCalls)
}

func TestNearestResolver_GeocodeNotFound(t *testing.T) {
	maps := &fakeMaps{coords: map[string]LatLng{}}
	r := NewNearestResolver(maps, []models.Station{{Name: "X", Lat: 1, Lon: 1}})

	_, err := r.ForPostalCode(context.Background(), "000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNearestResolver_EmptyStationTable(t *testing.T) {
	maps := &fakeMaps{coords: map[string]LatLng{"560123, Singapore": {Lat: 1, Lng: 1}}}
	r := NewNearestResolver(maps, nil)

	_, err := r.ForPostalCode(context.Background(), "560123")
	var se *models.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ErrCodeBadTable, se.Code)
}
