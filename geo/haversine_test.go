package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hdbscout/models"
)

func TestHaversineKm_SamePointIsZero(t *testing.T) {
	p := LatLng{Lat: 1.3521, Lng: 103.8198}
	assert.Zero(t, HaversineKm(p, p))
}

func TestHaversineKm_Symmetric(t *testing.T) {
	a := LatLng{Lat: 1.3521, Lng: 103.8198}
	b := LatLng{Lat: 1.2834, Lng: 103.8607}
	assert.InDelta(t, HaversineKm(a, b), HaversineKm(b, a), 1e-12)
}

func TestHaversineKm_OneDegreeAtEquator(t *testing.T) {
	a := LatLng{Lat: 0, Lng: 0}
	b := LatLng{Lat: 0, Lng: 1}
	// One degree of longitude at the equator is about 111.2 km.
	assert.InDelta(t, 111.2, HaversineKm(a, b), 0.1)
}

func TestNearest_PicksMinimum(t *testing.T) {
	stations := []models.Station{
		{Name: "Far", Lat: 10, Lon: 10},
		{Name: "Close", Lat: 1.01, Lon: 1.01},
		{Name: "Medium", Lat: 2, Lon: 2},
	}
	st, km, ok := Nearest(LatLng{Lat: 1, Lng: 1}, stations)
	require.True(t, ok)
	assert.Equal(t, "Close", st.Name)
	assert.Less(t, km, 2.0)
}

func TestNearest_StableTieBreak(t *testing.T) {
	stations := []models.Station{
		{Name: "First", Lat: 0, Lon: 1},
		{Name: "Second", Lat: 0, Lon: -1}, // exactly as far as First
	}
	st, _, ok := Nearest(LatLng{Lat: 0, Lng: 0}, stations)
	require.True(t, ok)
	assert.Equal(t, "First", st.Name)
}

func TestNearest_EmptyStations(t *testing.T) {
	_, _, ok := Nearest(LatLng{}, nil)
	assert.False(t, ok)
}
