package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hdbscout/geo"
	"hdbscout/models"
)

// fakeMaps resolves addresses from a canned table. Addresses listed in
// notFound yield ErrNotFound, addresses in failing yield a transient failure.
type fakeMaps struct {
	points   map[string]geo.LatLng
	notFound map[string]bool
	failing  map[string]bool
	geocodes int
}

func (f *fakeMaps) Geocode(_ context.Context, address string) (geo.LatLng, error) {
	f.geocodes++
	if f.notFound[address] {
		return geo.LatLng{}, geo.ErrNotFound
	}
	if f.failing[address] {
		return geo.LatLng{}, models.NewScrapeError(models.ErrCodeMapsFailure, "geocode request failed", nil)
	}
	return f.points[address], nil
}

func (f *fakeMaps) WalkingRoute(context.Context, string, string) (geo.Route, error) {
	return geo.Route{DistanceMeters: 800, DurationSeconds: 600}, nil
}

func writeBaseInfo(t *testing.T, path string, postalByLink map[string]string, links []string) {
	t.Helper()
	w, err := NewAppendWriter(path, baseInfoHeader(), true)
	require.NoError(t, err)
	for _, link := range links {
		row := map[string]string{colLink: link, colPostalCode: postalByLink[link], colTown: "Ang Mo Kio"}
		rec := make([]string, 0, len(baseInfoHeader()))
		for _, col := range baseInfoHeader() {
			rec = append(rec, row[col])
		}
		require.NoError(t, w.WriteRow(rec))
	}
	require.NoError(t, w.Close())
}

func writeStationTable(t *testing.T, path string) {
	t.Helper()
	writeFile(t, path, strings.Join([]string{
		"Station,Latitude,Longitude",
		"Ang Mo Kio MRT station,1.3698,103.8496",
		"Yishun MRT station,1.4294,103.8350",
		"",
	}, "\n"))
}

func TestEnrichStage(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.csv")
	stations := filepath.Join(dir, "stations.csv")
	out := filepath.Join(dir, "full.csv")

	writeBaseInfo(t, base, map[string]string{
		"https://a.example/1": "560123",
		"https://a.example/2": "000000",
	}, []string{"https://a.example/1", "https://a.example/2"})
	writeStationTable(t, stations)

	maps := &fakeMaps{
		points:   map[string]geo.LatLng{"560123, Singapore": {Lat: 1.3700, Lng: 103.8490}},
		notFound: map[string]bool{"000000, Singapore": true},
	}
	stage := NewEnrichStage(maps, EnrichConfig{
		BaseInfoPath: base, StationsPath: stations, OutputPath: out,
	})

	written, err := stage.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	rows, err := ReadRows(out)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// The geocodable row gets the nearest station and the walking route.
	assert.Equal(t, "Ang Mo Kio MRT station", rows[0][colNearestStation])
	assert.Equal(t, "10", rows[0][colWalkingDuration])
	assert.Equal(t, "0.8", rows[0][colWalkingDist])
	assert.NotEmpty(t, rows[0][colStraightLineDist])
	// Base columns carry over unchanged.
	assert.Equal(t, "Ang Mo Kio", rows[0][colTown])

	// The ungeocodable row is still written, with empty station columns.
	assert.Equal(t, "https://a.example/2", rows[1][colLink])
	assert.Empty(t, rows[1][colNearestStation])
	assert.Empty(t, rows[1][colWalkingDuration])
}

func TestEnrichStage_TransientFailureSkipsRow(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.csv")
	stations := filepath.Join(dir, "stations.csv")
	out := filepath.Join(dir, "full.csv")

	writeBaseInfo(t, base, map[string]string{
		"https://a.example/1": "560123",
		"https://a.example/2": "761234",
	}, []string{"https://a.example/1", "https://a.example/2"})
	writeStationTable(t, stations)

	maps := &fakeMaps{
		points:  map[string]geo.LatLng{"560123, Singapore": {Lat: 1.3700, Lng: 103.8490}},
		failing: map[string]bool{"761234, Singapore": true},
	}
	stage := NewEnrichStage(maps, EnrichConfig{
		BaseInfoPath: base, StationsPath: stations, OutputPath: out,
	})

	written, err := stage.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	// A re-run picks up only the skipped row.
	maps.failing = nil
	maps.points["761234, Singapore"] = geo.LatLng{Lat: 1.4300, Lng: 103.8360}
	written, err = stage.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	rows, err := ReadRows(out)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Yishun MRT station", rows[1][colNearestStation])
}

func TestEnrichStage_MissingLinkIsFatal(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.csv")
	stations := filepath.Join(dir, "stations.csv")
	out := filepath.Join(dir, "full.csv")

	writeBaseInfo(t, base, map[string]string{"": "560123"}, []string{""})
	writeStationTable(t, stations)

	stage := NewEnrichStage(&fakeMaps{}, EnrichConfig{
		BaseInfoPath: base, StationsPath: stations, OutputPath: out,
	})
	_, err := stage.Run(context.Background())
	var se *models.ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, models.ErrCodeBadTable, se.Code)
}
