package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"hdbscout/geo"
	"hdbscout/models"
)

// EnrichConfig controls the nearest-station stage.
type EnrichConfig struct {
	// BaseInfoPath is the table produced by the scrape stage.
	BaseInfoPath string

	// StationsPath is the precomputed station coordinate table.
	StationsPath string

	// OutputPath is the enriched table to append to.
	OutputPath string

	// Throttle is the minimum spacing between Maps API lookups.
	Throttle time.Duration
}

// EnrichStage appends nearest-station columns to every base-info row. Rows
// whose postal code cannot be geocoded are still written, with the station
// columns left empty; rows that fail for transient reasons are skipped and
// picked up by the next run.
type EnrichStage struct {
	maps    geo.MapsAPI
	cfg     EnrichConfig
	limiter *rate.Limiter
}

func NewEnrichStage(maps geo.MapsAPI, cfg EnrichConfig) *EnrichStage {
	s := &EnrichStage{maps: maps, cfg: cfg}
	if cfg.Throttle > 0 {
		s.limiter = rate.NewLimiter(rate.Every(cfg.Throttle), 1)
	}
	return s
}

// Run processes the base-info table and reports how many new rows were
// written.
func (s *EnrichStage) Run(ctx context.Context) (int, error) {
	rows, err := ReadRows(s.cfg.BaseInfoPath)
	if err != nil {
		return 0, err
	}
	stations, err := ReadStations(s.cfg.StationsPath)
	if err != nil {
		return 0, err
	}
	exists, seen, err := ResumeSet(s.cfg.OutputPath, colLink)
	if err != nil {
		return 0, err
	}
	out, err := NewAppendWriter(s.cfg.OutputPath, fullInfoHeader(), !exists)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	resolver := geo.NewNearestResolver(s.maps, stations)

	written := 0
	for i, row := range rows {
		link := row[colLink]
		if link == "" {
			return written, models.NewScrapeError(models.ErrCodeBadTable,
				fmt.Sprintf("%s: row %d has no %q value", s.cfg.BaseInfoPath, i+1, colLink), nil)
		}
		label := fmt.Sprintf("%s (row #%d of %d)", link, i+1, len(rows))
		if seen.Contains(link) {
			slog.Info("skipping already-processed row", "target", label)
			continue
		}
		if err := ctx.Err(); err != nil {
			return written, err
		}

		nearest, err := s.resolve(ctx, resolver, row[colPostalCode], label)
		if err != nil {
			var se *models.ScrapeError
			if errors.As(err, &se) && se.Code == models.ErrCodeBadTable {
				return written, err
			}
			slog.Warn("nearest-station lookup failed, skipping row", "target", label, "error", err)
			continue
		}

		if err := out.WriteRow(fullInfoRow(row, nearest)); err != nil {
			return written, err
		}
		written++
		seen.Add(link)

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return written, err
			}
		}
	}

	slog.Info("finished enriching rows", "written", written, "output", s.cfg.OutputPath)
	return written, nil
}

// resolve returns nil info (and nil error) when the postal code is missing or
// cannot be geocoded; the row is then written without station columns.
func (s *EnrichStage) resolve(ctx context.Context, resolver *geo.NearestResolver, postalCode, label string) (*models.NearestStationInfo, error) {
	if postalCode == "" {
		slog.Warn("row has no postal code, writing without nearest-station info", "target", label)
		return nil, nil
	}
	nearest, err := resolver.ForPostalCode(ctx, postalCode)
	if errors.Is(err, geo.ErrNotFound) {
		slog.Warn("postal code could not be geocoded, writing without nearest-station info",
			"target", label, "postalCode", postalCode)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return nearest, nil
}

// ReadStations loads the station coordinate table written by the stations
// stage.
func ReadStations(path string) ([]models.Station, error) {
	rows, err := ReadRows(path)
	if err != nil {
		return nil, err
	}

	stations := make([]models.Station, 0, len(rows))
	for i, row := range rows {
		name := row[colStation]
		lat, latErr := strconv.ParseFloat(row[colStationLatitude], 64)
		lon, lonErr := strconv.ParseFloat(row[colStationLongitude], 64)
		if name == "" || latErr != nil || lonErr != nil {
			return nil, models.NewScrapeError(models.ErrCodeBadTable,
				fmt.Sprintf("%s: row %d is not a valid station", path, i+1), nil)
		}
		stations = append(stations, models.Station{Name: name, Lat: lat, Lon: lon})
	}
	if len(stations) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeBadTable,
			fmt.Sprintf("%s: station table is empty", path), nil)
	}
	return stations, nil
}
