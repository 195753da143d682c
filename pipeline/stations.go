package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"hdbscout/geo"
	"hdbscout/models"
	"hdbscout/parse"
)

// DefaultStationListURL is the Wikipedia page listing every MRT station.
// It renders server-side, so a plain GET is enough and no browser is needed.
const DefaultStationListURL = "https://en.wikipedia.org/wiki/List_of_Singapore_MRT_stations"

// StationsConfig controls the station-coordinate stage.
type StationsConfig struct {
	SourceURL  string // default: DefaultStationListURL
	OutputPath string

	// Throttle is the minimum spacing between geocoding lookups.
	Throttle time.Duration
}

// StationsStage builds the station coordinate table: station names scraped
// from Wikipedia, coordinates geocoded one by one. Stations already present
// in the output table are skipped on re-run.
type StationsStage struct {
	http    *resty.Client
	maps    geo.MapsAPI
	cfg     StationsConfig
	limiter *rate.Limiter
}

func NewStationsStage(maps geo.MapsAPI, cfg StationsConfig) *StationsStage {
	if cfg.SourceURL == "" {
		cfg.SourceURL = DefaultStationListURL
	}
	s := &StationsStage{
		http: resty.New().SetTimeout(30 * time.Second),
		maps: maps,
		cfg:  cfg,
	}
	if cfg.Throttle > 0 {
		s.limiter = rate.NewLimiter(rate.Every(cfg.Throttle), 1)
	}
	return s
}

// Run fetches the station list and reports how many new rows were written.
func (s *StationsStage) Run(ctx context.Context) (int, error) {
	resp, err := s.http.R().SetContext(ctx).Get(s.cfg.SourceURL)
	if err != nil {
		return 0, fmt.Errorf("fetch station list: %w", err)
	}
	if resp.IsError() {
		return 0, models.NewScrapeError(models.ErrCodeNavigation,
			fmt.Sprintf("station list fetch returned %s", resp.Status()), nil)
	}

	names, err := parse.StationNames(resp.String())
	if err != nil {
		return 0, err
	}
	slog.Info("station names extracted", "count", len(names))

	exists, seen, err := ResumeSet(s.cfg.OutputPath, colStation)
	if err != nil {
		return 0, err
	}
	out, err := NewAppendWriter(s.cfg.OutputPath, stationHeader(), !exists)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	written := 0
	for i, name := range names {
		label := fmt.Sprintf("%s (station #%d of %d)", name, i+1, len(names))
		if seen.Contains(name) {
			slog.Info("skipping already-processed station", "target", label)
			continue
		}
		if err := ctx.Err(); err != nil {
			return written, err
		}

		point, err := s.maps.Geocode(ctx, fmt.Sprintf("%s, Singapore", name))
		if err != nil {
			slog.Warn("unable to geocode station, skipping", "target", label, "error", err)
			continue
		}

		row := []string{name, formatFloat(point.Lat), formatFloat(point.Lng)}
		if err := out.WriteRow(row); err != nil {
			return written, err
		}
		written++
		seen.Add(name)

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return written, err
			}
		}
	}

	slog.Info("finished precomputing station coordinates", "written", written, "output", s.cfg.OutputPath)
	return written, nil
}
