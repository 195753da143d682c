package geo

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"

	"hdbscout/config"
	"hdbscout/models"
)

// ErrNotFound is returned when the Maps API has no result for a query
// (ZERO_RESULTS / NOT_FOUND statuses), as opposed to the request failing.
var ErrNotFound = errors.New("geo: no result for query")

// Route is a walking route between two descriptors.
type Route struct {
	DistanceMeters  int
	DurationSeconds int
}

// MapsAPI is the collaborator contract the pipelines depend on; Client is
// the production implementation.
type MapsAPI interface {
	Geocode(ctx context.Context, address string) (LatLng, error)
	WalkingRoute(ctx context.Context, origin, destination string) (Route, error)
}

// Client calls the Google Maps Geocoding and Distance Matrix web APIs.
type Client struct {
	http *resty.Client
}

// NewClient builds a Client from config. The API key is sent with every
// request as a query parameter, per the Maps web service convention.
func NewClient(cfg config.MapsConfig) *Client {
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetQueryParam("key", cfg.APIKey)
	return &Client{http: c}
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves a free-form address to coordinates.
func (c *Client) Geocode(ctx context.Context, address string) (LatLng, error) {
	var out geocodeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("address", address).
		SetResult(&out).
		Get("/geocode/json")
	if err != nil {
		return LatLng{}, models.NewScrapeError(models.ErrCodeMapsFailure, "geocode request failed", err)
	}
	if resp.IsError() {
		return LatLng{}, models.NewScrapeError(models.ErrCodeMapsFailure,
			fmt.Sprintf("geocode returned HTTP %d", resp.StatusCode()), nil)
	}

	switch out.Status {
	case "OK":
	case "ZERO_RESULTS":
		return LatLng{}, ErrNotFound
	default:
		return LatLng{}, models.NewScrapeError(models.ErrCodeMapsFailure,
			fmt.Sprintf("geocode status %s", out.Status), nil)
	}
	if len(out.Results) == 0 {
		return LatLng{}, ErrNotFound
	}

	loc := out.Results[0].Geometry.Location
	return LatLng{Lat: loc.Lat, Lng: loc.Lng}, nil
}

type distanceMatrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int `json:"value"`
			} `json:"distance"`
			Duration struct {
				Value int `json:"value"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

// WalkingRoute returns the walking distance and duration from origin to
// destination (both free-form descriptors).
func (c *Client) WalkingRoute(ctx context.Context, origin, destination string) (Route, error) {
	var out distanceMatrixResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"origins":      origin,
			"destinations": destination,
			"mode":         "walking",
		}).
		SetResult(&out).
		Get("/distancematrix/json")
	if err != nil {
		return Route{}, models.NewScrapeError(models.ErrCodeMapsFailure, "distance matrix request failed", err)
	}
	if resp.IsError() {
		return Route{}, models.NewScrapeError(models.ErrCodeMapsFailure,
			fmt.Sprintf("distance matrix returned HTTP %d", resp.StatusCode()), nil)
	}
	if out.Status != "OK" {
		return Route{}, models.NewScrapeError(models.ErrCodeMapsFailure,
			fmt.Sprintf("distance matrix status %s", out.Status), nil)
	}
	if len(out.Rows) == 0 || len(out.Rows[0].Elements) == 0 {
		return Route{}, ErrNotFound
	}

	el := out.Rows[0].Elements[0]
	switch el.Status {
	case "OK":
	case "NOT_FOUND", "ZERO_RESULTS":
		return Route{}, ErrNotFound
	default:
		return Route{}, models.NewScrapeError(models.ErrCodeMapsFailure,
			fmt.Sprintf("distance matrix element status %s", el.Status), nil)
	}

	return Route{
		DistanceMeters:  el.Distance.Value,
		DurationSeconds: el.Duration.Value,
	}, nil
}
