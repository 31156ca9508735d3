// ABOUTME: Geocoding service: resolves a free-text city name to a Location.
// ABOUTME: Takes the first (best ranked) match and memoizes by exact query string.

package openmeteo

import (
	"context"
	"net/url"
	"strings"

	"github.com/2389/weather-travel/internal/forecast"
	"github.com/2389/weather-travel/internal/geocache"
	"github.com/2389/weather-travel/internal/toolerr"
)

const serviceGeocoding = "geocoding"

// Geocoder resolves city names.
type Geocoder struct {
	client *Client
	cache  *geocache.Cache[forecast.Location]
}

// Geocoder returns a geocoding service. cache may be nil to disable memoization.
func (c *Client) Geocoder(cache *geocache.Cache[forecast.Location]) *Geocoder {
	return &Geocoder{client: c, cache: cache}
}

type geocodingResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Timezone  string  `json:"timezone"`
		Country   string  `json:"country"`
		Admin1    string  `json:"admin1"`
	} `json:"results"`
}

// Resolve looks up city and returns the first match.
func (g *Geocoder) Resolve(ctx context.Context, city string) (forecast.Location, error) {
	name := strings.TrimSpace(city)
	if name == "" {
		return forecast.Location{}, toolerr.Invalid("city", "city must be a non-empty string")
	}
	if g.cache == nil {
		return g.lookup(ctx, city, name)
	}
	return g.cache.GetOrLoad(city, func() (forecast.Location, error) {
		return g.lookup(ctx, city, name)
	})
}

func (g *Geocoder) lookup(ctx context.Context, query, name string) (forecast.Location, error) {
	params := url.Values{}
	params.Set("name", name)
	params.Set("count", "1")
	params.Set("language", "en")
	params.Set("format", "json")

	var payload geocodingResponse
	if err := g.client.getJSON(ctx, serviceGeocoding, g.client.geocodingURL, params, &payload); err != nil {
		return forecast.Location{}, err
	}
	if len(payload.Results) == 0 {
		return forecast.Location{}, toolerr.New(toolerr.NotFound,
			"no locations found for %q; try a larger nearby city", name)
	}

	r := payload.Results[0]
	loc := forecast.Location{
		Query:     query,
		Name:      r.Name,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Timezone:  r.Timezone,
		Country:   r.Country,
		Admin1:    r.Admin1,
	}
	if err := loc.Validate(); err != nil {
		return forecast.Location{}, toolerr.Wrap(toolerr.Upstream, err, "geocoding returned an invalid location")
	}

	g.client.logger.Debug("geocoded city",
		"query", query,
		"name", loc.Name,
		"latitude", loc.Latitude,
		"longitude", loc.Longitude,
	)
	return loc, nil
}
