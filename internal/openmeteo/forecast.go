// ABOUTME: Forecast service: current conditions and N-day daily windows for a location.
// ABOUTME: Always requests metric units and maps the payload into forecast domain types.

package openmeteo

import (
	"context"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/2389/weather-travel/internal/forecast"
	"github.com/2389/weather-travel/internal/toolerr"
)

const (
	serviceForecast = "forecast"

	currentFields = "temperature_2m,apparent_temperature,precipitation,weather_code,wind_speed_10m"
	dailyFields   = "weather_code,temperature_2m_max,temperature_2m_min,precipitation_sum," +
		"precipitation_probability_max,wind_speed_10m_max"

	currentTimeLayout = "2006-01-02T15:04"
)

// Forecaster fetches weather data for resolved locations.
type Forecaster struct {
	client *Client
}

// Forecaster returns a forecast service.
func (c *Client) Forecaster() *Forecaster {
	return &Forecaster{client: c}
}

type forecastResponse struct {
	Timezone             string `json:"timezone"`
	TimezoneAbbreviation string `json:"timezone_abbreviation"`
	UTCOffsetSeconds     int    `json:"utc_offset_seconds"`

	Current *struct {
		Time                string   `json:"time"`
		Temperature         *float64 `json:"temperature_2m"`
		ApparentTemperature *float64 `json:"apparent_temperature"`
		Precipitation       *float64 `json:"precipitation"`
		WeatherCode         *float64 `json:"weather_code"`
		WindSpeed           *float64 `json:"wind_speed_10m"`
	} `json:"current"`

	Daily *struct {
		Time                     []string   `json:"time"`
		WeatherCode              []*float64 `json:"weather_code"`
		TemperatureMax           []*float64 `json:"temperature_2m_max"`
		TemperatureMin           []*float64 `json:"temperature_2m_min"`
		PrecipitationSum         []*float64 `json:"precipitation_sum"`
		PrecipitationProbability []*float64 `json:"precipitation_probability_max"`
		WindSpeedMax             []*float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
}

func (f *Forecaster) baseParams(loc forecast.Location) url.Values {
	params := url.Values{}
	params.Set("latitude", formatFloat(loc.Latitude))
	params.Set("longitude", formatFloat(loc.Longitude))
	tz := loc.Timezone
	if tz == "" {
		tz = "auto"
	}
	params.Set("timezone", tz)
	params.Set("temperature_unit", "celsius")
	params.Set("wind_speed_unit", "kmh")
	params.Set("precipitation_unit", "mm")
	return params
}

// Current fetches current conditions at loc.
func (f *Forecaster) Current(ctx context.Context, loc forecast.Location) (forecast.CurrentConditions, error) {
	params := f.baseParams(loc)
	params.Set("current", currentFields)

	var payload forecastResponse
	if err := f.client.getJSON(ctx, serviceForecast, f.client.forecastURL, params, &payload); err != nil {
		return forecast.CurrentConditions{}, err
	}

	cur := payload.Current
	if cur == nil || cur.Temperature == nil {
		return forecast.CurrentConditions{}, malformed("no current weather data returned")
	}

	observed, err := time.ParseInLocation(currentTimeLayout, cur.Time, payload.zone())
	if err != nil {
		return forecast.CurrentConditions{}, malformed("invalid observation time %q", cur.Time)
	}

	return forecast.CurrentConditions{
		Temperature:         *cur.Temperature,
		ApparentTemperature: valueOr(cur.ApparentTemperature, *cur.Temperature),
		WindSpeed:           valueOr(cur.WindSpeed, 0),
		Precipitation:       valueOr(cur.Precipitation, 0),
		WeatherCode:         int(valueOr(cur.WeatherCode, -1)),
		ObservedAt:          observed,
	}, nil
}

// Forecast fetches a window of exactly days daily aggregates starting today at loc.
func (f *Forecaster) Forecast(ctx context.Context, loc forecast.Location, days int) (forecast.Window, error) {
	if err := forecast.ValidateDays(days); err != nil {
		return nil, err
	}

	params := f.baseParams(loc)
	params.Set("daily", dailyFields)
	params.Set("forecast_days", strconv.Itoa(days))

	var payload forecastResponse
	if err := f.client.getJSON(ctx, serviceForecast, f.client.forecastURL, params, &payload); err != nil {
		return nil, err
	}
	return mapDaily(payload, days)
}

func mapDaily(payload forecastResponse, days int) (forecast.Window, error) {
	d := payload.Daily
	if d == nil || len(d.Time) == 0 {
		return nil, malformed("no daily forecast data returned")
	}
	if len(d.Time) < days {
		return nil, malformed("upstream returned %d days, want %d", len(d.Time), days)
	}

	window := make(forecast.Window, days)
	for i := 0; i < days; i++ {
		date, err := forecast.ParseDate(d.Time[i])
		if err != nil {
			return nil, malformed("invalid forecast date %q", d.Time[i])
		}
		tMax, tMin := at(d.TemperatureMax, i), at(d.TemperatureMin, i)
		if tMax == nil || tMin == nil {
			return nil, malformed("missing temperatures for %s", d.Time[i])
		}
		window[i] = forecast.Day{
			Date:                     date,
			TempMin:                  *tMin,
			TempMax:                  *tMax,
			PrecipitationSum:         valueOr(at(d.PrecipitationSum, i), 0),
			PrecipitationProbability: probability(at(d.PrecipitationProbability, i)),
			WeatherCode:              int(valueOr(at(d.WeatherCode, i), -1)),
			WindSpeedMax:             valueOr(at(d.WindSpeedMax, i), 0),
		}
	}

	if err := window.Validate(days); err != nil {
		return nil, toolerr.Wrap(toolerr.Upstream, err, "forecast returned a malformed window")
	}
	return window, nil
}

// zone returns the location's zone as reported in the payload.
func (p forecastResponse) zone() *time.Location {
	name := p.TimezoneAbbreviation
	if name == "" {
		name = p.Timezone
	}
	return time.FixedZone(name, p.UTCOffsetSeconds)
}

func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func probability(v *float64) int {
	if v == nil {
		return 0
	}
	p := int(math.Round(*v))
	return max(0, min(100, p))
}

func malformed(format string, args ...any) error {
	return toolerr.New(toolerr.Upstream, "forecast: "+format, args...)
}
