// ABOUTME: Response shapes returned by the weather tools.
// ABOUTME: Values are converted to the requested unit system and rounded once here.

package tools

import (
	"github.com/2389/weather-travel/internal/advice"
	"github.com/2389/weather-travel/internal/forecast"
	"github.com/2389/weather-travel/internal/units"
)

// CurrentWeatherResult is returned by get_current_weather.
type CurrentWeatherResult struct {
	Location   forecast.Location `json:"location"`
	Units      units.Labels      `json:"units"`
	Conditions CurrentReport     `json:"conditions"`
}

// CurrentReport is a converted observation.
type CurrentReport struct {
	Temperature         float64 `json:"temperature"`
	ApparentTemperature float64 `json:"apparent_temperature"`
	WindSpeed           float64 `json:"wind_speed"`
	Precipitation       float64 `json:"precipitation"`
	WeatherCode         int     `json:"weather_code"`
	Description         string  `json:"description"`
	ObservedAt          string  `json:"observed_at"`
}

// ForecastResult is returned by get_forecast.
type ForecastResult struct {
	Location forecast.Location `json:"location"`
	Units    units.Labels      `json:"units"`
	Days     []DayReport       `json:"days"`
}

// DayReport is one converted forecast day.
type DayReport struct {
	Date                     string  `json:"date"`
	TemperatureMax           float64 `json:"temperature_max"`
	TemperatureMin           float64 `json:"temperature_min"`
	PrecipitationSum         float64 `json:"precipitation_sum"`
	PrecipitationProbability int     `json:"precipitation_probability"`
	WindSpeedMax             float64 `json:"wind_speed_max"`
	WeatherCode              int     `json:"weather_code"`
	Description              string  `json:"description"`
}

// TravelAdviceResult is returned by get_travel_advice.
type TravelAdviceResult struct {
	Location        forecast.Location   `json:"location"`
	Date            string              `json:"date"`
	Advice          string              `json:"advice"`
	Units           units.Labels        `json:"units"`
	RiskLevel       advice.RiskLevel    `json:"risk_level"`
	Summary         string              `json:"summary"`
	Recommendations []string            `json:"recommendations"`
	Conditions      DayReport           `json:"conditions"`
	Daylight        advice.DaylightInfo `json:"daylight"`
}

const observedLayout = "2006-01-02T15:04:05Z07:00"

func currentReport(c forecast.CurrentConditions, sys units.System) CurrentReport {
	return CurrentReport{
		Temperature:         units.FromMetric(c.Temperature, units.Temperature, sys),
		ApparentTemperature: units.FromMetric(c.ApparentTemperature, units.Temperature, sys),
		WindSpeed:           units.FromMetric(c.WindSpeed, units.Speed, sys),
		Precipitation:       units.FromMetric(c.Precipitation, units.Precipitation, sys),
		WeatherCode:         c.WeatherCode,
		Description:         forecast.Describe(c.WeatherCode),
		ObservedAt:          c.ObservedAt.Format(observedLayout),
	}
}

func dayReport(d forecast.Day, sys units.System) DayReport {
	return DayReport{
		Date:                     d.Date.Format(forecast.DateLayout),
		TemperatureMax:           units.FromMetric(d.TempMax, units.Temperature, sys),
		TemperatureMin:           units.FromMetric(d.TempMin, units.Temperature, sys),
		PrecipitationSum:         units.FromMetric(d.PrecipitationSum, units.Precipitation, sys),
		PrecipitationProbability: d.PrecipitationProbability,
		WindSpeedMax:             units.FromMetric(d.WindSpeedMax, units.Speed, sys),
		WeatherCode:              d.WeatherCode,
		Description:              forecast.Describe(d.WeatherCode),
	}
}
