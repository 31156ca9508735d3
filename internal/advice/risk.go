// ABOUTME: Coarse risk level and one-line summary for a forecast day.
// ABOUTME: Daylight computes sunrise and sunset at the location for that day.

package advice

import (
	"fmt"
	"strings"
	"time"

	"github.com/sixdouglas/suncalc"

	"github.com/2389/weather-travel/internal/forecast"
	"github.com/2389/weather-travel/internal/units"
)

// RiskLevel grades how disruptive a day's weather is likely to be.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// Risk grades d. Thresholds are metric.
func Risk(d forecast.Day) RiskLevel {
	switch {
	case forecast.IsThunder(d.WeatherCode),
		d.PrecipitationProbability >= heavyRainProbability,
		d.WindSpeedMax >= 45:
		return RiskHigh
	case forecast.IsSnow(d.WeatherCode),
		forecast.IsRain(d.WeatherCode),
		d.PrecipitationProbability >= likelyRainProbability,
		d.WindSpeedMax >= breezyWindKmh:
		return RiskModerate
	}
	return RiskLow
}

// Summary renders e.g. "Slight rain. High 21.3°C / Low 12.0°C. Precip chance 40%."
func Summary(d forecast.Day, sys units.System) string {
	sym := units.Symbol(units.Temperature, sys)
	parts := []string{
		forecast.Describe(d.WeatherCode) + ".",
		fmt.Sprintf("High %.1f%s / Low %.1f%s.",
			units.FromMetric(d.TempMax, units.Temperature, sys), sym,
			units.FromMetric(d.TempMin, units.Temperature, sys), sym),
		fmt.Sprintf("Precip chance %d%%.", d.PrecipitationProbability),
	}
	return strings.Join(parts, " ")
}

// DaylightInfo holds local sunrise and sunset for a day.
type DaylightInfo struct {
	Sunrise string  `json:"sunrise,omitempty"`
	Sunset  string  `json:"sunset,omitempty"`
	Hours   float64 `json:"hours"`
	// Polar is set when the sun does not both rise and set on this date.
	Polar bool `json:"polar,omitempty"`
}

const clockLayout = "15:04"

// Daylight computes sunrise and sunset at loc on d's calendar date, in the
// location's timezone, or its solar offset when the zone is unknown.
func Daylight(d forecast.Day, loc forecast.Location) DaylightInfo {
	tz, ok := loc.Zone()
	if !ok {
		tz = loc.SolarZone()
	}
	y, m, day := d.Date.Date()
	noon := time.Date(y, m, day, 12, 0, 0, 0, tz)

	times := suncalc.GetTimes(noon, loc.Latitude, loc.Longitude)
	sunrise, sunset := times["sunrise"].Value, times["sunset"].Value
	if !validSunTime(sunrise) || !validSunTime(sunset) || !sunset.After(sunrise) {
		return DaylightInfo{Polar: true}
	}

	return DaylightInfo{
		Sunrise: sunrise.In(tz).Format(clockLayout),
		Sunset:  sunset.In(tz).Format(clockLayout),
		Hours:   units.Round(sunset.Sub(sunrise).Hours()),
	}
}

// validSunTime rejects the zero or NaN-derived times suncalc yields near the poles.
func validSunTime(t time.Time) bool {
	return !t.IsZero() && t.Year() > 1900 && t.Year() < 3000
}
