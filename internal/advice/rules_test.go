// ABOUTME: Tests for the advice rule table, risk grading, summaries and daylight.
// ABOUTME: Includes a totality sweep over a grid of synthetic forecast days.

package advice

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/weather-travel/internal/forecast"
	"github.com/2389/weather-travel/internal/units"
)

func mildDay() forecast.Day {
	return forecast.Day{
		Date:                     time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
		TempMin:                  12,
		TempMax:                  21,
		PrecipitationSum:         0,
		PrecipitationProbability: 10,
		WeatherCode:              1,
		WindSpeedMax:             12,
	}
}

func TestAdvise_FirstMatchWins(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *forecast.Day)
		rule   string
	}{
		{"mild day gets default", func(d *forecast.Day) {}, "default"},
		{"thunder beats everything", func(d *forecast.Day) {
			d.WeatherCode = 95
			d.PrecipitationProbability = 90
			d.WindSpeedMax = 80
		}, "thunderstorm"},
		{"heavy rain beats wind", func(d *forecast.Day) {
			d.PrecipitationProbability = 70
			d.WindSpeedMax = 60
		}, "heavy_rain"},
		{"damaging wind", func(d *forecast.Day) { d.WindSpeedMax = 50 }, "damaging_wind"},
		{"snow beats cold", func(d *forecast.Day) {
			d.WeatherCode = 73
			d.TempMin = -15
		}, "snow"},
		{"extreme heat", func(d *forecast.Day) { d.TempMax = 35 }, "extreme_heat"},
		{"severe cold", func(d *forecast.Day) { d.TempMin = -10 }, "severe_cold"},
		{"likely rain beats hot", func(d *forecast.Day) {
			d.PrecipitationProbability = 40
			d.TempMax = 31
		}, "likely_rain"},
		{"hot", func(d *forecast.Day) { d.TempMax = 30 }, "hot"},
		{"freezing", func(d *forecast.Day) { d.TempMin = 0 }, "freezing"},
		{"breezy", func(d *forecast.Day) { d.WindSpeedMax = 30 }, "breezy"},
		{"just below thresholds", func(d *forecast.Day) {
			d.PrecipitationProbability = 39
			d.TempMax = 29.9
			d.TempMin = 0.1
			d.WindSpeedMax = 29.9
		}, "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := mildDay()
			tt.mutate(&d)
			assert.Equal(t, tt.rule, Match(d).Name)
		})
	}
}

func TestAdvise_DefaultMessage(t *testing.T) {
	assert.Equal(t, DefaultAdvice, Advise(mildDay(), units.Metric))
}

func TestAdvise_ConvertsNumbersOnly(t *testing.T) {
	d := mildDay()
	d.TempMax = 36

	metric := Advise(d, units.Metric)
	imperial := Advise(d, units.Imperial)

	assert.Contains(t, metric, "36.0°C")
	assert.Contains(t, imperial, "96.8°F")
	assert.Equal(t, Match(d).Name, "extreme_heat")
}

func TestAdvise_WindInImperial(t *testing.T) {
	d := mildDay()
	d.WindSpeedMax = 80.4672

	assert.Contains(t, Advise(d, units.Imperial), "50.0 mph")
	assert.Contains(t, Advise(d, units.Metric), "80.5 km/h")
}

func TestAdvise_Total(t *testing.T) {
	codes := []int{0, 1, 3, 45, 51, 61, 65, 71, 75, 80, 95, 99, 1000, -1}
	temps := []float64{-40, -10, -0.5, 0, 15, 29.9, 30, 35, 50}
	probs := []int{0, 39, 40, 69, 70, 100}
	winds := []float64{0, 29.9, 30, 49.9, 50, 150}

	for _, code := range codes {
		for _, tMax := range temps {
			for _, p := range probs {
				for _, w := range winds {
					d := forecast.Day{
						TempMax:                  tMax,
						TempMin:                  tMax - 8,
						PrecipitationProbability: p,
						WeatherCode:              code,
						WindSpeedMax:             w,
					}
					for _, sys := range []units.System{units.Metric, units.Imperial} {
						msg := Advise(d, sys)
						require.NotEmpty(t, strings.TrimSpace(msg))
					}
				}
			}
		}
	}
}

func TestRecommendations(t *testing.T) {
	assert.Empty(t, Recommendations(mildDay(), units.Metric))

	d := mildDay()
	d.PrecipitationProbability = 75
	d.TempMax = 32
	recs := Recommendations(d, units.Metric)
	require.Len(t, recs, 3)
	assert.Contains(t, recs[0], "High chance of rain")
	assert.Contains(t, recs[1], "Rain is possible")
	assert.Contains(t, recs[2], "Hot daytime")
}

func TestRisk(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *forecast.Day)
		want   RiskLevel
	}{
		{"calm", func(d *forecast.Day) {}, RiskLow},
		{"thunder", func(d *forecast.Day) { d.WeatherCode = 96 }, RiskHigh},
		{"heavy rain chance", func(d *forecast.Day) { d.PrecipitationProbability = 80 }, RiskHigh},
		{"gale", func(d *forecast.Day) { d.WindSpeedMax = 45 }, RiskHigh},
		{"drizzle", func(d *forecast.Day) { d.WeatherCode = 51 }, RiskModerate},
		{"snow", func(d *forecast.Day) { d.WeatherCode = 71 }, RiskModerate},
		{"rain chance", func(d *forecast.Day) { d.PrecipitationProbability = 40 }, RiskModerate},
		{"breezy", func(d *forecast.Day) { d.WindSpeedMax = 30 }, RiskModerate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := mildDay()
			tt.mutate(&d)
			assert.Equal(t, tt.want, Risk(d))
		})
	}
}

func TestSummary(t *testing.T) {
	d := mildDay()
	d.WeatherCode = 61
	d.TempMax = 21.3
	d.PrecipitationProbability = 40

	assert.Equal(t, "Slight rain. High 21.3°C / Low 12.0°C. Precip chance 40%.", Summary(d, units.Metric))
	assert.Equal(t, "Slight rain. High 70.3°F / Low 53.6°F. Precip chance 40%.", Summary(d, units.Imperial))
}

func TestDaylight_Tokyo(t *testing.T) {
	loc := forecast.Location{Name: "Tokyo", Latitude: 35.6895, Longitude: 139.69171, Timezone: "Asia/Tokyo"}

	info := Daylight(mildDay(), loc)
	require.False(t, info.Polar)
	assert.True(t, strings.HasPrefix(info.Sunrise, "05:") || strings.HasPrefix(info.Sunrise, "06:"), info.Sunrise)
	assert.True(t, strings.HasPrefix(info.Sunset, "16:") || strings.HasPrefix(info.Sunset, "17:"), info.Sunset)
	assert.InDelta(t, 11.2, info.Hours, 0.6)
}

func TestDaylight_UnknownTimezoneUsesSolarOffset(t *testing.T) {
	loc := forecast.Location{Latitude: 51.5072, Longitude: -0.1276, Timezone: "Not/AZone"}

	info := Daylight(mildDay(), loc)
	require.False(t, info.Polar)
	assert.NotEmpty(t, info.Sunrise)
	assert.Greater(t, info.Hours, 8.0)
}

func TestDaylight_NoTimezoneReportsLocalClock(t *testing.T) {
	loc := forecast.Location{Name: "Los Angeles", Latitude: 34.05223, Longitude: -118.24368}

	info := Daylight(mildDay(), loc)
	require.False(t, info.Polar)
	// Solar offset is UTC-8, so sunrise lands in the early morning, not mid-afternoon UTC.
	assert.True(t, strings.HasPrefix(info.Sunrise, "06:") || strings.HasPrefix(info.Sunrise, "05:"), info.Sunrise)
	assert.True(t, strings.HasPrefix(info.Sunset, "17:") || strings.HasPrefix(info.Sunset, "16:"), info.Sunset)
}
