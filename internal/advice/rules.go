// ABOUTME: Ordered rule table and the Advise entry point.
// ABOUTME: First match wins; the default rule guarantees a non-empty result.

package advice

import (
	"fmt"

	"github.com/2389/weather-travel/internal/forecast"
	"github.com/2389/weather-travel/internal/units"
)

// DefaultAdvice is returned when no specific rule matches.
const DefaultAdvice = "No special advice: conditions look favorable for travel."

// Rule is one entry in the advice table.
type Rule struct {
	Name    string
	Match   func(d forecast.Day) bool
	Message func(d forecast.Day, sys units.System) string
}

// Metric thresholds.
const (
	heavyRainProbability  = 70
	likelyRainProbability = 40
	damagingWindKmh       = 50.0
	breezyWindKmh         = 30.0
	extremeHeatC          = 35.0
	hotC                  = 30.0
	severeColdC           = -10.0
	freezingC             = 0.0
)

// Rules is the advice table in priority order.
var Rules = []Rule{
	{
		Name:  "thunderstorm",
		Match: func(d forecast.Day) bool { return forecast.IsThunder(d.WeatherCode) },
		Message: func(d forecast.Day, sys units.System) string {
			return "Thunderstorms expected: keep indoor backup plans and avoid exposed areas."
		},
	},
	{
		Name:  "heavy_rain",
		Match: func(d forecast.Day) bool { return d.PrecipitationProbability >= heavyRainProbability },
		Message: func(d forecast.Day, sys units.System) string {
			return fmt.Sprintf("High chance of rain (%d%%, about %s): pack waterproofs and allow extra travel time.",
				d.PrecipitationProbability, render(d.PrecipitationSum, units.Precipitation, sys))
		},
	},
	{
		Name:  "damaging_wind",
		Match: func(d forecast.Day) bool { return d.WindSpeedMax >= damagingWindKmh },
		Message: func(d forecast.Day, sys units.System) string {
			return fmt.Sprintf("Strong winds up to %s: expect delays and secure loose items.",
				render(d.WindSpeedMax, units.Speed, sys))
		},
	},
	{
		Name:  "snow",
		Match: func(d forecast.Day) bool { return forecast.IsSnow(d.WeatherCode) },
		Message: func(d forecast.Day, sys units.System) string {
			return fmt.Sprintf("Snow expected with a low of %s: check road conditions and wear warm, waterproof footwear.",
				render(d.TempMin, units.Temperature, sys))
		},
	},
	{
		Name:  "extreme_heat",
		Match: func(d forecast.Day) bool { return d.TempMax >= extremeHeatC },
		Message: func(d forecast.Day, sys units.System) string {
			return fmt.Sprintf("Extreme heat up to %s: stay hydrated and avoid midday sun.",
				render(d.TempMax, units.Temperature, sys))
		},
	},
	{
		Name:  "severe_cold",
		Match: func(d forecast.Day) bool { return d.TempMin <= severeColdC },
		Message: func(d forecast.Day, sys units.System) string {
			return fmt.Sprintf("Severe cold down to %s: wear insulated layers and limit time outdoors.",
				render(d.TempMin, units.Temperature, sys))
		},
	},
	{
		Name:  "likely_rain",
		Match: func(d forecast.Day) bool { return d.PrecipitationProbability >= likelyRainProbability },
		Message: func(d forecast.Day, sys units.System) string {
			return fmt.Sprintf("Rain is possible (%d%% chance): pack rain gear or an umbrella.", d.PrecipitationProbability)
		},
	},
	{
		Name:  "hot",
		Match: func(d forecast.Day) bool { return d.TempMax >= hotC },
		Message: func(d forecast.Day, sys units.System) string {
			return fmt.Sprintf("Hot daytime temperatures up to %s: carry water and dress lightly.",
				render(d.TempMax, units.Temperature, sys))
		},
	},
	{
		Name:  "freezing",
		Match: func(d forecast.Day) bool { return d.TempMin <= freezingC },
		Message: func(d forecast.Day, sys units.System) string {
			return fmt.Sprintf("Cold mornings and evenings down to %s: dress in layers.",
				render(d.TempMin, units.Temperature, sys))
		},
	},
	{
		Name:  "breezy",
		Match: func(d forecast.Day) bool { return d.WindSpeedMax >= breezyWindKmh },
		Message: func(d forecast.Day, sys units.System) string {
			return fmt.Sprintf("Breezy with gusts up to %s: bring a windproof layer.",
				render(d.WindSpeedMax, units.Speed, sys))
		},
	},
	{
		Name:    "default",
		Match:   func(forecast.Day) bool { return true },
		Message: func(forecast.Day, units.System) string { return DefaultAdvice },
	},
}

// Advise returns the message of the first rule in Rules matching d.
func Advise(d forecast.Day, sys units.System) string {
	return Match(d).Message(d, sys)
}

// Match returns the first rule in Rules matching d.
func Match(d forecast.Day) Rule {
	for _, r := range Rules {
		if r.Match(d) {
			return r
		}
	}
	return Rules[len(Rules)-1]
}

// Recommendations returns the message of every non-default rule matching d,
// in table order. It is empty when only the default rule applies.
func Recommendations(d forecast.Day, sys units.System) []string {
	var out []string
	for _, r := range Rules[:len(Rules)-1] {
		if r.Match(d) {
			out = append(out, r.Message(d, sys))
		}
	}
	return out
}

// render converts a metric value to sys and appends its unit symbol.
func render(v float64, kind units.Kind, sys units.System) string {
	sym := units.Symbol(kind, sys)
	value := units.FromMetric(v, kind, sys)
	if kind == units.Temperature {
		return fmt.Sprintf("%.1f%s", value, sym)
	}
	return fmt.Sprintf("%.1f %s", value, sym)
}
