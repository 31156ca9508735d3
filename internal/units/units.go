// ABOUTME: Pure conversions from metric upstream values to the requested unit system.
// ABOUTME: Also owns the single rounding rule used when shaping tool responses.

package units

import (
	"math"
	"strings"

	"github.com/2389/weather-travel/internal/toolerr"
)

// System is a unit system requested by a caller.
type System string

const (
	Metric   System = "metric"
	Imperial System = "imperial"
)

// Kind is the physical quantity being converted.
type Kind int

const (
	Temperature Kind = iota
	Speed
	Precipitation
)

const (
	kmPerMile = 1.609344
	mmPerInch = 25.4
)

// ParseSystem normalizes a caller-supplied unit system. Empty means metric.
func ParseSystem(s string) (System, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Metric):
		return Metric, nil
	case string(Imperial):
		return Imperial, nil
	default:
		return "", toolerr.Invalid("units", "units must be 'metric' or 'imperial', got %q", s)
	}
}

// Convert maps v of the given kind from one system to another.
func Convert(v float64, kind Kind, from, to System) float64 {
	if from == to {
		return v
	}
	toImperial := to == Imperial
	switch kind {
	case Temperature:
		if toImperial {
			return v*9/5 + 32
		}
		return (v - 32) * 5 / 9
	case Speed:
		if toImperial {
			return v / kmPerMile
		}
		return v * kmPerMile
	case Precipitation:
		if toImperial {
			return v / mmPerInch
		}
		return v * mmPerInch
	}
	return v
}

// FromMetric converts a metric value to sys and rounds it for output.
func FromMetric(v float64, kind Kind, sys System) float64 {
	return Round(Convert(v, kind, Metric, sys))
}

// Round applies the response precision: one decimal place.
func Round(v float64) float64 {
	return math.Round(v*10) / 10
}

// Labels names the unit of each quantity in a response.
type Labels struct {
	System        System `json:"system"`
	Temperature   string `json:"temperature"`
	WindSpeed     string `json:"wind_speed"`
	Precipitation string `json:"precipitation"`
	Probability   string `json:"precipitation_probability"`
}

// LabelsFor returns the unit symbols for sys.
func LabelsFor(sys System) Labels {
	if sys == Imperial {
		return Labels{System: Imperial, Temperature: "°F", WindSpeed: "mph", Precipitation: "inch", Probability: "%"}
	}
	return Labels{System: Metric, Temperature: "°C", WindSpeed: "km/h", Precipitation: "mm", Probability: "%"}
}

// Symbol returns the unit symbol for kind in sys.
func Symbol(kind Kind, sys System) string {
	l := LabelsFor(sys)
	switch kind {
	case Temperature:
		return l.Temperature
	case Speed:
		return l.WindSpeed
	default:
		return l.Precipitation
	}
}
