// ABOUTME: Request-scoped weather domain types: location, current conditions, daily window.
// ABOUTME: All values are metric; validation helpers enforce the window invariants.

package forecast

import (
	"fmt"
	"time"

	"github.com/2389/weather-travel/internal/toolerr"
)

const (
	// MaxDays is the longest forecast window the tools serve.
	MaxDays = 7
	// DefaultDays is the window length used when a caller does not ask for one.
	DefaultDays = 3
)

// DateLayout is the ISO calendar date format used on the wire.
const DateLayout = "2006-01-02"

// Location is a geocoded place.
type Location struct {
	Query     string  `json:"query"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Country   string  `json:"country,omitempty"`
	Admin1    string  `json:"admin1,omitempty"`
}

// Validate checks the coordinate ranges.
func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got %f", l.Latitude)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got %f", l.Longitude)
	}
	return nil
}

// CurrentConditions is a single observation in metric units.
type CurrentConditions struct {
	Temperature         float64   // °C
	ApparentTemperature float64   // °C
	WindSpeed           float64   // km/h
	Precipitation       float64   // mm
	WeatherCode         int       // WMO code
	ObservedAt          time.Time // local time at the location
}

// Day is one daily aggregate in metric units.
type Day struct {
	Date                     time.Time // midnight UTC of the local calendar date
	TempMin                  float64   // °C
	TempMax                  float64   // °C
	PrecipitationSum         float64   // mm
	PrecipitationProbability int       // 0-100
	WeatherCode              int       // WMO code
	WindSpeedMax             float64   // km/h
}

// Window is an ordered run of days; index 0 is today at the location.
type Window []Day

// Validate checks that w holds exactly days contiguous, strictly increasing dates.
func (w Window) Validate(days int) error {
	if len(w) != days {
		return fmt.Errorf("window has %d days, want %d", len(w), days)
	}
	for i := 1; i < len(w); i++ {
		if DaysBetween(w[i-1].Date, w[i].Date) != 1 {
			return fmt.Errorf("window dates not contiguous at index %d: %s after %s",
				i, w[i].Date.Format(DateLayout), w[i-1].Date.Format(DateLayout))
		}
	}
	return nil
}

// ValidateDays checks a requested window length.
func ValidateDays(days int) error {
	if days < 1 || days > MaxDays {
		return toolerr.Invalid("days", "days must be between 1 and %d, got %d", MaxDays, days)
	}
	return nil
}

// ParseDate parses an ISO calendar date into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// DateOf truncates t to its calendar date in t's own location, as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	a, b = DateOf(a), DateOf(b)
	return int(b.Sub(a).Hours() / 24)
}
