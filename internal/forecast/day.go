// ABOUTME: Day resolver mapping "today", "tomorrow" or an ISO date to a window index.
// ABOUTME: Out-of-window dates are an error and are never clamped.

package forecast

import (
	"strings"
	"time"

	"github.com/2389/weather-travel/internal/toolerr"
)

// Day selector literals.
const (
	Today    = "today"
	Tomorrow = "tomorrow"
)

// ResolveDay returns the zero-based offset of selector into a window of
// windowLen days whose first day is today.
func ResolveDay(selector string, today time.Time, windowLen int) (int, error) {
	offset, err := dayOffset(selector, today)
	if err != nil {
		return 0, err
	}
	if offset < 0 || offset >= windowLen {
		return 0, &toolerr.Error{
			Kind:    toolerr.OutOfRange,
			Param:   "day",
			Message: outOfRangeMessage(selector, today, windowLen),
		}
	}
	return offset, nil
}

func dayOffset(selector string, today time.Time) (int, error) {
	s := strings.TrimSpace(selector)
	switch strings.ToLower(s) {
	case Today:
		return 0, nil
	case Tomorrow:
		return 1, nil
	}
	date, err := ParseDate(s)
	if err != nil {
		return 0, toolerr.Invalid("day", "day must be 'today', 'tomorrow', or YYYY-MM-DD, got %q", selector)
	}
	return DaysBetween(today, date), nil
}

func outOfRangeMessage(selector string, today time.Time, windowLen int) string {
	last := DateOf(today).AddDate(0, 0, windowLen-1)
	return "requested day " + strings.TrimSpace(selector) + " is outside the forecast window " +
		DateOf(today).Format(DateLayout) + " to " + last.Format(DateLayout)
}
