// ABOUTME: Resolves a location's IANA timezone with the zone database embedded.
// ABOUTME: SolarZone approximates local time from longitude when the name is unknown.

package forecast

import (
	"math"
	"time"
	_ "time/tzdata"
)

// Zone loads the location's IANA timezone. ok is false when the name is
// empty or not in the zone database.
func (l Location) Zone() (*time.Location, bool) {
	if l.Timezone == "" {
		return nil, false
	}
	tz, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return nil, false
	}
	return tz, true
}

// SolarZone is a fixed offset of one hour per 15 degrees of longitude.
func (l Location) SolarZone() *time.Location {
	hours := int(math.Round(l.Longitude / 15))
	return time.FixedZone("", hours*3600)
}
