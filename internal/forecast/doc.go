// Package forecast holds the request-scoped weather domain model.
//
// A Location is produced by geocoding, CurrentConditions and a Window are
// produced by the forecast client, and all of them live only for the duration
// of one tool invocation. Values are always metric; conversion to the caller's
// unit system happens when responses are shaped.
//
// The package also contains the day resolver, which turns a day selector
// ("today", "tomorrow" or an ISO date) into an index into a forecast window,
// and the WMO weather-code table used to describe conditions.
package forecast
