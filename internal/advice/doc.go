// ABOUTME: Package advice derives travel guidance from a single forecast day.
// ABOUTME: Rules are evaluated in metric terms; only rendered numbers follow the caller's units.

// Package advice turns a forecast.Day into human-readable travel guidance.
//
// The rule table is ordered and the first matching rule wins. The final rule
// always matches, so Advise never fails for a valid day. Rules compare
// metric-native fields so the advice chosen for a day does not depend on the
// unit system the caller asked for; only numbers embedded in messages are
// converted.
package advice
