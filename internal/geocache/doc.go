// Package geocache memoizes geocoding results by exact query string so that
// repeated lookups of the same city skip the upstream call.
package geocache
