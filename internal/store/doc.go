// Package store persists the tool invocation audit log.
//
// Only metadata about each call is stored: which tool ran, on which
// transport, for which city, how long it took and how it ended. Forecast
// data is never persisted.
//
// SQLiteStore is the production implementation built on modernc.org/sqlite.
// MockStore keeps records in memory for tests.
package store
