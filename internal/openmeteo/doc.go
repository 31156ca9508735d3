// Package openmeteo is a client for the Open-Meteo geocoding and forecast APIs.
//
// Both services share one Client, which owns the HTTP client (with a finite
// timeout), an optional request rate limiter, an optional circuit breaker and
// the bounded retry policy:
//
//   - HTTP 429: wait once (fixed backoff, or Retry-After when it is short), retry once.
//   - HTTP 5xx: retry once immediately.
//   - Timeouts and connection failures: no retry.
//   - Other 4xx: no retry.
//
// Failures are reported as toolerr kinds (validation_error, not_found,
// rate_limited, upstream_error) so the tool layer can pass them through.
//
// Basic usage:
//
//	client := openmeteo.NewClient(openmeteo.Config{Timeout: 10 * time.Second})
//	loc, err := client.Geocoder(nil).Resolve(ctx, "Tokyo")
//	if err != nil {
//		return err
//	}
//	window, err := client.Forecaster().Forecast(ctx, loc, 3)
package openmeteo
