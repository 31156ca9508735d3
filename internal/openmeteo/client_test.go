// ABOUTME: Tests for the geocoding and forecast services against a fake Open-Meteo.
// ABOUTME: Covers payload mapping, truncation, memoization, validation and the breaker.

package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/weather-travel/internal/forecast"
	"github.com/2389/weather-travel/internal/geocache"
	"github.com/2389/weather-travel/internal/toolerr"
)

var tokyo = forecast.Location{
	Query:     "Tokyo",
	Name:      "Tokyo",
	Latitude:  35.6895,
	Longitude: 139.69171,
	Timezone:  "Asia/Tokyo",
	Country:   "Japan",
}

// fakeOpenMeteo serves both Open-Meteo endpoints and counts hits.
type fakeOpenMeteo struct {
	geocodeHits  atomic.Int64
	forecastHits atomic.Int64
	// forecastStatus, when set, is returned instead of a payload.
	forecastStatus []int
	// extraDays is added to the requested forecast_days.
	extraDays int
	lastQuery atomic.Value
}

func (f *fakeOpenMeteo) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		f.geocodeHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("name") != "Tokyo" {
			_, _ = w.Write([]byte(`{"generationtime_ms":0.5}`))
			return
		}
		_, _ = w.Write([]byte(`{"results":[
			{"id":1850147,"name":"Tokyo","latitude":35.6895,"longitude":139.69171,"timezone":"Asia/Tokyo","country":"Japan","admin1":"Tokyo"},
			{"id":1,"name":"Tokyo Other","latitude":1,"longitude":1,"timezone":"UTC"}
		]}`))
	})
	mux.HandleFunc("/v1/forecast", func(w http.ResponseWriter, r *http.Request) {
		n := f.forecastHits.Add(1)
		f.lastQuery.Store(r.URL.Query())
		if int(n) <= len(f.forecastStatus) {
			w.WriteHeader(f.forecastStatus[n-1])
			return
		}
		w.Header().Set("Content-Type", "application/json")
		q := r.URL.Query()
		if q.Get("current") != "" {
			_, _ = w.Write([]byte(`{"timezone":"Asia/Tokyo","timezone_abbreviation":"JST","utc_offset_seconds":32400,
				"current":{"time":"2026-10-19T14:45","interval":900,"temperature_2m":21.4,"apparent_temperature":20.1,
				"precipitation":0.2,"weather_code":3,"wind_speed_10m":11.5}}`))
			return
		}
		days, _ := strconv.Atoi(q.Get("forecast_days"))
		_ = json.NewEncoder(w).Encode(dailyPayload(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), days+f.extraDays))
	})
	return mux
}

func dailyPayload(start time.Time, days int) map[string]any {
	var (
		dates      []string
		codes      []int
		tMax, tMin []float64
		sums, wind []float64
		probs      []any
	)
	for i := 0; i < days; i++ {
		dates = append(dates, start.AddDate(0, 0, i).Format(forecast.DateLayout))
		codes = append(codes, 61)
		tMax = append(tMax, 20+float64(i))
		tMin = append(tMin, 10+float64(i))
		sums = append(sums, 1.5)
		wind = append(wind, 15)
		probs = append(probs, 40)
	}
	if days > 0 {
		probs[days-1] = nil
	}
	return map[string]any{
		"timezone": "Asia/Tokyo",
		"daily": map[string]any{
			"time":                          dates,
			"weather_code":                  codes,
			"temperature_2m_max":            tMax,
			"temperature_2m_min":            tMin,
			"precipitation_sum":             sums,
			"precipitation_probability_max": probs,
			"wind_speed_10m_max":            wind,
		},
	}
}

func newTestClient(t *testing.T, fake *fakeOpenMeteo, mutate ...func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	cfg := Config{
		GeocodingURL: srv.URL + "/v1/search",
		ForecastURL:  srv.URL + "/v1/forecast",
		Timeout:      2 * time.Second,
		Sleep:        func(context.Context, time.Duration) error { return nil },
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return NewClient(cfg)
}

func TestGeocoder_ResolveTokyo(t *testing.T) {
	fake := &fakeOpenMeteo{}
	client := newTestClient(t, fake)

	loc, err := client.Geocoder(nil).Resolve(context.Background(), "Tokyo")
	require.NoError(t, err)

	assert.Equal(t, "Tokyo", loc.Name)
	assert.Equal(t, "Tokyo", loc.Query)
	assert.InDelta(t, 35.68, loc.Latitude, 0.01)
	assert.InDelta(t, 139.69, loc.Longitude, 0.01)
	assert.Equal(t, "Asia/Tokyo", loc.Timezone)
	assert.Equal(t, "Japan", loc.Country)
}

func TestGeocoder_NotFound(t *testing.T) {
	fake := &fakeOpenMeteo{}
	client := newTestClient(t, fake)

	_, err := client.Geocoder(nil).Resolve(context.Background(), "Unknownville123")
	require.Error(t, err)
	assert.ErrorIs(t, err, toolerr.ErrNotFound)
	assert.Equal(t, int64(0), fake.forecastHits.Load())
}

func TestGeocoder_BlankCity(t *testing.T) {
	fake := &fakeOpenMeteo{}
	client := newTestClient(t, fake)

	for _, city := range []string{"", "   ", "\t\n"} {
		_, err := client.Geocoder(nil).Resolve(context.Background(), city)
		require.Error(t, err)
		assert.ErrorIs(t, err, toolerr.ErrValidation)
	}
	assert.Equal(t, int64(0), fake.geocodeHits.Load())
}

func TestGeocoder_Memoizes(t *testing.T) {
	fake := &fakeOpenMeteo{}
	client := newTestClient(t, fake)
	geo := client.Geocoder(geocache.New[forecast.Location](10))

	for i := 0; i < 3; i++ {
		_, err := geo.Resolve(context.Background(), "Tokyo")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), fake.geocodeHits.Load())

	// A variation misses the cache (still resolves upstream after trimming).
	_, err := geo.Resolve(context.Background(), " Tokyo")
	require.NoError(t, err)
	assert.Equal(t, int64(2), fake.geocodeHits.Load())
}

func TestForecaster_Current(t *testing.T) {
	fake := &fakeOpenMeteo{}
	client := newTestClient(t, fake)

	cur, err := client.Forecaster().Current(context.Background(), tokyo)
	require.NoError(t, err)

	assert.Equal(t, 21.4, cur.Temperature)
	assert.Equal(t, 20.1, cur.ApparentTemperature)
	assert.Equal(t, 11.5, cur.WindSpeed)
	assert.Equal(t, 0.2, cur.Precipitation)
	assert.Equal(t, 3, cur.WeatherCode)
	_, offset := cur.ObservedAt.Zone()
	assert.Equal(t, 9*3600, offset)
	assert.Equal(t, 14, cur.ObservedAt.Hour())

	q := fake.lastQuery.Load().(url.Values)
	assert.Equal(t, []string{"Asia/Tokyo"}, q["timezone"])
	assert.Equal(t, []string{"celsius"}, q["temperature_unit"])
}

func TestForecaster_WindowLengths(t *testing.T) {
	for days := 1; days <= forecast.MaxDays; days++ {
		t.Run(fmt.Sprintf("%d days", days), func(t *testing.T) {
			fake := &fakeOpenMeteo{}
			client := newTestClient(t, fake)

			window, err := client.Forecaster().Forecast(context.Background(), tokyo, days)
			require.NoError(t, err)
			require.Len(t, window, days)
			for i := 1; i < len(window); i++ {
				assert.True(t, window[i].Date.After(window[i-1].Date))
			}
		})
	}
}

func TestForecaster_TruncatesExtraDays(t *testing.T) {
	fake := &fakeOpenMeteo{extraDays: 4}
	client := newTestClient(t, fake)

	window, err := client.Forecaster().Forecast(context.Background(), tokyo, 3)
	require.NoError(t, err)
	require.Len(t, window, 3)

	assert.Equal(t, "2026-10-19", window[0].Date.Format(forecast.DateLayout))
	assert.Equal(t, 20.0, window[0].TempMax)
	assert.Equal(t, 10.0, window[0].TempMin)
	assert.Equal(t, 40, window[0].PrecipitationProbability)
	assert.Equal(t, 61, window[0].WeatherCode)
	assert.Equal(t, 1.5, window[0].PrecipitationSum)
}

func TestForecaster_NullProbabilityIsZero(t *testing.T) {
	fake := &fakeOpenMeteo{}
	client := newTestClient(t, fake)

	window, err := client.Forecaster().Forecast(context.Background(), tokyo, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, window[1].PrecipitationProbability)
}

func TestForecaster_DaysOutOfRangeMakesNoCall(t *testing.T) {
	fake := &fakeOpenMeteo{}
	client := newTestClient(t, fake)

	for _, days := range []int{0, 8, -3} {
		_, err := client.Forecaster().Forecast(context.Background(), tokyo, days)
		require.Error(t, err)
		assert.ErrorIs(t, err, toolerr.ErrValidation)
	}
	assert.Equal(t, int64(0), fake.forecastHits.Load())
}

func TestForecaster_RateLimitedThenSuccess(t *testing.T) {
	fake := &fakeOpenMeteo{forecastStatus: []int{http.StatusTooManyRequests}}
	client := newTestClient(t, fake)

	window, err := client.Forecaster().Forecast(context.Background(), tokyo, 3)
	require.NoError(t, err)
	assert.Len(t, window, 3)
	assert.Equal(t, int64(2), fake.forecastHits.Load())
}

func TestForecaster_RateLimitedTwice(t *testing.T) {
	fake := &fakeOpenMeteo{forecastStatus: []int{http.StatusTooManyRequests, http.StatusTooManyRequests}}
	client := newTestClient(t, fake)

	_, err := client.Forecaster().Forecast(context.Background(), tokyo, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, toolerr.ErrRateLimited)
	assert.Equal(t, int64(2), fake.forecastHits.Load())
}

func TestForecaster_ServerErrorOnceThenNextCallFresh(t *testing.T) {
	fake := &fakeOpenMeteo{forecastStatus: []int{http.StatusInternalServerError}}
	client := newTestClient(t, fake)

	_, err := client.Forecaster().Forecast(context.Background(), tokyo, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fake.forecastHits.Load())

	_, err = client.Forecaster().Current(context.Background(), tokyo)
	require.NoError(t, err)
	assert.Equal(t, int64(3), fake.forecastHits.Load(), "next call makes a single attempt")
}

func TestForecaster_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"daily": not json`))
	}))
	defer srv.Close()

	client := NewClient(Config{ForecastURL: srv.URL})
	_, err := client.Forecaster().Forecast(context.Background(), tokyo, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, toolerr.ErrUpstream)
}

func TestForecaster_ShortWindowIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(dailyPayload(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), 2))
	}))
	defer srv.Close()

	client := NewClient(Config{ForecastURL: srv.URL})
	_, err := client.Forecaster().Forecast(context.Background(), tokyo, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, toolerr.ErrUpstream)
}

func TestForecaster_GapInDatesIsMalformed(t *testing.T) {
	payload := dailyPayload(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), 3)
	payload["daily"].(map[string]any)["time"] = []string{"2026-10-19", "2026-10-21", "2026-10-22"}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer srv.Close()

	client := NewClient(Config{ForecastURL: srv.URL})
	_, err := client.Forecaster().Forecast(context.Background(), tokyo, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, toolerr.ErrUpstream)
}

func TestClient_TimeoutIsUpstreamError(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	client := NewClient(Config{ForecastURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := client.Forecaster().Current(context.Background(), tokyo)
	require.Error(t, err)
	assert.ErrorIs(t, err, toolerr.ErrUpstream)
	assert.Equal(t, int64(1), hits.Load(), "timeouts are not retried")
}

func TestClient_BreakerOpensOnUpstreamFailures(t *testing.T) {
	fake := &fakeOpenMeteo{forecastStatus: []int{500, 500, 500, 500}}
	client := newTestClient(t, fake, func(cfg *Config) {
		cfg.Breaker = BreakerConfig{Enabled: true, ConsecutiveFailures: 2, OpenTimeout: time.Minute}
	})

	for i := 0; i < 2; i++ {
		_, err := client.Forecaster().Current(context.Background(), tokyo)
		require.Error(t, err)
	}
	require.Equal(t, int64(4), fake.forecastHits.Load())

	_, err := client.Forecaster().Current(context.Background(), tokyo)
	require.Error(t, err)
	assert.ErrorIs(t, err, toolerr.ErrUpstream)
	assert.Contains(t, err.Error(), "temporarily unavailable")
	assert.Equal(t, int64(4), fake.forecastHits.Load(), "open breaker short-circuits")
}

func TestClient_BreakerIgnoresNotFound(t *testing.T) {
	fake := &fakeOpenMeteo{}
	client := newTestClient(t, fake, func(cfg *Config) {
		cfg.Breaker = BreakerConfig{Enabled: true, ConsecutiveFailures: 1}
	})

	for i := 0; i < 3; i++ {
		_, err := client.Geocoder(nil).Resolve(context.Background(), "Nowhere")
		assert.ErrorIs(t, err, toolerr.ErrNotFound)
	}
	assert.Equal(t, int64(3), fake.geocodeHits.Load())
}

func TestClient_BreakerIgnoresCancelledCalls(t *testing.T) {
	fake := &fakeOpenMeteo{}
	client := newTestClient(t, fake, func(cfg *Config) {
		cfg.Breaker = BreakerConfig{Enabled: true, ConsecutiveFailures: 1, OpenTimeout: time.Minute}
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		_, err := client.Forecaster().Current(ctx, tokyo)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotContains(t, err.Error(), "temporarily unavailable")
	}

	_, err := client.Forecaster().Current(context.Background(), tokyo)
	require.NoError(t, err, "abandoned calls must not open the breaker")
}

func TestClient_RateLimiterAllowsBurst(t *testing.T) {
	fake := &fakeOpenMeteo{}
	client := newTestClient(t, fake, func(cfg *Config) {
		cfg.RateLimit = 100
		cfg.RateBurst = 5
	})

	for i := 0; i < 5; i++ {
		_, err := client.Forecaster().Current(context.Background(), tokyo)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(5), fake.forecastHits.Load())
}
