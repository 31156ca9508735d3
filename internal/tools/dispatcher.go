// ABOUTME: Dispatcher registers the three weather tools and runs invocations.
// ABOUTME: Each tool composes geocoding, forecast fetch, unit conversion and advice.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/weather-travel/internal/advice"
	"github.com/2389/weather-travel/internal/forecast"
	"github.com/2389/weather-travel/internal/store"
	"github.com/2389/weather-travel/internal/toolerr"
	"github.com/2389/weather-travel/internal/units"
)

// Tool names.
const (
	CurrentWeather = "get_current_weather"
	Forecast       = "get_forecast"
	TravelAdvice   = "get_travel_advice"
)

// Geocoder resolves a city name to a location.
type Geocoder interface {
	Resolve(ctx context.Context, city string) (forecast.Location, error)
}

// Forecaster fetches weather for a resolved location.
type Forecaster interface {
	Current(ctx context.Context, loc forecast.Location) (forecast.CurrentConditions, error)
	Forecast(ctx context.Context, loc forecast.Location, days int) (forecast.Window, error)
}

// Recorder persists a record of each invocation.
type Recorder interface {
	Record(ctx context.Context, inv *store.Invocation) error
}

// Config wires a Dispatcher.
type Config struct {
	Geocoder   Geocoder
	Forecaster Forecaster
	// Recorder is optional.
	Recorder Recorder
	// Now is the clock used to find "today" at a location. Defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Dispatcher implements Invoker for the weather tools.
type Dispatcher struct {
	registry   *Registry
	geocoder   Geocoder
	forecaster Forecaster
	recorder   Recorder
	now        func() time.Time
	logger     *slog.Logger
}

var _ Invoker = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher with the weather tools registered.
func NewDispatcher(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	d := &Dispatcher{
		registry:   NewRegistry(),
		geocoder:   cfg.Geocoder,
		forecaster: cfg.Forecaster,
		recorder:   cfg.Recorder,
		now:        now,
		logger:     logger.With("component", "tools"),
	}

	for _, t := range []*Tool{
		{
			Definition: Definition{
				Name:        CurrentWeather,
				Description: "Get current weather conditions for a city.",
				InputSchema: json.RawMessage(currentWeatherSchema),
			},
			Handler: d.currentWeather,
		},
		{
			Definition: Definition{
				Name:        Forecast,
				Description: "Get a daily forecast for a city (1-7 days).",
				InputSchema: json.RawMessage(forecastSchema),
			},
			Handler: d.forecast,
		},
		{
			Definition: Definition{
				Name:        TravelAdvice,
				Description: "Provide travel advice for a city based on the daily forecast.",
				InputSchema: json.RawMessage(travelAdviceSchema),
			},
			Handler: d.travelAdvice,
		},
	} {
		if err := d.registry.Register(t); err != nil {
			panic(err) // static table; a collision is a programming error
		}
	}
	return d
}

// Definitions lists the registered tools.
func (d *Dispatcher) Definitions() []Definition {
	return d.registry.Definitions()
}

// Invoke runs the named tool. Errors keep their kind and are prefixed with the tool name.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	tool, ok := d.registry.Lookup(name)
	if !ok {
		return nil, toolerr.Invalid("tool", "unknown tool %q", name)
	}

	start := time.Now()
	result, err := tool.Handler(ctx, args)
	duration := time.Since(start)
	if err != nil {
		err = fmt.Errorf("%s: %w", name, err)
	}

	d.logInvocation(ctx, name, duration, err)
	d.record(ctx, name, args, duration, err)
	return result, err
}

func (d *Dispatcher) logInvocation(ctx context.Context, name string, duration time.Duration, err error) {
	if err != nil {
		d.logger.Warn("tool failed",
			"tool", name,
			"transport", TransportFrom(ctx),
			"error_kind", toolerr.KindOf(err),
			"duration", duration,
			"error", err,
		)
		return
	}
	d.logger.Info("tool completed",
		"tool", name,
		"transport", TransportFrom(ctx),
		"duration", duration,
	)
}

func (d *Dispatcher) record(ctx context.Context, name string, args json.RawMessage, duration time.Duration, err error) {
	if d.recorder == nil {
		return
	}

	var peek struct {
		City string `json:"city"`
	}
	_ = json.Unmarshal(args, &peek)

	inv := &store.Invocation{
		ID:        uuid.New().String(),
		Tool:      name,
		Transport: TransportFrom(ctx),
		City:      strings.TrimSpace(peek.City),
		Outcome:   store.OutcomeOK,
		Duration:  duration,
		CreatedAt: time.Now().UTC(),
	}
	if err != nil {
		inv.Outcome = store.OutcomeError
		inv.ErrorKind = string(toolerr.KindOf(err))
	}

	// The caller may have gone away; the audit row is still written.
	if recErr := d.recorder.Record(context.WithoutCancel(ctx), inv); recErr != nil {
		d.logger.Error("failed to record invocation", "tool", name, "error", recErr)
	}
}

func (d *Dispatcher) currentWeather(ctx context.Context, args json.RawMessage) (any, error) {
	var p currentWeatherParams
	if err := decodeParams(args, &p); err != nil {
		return nil, err
	}
	sys, err := units.ParseSystem(p.Units)
	if err != nil {
		return nil, err
	}

	loc, err := d.geocoder.Resolve(ctx, p.City)
	if err != nil {
		return nil, err
	}
	cur, err := d.forecaster.Current(ctx, loc)
	if err != nil {
		return nil, err
	}

	return &CurrentWeatherResult{
		Location:   loc,
		Units:      units.LabelsFor(sys),
		Conditions: currentReport(cur, sys),
	}, nil
}

func (d *Dispatcher) forecast(ctx context.Context, args json.RawMessage) (any, error) {
	var p forecastParams
	if err := decodeParams(args, &p); err != nil {
		return nil, err
	}
	sys, err := units.ParseSystem(p.Units)
	if err != nil {
		return nil, err
	}
	days := forecast.DefaultDays
	if p.Days != nil {
		days = *p.Days
	}
	if err := forecast.ValidateDays(days); err != nil {
		return nil, err
	}

	loc, err := d.geocoder.Resolve(ctx, p.City)
	if err != nil {
		return nil, err
	}
	window, err := d.forecaster.Forecast(ctx, loc, days)
	if err != nil {
		return nil, err
	}

	reports := make([]DayReport, len(window))
	for i, day := range window {
		reports[i] = dayReport(day, sys)
	}
	return &ForecastResult{
		Location: loc,
		Units:    units.LabelsFor(sys),
		Days:     reports,
	}, nil
}

func (d *Dispatcher) travelAdvice(ctx context.Context, args json.RawMessage) (any, error) {
	var p travelAdviceParams
	if err := decodeParams(args, &p); err != nil {
		return nil, err
	}
	sys, err := units.ParseSystem(p.Units)
	if err != nil {
		return nil, err
	}
	selector := p.Day
	if strings.TrimSpace(selector) == "" {
		selector = forecast.Today
	}

	loc, err := d.geocoder.Resolve(ctx, p.City)
	if err != nil {
		return nil, err
	}

	// With a known zone, size the window from the location's own calendar
	// so a date outside the horizon fails without a forecast call. Otherwise
	// fetch the full horizon and let the upstream dates decide.
	fetch := forecast.MaxDays
	if tz, ok := loc.Zone(); ok {
		offset, err := forecast.ResolveDay(selector, forecast.DateOf(d.now().In(tz)), forecast.MaxDays)
		if err != nil {
			return nil, err
		}
		fetch = offset + 1
	}
	window, err := d.forecaster.Forecast(ctx, loc, fetch)
	if err != nil {
		return nil, err
	}
	if len(window) == 0 {
		return nil, toolerr.New(toolerr.Upstream, "forecast returned no days")
	}

	// The upstream window is authoritative for which date is today.
	idx, err := forecast.ResolveDay(selector, window[0].Date, len(window))
	if err != nil {
		return nil, err
	}
	day := window[idx]

	recs := advice.Recommendations(day, sys)
	if recs == nil {
		recs = []string{}
	}
	return &TravelAdviceResult{
		Location:        loc,
		Date:            day.Date.Format(forecast.DateLayout),
		Advice:          advice.Advise(day, sys),
		Units:           units.LabelsFor(sys),
		RiskLevel:       advice.Risk(day),
		Summary:         advice.Summary(day, sys),
		Recommendations: recs,
		Conditions:      dayReport(day, sys),
		Daylight:        advice.Daylight(day, loc),
	}, nil
}
