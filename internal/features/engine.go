// Package features turns raw transit events into the fixed-width numeric
// feature table the delay model trains and predicts on. The transform is
// deterministic and side-effect free: events in, frame out.
//
// Missing values are represented as NaN throughout. A lag or rolling
// statistic that has no history is unknown, not zero; substituting zero
// would bias the regressor toward "on time".
package features

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"transit-predict/internal/transit"
)

// Column names of the engineered feature table. These are the stable
// contract between the engine, the model and external callers.
const (
	ColHour          = "hour"
	ColDayOfWeek     = "day_of_week"
	ColDayOfMonth    = "day_of_month"
	ColMonth         = "month"
	ColIsWeekend     = "is_weekend"
	ColIsMorningPeak = "is_morning_peak"
	ColIsEveningPeak = "is_evening_peak"
	ColIsPeakHour    = "is_peak_hour"
	ColHourSin       = "hour_sin"
	ColHourCos       = "hour_cos"
	ColDowSin        = "dow_sin"
	ColDowCos        = "dow_cos"

	ColDelayMinutes = "delay_minutes"

	ColRouteAvgDelay = "route_avg_delay"
	ColRouteDelayStd = "route_delay_std"

	// Placeholder columns for exogenous signals. These are stubs kept
	// for schema stability until the corresponding data sources are
	// wired in; their values are NaN or zero.
	ColTemperature   = "temperature"
	ColPrecipitation = "precipitation"
	ColIsRainy       = "is_rainy"
	ColIsHoliday     = "is_holiday"
	ColNearbyEvent   = "nearby_event"
)

// LagCol returns the column name of the h-hour lag feature.
func LagCol(h int) string { return fmt.Sprintf("delay_lag_%dh", h) }

// RollingMeanCol returns the column name of the w-hour rolling mean.
func RollingMeanCol(w int) string { return fmt.Sprintf("delay_rolling_mean_%dh", w) }

// RollingStdCol returns the column name of the w-hour rolling std.
func RollingStdCol(w int) string { return fmt.Sprintf("delay_rolling_std_%dh", w) }

// Config controls which lag horizons and rolling windows the engine
// derives, and whether the placeholder exogenous groups are attached.
type Config struct {
	LagHours           []int `yaml:"lagHours"`
	RollingWindowHours []int `yaml:"rollingWindowHours"`
	IncludeWeather     bool  `yaml:"includeWeather"`
	IncludeEvents      bool  `yaml:"includeEvents"`
}

// DefaultConfig returns the standard horizons: lags at 1h, 3h, 24h and
// one week, rolling windows at 3h, 6h and 12h.
func DefaultConfig() Config {
	return Config{
		LagHours:           []int{1, 3, 24, 168},
		RollingWindowHours: []int{3, 6, 12},
	}
}

// FeatureNames returns, in order, the model input columns this
// configuration produces. It is independent of any input data; trained
// models validate incoming frames against this list.
func (c Config) FeatureNames() []string {
	names := []string{
		ColHour, ColDayOfWeek, ColDayOfMonth, ColMonth,
		ColIsWeekend, ColIsMorningPeak, ColIsEveningPeak, ColIsPeakHour,
		ColHourSin, ColHourCos, ColDowSin, ColDowCos,
	}
	for _, h := range c.LagHours {
		names = append(names, LagCol(h))
	}
	for _, w := range c.RollingWindowHours {
		names = append(names, RollingMeanCol(w), RollingStdCol(w))
	}
	return append(names, ColRouteAvgDelay, ColRouteDelayStd)
}

// Engine derives features from raw events.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine, filling unset horizons from the defaults.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if len(cfg.LagHours) == 0 {
		cfg.LagHours = def.LagHours
	}
	if len(cfg.RollingWindowHours) == 0 {
		cfg.RollingWindowHours = def.RollingWindowHours
	}
	return &Engine{cfg: cfg}
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// CreateFeatures builds the feature frame for the given events.
//
// Rows are sorted ascending by timestamp (stable, ties keep input
// order). Events without timestamps skip the temporal group; events
// without route IDs skip the lag, rolling and route-aggregate groups.
// An empty input yields an empty frame.
func (e *Engine) CreateFeatures(events []transit.Event) (*Frame, error) {
	rows := make([]transit.Event, len(events))
	copy(rows, events)

	hasTimes := false
	for i := range rows {
		if !rows[i].Timestamp.IsZero() {
			hasTimes = true
			break
		}
	}
	if hasTimes {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Timestamp.Before(rows[j].Timestamp)
		})
	}

	f := NewFrame(len(rows))
	f.Routes = make([]string, len(rows))
	f.VehicleIDs = make([]string, len(rows))
	f.StopIDs = make([]string, len(rows))
	if hasTimes {
		f.Times = make([]time.Time, len(rows))
	}
	hasRoutes := false
	for i := range rows {
		f.Routes[i] = rows[i].RouteID
		f.VehicleIDs[i] = rows[i].VehicleID
		f.StopIDs[i] = rows[i].StopID
		if hasTimes {
			f.Times[i] = rows[i].Timestamp
		}
		if rows[i].RouteID != "" {
			hasRoutes = true
		}
	}

	if hasTimes {
		e.addTemporal(f, rows)
	}

	hasDelay := e.addDelayTarget(f, rows)

	if hasDelay && hasRoutes && hasTimes {
		groups := groupByRoute(rows)
		delays, _ := f.Column(ColDelayMinutes)
		e.addLagFeatures(f, rows, groups, delays)
		e.addRollingFeatures(f, rows, groups, delays)
		e.addRouteAggregates(f, groups, delays)
	}

	if e.cfg.IncludeWeather {
		addWeatherPlaceholders(f)
	}
	if e.cfg.IncludeEvents {
		addEventPlaceholders(f)
	}

	log.Debug().
		Int("rows", f.Len()).
		Int("columns", len(f.Columns())).
		Msg("feature frame built")

	return f, nil
}

func (e *Engine) addTemporal(f *Frame, rows []transit.Event) {
	n := len(rows)
	hour := make([]float64, n)
	dow := make([]float64, n)
	dom := make([]float64, n)
	month := make([]float64, n)
	weekend := make([]float64, n)
	mornPeak := make([]float64, n)
	evePeak := make([]float64, n)
	peak := make([]float64, n)
	hourSin := make([]float64, n)
	hourCos := make([]float64, n)
	dowSin := make([]float64, n)
	dowCos := make([]float64, n)

	for i := range rows {
		t := rows[i].Timestamp
		h := t.Hour()
		// Monday = 0, matching the trained-model convention.
		d := (int(t.Weekday()) + 6) % 7

		hour[i] = float64(h)
		dow[i] = float64(d)
		dom[i] = float64(t.Day())
		month[i] = float64(t.Month())
		weekend[i] = boolFeature(d == 5 || d == 6)
		morning := h >= 7 && h <= 9
		evening := h >= 16 && h <= 18
		mornPeak[i] = boolFeature(morning)
		evePeak[i] = boolFeature(evening)
		peak[i] = boolFeature(morning || evening)
		hourSin[i] = math.Sin(2 * math.Pi * float64(h) / 24)
		hourCos[i] = math.Cos(2 * math.Pi * float64(h) / 24)
		dowSin[i] = math.Sin(2 * math.Pi * float64(d) / 7)
		dowCos[i] = math.Cos(2 * math.Pi * float64(d) / 7)
	}

	f.AddColumn(ColHour, hour)
	f.AddColumn(ColDayOfWeek, dow)
	f.AddColumn(ColDayOfMonth, dom)
	f.AddColumn(ColMonth, month)
	f.AddColumn(ColIsWeekend, weekend)
	f.AddColumn(ColIsMorningPeak, mornPeak)
	f.AddColumn(ColIsEveningPeak, evePeak)
	f.AddColumn(ColIsPeakHour, peak)
	f.AddColumn(ColHourSin, hourSin)
	f.AddColumn(ColHourCos, hourCos)
	f.AddColumn(ColDowSin, dowSin)
	f.AddColumn(ColDowCos, dowCos)
}

// addDelayTarget derives delay_minutes. Reports false when no event
// carried either target source, in which case the column is absent.
func (e *Engine) addDelayTarget(f *Frame, rows []transit.Event) bool {
	any := false
	delays := make([]float64, len(rows))
	for i := range rows {
		if d, ok := rows[i].DelayMinutes(); ok {
			delays[i] = d
			any = true
		} else {
			delays[i] = math.NaN()
		}
	}
	if !any {
		return false
	}
	f.AddColumn(ColDelayMinutes, delays)
	return true
}

// routeGroup holds a route's row indices in frame (time-sorted) order.
type routeGroup struct {
	route string
	idx   []int
}

func groupByRoute(rows []transit.Event) []routeGroup {
	byRoute := make(map[string]*routeGroup)
	var order []string
	for i := range rows {
		r := rows[i].RouteID
		if r == "" {
			continue
		}
		g, ok := byRoute[r]
		if !ok {
			g = &routeGroup{route: r}
			byRoute[r] = g
			order = append(order, r)
		}
		g.idx = append(g.idx, i)
	}
	groups := make([]routeGroup, 0, len(order))
	for _, r := range order {
		groups = append(groups, *byRoute[r])
	}
	return groups
}

// addLagFeatures derives delay_lag_{H}h per route. The lag at time T is
// the delay of the route's most recent observation at or before T-H;
// NaN when no such observation exists. The offset is time-indexed, not
// positional, so irregular sampling cannot skew the horizon.
func (e *Engine) addLagFeatures(f *Frame, rows []transit.Event, groups []routeGroup, delays []float64) {
	n := len(rows)
	for _, h := range e.cfg.LagHours {
		col := nanColumn(n)
		horizon := time.Duration(h) * time.Hour
		for _, g := range groups {
			// Observed (non-NaN) delay history of this route only.
			var ts []time.Time
			var ds []float64
			for _, i := range g.idx {
				if !math.IsNaN(delays[i]) {
					ts = append(ts, rows[i].Timestamp)
					ds = append(ds, delays[i])
				}
			}
			for _, i := range g.idx {
				cutoff := rows[i].Timestamp.Add(-horizon)
				// Number of observations with timestamp <= cutoff.
				j := sort.Search(len(ts), func(k int) bool { return ts[k].After(cutoff) })
				if j > 0 {
					col[i] = ds[j-1]
				}
			}
		}
		f.AddColumn(LagCol(h), col)
	}
}

// addRollingFeatures derives per-route trailing-window mean and std of
// the delay. The window at time T covers observations in (T-W, T],
// minimum one observation. A window with a single observation has mean
// equal to that observation and unknown std.
func (e *Engine) addRollingFeatures(f *Frame, rows []transit.Event, groups []routeGroup, delays []float64) {
	n := len(rows)
	for _, w := range e.cfg.RollingWindowHours {
		meanCol := nanColumn(n)
		stdCol := nanColumn(n)
		window := time.Duration(w) * time.Hour
		for _, g := range groups {
			var ts []time.Time
			sums := []float64{0}
			sumsqs := []float64{0}
			for _, i := range g.idx {
				if math.IsNaN(delays[i]) {
					continue
				}
				ts = append(ts, rows[i].Timestamp)
				d := delays[i]
				sums = append(sums, sums[len(sums)-1]+d)
				sumsqs = append(sumsqs, sumsqs[len(sumsqs)-1]+d*d)
			}
			for _, i := range g.idx {
				end := rows[i].Timestamp
				start := end.Add(-window)
				// Observations with start < t <= end.
				lo := sort.Search(len(ts), func(k int) bool { return ts[k].After(start) })
				hi := sort.Search(len(ts), func(k int) bool { return ts[k].After(end) })
				count := hi - lo
				if count < 1 {
					continue
				}
				sum := sums[hi] - sums[lo]
				mean := sum / float64(count)
				meanCol[i] = mean
				if count >= 2 {
					sumsq := sumsqs[hi] - sumsqs[lo]
					variance := (sumsq - float64(count)*mean*mean) / float64(count-1)
					if variance < 0 {
						variance = 0
					}
					stdCol[i] = math.Sqrt(variance)
				}
			}
		}
		f.AddColumn(RollingMeanCol(w), meanCol)
		f.AddColumn(RollingStdCol(w), stdCol)
	}
}

// addRouteAggregates broadcasts each route's historical delay mean and
// std to its rows. Computed over the full provided history, not
// leave-one-out; for leak-free training the caller must not feed future
// rows into the history (known approximation, kept to match observed
// serving behavior).
func (e *Engine) addRouteAggregates(f *Frame, groups []routeGroup, delays []float64) {
	n := len(delays)
	avgCol := nanColumn(n)
	stdCol := nanColumn(n)
	for _, g := range groups {
		var sum, sumsq float64
		count := 0
		for _, i := range g.idx {
			if math.IsNaN(delays[i]) {
				continue
			}
			sum += delays[i]
			sumsq += delays[i] * delays[i]
			count++
		}
		if count == 0 {
			continue
		}
		mean := sum / float64(count)
		std := math.NaN()
		if count >= 2 {
			variance := (sumsq - float64(count)*mean*mean) / float64(count-1)
			if variance < 0 {
				variance = 0
			}
			std = math.Sqrt(variance)
		}
		for _, i := range g.idx {
			avgCol[i] = mean
			stdCol[i] = std
		}
	}
	f.AddColumn(ColRouteAvgDelay, avgCol)
	f.AddColumn(ColRouteDelayStd, stdCol)
}

// addWeatherPlaceholders attaches the weather stub columns. Values are
// unknown until a weather source is integrated; they are not model
// inputs.
func addWeatherPlaceholders(f *Frame) {
	n := f.Len()
	f.AddColumn(ColTemperature, nanColumn(n))
	f.AddColumn(ColPrecipitation, nanColumn(n))
	f.AddColumn(ColIsRainy, make([]float64, n))
	log.Warn().Msg("weather features are placeholders, no data source integrated")
}

// addEventPlaceholders attaches the special-event stub columns.
func addEventPlaceholders(f *Frame) {
	n := f.Len()
	f.AddColumn(ColIsHoliday, make([]float64, n))
	f.AddColumn(ColNearbyEvent, make([]float64, n))
	log.Warn().Msg("event features are placeholders, no calendar source integrated")
}

func nanColumn(n int) []float64 {
	col := make([]float64, n)
	for i := range col {
		col[i] = math.NaN()
	}
	return col
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
