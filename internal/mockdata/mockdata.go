// Package mockdata generates deterministic synthetic transit events for
// development and tests, shaped like the 511 SIRI feed for San Francisco
// Muni.
package mockdata

import (
	"fmt"
	"math/rand"
	"time"

	"transit-predict/internal/transit"
)

var routes = []string{"1", "5", "14", "22", "38", "N", "K", "L", "M", "T"}

var occupancies = []transit.Occupancy{
	transit.OccupancyEmpty,
	transit.OccupancyManySeats,
	transit.OccupancyFewSeats,
	transit.OccupancyStandingRoom,
	transit.OccupancyFull,
}

// VehicleEvents produces n vehicle position reports spread uniformly over
// the span ending at end. Every event carries a schedule deviation.
func VehicleEvents(n int, end time.Time, span time.Duration, seed int64) []transit.Event {
	rng := rand.New(rand.NewSource(seed))
	start := end.Add(-span)
	events := make([]transit.Event, 0, n)
	for i := 0; i < n; i++ {
		route := routes[rng.Intn(len(routes))]
		deviation := float64(rng.Intn(721) - 120) // -120..600 seconds
		ts := start.Add(time.Duration(rng.Int63n(int64(span))))
		events = append(events, transit.Event{
			VehicleID:             fmt.Sprintf("%s-%04d", route, rng.Intn(100)),
			RouteID:               route,
			Timestamp:             ts,
			ScheduleDeviationSecs: &deviation,
			Occupancy:             occupancies[rng.Intn(len(occupancies))],
			Latitude:              37.7 + rng.Float64()*0.1,
			Longitude:             -122.5 + rng.Float64()*0.1,
			Bearing:               rng.Float64() * 360,
		})
	}
	return events
}

// StopEvents produces n stop monitoring reports with aimed/expected
// arrival pairs and no direct deviation.
func StopEvents(n int, end time.Time, span time.Duration, seed int64) []transit.Event {
	rng := rand.New(rand.NewSource(seed))
	start := end.Add(-span)
	events := make([]transit.Event, 0, n)
	for i := 0; i < n; i++ {
		route := routes[rng.Intn(len(routes))]
		ts := start.Add(time.Duration(rng.Int63n(int64(span))))
		aimed := ts.Add(time.Duration(1+rng.Intn(15)) * time.Minute)
		expected := aimed.Add(time.Duration(rng.Intn(601)-60) * time.Second)
		events = append(events, transit.Event{
			VehicleID:       fmt.Sprintf("%s-%04d", route, rng.Intn(100)),
			RouteID:         route,
			StopID:          fmt.Sprintf("1%04d", rng.Intn(6000)),
			Timestamp:       ts,
			AimedArrival:    &aimed,
			ExpectedArrival: &expected,
		})
	}
	return events
}

// HourlySeries produces one observation per hour on a single route,
// oldest first, with a mild daily delay cycle plus noise. Handy for
// exercising lag and rolling window features end to end.
func HourlySeries(route string, n int, start time.Time, seed int64) []transit.Event {
	rng := rand.New(rand.NewSource(seed))
	events := make([]transit.Event, 0, n)
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		base := 2.0
		h := ts.Hour()
		if (h >= 7 && h <= 9) || (h >= 16 && h <= 18) {
			base = 5.0
		}
		deviation := (base + rng.NormFloat64()) * 60
		events = append(events, transit.Event{
			VehicleID:             fmt.Sprintf("%s-%04d", route, i%8),
			RouteID:               route,
			Timestamp:             ts,
			ScheduleDeviationSecs: &deviation,
			Occupancy:             occupancies[rng.Intn(len(occupancies))],
			Latitude:              37.75,
			Longitude:             -122.45,
		})
	}
	return events
}
