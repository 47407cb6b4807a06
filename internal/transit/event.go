// Package transit defines the raw telemetry types shared by the fetcher,
// the event store and the feature engine. An Event is one observation of
// a vehicle or an upcoming stop visit: where it was, when, and how far
// off schedule it was running.
package transit

import (
	"strings"
	"time"
)

// Occupancy is the ordinal crowding level reported by the SIRI feed.
type Occupancy int

const (
	OccupancyUnknown Occupancy = iota
	OccupancyEmpty
	OccupancyManySeats
	OccupancyFewSeats
	OccupancyStandingRoom
	OccupancyFull
)

// ParseOccupancy maps the SIRI occupancy strings to their ordinal level.
// Unrecognized values map to OccupancyUnknown.
func ParseOccupancy(s string) Occupancy {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EMPTY":
		return OccupancyEmpty
	case "MANY_SEATS_AVAILABLE", "MANYSEATSAVAILABLE":
		return OccupancyManySeats
	case "FEW_SEATS_AVAILABLE", "FEWSEATSAVAILABLE", "SEATSAVAILABLE":
		return OccupancyFewSeats
	case "STANDING_ROOM_ONLY", "STANDINGAVAILABLE":
		return OccupancyStandingRoom
	case "FULL":
		return OccupancyFull
	}
	return OccupancyUnknown
}

func (o Occupancy) String() string {
	switch o {
	case OccupancyEmpty:
		return "EMPTY"
	case OccupancyManySeats:
		return "MANY_SEATS_AVAILABLE"
	case OccupancyFewSeats:
		return "FEW_SEATS_AVAILABLE"
	case OccupancyStandingRoom:
		return "STANDING_ROOM_ONLY"
	case OccupancyFull:
		return "FULL"
	}
	return "UNKNOWN"
}

// Event is one raw observation from the transit feed. Vehicle position
// reports carry ScheduleDeviationSecs; stop monitoring reports carry the
// aimed/expected arrival pair instead. Either source yields the delay
// target, see DelayMinutes.
type Event struct {
	VehicleID string    `json:"vehicle_id"`
	RouteID   string    `json:"route_id"`
	StopID    string    `json:"stop_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// ScheduleDeviationSecs is the signed deviation from schedule in
	// seconds, positive when running late. Nil when the report carried
	// no deviation.
	ScheduleDeviationSecs *float64 `json:"schedule_deviation_seconds,omitempty"`

	AimedArrival    *time.Time `json:"aimed_arrival,omitempty"`
	ExpectedArrival *time.Time `json:"expected_arrival,omitempty"`

	Occupancy Occupancy `json:"occupancy,omitempty"`
	Latitude  float64   `json:"latitude,omitempty"`
	Longitude float64   `json:"longitude,omitempty"`
	Bearing   float64   `json:"bearing,omitempty"`
}

// DelayMinutes extracts the delay target in minutes. The direct schedule
// deviation takes precedence over the aimed/expected pair when both are
// present. The second return is false when neither source is available.
func (e *Event) DelayMinutes() (float64, bool) {
	if e.ScheduleDeviationSecs != nil {
		return *e.ScheduleDeviationSecs / 60.0, true
	}
	if e.AimedArrival != nil && e.ExpectedArrival != nil {
		return e.ExpectedArrival.Sub(*e.AimedArrival).Seconds() / 60.0, true
	}
	return 0, false
}
