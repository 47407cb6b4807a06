// Package fetch pulls real-time transit telemetry from a 511-style SIRI
// JSON API and flattens it into transit events. It is a plain
// request/response producer of the event table; streaming ingestion is
// deliberately out of scope.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"transit-predict/internal/transit"
)

const DefaultBaseURL = "https://api.511.org/transit"

// Client fetches vehicle monitoring and stop monitoring deliveries.
type Client struct {
	key, base, agency string
	rest              *resty.Client
}

// NewClient creates an API client for the given agency.
func NewClient(key, base, agency string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(30 * time.Second) // default fallback
	}
	// The 511 API serves JSON with a BOM and a generic content type.
	r.SetHeader("Accept", "application/json")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{key, base, agency, r}
}

// SIRI JSON envelope, reduced to the fields this system consumes.
type siriEnvelope struct {
	Siri struct {
		ServiceDelivery struct {
			VehicleMonitoringDelivery []struct {
				VehicleActivity []vehicleActivity `json:"VehicleActivity"`
			} `json:"VehicleMonitoringDelivery"`
			StopMonitoringDelivery []struct {
				MonitoredStopVisit []stopVisit `json:"MonitoredStopVisit"`
			} `json:"StopMonitoringDelivery"`
		} `json:"ServiceDelivery"`
	} `json:"Siri"`
}

type vehicleActivity struct {
	RecordedAtTime string           `json:"RecordedAtTime"`
	Journey        monitoredJourney `json:"MonitoredVehicleJourney"`
}

type stopVisit struct {
	RecordedAtTime string           `json:"RecordedAtTime"`
	MonitoringRef  string           `json:"MonitoringRef"`
	Journey        monitoredJourney `json:"MonitoredVehicleJourney"`
}

type monitoredJourney struct {
	LineRef         string   `json:"LineRef"`
	VehicleRef      string   `json:"VehicleRef"`
	Bearing         float64  `json:"Bearing"`
	Delay           *float64 `json:"Delay"` // signed seconds, positive = late
	Occupancy       string   `json:"Occupancy"`
	VehicleLocation struct {
		Latitude  float64 `json:"Latitude"`
		Longitude float64 `json:"Longitude"`
	} `json:"VehicleLocation"`
	MonitoredCall struct {
		StopPointRef        string `json:"StopPointRef"`
		AimedArrivalTime    string `json:"AimedArrivalTime"`
		ExpectedArrivalTime string `json:"ExpectedArrivalTime"`
	} `json:"MonitoredCall"`
}

// VehiclePositions fetches the current vehicle monitoring delivery for
// the client's agency.
func (c *Client) VehiclePositions(ctx context.Context) ([]transit.Event, error) {
	env := &siriEnvelope{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"api_key": c.key,
			"agency":  c.agency,
			"format":  "json",
		}).
		SetResult(env).
		ForceContentType("application/json").
		Get(c.base + "/VehicleMonitoring")
	if err != nil {
		return nil, fmt.Errorf("fetch vehicle positions: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch vehicle positions: %s", resp.Status())
	}

	var events []transit.Event
	for _, delivery := range env.Siri.ServiceDelivery.VehicleMonitoringDelivery {
		for _, act := range delivery.VehicleActivity {
			e := journeyEvent(act.Journey, act.RecordedAtTime)
			events = append(events, e)
		}
	}

	log.Info().Int("count", len(events)).Str("agency", c.agency).Msg("fetched vehicle positions")
	return events, nil
}

// StopMonitoring fetches upcoming-arrival predictions for one stop.
// routeFilter, when non-empty, keeps only that route's visits.
func (c *Client) StopMonitoring(ctx context.Context, stopID, routeFilter string) ([]transit.Event, error) {
	env := &siriEnvelope{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"api_key":  c.key,
			"agency":   c.agency,
			"stopCode": stopID,
			"format":   "json",
		}).
		SetResult(env).
		ForceContentType("application/json").
		Get(c.base + "/StopMonitoring")
	if err != nil {
		return nil, fmt.Errorf("fetch stop monitoring: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch stop monitoring: %s", resp.Status())
	}

	var events []transit.Event
	for _, delivery := range env.Siri.ServiceDelivery.StopMonitoringDelivery {
		for _, visit := range delivery.MonitoredStopVisit {
			if routeFilter != "" && visit.Journey.LineRef != routeFilter {
				continue
			}
			e := journeyEvent(visit.Journey, visit.RecordedAtTime)
			if e.StopID == "" {
				e.StopID = visit.MonitoringRef
			}
			events = append(events, e)
		}
	}

	log.Info().Int("count", len(events)).Str("stop_id", stopID).Msg("fetched stop monitoring")
	return events, nil
}

// journeyEvent flattens one monitored journey into an Event.
func journeyEvent(j monitoredJourney, recordedAt string) transit.Event {
	e := transit.Event{
		VehicleID: j.VehicleRef,
		RouteID:   j.LineRef,
		StopID:    j.MonitoredCall.StopPointRef,
		Timestamp: parseTime(recordedAt),
		Occupancy: transit.ParseOccupancy(j.Occupancy),
		Latitude:  j.VehicleLocation.Latitude,
		Longitude: j.VehicleLocation.Longitude,
		Bearing:   j.Bearing,
	}
	if j.Delay != nil {
		d := *j.Delay
		e.ScheduleDeviationSecs = &d
	}
	if t := parseTime(j.MonitoredCall.AimedArrivalTime); !t.IsZero() {
		e.AimedArrival = &t
	}
	if t := parseTime(j.MonitoredCall.ExpectedArrivalTime); !t.IsZero() {
		e.ExpectedArrival = &t
	}
	return e
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
