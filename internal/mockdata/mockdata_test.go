package mockdata

import (
	"testing"
	"time"
)

func TestVehicleEvents(t *testing.T) {
	end := time.Date(2024, 3, 12, 12, 0, 0, 0, time.UTC)
	events := VehicleEvents(200, end, 24*time.Hour, 1)
	if len(events) != 200 {
		t.Fatalf("expected 200 events, got %d", len(events))
	}
	start := end.Add(-24 * time.Hour)
	for i, e := range events {
		if e.RouteID == "" || e.VehicleID == "" {
			t.Fatalf("event %d missing identifiers: %+v", i, e)
		}
		if e.Timestamp.Before(start) || e.Timestamp.After(end) {
			t.Errorf("event %d timestamp %v outside span", i, e.Timestamp)
		}
		if e.ScheduleDeviationSecs == nil {
			t.Fatalf("event %d missing deviation", i)
		}
		if d := *e.ScheduleDeviationSecs; d < -120 || d > 600 {
			t.Errorf("event %d deviation %v out of range", i, d)
		}
		if e.Latitude < 37.7 || e.Latitude > 37.8 || e.Longitude < -122.5 || e.Longitude > -122.4 {
			t.Errorf("event %d located outside the city: %v, %v", i, e.Latitude, e.Longitude)
		}
	}
}

func TestVehicleEvents_Deterministic(t *testing.T) {
	end := time.Date(2024, 3, 12, 12, 0, 0, 0, time.UTC)
	a := VehicleEvents(50, end, time.Hour, 7)
	b := VehicleEvents(50, end, time.Hour, 7)
	for i := range a {
		if a[i].VehicleID != b[i].VehicleID || !a[i].Timestamp.Equal(b[i].Timestamp) ||
			*a[i].ScheduleDeviationSecs != *b[i].ScheduleDeviationSecs {
			t.Fatalf("event %d differs between runs with the same seed", i)
		}
	}
	c := VehicleEvents(50, end, time.Hour, 8)
	same := true
	for i := range a {
		if a[i].VehicleID != c[i].VehicleID || !a[i].Timestamp.Equal(c[i].Timestamp) {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical events")
	}
}

func TestStopEvents(t *testing.T) {
	end := time.Date(2024, 3, 12, 12, 0, 0, 0, time.UTC)
	events := StopEvents(100, end, 6*time.Hour, 3)
	if len(events) != 100 {
		t.Fatalf("expected 100 events, got %d", len(events))
	}
	for i, e := range events {
		if e.ScheduleDeviationSecs != nil {
			t.Fatalf("event %d should not carry a direct deviation", i)
		}
		if e.AimedArrival == nil || e.ExpectedArrival == nil {
			t.Fatalf("event %d missing arrival pair", i)
		}
		if e.StopID == "" {
			t.Fatalf("event %d missing stop", i)
		}
		if e.AimedArrival.Before(e.Timestamp) {
			t.Errorf("event %d aimed arrival precedes the report", i)
		}
		d, ok := e.DelayMinutes()
		if !ok {
			t.Fatalf("event %d delay should derive from arrival pair", i)
		}
		if d < -1 || d > 9 {
			t.Errorf("event %d delay %v out of range", i, d)
		}
	}
}

func TestHourlySeries(t *testing.T) {
	start := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	events := HourlySeries("14", 48, start, 5)
	if len(events) != 48 {
		t.Fatalf("expected 48 events, got %d", len(events))
	}
	for i, e := range events {
		if e.RouteID != "14" {
			t.Fatalf("event %d route = %q", i, e.RouteID)
		}
		want := start.Add(time.Duration(i) * time.Hour)
		if !e.Timestamp.Equal(want) {
			t.Errorf("event %d timestamp %v, want %v", i, e.Timestamp, want)
		}
		if e.ScheduleDeviationSecs == nil {
			t.Fatalf("event %d missing deviation", i)
		}
	}

	// Peak hours run later on average.
	var peakSum, offSum float64
	var peakN, offN int
	for _, e := range events {
		h := e.Timestamp.Hour()
		d := *e.ScheduleDeviationSecs
		if (h >= 7 && h <= 9) || (h >= 16 && h <= 18) {
			peakSum += d
			peakN++
		} else {
			offSum += d
			offN++
		}
	}
	if peakSum/float64(peakN) <= offSum/float64(offN) {
		t.Error("expected peak hour delays to exceed off peak on average")
	}
}
