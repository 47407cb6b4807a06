package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"transit-predict/internal/transit"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func vehicleEvent(route string, ts time.Time, deviationSecs float64) transit.Event {
	return transit.Event{
		VehicleID:             route + "-0001",
		RouteID:               route,
		Timestamp:             ts,
		ScheduleDeviationSecs: &deviationSecs,
		Latitude:              37.75,
		Longitude:             -122.45,
	}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(filepath.Join(dir, "transit-events.db")); err != nil {
		t.Errorf("expected database file to exist: %v", err)
	}
}

func TestNew_InvalidPath(t *testing.T) {
	_, err := New("/nonexistent/path/that/should/not/exist")
	if err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestStore_Close(t *testing.T) {
	store := newTestStore(t)
	if err := store.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestStore_CloseNilDB(t *testing.T) {
	s := &Store{}
	if err := s.Close(); err != nil {
		t.Errorf("Close on zero Store failed: %v", err)
	}
}

func TestStoreVehicleEvent(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	if err := store.StoreVehicleEvent(vehicleEvent("14", now, 180)); err != nil {
		t.Fatalf("StoreVehicleEvent failed: %v", err)
	}

	events, err := store.GetVehicleEvents("14", now.Add(-time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("GetVehicleEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.RouteID != "14" {
		t.Errorf("expected route 14, got %s", e.RouteID)
	}
	if e.ScheduleDeviationSecs == nil || *e.ScheduleDeviationSecs != 180 {
		t.Errorf("schedule deviation not preserved: %v", e.ScheduleDeviationSecs)
	}
	if !e.Timestamp.Equal(now) {
		t.Errorf("timestamp not preserved: want %v, got %v", now, e.Timestamp)
	}
}

func TestStoreEvent_MissingRoute(t *testing.T) {
	store := newTestStore(t)

	err := store.StoreVehicleEvent(transit.Event{VehicleID: "x", Timestamp: time.Now()})
	if err == nil {
		t.Error("expected error for event without route id")
	}
}

func TestStoreStopEvent(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)
	aimed := now.Add(5 * time.Minute)
	expected := aimed.Add(2 * time.Minute)

	e := transit.Event{
		VehicleID:       "N-0002",
		RouteID:         "N",
		StopID:          "15726",
		Timestamp:       now,
		AimedArrival:    &aimed,
		ExpectedArrival: &expected,
	}
	if err := store.StoreStopEvent(e); err != nil {
		t.Fatalf("StoreStopEvent failed: %v", err)
	}

	events, err := store.GetStopEvents("N", now.Add(-time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("GetStopEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	got := events[0]
	if got.StopID != "15726" {
		t.Errorf("expected stop 15726, got %s", got.StopID)
	}
	if got.AimedArrival == nil || !got.AimedArrival.Equal(aimed) {
		t.Errorf("aimed arrival not preserved: %v", got.AimedArrival)
	}
	if d, ok := got.DelayMinutes(); !ok || d != 2.0 {
		t.Errorf("expected 2.0 delay minutes from arrival pair, got %v (ok=%v)", d, ok)
	}
}

func TestGetVehicleEvents_TimeRange(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		e := vehicleEvent("38", base.Add(time.Duration(i)*time.Hour), float64(60*i))
		if err := store.StoreVehicleEvent(e); err != nil {
			t.Fatalf("StoreVehicleEvent failed: %v", err)
		}
	}

	// Only hours 1..3 fall in the range.
	events, err := store.GetVehicleEvents("38", base.Add(time.Hour), base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("GetVehicleEvents failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events in range, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Error("expected events in ascending timestamp order")
		}
	}
}

func TestGetVehicleEvents_RouteIsolation(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	// Route "1" is a prefix of route "14"; scans must not bleed across.
	if err := store.StoreVehicleEvent(vehicleEvent("1", now, 60)); err != nil {
		t.Fatal(err)
	}
	if err := store.StoreVehicleEvent(vehicleEvent("14", now, 120)); err != nil {
		t.Fatal(err)
	}

	events, err := store.GetVehicleEvents("1", now.Add(-time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("GetVehicleEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event for route 1, got %d", len(events))
	}
	if events[0].RouteID != "1" {
		t.Errorf("expected route 1, got %s", events[0].RouteID)
	}
}

func TestGetVehicleEvents_EmptyResult(t *testing.T) {
	store := newTestStore(t)

	events, err := store.GetVehicleEvents("99", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("GetVehicleEvents failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
}

func TestRoutes(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	for _, r := range []string{"14", "38", "N"} {
		if err := store.StoreVehicleEvent(vehicleEvent(r, now, 0)); err != nil {
			t.Fatal(err)
		}
	}
	aimed := now.Add(time.Minute)
	expected := aimed
	stopEvent := transit.Event{
		RouteID: "K", Timestamp: now, StopID: "123",
		AimedArrival: &aimed, ExpectedArrival: &expected,
	}
	if err := store.StoreStopEvent(stopEvent); err != nil {
		t.Fatal(err)
	}

	routes, err := store.Routes()
	if err != nil {
		t.Fatalf("Routes failed: %v", err)
	}
	want := map[string]bool{"14": true, "38": true, "N": true, "K": true}
	if len(routes) != len(want) {
		t.Fatalf("expected %d routes, got %v", len(want), routes)
	}
	for _, r := range routes {
		if !want[r] {
			t.Errorf("unexpected route %s", r)
		}
	}
}

func TestAllEvents(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	for i, r := range []string{"14", "38"} {
		if err := store.StoreVehicleEvent(vehicleEvent(r, now.Add(time.Duration(i)*time.Minute), 60)); err != nil {
			t.Fatal(err)
		}
	}
	aimed := now.Add(10 * time.Minute)
	expected := aimed.Add(time.Minute)
	if err := store.StoreStopEvent(transit.Event{
		RouteID: "14", Timestamp: now.Add(2 * time.Minute), StopID: "42",
		AimedArrival: &aimed, ExpectedArrival: &expected,
	}); err != nil {
		t.Fatal(err)
	}

	events, err := store.AllEvents(now.Add(-time.Minute), now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("AllEvents failed: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("expected 3 events from both buckets, got %d", len(events))
	}
}

func TestStorePrediction(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	rec := PredictionRecord{
		RouteID:               "38",
		StopID:                "13567",
		Timestamp:             now,
		PredictedDelayMinutes: 4.2,
		ConfidenceStd:         1.1,
		ModelKind:             "random_forest",
	}
	if err := store.StorePrediction(rec); err != nil {
		t.Fatalf("StorePrediction failed: %v", err)
	}

	records, err := store.GetPredictionsInRange("38", now.Add(-time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("GetPredictionsInRange failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.PredictedDelayMinutes != 4.2 || got.ConfidenceStd != 1.1 {
		t.Errorf("prediction values not preserved: %+v", got)
	}
	if got.ModelKind != "random_forest" {
		t.Errorf("expected model kind random_forest, got %s", got.ModelKind)
	}
}

func TestGetPredictionsInRange_NoBucket(t *testing.T) {
	store := newTestStore(t)

	records, err := store.GetPredictionsInRange("14", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("GetPredictionsInRange failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestExportEventsCSV(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	if err := store.StoreVehicleEvent(vehicleEvent("14", now, 180)); err != nil {
		t.Fatal(err)
	}
	// An event with no delay source leaves the delay cell empty.
	if err := store.StoreVehicleEvent(transit.Event{
		VehicleID: "14-0002", RouteID: "14", Timestamp: now.Add(time.Minute),
	}); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "events.csv")
	if err := store.ExportEventsCSV(out, now.Add(-time.Minute), now.Add(2*time.Minute)); err != nil {
		t.Fatalf("ExportEventsCSV failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "vehicle_id" || rows[0][4] != "delay_minutes" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][4] != "3" {
		t.Errorf("expected delay cell 3, got %q", rows[1][4])
	}
	if rows[2][4] != "" {
		t.Errorf("expected empty delay cell for unknown delay, got %q", rows[2][4])
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func(i int) {
			e := vehicleEvent("N", now.Add(time.Duration(i)*time.Second), float64(i))
			done <- store.StoreVehicleEvent(e)
		}(i)
	}
	for i := 0; i < 10; i++ {
		if err := <-done; err != nil {
			t.Errorf("concurrent store failed: %v", err)
		}
	}

	events, err := store.GetVehicleEvents("N", now.Add(-time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("GetVehicleEvents failed: %v", err)
	}
	if len(events) != 10 {
		t.Errorf("expected 10 events, got %d", len(events))
	}
}

func BenchmarkStoreVehicleEvent(b *testing.B) {
	store, err := New(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()

	now := time.Now().UTC()
	deviation := 120.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e := transit.Event{
			VehicleID:             "14-0001",
			RouteID:               "14",
			Timestamp:             now.Add(time.Duration(i) * time.Millisecond),
			ScheduleDeviationSecs: &deviation,
		}
		if err := store.StoreVehicleEvent(e); err != nil {
			b.Fatal(err)
		}
	}
}
