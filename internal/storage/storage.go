// Package storage provides the persistent archive of raw transit events
// used to assemble training datasets. It uses BoltDB as the underlying
// engine, with one bucket per feed type and keys ordered for efficient
// per-route time-range scans.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"transit-predict/internal/transit"
)

const (
	vehicleEventsBucket = "vehicle_events" // vehicle position reports
	stopEventsBucket    = "stop_events"    // stop monitoring reports
)

// Store archives transit events in BoltDB. Keys are
// "routeID_unixnano", so a cursor seek covers one route's time range
// without touching other routes.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the event database under dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "transit-events.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(vehicleEventsBucket)); err != nil {
			return fmt.Errorf("create vehicle events bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(stopEventsBucket)); err != nil {
			return fmt.Errorf("create stop events bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. Safe to call more than once.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreVehicleEvent archives one vehicle position report.
func (s *Store) StoreVehicleEvent(e transit.Event) error {
	return s.storeEvent(vehicleEventsBucket, e)
}

// StoreStopEvent archives one stop monitoring report.
func (s *Store) StoreStopEvent(e transit.Event) error {
	return s.storeEvent(stopEventsBucket, e)
}

func (s *Store) storeEvent(bucket string, e transit.Event) error {
	if e.RouteID == "" {
		return fmt.Errorf("store event: missing route id")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))

		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}

		key := fmt.Sprintf("%s_%d", e.RouteID, e.Timestamp.UnixNano())
		return b.Put([]byte(key), data)
	})
}

// GetVehicleEvents returns the archived vehicle events for one route
// within the inclusive time range.
func (s *Store) GetVehicleEvents(routeID string, start, end time.Time) ([]transit.Event, error) {
	return s.getEventsInRange(vehicleEventsBucket, routeID, start, end)
}

// GetStopEvents returns the archived stop events for one route within
// the inclusive time range.
func (s *Store) GetStopEvents(routeID string, start, end time.Time) ([]transit.Event, error) {
	return s.getEventsInRange(stopEventsBucket, routeID, start, end)
}

func (s *Store) getEventsInRange(bucket, routeID string, start, end time.Time) ([]transit.Event, error) {
	var events []transit.Event

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		c := b.Cursor()

		prefix := []byte(routeID + "_")
		startKey := []byte(fmt.Sprintf("%s_%d", routeID, start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%s_%d", routeID, end.UnixNano()))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}

			var e transit.Event
			if err := json.Unmarshal(v, &e); err != nil {
				continue // Skip malformed records
			}
			events = append(events, e)
		}

		return nil
	})

	return events, err
}

// Routes returns the distinct route IDs present in either bucket.
func (s *Store) Routes() ([]string, error) {
	seen := make(map[string]struct{})
	var routes []string

	err := s.db.View(func(tx *bbolt.Tx) error {
		for _, bucket := range []string{vehicleEventsBucket, stopEventsBucket} {
			c := tx.Bucket([]byte(bucket)).Cursor()
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				i := bytes.LastIndexByte(k, '_')
				if i <= 0 {
					continue
				}
				r := string(k[:i])
				if _, ok := seen[r]; !ok {
					seen[r] = struct{}{}
					routes = append(routes, r)
				}
			}
		}
		return nil
	})

	return routes, err
}

// AllEvents returns every archived event in both buckets within the
// inclusive time range, for training dataset assembly. The feature
// engine re-sorts by timestamp, so cross-route ordering here does not
// matter.
func (s *Store) AllEvents(start, end time.Time) ([]transit.Event, error) {
	routes, err := s.Routes()
	if err != nil {
		return nil, err
	}
	var events []transit.Event
	for _, r := range routes {
		ve, err := s.GetVehicleEvents(r, start, end)
		if err != nil {
			return nil, err
		}
		events = append(events, ve...)
		se, err := s.GetStopEvents(r, start, end)
		if err != nil {
			return nil, err
		}
		events = append(events, se...)
	}
	return events, nil
}
