package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.etcd.io/bbolt"
)

const predictionsBucket = "predictions"

// PredictionRecord is one served forecast, kept for later accuracy
// analysis against the delays that actually materialized.
type PredictionRecord struct {
	RouteID               string    `json:"route_id"`
	StopID                string    `json:"stop_id,omitempty"`
	Timestamp             time.Time `json:"timestamp"`
	PredictedDelayMinutes float64   `json:"predicted_delay_minutes"`
	ConfidenceStd         float64   `json:"confidence_std"`
	ModelKind             string    `json:"model_kind"`
}

// StorePrediction archives a served forecast.
func (s *Store) StorePrediction(record PredictionRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket))
		if err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal prediction record: %w", err)
		}

		key := fmt.Sprintf("%s_%d", record.RouteID, record.Timestamp.UnixNano())
		return b.Put([]byte(key), data)
	})
}

// GetPredictionsInRange returns the archived forecasts for one route
// within a time range.
func (s *Store) GetPredictionsInRange(routeID string, start, end time.Time) ([]PredictionRecord, error) {
	var records []PredictionRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(predictionsBucket))
		if b == nil {
			return nil
		}

		c := b.Cursor()
		prefix := []byte(routeID + "_")

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec PredictionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}

			if rec.Timestamp.After(start) && rec.Timestamp.Before(end) {
				records = append(records, rec)
			}
		}
		return nil
	})

	return records, err
}

// ExportEventsCSV writes every archived event in the time range to a
// CSV file for offline analysis. Missing delay sources leave the
// delay column empty rather than zero.
func (s *Store) ExportEventsCSV(filename string, start, end time.Time) error {
	events, err := s.AllEvents(start, end)
	if err != nil {
		return err
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("export events: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"vehicle_id", "route_id", "stop_id", "timestamp", "delay_minutes", "occupancy"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("export events: %w", err)
	}
	for _, e := range events {
		delay := ""
		if d, ok := e.DelayMinutes(); ok {
			delay = strconv.FormatFloat(d, 'f', -1, 64)
		}
		row := []string{
			e.VehicleID,
			e.RouteID,
			e.StopID,
			e.Timestamp.Format(time.RFC3339),
			delay,
			e.Occupancy.String(),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("export events: %w", err)
		}
	}
	return w.Error()
}
