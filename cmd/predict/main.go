package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"transit-predict/internal/features"
	"transit-predict/internal/mockdata"
	"transit-predict/internal/model"
	"transit-predict/internal/storage"
	"transit-predict/internal/transit"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Parse command line arguments
	var (
		dataPath  = flag.String("data", "", "Path to the event archive directory")
		modelPath = flag.String("model", "delay_model.gob", "Path to the trained model artifact")
		hours     = flag.Int("hours", 24, "Predict over events from the last N hours")
		route     = flag.String("route", "", "Only predict for this route")
		mockRows  = flag.Int("mock", 0, "Predict on N synthetic events instead of archived data")
		archive   = flag.Bool("archive", false, "Store forecasts back into the event archive")
		logLevel  = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	// Setup logging
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	predictor, err := model.Load(*modelPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *modelPath).Msg("Failed to load model")
	}

	end := time.Now()
	start := end.Add(-time.Duration(*hours) * time.Hour)

	var store *storage.Store
	var events []transit.Event
	if *mockRows > 0 {
		log.Info().Int("rows", *mockRows).Msg("Generating synthetic events")
		events = mockdata.VehicleEvents(*mockRows, end, end.Sub(start), time.Now().UnixNano())
	} else {
		if *dataPath == "" {
			log.Fatal().Msg("Either -data or -mock is required")
		}
		store, err = storage.New(*dataPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open event archive")
		}
		defer store.Close()
		events, err = store.AllEvents(start, end)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load events")
		}
	}
	if *route != "" {
		events = filterRoute(events, *route)
	}
	if len(events) == 0 {
		log.Fatal().Msg("No events in the selected range")
	}

	engine := features.NewEngine(features.DefaultConfig())
	frame, err := engine.CreateFeatures(events)
	if err != nil {
		log.Fatal().Err(err).Msg("Feature engineering failed")
	}

	X, missing := frame.SelectColumns(predictor.FeatureNames())
	if len(missing) > 0 {
		log.Fatal().Strs("missing", missing).Msg("Events do not yield the model's features")
	}

	preds, stds, err := predictor.PredictWithConfidence(X)
	if err != nil {
		log.Fatal().Err(err).Msg("Prediction failed")
	}

	fmt.Printf("%-8s %-8s %-20s %10s %10s\n", "route", "stop", "time", "delay_min", "+/-")
	for i := range preds {
		fmt.Printf("%-8s %-8s %-20s %10.2f %10.2f\n",
			X.Routes[i], X.StopIDs[i], X.Times[i].Format("2006-01-02 15:04:05"), preds[i], stds[i])
	}

	if *archive && store != nil {
		archived := 0
		for i := range preds {
			rec := storage.PredictionRecord{
				RouteID:               X.Routes[i],
				StopID:                X.StopIDs[i],
				Timestamp:             X.Times[i],
				PredictedDelayMinutes: preds[i],
				ConfidenceStd:         stds[i],
				ModelKind:             string(predictor.Kind()),
			}
			if err := store.StorePrediction(rec); err != nil {
				log.Warn().Err(err).Msg("Failed to archive forecast")
				continue
			}
			archived++
		}
		log.Info().Int("count", archived).Msg("Forecasts archived")
	}
}

func filterRoute(events []transit.Event, route string) []transit.Event {
	out := events[:0]
	for _, e := range events {
		if e.RouteID == route {
			out = append(out, e)
		}
	}
	return out
}
