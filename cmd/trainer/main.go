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
		modelPath = flag.String("model", "delay_model.gob", "Output path for the trained model")
		kind      = flag.String("kind", "random_forest", "Model kind: random_forest, gradient_boosting, linear")
		mockRows  = flag.Int("mock", 0, "Train on N synthetic events instead of archived data")
		seed      = flag.Int64("seed", 42, "Random seed for ensemble resampling")
		startDate = flag.String("start", "", "Start date (YYYY-MM-DD)")
		endDate   = flag.String("end", "", "End date (YYYY-MM-DD)")
		exportCSV = flag.String("export", "", "Also export the training events to this CSV file")
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

	startTime, endTime := parseDates(*startDate, *endDate)

	events, err := loadEvents(*dataPath, *mockRows, *seed, startTime, endTime, *exportCSV)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load training events")
	}
	if len(events) == 0 {
		log.Fatal().Msg("No training events in the selected range")
	}

	fmt.Println("=== Training Configuration ===")
	fmt.Printf("Model Kind:  %s\n", *kind)
	fmt.Printf("Model Path:  %s\n", *modelPath)
	fmt.Printf("Events:      %d\n", len(events))
	fmt.Printf("Range:       %s .. %s\n", startTime.Format("2006-01-02"), endTime.Format("2006-01-02"))
	fmt.Println("==============================")

	engine := features.NewEngine(features.DefaultConfig())
	frame, err := engine.CreateFeatures(events)
	if err != nil {
		log.Fatal().Err(err).Msg("Feature engineering failed")
	}

	y, kept := frame.Target()
	if len(y) == 0 {
		log.Fatal().Msg("No rows with a delay target; cannot train")
	}
	train := frame.SelectRows(kept)

	X, missing := train.SelectColumns(engine.Config().FeatureNames())
	if len(missing) > 0 {
		log.Fatal().Strs("missing", missing).Msg("Feature frame is missing expected columns")
	}

	predictor, err := model.New(model.Kind(*kind), model.WithSeed(*seed))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid model kind")
	}

	m, err := predictor.Train(X, y, 0.2)
	if err != nil {
		log.Fatal().Err(err).Msg("Training failed")
	}

	printReport(m, predictor)

	if err := predictor.Save(*modelPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to save model")
	}
	log.Info().Str("path", *modelPath).Msg("Model saved")
}

// loadEvents reads training events from the archive, or generates a
// synthetic set when -mock is given.
func loadEvents(dataPath string, mockRows int, seed int64, start, end time.Time, exportCSV string) ([]transit.Event, error) {
	if mockRows > 0 {
		log.Info().Int("rows", mockRows).Msg("Generating synthetic training events")
		return mockdata.VehicleEvents(mockRows, end, end.Sub(start), seed), nil
	}

	if dataPath == "" {
		return nil, fmt.Errorf("either -data or -mock is required")
	}
	store, err := storage.New(dataPath)
	if err != nil {
		return nil, fmt.Errorf("open event archive: %w", err)
	}
	defer store.Close()

	if exportCSV != "" {
		if err := store.ExportEventsCSV(exportCSV, start, end); err != nil {
			log.Warn().Err(err).Msg("CSV export failed")
		}
	}

	return store.AllEvents(start, end)
}

func parseDates(startDate, endDate string) (time.Time, time.Time) {
	start := time.Now().AddDate(0, -1, 0) // Default: 1 month ago
	end := time.Now()

	var err error
	if startDate != "" {
		start, err = time.Parse("2006-01-02", startDate)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid start date format")
		}
	}
	if endDate != "" {
		end, err = time.Parse("2006-01-02", endDate)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid end date format")
		}
	}
	return start, end
}

func printReport(m model.Metrics, predictor *model.Predictor) {
	fmt.Println("=== Training Results ===")
	fmt.Printf("MAE:          %.3f min\n", m.MAE)
	fmt.Printf("RMSE:         %.3f min\n", m.RMSE)
	fmt.Printf("R2:           %.3f\n", m.R2)
	fmt.Printf("CV MAE:       %.3f +/- %.3f min\n", m.CVMAEMean, m.CVMAEStd)

	importances, err := predictor.FeatureImportance()
	if err != nil {
		log.Warn().Err(err).Msg("feature importance unavailable")
		return
	}
	if len(importances) == 0 {
		return
	}
	fmt.Println("Top features:")
	limit := 10
	if len(importances) < limit {
		limit = len(importances)
	}
	for _, imp := range importances[:limit] {
		fmt.Printf("  %-26s %.4f\n", imp.Feature, imp.Score)
	}
	fmt.Println("========================")
}
