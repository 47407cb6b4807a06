package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"transit-predict/internal/cfg"
	"transit-predict/internal/fetch"
	"transit-predict/internal/metrics"
	"transit-predict/internal/storage"
	"transit-predict/internal/transit"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	store := initializeStorage(c)
	if store == nil {
		log.Fatal().Msg("DATA_PATH is required for the collector")
	}
	defer store.Close()

	startMetricsServer(ctx, c)

	client := fetch.NewClient(c.APIKey, c.BaseURL, c.Agency, c.RESTTimeout)

	var wg sync.WaitGroup
	startCollectionLoop(ctx, &wg, c, client, store, m)

	waitForShutdown(ctx, cancel, &wg)
}

// initializeStorage opens the event archive if DATA_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Error().Err(err).Msg("storage initialization failed")
		return nil
	}
	return store
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(ctx context.Context, c cfg.Settings) {
	go func() {
		mux := http.NewServeMux()

		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", c.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := server.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// startCollectionLoop polls the transit API on the configured interval
// and archives every event it gets back.
func startCollectionLoop(ctx context.Context, wg *sync.WaitGroup, c cfg.Settings,
	client *fetch.Client, store *storage.Store, m *metrics.Metrics,
) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		// First cycle immediately, then on the ticker.
		collectOnce(ctx, c, client, store, m)

		ticker := time.NewTicker(c.FetchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collectOnce(ctx, c, client, store, m)
			}
		}
	}()
}

func collectOnce(ctx context.Context, c cfg.Settings, client *fetch.Client,
	store *storage.Store, m *metrics.Metrics,
) {
	start := time.Now()

	events, err := client.VehiclePositions(ctx)
	if err != nil {
		log.Error().Err(err).Msg("vehicle position fetch failed")
		m.FetchErrors.Inc()
	} else {
		m.EventsFetched.Add(float64(len(events)))
		storeEvents(store, m, events, keepRoute(c.Routes), store.StoreVehicleEvent)
	}

	for _, stopID := range c.Stops {
		stopEvents, err := client.StopMonitoring(ctx, stopID, "")
		if err != nil {
			log.Error().Err(err).Str("stop_id", stopID).Msg("stop monitoring fetch failed")
			m.FetchErrors.Inc()
			continue
		}
		m.EventsFetched.Add(float64(len(stopEvents)))
		storeEvents(store, m, stopEvents, keepRoute(c.Routes), store.StoreStopEvent)
	}

	m.FetchDuration.Observe(time.Since(start).Seconds())
}

// keepRoute returns a filter that accepts every route when none are
// configured.
func keepRoute(routes []string) func(string) bool {
	if len(routes) == 0 {
		return func(string) bool { return true }
	}
	allowed := make(map[string]bool, len(routes))
	for _, r := range routes {
		allowed[r] = true
	}
	return func(route string) bool { return allowed[route] }
}

func storeEvents(store *storage.Store, m *metrics.Metrics, events []transit.Event,
	keep func(string) bool, put func(transit.Event) error,
) {
	stored := 0
	for _, e := range events {
		if !keep(e.RouteID) {
			continue
		}
		if err := put(e); err != nil {
			log.Warn().Err(err).Str("route_id", e.RouteID).Msg("event store failed")
			m.ErrorsTotal.Inc()
			continue
		}
		stored++
	}
	m.EventsStored.Add(float64(stored))
}

// waitForShutdown waits for shutdown signals and handles graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
