// Package main is the entry point for the ORCAST behavioral forecasting
// daemon. The daemon discovers symbolic behavior equations from labeled
// whale sightings, keeps them fresh on a retraining schedule, and sweeps
// them over a spatial grid to produce probability forecast surfaces.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/orcast/orcast/internal/config"
	"github.com/orcast/orcast/internal/database"
	"github.com/orcast/orcast/internal/modules/discovery"
	"github.com/orcast/orcast/internal/modules/equations"
	"github.com/orcast/orcast/internal/modules/forecast"
	"github.com/orcast/orcast/internal/modules/registry"
	"github.com/orcast/orcast/internal/modules/sparsereg"
	"github.com/orcast/orcast/internal/modules/uncertainty"
	"github.com/orcast/orcast/internal/scheduler"
	"github.com/orcast/orcast/pkg/logger"
	"github.com/rs/zerolog"
)

// main orchestrates the startup sequence:
//  1. Load configuration from environment variables
//  2. Initialize structured logging
//  3. Open the three sqlite stores (observations, registry, forecasts)
//  4. Restore the latest equation set from the registry, or run discovery
//     when the registry is empty and training data exists
//  5. Register the retrain and forecast cron jobs
//  6. Wait for a shutdown signal and stop cleanly
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting ORCAST")

	// Three-database architecture:
	// - observations.db: labeled sightings (training data)
	// - registry.db: discovered equation runs (survives restarts)
	// - forecasts.db: generated grids (regenerable cache)
	observationsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "observations.db"),
		Profile: database.ProfileStandard,
		Name:    "observations",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open observations database")
	}
	defer observationsDB.Close()

	registryDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "registry.db"),
		Profile: database.ProfileStandard,
		Name:    "registry",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open registry database")
	}
	defer registryDB.Close()

	forecastsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "forecasts.db"),
		Profile: database.ProfileCache,
		Name:    "forecasts",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open forecasts database")
	}
	defer forecastsDB.Close()

	observations, err := discovery.NewObservationRepository(observationsDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize observation repository")
	}

	equationRegistry, err := registry.NewRepository(registryDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize equation registry")
	}

	grids, err := forecast.NewRepository(forecastsDB.Conn(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize forecast repository")
	}

	fitOptions := sparsereg.DefaultOptions()
	fitOptions.Threshold = cfg.FitThreshold
	fitOptions.Seed = cfg.FitSeed

	store := equations.NewStore()
	discoveryService := discovery.NewService(observations, equationRegistry, store, fitOptions, log)

	samplerConfig := uncertainty.Config{
		Samples: cfg.Sampler.Samples,
		Warmup:  cfg.Sampler.Warmup,
		Chains:  cfg.Sampler.Chains,
		Seed:    cfg.Sampler.Seed,
	}
	sampler := uncertainty.NewSampler(log)
	builder := forecast.NewBuilder(store, sampler, log)
	builder.SetWorkers(cfg.Forecast.Workers)

	bootstrapEquations(discoveryService, equationRegistry, store, log)

	sched := scheduler.New(log)

	retrainJob := scheduler.NewRetrainJob(discoveryService, log)
	if err := sched.AddJob(cfg.RetrainSchedule, retrainJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register retrain job")
	}

	forecastJob := scheduler.NewForecastJob(scheduler.ForecastJobConfig{
		Observations: observations,
		Builder:      builder,
		Grids:        grids,
		Forecast:     cfg.Forecast,
		Sampler:      samplerConfig,
		Log:          log,
	})
	if err := sched.AddJob(cfg.ForecastSchedule, forecastJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register forecast job")
	}

	sched.Start()
	log.Info().Msg("ORCAST started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	sched.Stop()

	for _, db := range []*database.DB{observationsDB, registryDB} {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			log.Error().Err(err).Str("db", db.Name()).Msg("WAL checkpoint failed during shutdown")
		}
	}

	log.Info().Msg("ORCAST stopped")
}

// bootstrapEquations fills the shared store before the first scheduled
// retrain. The registry wins when it has a stored run; otherwise a discovery
// run is attempted, and an empty observation store just leaves the zero
// snapshot in place until data arrives.
func bootstrapEquations(service *discovery.Service, reg *registry.Repository, store *equations.Store, log zerolog.Logger) {
	set, err := reg.LoadLatest()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load stored equations, falling back to discovery")
	}
	if set != nil {
		store.Swap(set)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if _, err := service.Retrain(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial discovery not possible, starting with zero equations")
	}
}
