// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// SamplerConfig holds HMC sampling defaults.
type SamplerConfig struct {
	Samples int
	Warmup  int
	Chains  int
	Seed    uint64
}

// ForecastConfig holds the scheduled forecast region.
type ForecastConfig struct {
	LatMin, LatMax float64
	LngMin, LngMax float64
	Resolution     float64 // degrees per cell
	HorizonHours   int     // forecast window, one step per hour
	UseUncertainty bool
	Workers        int
}

// Config holds application configuration
type Config struct {
	DataDir          string // base directory for all databases, always absolute
	LogLevel         string
	DevMode          bool
	RetrainSchedule  string // cron expression (with seconds field)
	ForecastSchedule string
	FitThreshold     float64
	FitSeed          uint64
	Sampler          SamplerConfig
	Forecast         ForecastConfig
}

// Load reads configuration from environment variables. A .env file is
// loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("ORCAST_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		RetrainSchedule:  getEnv("ORCAST_RETRAIN_SCHEDULE", "0 0 3 * * *"), // daily, 03:00
		ForecastSchedule: getEnv("ORCAST_FORECAST_SCHEDULE", "@every 6h"),
		FitThreshold:     getEnvAsFloat("ORCAST_FIT_THRESHOLD", 0.01),
		FitSeed:          uint64(getEnvAsInt("ORCAST_FIT_SEED", 1)),
		Sampler: SamplerConfig{
			Samples: getEnvAsInt("ORCAST_HMC_SAMPLES", 1000),
			Warmup:  getEnvAsInt("ORCAST_HMC_WARMUP", 500),
			Chains:  getEnvAsInt("ORCAST_HMC_CHAINS", 2),
			Seed:    uint64(getEnvAsInt("ORCAST_HMC_SEED", 42)),
		},
		// Default region covers the San Juan Islands feeding grounds.
		Forecast: ForecastConfig{
			LatMin:         getEnvAsFloat("ORCAST_FORECAST_LAT_MIN", 48.4),
			LatMax:         getEnvAsFloat("ORCAST_FORECAST_LAT_MAX", 48.8),
			LngMin:         getEnvAsFloat("ORCAST_FORECAST_LNG_MIN", -123.3),
			LngMax:         getEnvAsFloat("ORCAST_FORECAST_LNG_MAX", -122.7),
			Resolution:     getEnvAsFloat("ORCAST_FORECAST_RESOLUTION", 0.05),
			HorizonHours:   getEnvAsInt("ORCAST_FORECAST_HORIZON_HOURS", 24),
			UseUncertainty: getEnvAsBool("ORCAST_FORECAST_UNCERTAINTY", false),
			Workers:        getEnvAsInt("ORCAST_FORECAST_WORKERS", 4),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and coherent.
func (c *Config) Validate() error {
	if c.FitThreshold < 0 {
		return fmt.Errorf("fit threshold must be non-negative, got %g", c.FitThreshold)
	}
	if c.Sampler.Samples <= 0 || c.Sampler.Chains <= 0 {
		return fmt.Errorf("sampler requires positive samples and chains")
	}
	if c.Forecast.Resolution <= 0 {
		return fmt.Errorf("forecast resolution must be positive, got %g", c.Forecast.Resolution)
	}
	if c.Forecast.HorizonHours <= 0 {
		return fmt.Errorf("forecast horizon must be positive, got %d", c.Forecast.HorizonHours)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
