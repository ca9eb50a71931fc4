package scheduler

import (
	"context"
	"time"

	"github.com/orcast/orcast/internal/config"
	"github.com/orcast/orcast/internal/modules/discovery"
	"github.com/orcast/orcast/internal/modules/forecast"
	"github.com/orcast/orcast/internal/modules/uncertainty"
	"github.com/rs/zerolog"
)

const (
	forecastTimeout = 2 * time.Hour
	// gridRetention controls pruning of stored grids. Grids are regenerable
	// from the equation registry, so the window can stay short.
	gridRetention = 7 * 24 * time.Hour
)

// ForecastJob sweeps the current equation set over the configured region and
// persists the resulting grid. The most recent observation supplies the
// environmental template; the job skips the cycle when no data exists yet.
type ForecastJob struct {
	observations *discovery.ObservationRepository
	builder      *forecast.Builder
	grids        *forecast.Repository
	cfg          config.ForecastConfig
	sampler      uncertainty.Config
	log          zerolog.Logger
}

// ForecastJobConfig holds the forecast job dependencies.
type ForecastJobConfig struct {
	Observations *discovery.ObservationRepository
	Builder      *forecast.Builder
	Grids        *forecast.Repository
	Forecast     config.ForecastConfig
	Sampler      uncertainty.Config
	Log          zerolog.Logger
}

// NewForecastJob creates a forecast job.
func NewForecastJob(cfg ForecastJobConfig) *ForecastJob {
	return &ForecastJob{
		observations: cfg.Observations,
		builder:      cfg.Builder,
		grids:        cfg.Grids,
		cfg:          cfg.Forecast,
		sampler:      cfg.Sampler,
		log:          cfg.Log.With().Str("job", "forecast").Logger(),
	}
}

// Name returns the job name
func (j *ForecastJob) Name() string {
	return "forecast"
}

// Run builds and stores one forecast grid, then prunes expired grids.
func (j *ForecastJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), forecastTimeout)
	defer cancel()

	template, err := j.observations.LoadLatest()
	if err != nil {
		return err
	}
	if template == nil {
		j.log.Warn().Msg("No observations yet, skipping forecast cycle")
		return nil
	}

	offsets := make([]int, 0, j.cfg.HorizonHours)
	for h := 0; h < j.cfg.HorizonHours; h++ {
		offsets = append(offsets, h)
	}

	grid, err := j.builder.Build(ctx, forecast.Request{
		LatMin:         j.cfg.LatMin,
		LatMax:         j.cfg.LatMax,
		LngMin:         j.cfg.LngMin,
		LngMax:         j.cfg.LngMax,
		Resolution:     j.cfg.Resolution,
		TimeOffsets:    offsets,
		Template:       *template,
		UseUncertainty: j.cfg.UseUncertainty,
		Sampler:        j.sampler,
	})
	if err != nil {
		return err
	}

	if err := j.grids.Save(grid); err != nil {
		return err
	}

	pruned, err := j.grids.Prune(time.Now().UTC().Add(-gridRetention))
	if err != nil {
		j.log.Error().Err(err).Msg("Grid pruning failed")
	} else if pruned > 0 {
		j.log.Debug().Int64("pruned", pruned).Msg("Expired forecast grids removed")
	}

	j.log.Info().
		Str("grid_id", grid.ID).
		Int("points", len(grid.Points)).
		Int("failures", grid.Failures).
		Msg("Forecast cycle completed")

	return nil
}
