package forecast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orcast/orcast/internal/domain"
	"github.com/orcast/orcast/internal/modules/equations"
	"github.com/orcast/orcast/internal/modules/uncertainty"
	"github.com/orcast/orcast/internal/utils"
	"github.com/rs/zerolog"
)

// defaultWorkers bounds the concurrent HMC evaluations during a sweep.
const defaultWorkers = 4

// Builder sweeps equations over a forecast lattice.
type Builder struct {
	store   *equations.Store
	sampler *uncertainty.Sampler
	workers int
	log     zerolog.Logger
}

// NewBuilder creates a grid builder reading equations from the shared
// snapshot store.
func NewBuilder(store *equations.Store, sampler *uncertainty.Sampler, log zerolog.Logger) *Builder {
	return &Builder{
		store:   store,
		sampler: sampler,
		workers: defaultWorkers,
		log:     log.With().Str("component", "forecast_builder").Logger(),
	}
}

// SetWorkers overrides the HMC worker-pool size.
func (b *Builder) SetWorkers(n int) {
	if n > 0 {
		b.workers = n
	}
}

// Build generates the forecast grid for the request. Individual cell
// failures are flagged and skipped, never fatal; the returned grid always
// has the full lattice size. Cancellation via ctx aborts the sweep.
func (b *Builder) Build(ctx context.Context, req Request) (*Grid, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid forecast request: %w", err)
	}

	timer := utils.NewTimer("forecast_grid_build", b.log)
	defer timer.Stop()

	set := b.store.Current()
	grid := &Grid{
		ID:             uuid.New().String(),
		GeneratedAt:    time.Now().UTC(),
		LatMin:         req.LatMin,
		LatMax:         req.LatMax,
		LngMin:         req.LngMin,
		LngMax:         req.LngMax,
		Resolution:     req.Resolution,
		UseUncertainty: req.UseUncertainty,
		EquationRunID:  set.RunID(),
	}

	for lat := req.LatMin; lat <= req.LatMax+1e-9; lat += req.Resolution {
		for lng := req.LngMin; lng <= req.LngMax+1e-9; lng += req.Resolution {
			grid.Points = append(grid.Points, GridPoint{Latitude: lat, Longitude: lng})
		}
	}

	var failures int
	if req.UseUncertainty {
		n, err := b.fillConcurrent(ctx, set, req, grid.Points)
		if err != nil {
			return nil, err
		}
		failures = n
	} else {
		for i := range grid.Points {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			failures += b.fillPoint(ctx, set, req, &grid.Points[i])
		}
	}
	grid.Failures = failures

	b.log.Info().
		Str("grid_id", grid.ID).
		Int("points", len(grid.Points)).
		Int("time_offsets", len(req.TimeOffsets)).
		Int("failures", failures).
		Bool("uncertainty", req.UseUncertainty).
		Msg("Forecast grid built")

	return grid, nil
}

// fillConcurrent runs the expensive HMC path through a bounded worker pool.
func (b *Builder) fillConcurrent(ctx context.Context, set *equations.Set, req Request, points []GridPoint) (int, error) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	failures := 0

	sem := make(chan struct{}, b.workers)
	for i := range points {
		select {
		case <-ctx.Done():
			wg.Wait()
			return failures, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(pt *GridPoint) {
			defer wg.Done()
			defer func() { <-sem }()
			n := b.fillPoint(ctx, set, req, pt)
			mu.Lock()
			failures += n
			mu.Unlock()
		}(&points[i])
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return failures, err
	}
	return failures, nil
}

// fillPoint evaluates every behavior and time offset for one cell and
// returns the number of flagged failures.
func (b *Builder) fillPoint(ctx context.Context, set *equations.Set, req Request, pt *GridPoint) int {
	behaviors := req.behaviors()
	pt.Behaviors = make(map[domain.Behavior]*BehaviorCell, len(behaviors))
	for _, behavior := range behaviors {
		pt.Behaviors[behavior] = &BehaviorCell{
			Series: make([]TimeStep, 0, len(req.TimeOffsets)),
		}
	}

	failures := 0
	for _, offset := range req.TimeOffsets {
		obs := shiftObservation(req.Template, pt.Latitude, pt.Longitude, offset)

		if !obs.Valid() {
			// Malformed cell: record flagged zero steps, keep sweeping.
			for _, behavior := range behaviors {
				cell := pt.Behaviors[behavior]
				cell.Series = append(cell.Series, TimeStep{OffsetHours: offset, Failed: true})
				failures++
			}
			continue
		}

		for _, behavior := range behaviors {
			cell := pt.Behaviors[behavior]
			step, ok := b.evaluateStep(ctx, set, behavior, obs, offset, req)
			if !ok {
				failures++
			}
			cell.Series = append(cell.Series, step)
		}
	}

	// Window-average the non-failed steps.
	for _, behavior := range behaviors {
		cell := pt.Behaviors[behavior]
		var sum float64
		var n int
		for _, step := range cell.Series {
			if !step.Failed {
				sum += step.Probability
				n++
			}
		}
		if n > 0 {
			cell.Mean = sum / float64(n)
		}
	}

	return failures
}

// evaluateStep computes one (behavior, offset) step via the fast evaluator
// or the HMC sampler. ok is false when the step had to be flagged.
func (b *Builder) evaluateStep(ctx context.Context, set *equations.Set, behavior domain.Behavior, obs domain.Observation, offset int, req Request) (TimeStep, bool) {
	step := TimeStep{OffsetHours: offset}

	expr, ok := set.Equation(behavior)
	if !ok {
		step.Failed = true
		return step, false
	}

	if !req.UseUncertainty {
		p, err := equations.Predict(expr, obs)
		if err != nil {
			b.log.Debug().
				Err(err).
				Str("behavior", string(behavior)).
				Float64("lat", obs.Latitude).
				Float64("lng", obs.Longitude).
				Msg("Cell evaluation failed, flagging")
			step.Failed = true
			return step, false
		}
		step.Probability = p
		return step, true
	}

	est, err := b.sampler.SampleUncertainty(ctx, expr, obs, req.Sampler)
	if err != nil || est.Incomplete {
		if err != nil {
			b.log.Debug().
				Err(err).
				Str("behavior", string(behavior)).
				Msg("Cell sampling failed, flagging")
		}
		step.Failed = true
		return step, false
	}

	step.Probability = est.Mean
	step.Lower95 = est.CI95[0]
	step.Upper95 = est.CI95[1]
	step.UncertaintyScore = est.UncertaintyScore
	return step, true
}

// shiftObservation overrides the spatial fields and rolls the template's
// clock forward by the offset, wrapping hour-of-day and day-of-year.
func shiftObservation(template domain.Observation, lat, lng float64, offsetHours int) domain.Observation {
	obs := template
	obs.Latitude = lat
	obs.Longitude = lng

	totalHours := int(template.HourOfDay) + offsetHours
	obs.HourOfDay = float64(((totalHours % 24) + 24) % 24)

	carryDays := totalHours / 24
	if totalHours < 0 && totalHours%24 != 0 {
		carryDays--
	}
	day := int(template.DayOfYear) - 1 + carryDays
	obs.DayOfYear = float64(((day%365)+365)%365 + 1)

	return obs
}
