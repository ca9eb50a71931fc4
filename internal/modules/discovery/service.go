package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orcast/orcast/internal/domain"
	"github.com/orcast/orcast/internal/modules/equations"
	"github.com/orcast/orcast/internal/modules/featurelib"
	"github.com/orcast/orcast/internal/modules/sparsereg"
	"github.com/orcast/orcast/internal/utils"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// FitSummary reports how one behavior's regression went.
type FitSummary struct {
	Behavior   domain.Behavior
	Terms      int
	Alpha      float64
	Sparsity   float64
	RowsUsed   int
	Equation   string
	Degenerate bool // true when zero terms survived (equation = 0)
}

// Result is the output of one discovery run.
type Result struct {
	RunID        string
	DiscoveredAt time.Time
	Set          *equations.Set
	Summaries    map[domain.Behavior]FitSummary
}

// Registry persists discovered equation sets between process restarts.
type Registry interface {
	SaveRun(result *Result) error
}

// Service runs the discovery pipeline and swaps the resulting snapshot into
// the shared equation store.
type Service struct {
	observations *ObservationRepository
	registry     Registry
	store        *equations.Store
	fitOptions   sparsereg.Options
	log          zerolog.Logger
}

// NewService creates the discovery service.
func NewService(
	observations *ObservationRepository,
	registry Registry,
	store *equations.Store,
	fitOptions sparsereg.Options,
	log zerolog.Logger,
) *Service {
	return &Service{
		observations: observations,
		registry:     registry,
		store:        store,
		fitOptions:   fitOptions,
		log:          log.With().Str("component", "discovery").Logger(),
	}
}

// Discover loads the training batch, expands the feature library once, and
// fits all behaviors concurrently - the per-behavior fits are statistically
// independent regressions over the same library. Returns ErrNoUsableRows
// when the batch is empty after filtering; a behavior with zero surviving
// terms yields the zero equation, which is a valid outcome, not an error.
func (s *Service) Discover(ctx context.Context) (*Result, error) {
	timer := utils.NewTimer("equation_discovery", s.log)
	defer timer.Stop()
	utils.LogMemoryUsage(s.log, "discovery_start")

	batch, err := s.observations.LoadTrainingBatch()
	if err != nil {
		return nil, fmt.Errorf("failed to load training batch: %w", err)
	}
	if len(batch) == 0 {
		return nil, fmt.Errorf("discovery: %w", domain.ErrNoUsableRows)
	}

	names := domain.FieldNames()
	raw := mat.NewDense(len(batch), domain.NumFields, nil)
	for i, row := range batch {
		raw.SetRow(i, row.Obs.Vector())
	}

	lib, err := featurelib.Build(raw, names)
	if err != nil {
		return nil, fmt.Errorf("failed to build feature library: %w", err)
	}
	s.log.Info().
		Int("rows", len(batch)).
		Int("candidate_terms", lib.NumTerms()).
		Msg("Feature library built")

	targets := domain.Targets(batch)

	type fitOutcome struct {
		behavior domain.Behavior
		expr     *equations.Expr
		summary  FitSummary
		err      error
	}

	results := make(chan fitOutcome, len(domain.AllBehaviors()))
	var wg sync.WaitGroup
	for _, behavior := range domain.AllBehaviors() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		wg.Add(1)
		go func(behavior domain.Behavior) {
			defer wg.Done()
			outcome := fitOutcome{behavior: behavior}

			fit, err := sparsereg.Fit(lib, targets[behavior], s.fitOptions)
			if err != nil {
				outcome.err = fmt.Errorf("sparse fit for %s: %w", behavior, err)
				results <- outcome
				return
			}

			// Equation construction begins only after this behavior's
			// regression completes.
			expr := equations.Construct(fit.Terms)
			outcome.expr = expr
			outcome.summary = FitSummary{
				Behavior:   behavior,
				Terms:      len(fit.Terms),
				Alpha:      fit.Alpha,
				Sparsity:   fit.Sparsity,
				RowsUsed:   fit.RowsUsed,
				Equation:   expr.String(),
				Degenerate: expr.IsZero(),
			}
			results <- outcome
		}(behavior)
	}
	wg.Wait()
	close(results)

	exprs := make(map[domain.Behavior]*equations.Expr)
	summaries := make(map[domain.Behavior]FitSummary)
	for outcome := range results {
		if outcome.err != nil {
			return nil, outcome.err
		}
		exprs[outcome.behavior] = outcome.expr
		summaries[outcome.behavior] = outcome.summary

		event := s.log.Info().
			Str("behavior", string(outcome.behavior)).
			Int("terms", outcome.summary.Terms).
			Float64("alpha", outcome.summary.Alpha).
			Float64("sparsity", outcome.summary.Sparsity)
		if outcome.summary.Degenerate {
			event.Msg("No terms survived thresholding, behavior equation is zero")
		} else {
			event.Str("equation", outcome.summary.Equation).Msg("Equation discovered")
		}
	}

	runID := uuid.New().String()
	discoveredAt := time.Now().UTC()
	return &Result{
		RunID:        runID,
		DiscoveredAt: discoveredAt,
		Set:          equations.NewSet(runID, discoveredAt, exprs),
		Summaries:    summaries,
	}, nil
}

// Retrain runs discovery, persists the new equation set to the registry,
// and atomically swaps it into the shared store so concurrent evaluators
// move from one complete snapshot to the next.
func (s *Service) Retrain(ctx context.Context) (*Result, error) {
	result, err := s.Discover(ctx)
	if err != nil {
		return nil, err
	}

	if s.registry != nil {
		if err := s.registry.SaveRun(result); err != nil {
			return nil, fmt.Errorf("failed to persist discovery run: %w", err)
		}
	}

	s.store.Swap(result.Set)
	s.log.Info().
		Str("run_id", result.RunID).
		Msg("Equation snapshot swapped")

	return result, nil
}
