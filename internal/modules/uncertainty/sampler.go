package uncertainty

import (
	"context"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/orcast/orcast/internal/domain"
	"github.com/orcast/orcast/internal/modules/equations"
	"github.com/orcast/orcast/internal/utils"
	"github.com/rs/zerolog"
	gostat "gonum.org/v1/gonum/stat"
)

// Estimation method tags. Results always carry the path that produced them
// so downstream consumers never confuse an HMC posterior with an incomplete
// or fallback estimate.
const (
	MethodHMC        = "hmc"
	MethodIncomplete = "hmc_incomplete"
)

// Config controls one sampling run.
type Config struct {
	Samples int // posterior draws per chain
	Warmup  int // adaptation draws per chain, discarded
	Chains  int // independent chains
	Seed    uint64
}

// DefaultConfig returns the standard sampling configuration.
func DefaultConfig() Config {
	return Config{Samples: 1000, Warmup: 500, Chains: 2, Seed: 42}
}

// Diagnostics summarizes sampler health. Nonzero divergences signal the
// sampler struggled and the estimate deserves reduced confidence.
type Diagnostics struct {
	Samples        int
	Divergences    int
	MeanAcceptance float64
}

// Estimate is the per-prediction uncertainty bundle.
type Estimate struct {
	Mean             float64
	StdDev           float64
	CI95             [2]float64 // 2.5 / 97.5 percentiles
	CI50             [2]float64 // 25 / 75 percentiles
	UncertaintyScore float64    // width of the 95% interval
	Diagnostics      Diagnostics
	Method           string
	Incomplete       bool // true when sampling was cancelled before finishing
}

// Sampler runs HMC uncertainty quantification over discovered equations.
// Each call is independent; the sampler holds no cross-call state beyond
// its logger and defaults.
type Sampler struct {
	log zerolog.Logger
}

// NewSampler creates a sampler.
func NewSampler(log zerolog.Logger) *Sampler {
	return &Sampler{
		log: log.With().Str("component", "hmc_sampler").Logger(),
	}
}

// SampleUncertainty re-parameterizes the equation as a generative model and
// samples the posterior of the squashed probability with NUTS. This is the
// most expensive operation in the system; callers needing only a point
// estimate should use the equation evaluator instead.
//
// Cancellation via ctx yields a clearly tagged incomplete estimate computed
// from the draws collected so far, never a silently truncated posterior.
func (s *Sampler) SampleUncertainty(ctx context.Context, expr *equations.Expr, obs domain.Observation, cfg Config) (*Estimate, error) {
	if cfg.Samples <= 0 || cfg.Chains <= 0 {
		return nil, fmt.Errorf("invalid sampler config: samples=%d chains=%d", cfg.Samples, cfg.Chains)
	}

	raw, err := expr.Eval(obs.Values())
	if err != nil {
		return nil, fmt.Errorf("cannot sample uncertainty: %w", err)
	}

	timer := utils.NewTimer("hmc_sampling", s.log)
	defer timer.Stop()
	utils.LogMemoryUsage(s.log, "hmc_sampling_start")

	initial := mapEstimate(noiseModel{})

	probs := make([]float64, 0, cfg.Samples*cfg.Chains)
	diag := Diagnostics{}
	var acceptSum float64
	var acceptCount int
	completed := true

	for chain := 0; chain < cfg.Chains; chain++ {
		sampler := newNUTSSampler(cfg.Seed, uint64(chain))
		res := sampler.run(ctx, cfg.Samples, cfg.Warmup, initial)

		for _, theta := range res.draws {
			noiseScale := math.Exp(theta[0])
			probs = append(probs, equations.Logistic(raw+noiseScale*theta[1]))
		}
		diag.Divergences += res.divergences
		acceptSum += res.acceptSum
		acceptCount += res.acceptCount
		if !res.completed {
			completed = false
			break
		}
	}

	diag.Samples = len(probs)
	if acceptCount > 0 {
		diag.MeanAcceptance = acceptSum / float64(acceptCount)
	}

	if diag.Divergences > 0 {
		s.log.Warn().
			Int("divergences", diag.Divergences).
			Msg("HMC reported divergent transitions, estimate has reduced confidence")
	}

	est := summarize(probs, diag)
	if !completed {
		est.Incomplete = true
		est.Method = MethodIncomplete
		s.log.Warn().
			Int("samples_collected", diag.Samples).
			Msg("Sampling cancelled before completion, returning tagged incomplete estimate")
	}

	return est, nil
}

// summarize computes the posterior summary from probability draws.
func summarize(probs []float64, diag Diagnostics) *Estimate {
	est := &Estimate{Diagnostics: diag, Method: MethodHMC}
	if len(probs) == 0 {
		return est
	}

	est.Mean = gostat.Mean(probs, nil)
	if len(probs) > 1 {
		est.StdDev = gostat.StdDev(probs, nil)
	}

	est.CI95[0] = percentile(probs, 2.5)
	est.CI95[1] = percentile(probs, 97.5)
	est.CI50[0] = percentile(probs, 25)
	est.CI50[1] = percentile(probs, 75)
	est.UncertaintyScore = est.CI95[1] - est.CI95[0]

	return est
}

// percentile is a safe wrapper over the stats library; on error (tiny
// sample counts) it degrades to the sample bounds.
func percentile(data []float64, pct float64) float64 {
	v, err := stats.Percentile(data, pct)
	if err != nil {
		min, errMin := stats.Min(data)
		if errMin != nil {
			return 0
		}
		max, _ := stats.Max(data)
		if pct >= 50 {
			return max
		}
		return min
	}
	return v
}
