package scheduler

import (
	"context"
	"time"

	"github.com/orcast/orcast/internal/modules/discovery"
	"github.com/rs/zerolog"
)

// retrainTimeout bounds one discovery run. Cross-validated lasso over the
// full library normally finishes in seconds even on large batches.
const retrainTimeout = 30 * time.Minute

// RetrainJob re-runs equation discovery on the full observation set and
// swaps the fresh snapshot into the shared store.
type RetrainJob struct {
	service *discovery.Service
	log     zerolog.Logger
}

// NewRetrainJob creates a retrain job.
func NewRetrainJob(service *discovery.Service, log zerolog.Logger) *RetrainJob {
	return &RetrainJob{
		service: service,
		log:     log.With().Str("job", "retrain").Logger(),
	}
}

// Name returns the job name
func (j *RetrainJob) Name() string {
	return "retrain"
}

// Run executes one retraining cycle.
func (j *RetrainJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), retrainTimeout)
	defer cancel()

	result, err := j.service.Retrain(ctx)
	if err != nil {
		return err
	}

	j.log.Info().
		Str("run_id", result.RunID).
		Int("behaviors", len(result.Summaries)).
		Msg("Retraining cycle completed")

	return nil
}
