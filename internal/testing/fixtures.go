package testing

import (
	"math"
	"math/rand/v2"

	"github.com/orcast/orcast/internal/domain"
)

// SyntheticObservations generates a deterministic labeled dataset with a
// planted structure: feeding probability rises with prey density and falls
// with noise level, socializing rises with pod size, traveling is the
// remainder. Useful for pipeline tests that need a recoverable signal.
func SyntheticObservations(n int, seed uint64) []domain.LabeledObservation {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	batch := make([]domain.LabeledObservation, 0, n)

	for i := 0; i < n; i++ {
		obs := domain.Observation{
			Latitude:     48.4 + rng.Float64()*0.4,
			Longitude:    -123.3 + rng.Float64()*0.6,
			Depth:        20 + rng.Float64()*180,
			Temperature:  8 + rng.Float64()*6,
			TidalFlow:    -2 + rng.Float64()*4,
			PreyDensity:  rng.Float64(),
			NoiseLevel:   80 + rng.Float64()*60,
			Visibility:   2 + rng.Float64()*18,
			CurrentSpeed: rng.Float64() * 3,
			Salinity:     28 + rng.Float64()*5,
			PodSize:      1 + math.Floor(rng.Float64()*24),
			HourOfDay:    math.Floor(rng.Float64() * 24),
			DayOfYear:    1 + math.Floor(rng.Float64()*365),
		}

		feedScore := 9*(obs.PreyDensity-0.5) - 0.06*(obs.NoiseLevel-110)
		socialScore := 0.35 * (obs.PodSize - 12)

		behavior := domain.Traveling
		switch {
		case logistic(feedScore) > rng.Float64():
			behavior = domain.Feeding
		case logistic(socialScore) > rng.Float64():
			behavior = domain.Socializing
		}

		batch = append(batch, domain.LabeledObservation{Obs: obs, Behavior: behavior})
	}

	return batch
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
