package registry

import (
	"testing"
	"time"

	"github.com/orcast/orcast/internal/domain"
	"github.com/orcast/orcast/internal/modules/discovery"
	"github.com/orcast/orcast/internal/modules/equations"
	"github.com/orcast/orcast/internal/modules/featurelib"
	"github.com/orcast/orcast/internal/modules/sparsereg"
	orctest "github.com/orcast/orcast/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Repository, func()) {
	t.Helper()
	db, cleanup := orctest.NewTestDB(t, "registry")
	repo, err := NewRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, err)
	return repo, cleanup
}

func testResult(runID string, discoveredAt time.Time) *discovery.Result {
	exprs := map[domain.Behavior]*equations.Expr{
		domain.Feeding: equations.Construct([]sparsereg.WeightedTerm{
			{
				Term:        featurelib.Term{Kind: featurelib.Linear, Base: domain.FieldPreyDensity},
				Coefficient: 2.4,
			},
			{
				Term:        featurelib.Term{Kind: featurelib.Sin, Base: domain.FieldHourOfDay, Period: 24},
				Coefficient: -0.7,
			},
		}),
		domain.Socializing: equations.Construct([]sparsereg.WeightedTerm{
			{
				Term:        featurelib.Term{Kind: featurelib.Linear, Base: domain.FieldPodSize},
				Coefficient: 0.15,
			},
		}),
	}

	summaries := make(map[domain.Behavior]discovery.FitSummary)
	for behavior, expr := range exprs {
		summaries[behavior] = discovery.FitSummary{
			Behavior: behavior,
			Terms:    len(expr.Terms()),
			Alpha:    0.01,
			Sparsity: 0.95,
			Equation: expr.String(),
		}
	}

	return &discovery.Result{
		RunID:        runID,
		DiscoveredAt: discoveredAt,
		Set:          equations.NewSet(runID, discoveredAt, exprs),
		Summaries:    summaries,
	}
}

func TestSaveRunAndLoadLatestEquivalence(t *testing.T) {
	repo, cleanup := newTestRegistry(t)
	defer cleanup()

	result := testResult("run-1", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, repo.SaveRun(result))

	loaded, err := repo.LoadLatest()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "run-1", loaded.RunID())

	// Loading from the registry must produce a functionally equivalent
	// evaluator: identical predictions on the same observation.
	obs := domain.Observation{
		Latitude: 48.5, Longitude: -123.0, PreyDensity: 0.6,
		PodSize: 8, HourOfDay: 14, DayOfYear: 100,
	}
	for _, behavior := range domain.AllBehaviors() {
		original, _ := result.Set.Equation(behavior)
		restored, ok := loaded.Equation(behavior)
		require.True(t, ok, behavior)

		wantP, err := equations.Predict(original, obs)
		require.NoError(t, err)
		gotP, err := equations.Predict(restored, obs)
		require.NoError(t, err)
		assert.InDelta(t, wantP, gotP, 1e-15, behavior)
	}
}

func TestLoadLatestEmpty(t *testing.T) {
	repo, cleanup := newTestRegistry(t)
	defer cleanup()

	set, err := repo.LoadLatest()
	require.NoError(t, err)
	assert.Nil(t, set)
}

func TestLoadLatestPicksNewestRun(t *testing.T) {
	repo, cleanup := newTestRegistry(t)
	defer cleanup()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.SaveRun(testResult("run-old", now.Add(-time.Hour))))
	require.NoError(t, repo.SaveRun(testResult("run-new", now)))

	loaded, err := repo.LoadLatest()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "run-new", loaded.RunID())
}

func TestSaveRunStoresAllBehaviors(t *testing.T) {
	repo, cleanup := newTestRegistry(t)
	defer cleanup()

	// Traveling has no fitted equation; the zero equation is stored and
	// restored, never dropped.
	result := testResult("run-1", time.Now().UTC())
	require.NoError(t, repo.SaveRun(result))

	loaded, err := repo.LoadLatest()
	require.NoError(t, err)
	traveling, ok := loaded.Equation(domain.Traveling)
	require.True(t, ok)
	assert.True(t, traveling.IsZero())
}
