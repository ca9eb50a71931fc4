package forecast

import (
	"testing"
	"time"

	"github.com/orcast/orcast/internal/domain"
	orctest "github.com/orcast/orcast/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGrid(id string, generatedAt time.Time) *Grid {
	return &Grid{
		ID:            id,
		GeneratedAt:   generatedAt,
		LatMin:        48.0,
		LatMax:        48.1,
		LngMin:        -123.1,
		LngMax:        -123.0,
		Resolution:    0.05,
		EquationRunID: "run-1",
		Failures:      2,
		Points: []GridPoint{
			{
				Latitude:  48.0,
				Longitude: -123.1,
				Behaviors: map[domain.Behavior]*BehaviorCell{
					domain.Feeding: {
						Mean: 0.7,
						Series: []TimeStep{
							{OffsetHours: 0, Probability: 0.7, Lower95: 0.5, Upper95: 0.9, UncertaintyScore: 0.4},
							{OffsetHours: 6, Failed: true},
						},
					},
				},
			},
		},
	}
}

func newTestRepository(t *testing.T) (*Repository, func()) {
	t.Helper()
	db, cleanup := orctest.NewTestDB(t, "forecasts")
	repo, err := NewRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, err)
	return repo, cleanup
}

func TestRepositorySaveAndGet(t *testing.T) {
	repo, cleanup := newTestRepository(t)
	defer cleanup()

	grid := testGrid("grid-1", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, repo.Save(grid))

	loaded, err := repo.GetByID("grid-1")
	require.NoError(t, err)
	assert.Equal(t, grid.ID, loaded.ID)
	assert.Equal(t, grid.EquationRunID, loaded.EquationRunID)
	assert.Equal(t, grid.Failures, loaded.Failures)
	require.Len(t, loaded.Points, 1)

	cell := loaded.Points[0].Behaviors[domain.Feeding]
	require.NotNil(t, cell)
	assert.Equal(t, 0.7, cell.Mean)
	require.Len(t, cell.Series, 2)
	assert.Equal(t, 0.4, cell.Series[0].UncertaintyScore)
	assert.True(t, cell.Series[1].Failed)
}

func TestRepositoryLatest(t *testing.T) {
	repo, cleanup := newTestRepository(t)
	defer cleanup()

	// Empty store yields nil, not an error.
	latest, err := repo.Latest()
	require.NoError(t, err)
	assert.Nil(t, latest)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.Save(testGrid("grid-old", now.Add(-time.Hour))))
	require.NoError(t, repo.Save(testGrid("grid-new", now)))

	latest, err = repo.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "grid-new", latest.ID)
}

func TestRepositoryPrune(t *testing.T) {
	repo, cleanup := newTestRepository(t)
	defer cleanup()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.Save(testGrid("grid-stale", now.Add(-48*time.Hour))))
	require.NoError(t, repo.Save(testGrid("grid-fresh", now)))

	pruned, err := repo.Prune(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	_, err = repo.GetByID("grid-stale")
	assert.Error(t, err)

	fresh, err := repo.GetByID("grid-fresh")
	require.NoError(t, err)
	assert.Equal(t, "grid-fresh", fresh.ID)
}
