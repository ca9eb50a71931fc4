package discovery

import (
	"math"
	"testing"

	orctest "github.com/orcast/orcast/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestObservationRepo(t *testing.T) (*ObservationRepository, func()) {
	t.Helper()
	db, cleanup := orctest.NewTestDB(t, "observations")
	repo, err := NewObservationRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, err)
	return repo, cleanup
}

func TestInsertAndLoadTrainingBatch(t *testing.T) {
	repo, cleanup := newTestObservationRepo(t)
	defer cleanup()

	rows := orctest.SyntheticObservations(50, 3)
	for _, row := range rows {
		require.NoError(t, repo.Insert(row, "2026-08-01T12:00:00Z"))
	}

	batch, err := repo.LoadTrainingBatch()
	require.NoError(t, err)
	require.Len(t, batch, 50)

	// Insertion order preserved, fields round-trip.
	assert.Equal(t, rows[0].Behavior, batch[0].Behavior)
	assert.Equal(t, rows[0].Obs.Vector(), batch[0].Obs.Vector())
	assert.Equal(t, rows[49].Obs.Vector(), batch[49].Obs.Vector())
}

func TestLoadTrainingBatchSkipsNonFinite(t *testing.T) {
	repo, cleanup := newTestObservationRepo(t)
	defer cleanup()

	good := orctest.SyntheticObservations(5, 4)
	for _, row := range good {
		require.NoError(t, repo.Insert(row, "2026-08-01T12:00:00Z"))
	}

	// NaN is stored as NULL by sqlite, so the row is excluded either by the
	// SQL filter or by the finite check.
	bad := good[0]
	bad.Obs.Depth = math.NaN()
	require.NoError(t, repo.Insert(bad, "2026-08-01T13:00:00Z"))

	batch, err := repo.LoadTrainingBatch()
	require.NoError(t, err)
	assert.Len(t, batch, 5)
}

func TestLoadTrainingBatchEmpty(t *testing.T) {
	repo, cleanup := newTestObservationRepo(t)
	defer cleanup()

	batch, err := repo.LoadTrainingBatch()
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestLoadLatest(t *testing.T) {
	repo, cleanup := newTestObservationRepo(t)
	defer cleanup()

	// Empty store yields nil, not an error.
	latest, err := repo.LoadLatest()
	require.NoError(t, err)
	assert.Nil(t, latest)

	rows := orctest.SyntheticObservations(10, 5)
	for _, row := range rows {
		require.NoError(t, repo.Insert(row, "2026-08-01T12:00:00Z"))
	}

	latest, err = repo.LoadLatest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, rows[9].Obs.Vector(), latest.Vector())
}
