package forecast

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const schema = `
CREATE TABLE IF NOT EXISTS forecast_grids (
	id TEXT PRIMARY KEY,
	generated_at TEXT NOT NULL,
	lat_min REAL NOT NULL,
	lat_max REAL NOT NULL,
	lng_min REAL NOT NULL,
	lng_max REAL NOT NULL,
	resolution REAL NOT NULL,
	use_uncertainty INTEGER NOT NULL DEFAULT 0,
	equation_run_id TEXT,
	failures INTEGER NOT NULL DEFAULT 0,
	points BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_forecast_grids_generated
	ON forecast_grids(generated_at);
`

// Repository persists forecast grids to the forecasts database. Points are
// stored as a msgpack blob of plain scalars; metadata stays queryable in
// columns.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a forecast repository and ensures its schema.
func NewRepository(db *sql.DB, log zerolog.Logger) (*Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create forecast schema: %w", err)
	}
	return &Repository{
		db:  db,
		log: log.With().Str("component", "forecast_repository").Logger(),
	}, nil
}

// Save stores a grid by value; the caller keeps no shared mutable state
// with the stored copy.
func (r *Repository) Save(grid *Grid) error {
	blob, err := msgpack.Marshal(grid.Points)
	if err != nil {
		return fmt.Errorf("failed to encode grid points: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO forecast_grids
			(id, generated_at, lat_min, lat_max, lng_min, lng_max, resolution,
			 use_uncertainty, equation_run_id, failures, points)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		grid.ID,
		grid.GeneratedAt.Format(time.RFC3339),
		grid.LatMin, grid.LatMax, grid.LngMin, grid.LngMax,
		grid.Resolution,
		boolToInt(grid.UseUncertainty),
		grid.EquationRunID,
		grid.Failures,
		blob,
	)
	if err != nil {
		return fmt.Errorf("failed to store forecast grid %s: %w", grid.ID, err)
	}

	r.log.Debug().
		Str("grid_id", grid.ID).
		Int("points", len(grid.Points)).
		Msg("Forecast grid stored")

	return nil
}

// GetByID loads one stored grid.
func (r *Repository) GetByID(id string) (*Grid, error) {
	row := r.db.QueryRow(`
		SELECT id, generated_at, lat_min, lat_max, lng_min, lng_max,
		       resolution, use_uncertainty, equation_run_id, failures, points
		FROM forecast_grids
		WHERE id = ?
	`, id)
	return scanGrid(row)
}

// Latest returns the most recently generated grid, or nil when the store is
// empty.
func (r *Repository) Latest() (*Grid, error) {
	row := r.db.QueryRow(`
		SELECT id, generated_at, lat_min, lat_max, lng_min, lng_max,
		       resolution, use_uncertainty, equation_run_id, failures, points
		FROM forecast_grids
		ORDER BY generated_at DESC
		LIMIT 1
	`)
	grid, err := scanGrid(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return grid, err
}

// Prune deletes grids older than the cutoff and returns the number removed.
func (r *Repository) Prune(olderThan time.Time) (int64, error) {
	res, err := r.db.Exec(
		`DELETE FROM forecast_grids WHERE generated_at < ?`,
		olderThan.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune forecast grids: %w", err)
	}
	return res.RowsAffected()
}

func scanGrid(row *sql.Row) (*Grid, error) {
	var grid Grid
	var generatedAt string
	var useUncertainty int
	var blob []byte

	err := row.Scan(
		&grid.ID, &generatedAt,
		&grid.LatMin, &grid.LatMax, &grid.LngMin, &grid.LngMax,
		&grid.Resolution, &useUncertainty, &grid.EquationRunID,
		&grid.Failures, &blob,
	)
	if err != nil {
		return nil, err
	}

	grid.UseUncertainty = useUncertainty != 0
	if grid.GeneratedAt, err = time.Parse(time.RFC3339, generatedAt); err != nil {
		return nil, fmt.Errorf("invalid generated_at timestamp: %w", err)
	}
	if err := msgpack.Unmarshal(blob, &grid.Points); err != nil {
		return nil, fmt.Errorf("failed to decode grid points: %w", err)
	}

	return &grid, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
