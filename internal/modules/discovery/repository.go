// Package discovery orchestrates the equation-discovery pipeline: training
// data extraction, feature library expansion, sparse regression per behavior,
// and symbolic equation construction.
package discovery

import (
	"database/sql"
	"fmt"
	"math"

	"github.com/orcast/orcast/internal/domain"
	"github.com/rs/zerolog"
)

const observationsSchema = `
CREATE TABLE IF NOT EXISTS observations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	observed_at TEXT,
	latitude REAL,
	longitude REAL,
	depth REAL,
	temperature REAL,
	tidal_flow REAL,
	prey_density REAL,
	noise_level REAL,
	visibility REAL,
	current_speed REAL,
	salinity REAL,
	pod_size REAL,
	hour_of_day REAL,
	day_of_year REAL,
	behavior TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_observations_behavior ON observations(behavior);
`

// ObservationRepository reads labeled sightings from the observations
// database. Rows with any null environmental field are excluded at the SQL
// level - that is the data-source contract; non-finite values that slip
// through are skipped with a debug log.
type ObservationRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewObservationRepository creates the repository and ensures its schema.
func NewObservationRepository(db *sql.DB, log zerolog.Logger) (*ObservationRepository, error) {
	if _, err := db.Exec(observationsSchema); err != nil {
		return nil, fmt.Errorf("failed to create observations schema: %w", err)
	}
	return &ObservationRepository{
		db:  db,
		log: log.With().Str("component", "observation_repository").Logger(),
	}, nil
}

// LoadTrainingBatch returns all usable labeled observations.
func (r *ObservationRepository) LoadTrainingBatch() ([]domain.LabeledObservation, error) {
	rows, err := r.db.Query(`
		SELECT latitude, longitude, depth, temperature, tidal_flow,
		       prey_density, noise_level, visibility, current_speed,
		       salinity, pod_size, hour_of_day, day_of_year, behavior
		FROM observations
		WHERE latitude IS NOT NULL
		  AND longitude IS NOT NULL
		  AND depth IS NOT NULL
		  AND temperature IS NOT NULL
		  AND tidal_flow IS NOT NULL
		  AND prey_density IS NOT NULL
		  AND noise_level IS NOT NULL
		  AND visibility IS NOT NULL
		  AND current_speed IS NOT NULL
		  AND salinity IS NOT NULL
		  AND pod_size IS NOT NULL
		  AND hour_of_day IS NOT NULL
		  AND day_of_year IS NOT NULL
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var batch []domain.LabeledObservation
	skipped := 0
	for rows.Next() {
		var obs domain.Observation
		var behavior string
		err := rows.Scan(
			&obs.Latitude, &obs.Longitude, &obs.Depth, &obs.Temperature,
			&obs.TidalFlow, &obs.PreyDensity, &obs.NoiseLevel, &obs.Visibility,
			&obs.CurrentSpeed, &obs.Salinity, &obs.PodSize,
			&obs.HourOfDay, &obs.DayOfYear, &behavior,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}

		if !finiteObservation(obs) {
			skipped++
			r.log.Debug().
				Str("behavior", behavior).
				Msg("Non-finite observation, skipping")
			continue
		}

		batch = append(batch, domain.LabeledObservation{
			Obs:      obs,
			Behavior: domain.Behavior(behavior),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("observation iteration failed: %w", err)
	}

	r.log.Info().
		Int("rows", len(batch)).
		Int("skipped", skipped).
		Msg("Loaded training batch")

	return batch, nil
}

// LoadLatest returns the most recent usable observation, used as the
// environmental template for scheduled forecasts. Returns (nil, nil) when
// the store is empty.
func (r *ObservationRepository) LoadLatest() (*domain.Observation, error) {
	row := r.db.QueryRow(`
		SELECT latitude, longitude, depth, temperature, tidal_flow,
		       prey_density, noise_level, visibility, current_speed,
		       salinity, pod_size, hour_of_day, day_of_year
		FROM observations
		WHERE latitude IS NOT NULL
		  AND longitude IS NOT NULL
		  AND depth IS NOT NULL
		  AND temperature IS NOT NULL
		  AND tidal_flow IS NOT NULL
		  AND prey_density IS NOT NULL
		  AND noise_level IS NOT NULL
		  AND visibility IS NOT NULL
		  AND current_speed IS NOT NULL
		  AND salinity IS NOT NULL
		  AND pod_size IS NOT NULL
		  AND hour_of_day IS NOT NULL
		  AND day_of_year IS NOT NULL
		ORDER BY id DESC
		LIMIT 1
	`)

	var obs domain.Observation
	err := row.Scan(
		&obs.Latitude, &obs.Longitude, &obs.Depth, &obs.Temperature,
		&obs.TidalFlow, &obs.PreyDensity, &obs.NoiseLevel, &obs.Visibility,
		&obs.CurrentSpeed, &obs.Salinity, &obs.PodSize,
		&obs.HourOfDay, &obs.DayOfYear,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest observation: %w", err)
	}
	if !finiteObservation(obs) {
		return nil, nil
	}
	return &obs, nil
}

// Insert stores one labeled observation. Primarily used by ingestion
// tooling and tests.
func (r *ObservationRepository) Insert(row domain.LabeledObservation, observedAt string) error {
	vec := row.Obs.Vector()
	args := make([]interface{}, 0, domain.NumFields+2)
	args = append(args, observedAt)
	for _, v := range vec {
		args = append(args, v)
	}
	args = append(args, string(row.Behavior))

	_, err := r.db.Exec(`
		INSERT INTO observations
			(observed_at, latitude, longitude, depth, temperature, tidal_flow,
			 prey_density, noise_level, visibility, current_speed, salinity,
			 pod_size, hour_of_day, day_of_year, behavior)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to insert observation: %w", err)
	}
	return nil
}

func finiteObservation(obs domain.Observation) bool {
	for _, v := range obs.Vector() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
