// Package registry persists discovered equation sets between process
// restarts. On startup the service either loads the latest stored run or
// re-runs discovery from raw data; both paths produce functionally
// equivalent evaluators.
package registry

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/orcast/orcast/internal/domain"
	"github.com/orcast/orcast/internal/modules/discovery"
	"github.com/orcast/orcast/internal/modules/equations"
	"github.com/rs/zerolog"
)

const schema = `
CREATE TABLE IF NOT EXISTS equation_runs (
	run_id TEXT NOT NULL,
	behavior TEXT NOT NULL,
	terms BLOB NOT NULL,
	alpha REAL NOT NULL DEFAULT 0,
	sparsity REAL NOT NULL DEFAULT 0,
	equation TEXT,
	created_at TEXT NOT NULL,
	PRIMARY KEY (run_id, behavior)
);
CREATE INDEX IF NOT EXISTS idx_equation_runs_created
	ON equation_runs(created_at);
`

// Repository is the sqlite-backed equation cache.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates the repository and ensures its schema.
func NewRepository(db *sql.DB, log zerolog.Logger) (*Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create registry schema: %w", err)
	}
	return &Repository{
		db:  db,
		log: log.With().Str("component", "equation_registry").Logger(),
	}, nil
}

// SaveRun stores every behavior equation of a discovery run in one
// transaction. Equations are serialized as msgpack term lists; the rendered
// equation text is stored alongside for operator inspection only.
func (r *Repository) SaveRun(result *discovery.Result) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin registry transaction: %w", err)
	}

	createdAt := result.DiscoveredAt.Format(time.RFC3339)
	for _, behavior := range domain.AllBehaviors() {
		expr, _ := result.Set.Equation(behavior)
		blob, err := equations.MarshalExpr(expr)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to encode %s equation: %w", behavior, err)
		}

		summary := result.Summaries[behavior]
		_, err = tx.Exec(`
			INSERT INTO equation_runs
				(run_id, behavior, terms, alpha, sparsity, equation, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, result.RunID, string(behavior), blob, summary.Alpha, summary.Sparsity, expr.String(), createdAt)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to store %s equation: %w", behavior, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit registry transaction: %w", err)
	}

	r.log.Info().
		Str("run_id", result.RunID).
		Msg("Discovery run persisted")

	return nil
}

// LoadLatest reconstructs the equation set of the most recent stored run.
// Returns (nil, nil) when the registry is empty.
func (r *Repository) LoadLatest() (*equations.Set, error) {
	var runID, createdAt string
	err := r.db.QueryRow(`
		SELECT run_id, created_at
		FROM equation_runs
		ORDER BY created_at DESC
		LIMIT 1
	`).Scan(&runID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest run: %w", err)
	}

	rows, err := r.db.Query(`
		SELECT behavior, terms
		FROM equation_runs
		WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	defer rows.Close()

	exprs := make(map[domain.Behavior]*equations.Expr)
	for rows.Next() {
		var behavior string
		var blob []byte
		if err := rows.Scan(&behavior, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan equation row: %w", err)
		}
		expr, err := equations.UnmarshalExpr(blob)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s equation: %w", behavior, err)
		}
		exprs[domain.Behavior(behavior)] = expr
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("equation iteration failed: %w", err)
	}

	discoveredAt, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		discoveredAt = time.Time{}
	}

	r.log.Info().
		Str("run_id", runID).
		Int("behaviors", len(exprs)).
		Msg("Loaded equation set from registry")

	return equations.NewSet(runID, discoveredAt, exprs), nil
}
