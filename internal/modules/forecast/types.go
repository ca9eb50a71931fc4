// Package forecast sweeps the equation evaluator (and optionally the HMC
// sampler) over a spatial/temporal lattice to produce a forecast surface.
package forecast

import (
	"fmt"
	"time"

	"github.com/orcast/orcast/internal/domain"
	"github.com/orcast/orcast/internal/modules/uncertainty"
)

// Request describes one grid sweep.
type Request struct {
	LatMin, LatMax float64
	LngMin, LngMax float64
	// Resolution is the cell size in degrees.
	Resolution float64
	// TimeOffsets are hours ahead of the template's hour-of-day.
	TimeOffsets []int
	// Template supplies the non-spatial environmental fields; latitude,
	// longitude and hour-of-day are overridden per cell.
	Template domain.Observation
	// Behaviors defaults to all behaviors when empty.
	Behaviors []domain.Behavior
	// UseUncertainty switches each cell from the fast evaluator path to the
	// HMC sampler. Expect runtimes of seconds rather than milliseconds.
	UseUncertainty bool
	Sampler        uncertainty.Config
}

// Validate checks the request geometry.
func (r Request) Validate() error {
	if r.Resolution <= 0 {
		return fmt.Errorf("resolution must be positive, got %g", r.Resolution)
	}
	if r.LatMax < r.LatMin || r.LngMax < r.LngMin {
		return fmt.Errorf("inverted region bounds")
	}
	if len(r.TimeOffsets) == 0 {
		return fmt.Errorf("at least one time offset required")
	}
	return nil
}

func (r Request) behaviors() []domain.Behavior {
	if len(r.Behaviors) > 0 {
		return r.Behaviors
	}
	return domain.AllBehaviors()
}

// TimeStep is one (cell, offset) result for one behavior. Failed steps carry
// a zero probability and the flag instead of aborting the sweep.
type TimeStep struct {
	OffsetHours      int     `msgpack:"offset_hours"`
	Probability      float64 `msgpack:"probability"`
	Lower95          float64 `msgpack:"lower95"`
	Upper95          float64 `msgpack:"upper95"`
	UncertaintyScore float64 `msgpack:"uncertainty_score"`
	Failed           bool    `msgpack:"failed"`
}

// BehaviorCell aggregates one behavior's series at one grid point.
type BehaviorCell struct {
	// Mean is the probability averaged over the non-failed steps of the
	// requested time window.
	Mean   float64    `msgpack:"mean"`
	Series []TimeStep `msgpack:"series"`
}

// GridPoint is one (latitude, longitude) cell of the forecast surface.
type GridPoint struct {
	Latitude  float64                           `msgpack:"latitude"`
	Longitude float64                           `msgpack:"longitude"`
	Behaviors map[domain.Behavior]*BehaviorCell `msgpack:"behaviors"`
}

// Grid is the in-memory forecast surface handed to the persistence layer.
// Only plain floats cross that boundary - no symbolic types.
type Grid struct {
	ID             string
	GeneratedAt    time.Time
	LatMin, LatMax float64
	LngMin, LngMax float64
	Resolution     float64
	UseUncertainty bool
	EquationRunID  string
	Points         []GridPoint
	// Failures counts (cell, offset, behavior) evaluations that were flagged
	// rather than computed.
	Failures int
}
