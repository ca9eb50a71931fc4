package equations

import (
	"sync/atomic"
	"time"

	"github.com/orcast/orcast/internal/domain"
)

// Set is an immutable snapshot of the discovered equations, one per
// behavior. Discovery produces a new Set; evaluators and samplers only read.
type Set struct {
	equations    map[domain.Behavior]*Expr
	runID        string
	discoveredAt time.Time
}

// NewSet builds a snapshot. The input map is copied; missing behaviors are
// filled with the zero equation so readers never see a nil expression.
func NewSet(runID string, discoveredAt time.Time, equations map[domain.Behavior]*Expr) *Set {
	copied := make(map[domain.Behavior]*Expr, len(domain.AllBehaviors()))
	for _, b := range domain.AllBehaviors() {
		if expr, ok := equations[b]; ok && expr != nil {
			copied[b] = expr
		} else {
			copied[b] = Construct(nil)
		}
	}
	return &Set{equations: copied, runID: runID, discoveredAt: discoveredAt}
}

// Equation returns the equation for a behavior.
func (s *Set) Equation(behavior domain.Behavior) (*Expr, bool) {
	expr, ok := s.equations[behavior]
	return expr, ok
}

// RunID returns the discovery run that produced this snapshot.
func (s *Set) RunID() string {
	return s.runID
}

// DiscoveredAt returns when the snapshot was produced.
func (s *Set) DiscoveredAt() time.Time {
	return s.discoveredAt
}

// Store holds the current equation-set snapshot. Reads are lock-free;
// retraining swaps the whole snapshot atomically so concurrent evaluators
// never observe a half-updated set.
type Store struct {
	current atomic.Pointer[Set]
}

// NewStore creates a store holding an all-zero equation set, so the service
// can serve (neutral) predictions before the first discovery completes.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(NewSet("", time.Time{}, nil))
	return s
}

// Current returns the active snapshot.
func (s *Store) Current() *Set {
	return s.current.Load()
}

// Swap atomically replaces the active snapshot.
func (s *Store) Swap(set *Set) {
	s.current.Store(set)
}
