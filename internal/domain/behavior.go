package domain

// Behavior is a whale behavior label predicted by the pipeline.
type Behavior string

const (
	Feeding     Behavior = "feeding"
	Socializing Behavior = "socializing"
	Traveling   Behavior = "traveling"
)

// AllBehaviors returns the behaviors the pipeline discovers equations for,
// in stable order.
func AllBehaviors() []Behavior {
	return []Behavior{Feeding, Socializing, Traveling}
}

// LabeledObservation is one training row: an observation tagged with the
// behavior observed at that time and place.
type LabeledObservation struct {
	Obs      Observation
	Behavior Behavior
}

// Targets builds per-behavior binary target vectors from labeled rows.
// Row order is preserved so targets stay paired with the feature matrix.
func Targets(rows []LabeledObservation) map[Behavior][]float64 {
	targets := make(map[Behavior][]float64, len(AllBehaviors()))
	for _, b := range AllBehaviors() {
		vec := make([]float64, len(rows))
		for i, row := range rows {
			if row.Behavior == b {
				vec[i] = 1.0
			}
		}
		targets[b] = vec
	}
	return targets
}
