package biota

// Metrics accumulates named scalar diagnostics during one tick.
// Collaborators add values while creating zones, resolving paths, or
// evolving species; the engine merges the accumulated result into its
// temporal record when the phase completes. Repeated additions to the
// same name within a tick sum.
type Metrics map[string]float64

// Add accumulates delta onto the named metric, starting from zero the
// first time the name appears.
func (m Metrics) Add(name string, delta float64) {
	m[name] += delta
}
