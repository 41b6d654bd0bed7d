// Package biota defines the collaborator contracts consumed by the
// reconciliation engine: habitat zones, the providers that produce and
// connect them across ticks, and the species lineages that evolve within
// them. The engine never depends on any concrete zone or species type;
// collaborators implement these narrow interfaces and are compared by
// object identity throughout.
package biota

// ZoneProvider produces candidate zones for a tick and decides how the
// prior tick's zones map onto them. The zone-detection and path-continuity
// algorithms are entirely the provider's business; the engine only
// partitions, delegates, and reconciles the results.
type ZoneProvider interface {
	// CreateZones returns the provider's candidate zones at time.
	CreateZones(time float64) ([]Zone, error)

	// UpdatePaths resolves continuity between the provider's prior zones
	// and its candidate zones at time. It returns the zones considered the
	// provider's extant zones at time, which may be any mix of carried-over
	// prior objects and newly created ones. Implementations may record
	// scalar diagnostics in metrics.
	UpdatePaths(time float64, prior, candidates []Zone, metrics Metrics) ([]Zone, error)
}

// Zone is a habitat region tracked for its existence interval. Zones are
// compared by identity, never by value: implement with a pointer type so
// two zones with identical data remain distinct entities.
type Zone interface {
	// Provider reports the provider that owns this zone.
	Provider() ZoneProvider
}

// Species is an evolutionary lineage tracked for its existence interval.
// Species are identity-compared, like zones.
type Species interface {
	// Evolve advances the species to time and returns any child species it
	// produced. After the call the engine reads Extant to decide whether
	// the species itself survives the tick; returned children always
	// survive. Implementations may record scalar diagnostics in metrics.
	Evolve(time, dt float64, metrics Metrics) ([]Species, error)

	// Extant reports whether the species survived its most recent Evolve.
	Extant() bool

	// Parent returns the species this one descended from, or nil for an
	// introduced root species. Children returned by Evolve must report an
	// identified parent; the engine derives the child's clade from it.
	Parent() Species

	// Zones returns the zones the species currently occupies.
	Zones() []Zone

	// Identifier returns the engine-assigned identifier and whether one
	// has been assigned yet.
	Identifier() (TaxonID, bool)

	// SetIdentifier assigns the identifier. The engine calls it exactly
	// once per species; implementations must reject reassignment.
	// Embedding Taxon provides a conforming implementation.
	SetIdentifier(TaxonID) error
}
