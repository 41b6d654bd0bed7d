package allopatry

import (
	"fmt"

	"cladecore/pkg/biota"
)

// Metric names the species contributes to the temporal record.
const (
	MetricExtinctionCount = "extinction_count"
	MetricSpeciationCount = "speciation_count"
)

// Species is an allopatric lineage. Each tick it maps its range through its
// provider's destinations: an empty result is extinction, a single zone is
// survival, and a fragmented range keeps the species in the first zone while
// founding one child species in every other fragment.
type Species struct {
	biota.Taxon
	parent biota.Species
	zones  []biota.Zone
	extant bool
}

// NewSpecies founds a root lineage occupying zones. Roots have no parent;
// descendants are created by Evolve.
func NewSpecies(zones ...biota.Zone) *Species {
	return &Species{zones: append([]biota.Zone(nil), zones...), extant: true}
}

// Evolve advances the species to time by following every occupied zone to
// its destinations.
func (s *Species) Evolve(time, dt float64, metrics biota.Metrics) ([]biota.Species, error) {
	next, err := s.destinations()
	if err != nil {
		return nil, err
	}
	if len(next) == 0 {
		s.extant = false
		s.zones = nil
		metrics.Add(MetricExtinctionCount, 1)
		return nil, nil
	}
	s.extant = true
	s.zones = []biota.Zone{next[0]}
	if len(next) == 1 {
		return nil, nil
	}
	children := make([]biota.Species, 0, len(next)-1)
	for _, z := range next[1:] {
		children = append(children, &Species{
			parent: s,
			zones:  []biota.Zone{z},
			extant: true,
		})
	}
	metrics.Add(MetricSpeciationCount, float64(len(children)))
	return children, nil
}

// destinations gathers the species' range at the tick being processed,
// deduplicated by identity in first-seen order. Ranges that merged into a
// shared zone collapse to one entry.
func (s *Species) destinations() ([]biota.Zone, error) {
	seen := make(map[biota.Zone]struct{}, len(s.zones))
	var next []biota.Zone
	for _, z := range s.zones {
		provider, ok := z.Provider().(*Provider)
		if !ok {
			return nil, fmt.Errorf("species range contains a zone from a %T provider", z.Provider())
		}
		for _, d := range provider.Destinations(z) {
			if _, dup := seen[d]; dup {
				continue
			}
			seen[d] = struct{}{}
			next = append(next, d)
		}
	}
	return next, nil
}

// Extant reports whether the species survived its most recent Evolve.
func (s *Species) Extant() bool { return s.extant }

// Parent returns the species this one speciated from, or nil for a root.
func (s *Species) Parent() biota.Species { return s.parent }

// Zones returns the zones the species currently occupies.
func (s *Species) Zones() []biota.Zone {
	return append([]biota.Zone(nil), s.zones...)
}
