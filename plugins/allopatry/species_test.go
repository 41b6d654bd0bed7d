package allopatry

import (
	"strings"
	"testing"

	"cladecore/pkg/biota"
)

// stubProvider satisfies the provider contract without being an allopatry
// provider, for exercising the foreign-zone error path.
type stubProvider struct{}

func (stubProvider) CreateZones(float64) ([]biota.Zone, error) { return nil, nil }

func (stubProvider) UpdatePaths(float64, []biota.Zone, []biota.Zone, biota.Metrics) ([]biota.Zone, error) {
	return nil, nil
}

func reconcile(t *testing.T, p *Provider, tick float64, prior []biota.Zone) []biota.Zone {
	t.Helper()
	cands := mustZones(t, p, tick)
	got, err := p.UpdatePaths(tick, prior, cands, biota.Metrics{})
	if err != nil {
		t.Fatalf("update paths at %v: %v", tick, err)
	}
	return got
}

func TestSpeciesSurvivesSingleDestination(t *testing.T) {
	p := mustProvider(t, "basins", []string{"home"})
	prior := mustZones(t, p, 0)
	s := NewSpecies(prior[0])
	reconcile(t, p, 1, prior)

	metrics := biota.Metrics{}
	kids, err := s.Evolve(1, 1, metrics)
	if err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if len(kids) != 0 {
		t.Fatalf("stable range should produce no children, got %d", len(kids))
	}
	if !s.Extant() {
		t.Fatal("species should survive")
	}
	if zones := s.Zones(); len(zones) != 1 || zones[0] != prior[0] {
		t.Fatalf("species should keep its carried zone, got %v", zones)
	}
	if len(metrics) != 0 {
		t.Fatalf("survival should record no metrics, got %v", metrics)
	}
}

func TestSpeciesSpeciatesWhenRangeFragments(t *testing.T) {
	p := mustProvider(t, "basins", []string{"valley"}, []string{"valley", "valley.east", "valley.west"})
	prior := mustZones(t, p, 0)
	s := NewSpecies(prior[0])
	got := reconcile(t, p, 1, prior)

	metrics := biota.Metrics{}
	kids, err := s.Evolve(1, 1, metrics)
	if err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if len(kids) != 2 {
		t.Fatalf("fragmenting into three zones should found two children, got %d", len(kids))
	}
	if !s.Extant() {
		t.Fatal("parent should survive in the first fragment")
	}
	if zones := s.Zones(); len(zones) != 1 || zones[0] != prior[0] {
		t.Fatalf("parent should keep the carried zone, got %v", zones)
	}
	for i, kid := range kids {
		if kid.Parent() != s {
			t.Fatalf("child %d parent = %v, want the evolving species", i, kid.Parent())
		}
		if !kid.Extant() {
			t.Fatalf("child %d should be extant", i)
		}
		if _, assigned := kid.Identifier(); assigned {
			t.Fatalf("child %d should await an identifier from the engine", i)
		}
		zones := kid.Zones()
		if len(zones) != 1 || zones[0] != got[i+1] {
			t.Fatalf("child %d zones = %v, want fragment %v", i, zones, got[i+1])
		}
	}
	if label := kids[0].Zones()[0].(*Zone).Label(); label != "valley.east" {
		t.Fatalf("first child label = %q", label)
	}
	if metrics[MetricSpeciationCount] != 2 || len(metrics) != 1 {
		t.Fatalf("metrics = %v", metrics)
	}
}

func TestSpeciesGoesExtinctWhenRangeDisappears(t *testing.T) {
	p := mustProvider(t, "seas", []string{"isle"}, []string{"mainland"})
	prior := mustZones(t, p, 0)
	s := NewSpecies(prior[0])
	reconcile(t, p, 1, prior)

	metrics := biota.Metrics{}
	kids, err := s.Evolve(1, 1, metrics)
	if err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if len(kids) != 0 {
		t.Fatalf("extinction should produce no children, got %d", len(kids))
	}
	if s.Extant() {
		t.Fatal("species should be extinct once its range disappears")
	}
	if zones := s.Zones(); len(zones) != 0 {
		t.Fatalf("extinct species should occupy nothing, got %v", zones)
	}
	if metrics[MetricExtinctionCount] != 1 || len(metrics) != 1 {
		t.Fatalf("metrics = %v", metrics)
	}
}

func TestSpeciesCollapsesMergedRange(t *testing.T) {
	p := mustProvider(t, "coast", []string{"coast.north", "coast.south"}, []string{"coast"})
	prior := mustZones(t, p, 0)
	s := NewSpecies(prior...)
	got := reconcile(t, p, 1, prior)

	metrics := biota.Metrics{}
	kids, err := s.Evolve(1, 1, metrics)
	if err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if len(kids) != 0 {
		t.Fatalf("a range merging into one zone should not speciate, got %d children", len(kids))
	}
	if zones := s.Zones(); len(zones) != 1 || zones[0] != got[0] {
		t.Fatalf("species should occupy the merged zone, got %v", zones)
	}
	if len(metrics) != 0 {
		t.Fatalf("metrics = %v", metrics)
	}
}

func TestSpeciesLineagePersistsAcrossTicks(t *testing.T) {
	p := mustProvider(t, "basins", []string{"v"}, []string{"v", "v.e"})
	prior := mustZones(t, p, 0)
	s := NewSpecies(prior[0])
	got := reconcile(t, p, 1, prior)

	kids, err := s.Evolve(1, 1, biota.Metrics{})
	if err != nil {
		t.Fatalf("evolve tick 1: %v", err)
	}
	if len(kids) != 1 {
		t.Fatalf("tick 1 children = %d, want 1", len(kids))
	}
	child := kids[0]

	// Both labels persist, so parent and child each carry over untouched.
	reconcile(t, p, 2, got)
	for name, sp := range map[string]biota.Species{"parent": s, "child": child} {
		more, err := sp.Evolve(2, 1, biota.Metrics{})
		if err != nil {
			t.Fatalf("evolve %s tick 2: %v", name, err)
		}
		if len(more) != 0 || !sp.Extant() {
			t.Fatalf("%s should carry over quietly, children=%d extant=%v", name, len(more), sp.Extant())
		}
	}
	if child.Parent() != s {
		t.Fatal("lineage should survive the second tick")
	}
}

func TestSpeciesRejectsZonesFromOtherProviders(t *testing.T) {
	s := NewSpecies(foreignZone{provider: stubProvider{}})
	if _, err := s.Evolve(1, 1, biota.Metrics{}); err == nil || !strings.Contains(err.Error(), "provider") {
		t.Fatalf("error = %v, want foreign provider rejection", err)
	}
}
