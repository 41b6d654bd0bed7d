package core

import "cladecore/pkg/biota"

// unnumberedMark records a clade that has been issued but holds no
// numbered species yet.
const unnumberedMark = -1

// Registry allocates clade names and per-clade species numbers. Clades
// are named A..Z, then AA..ZZ, then AAA and so on, skipping names already
// present; numbers within a clade are issued 0, 1, 2, ... with no gaps.
// One registry never issues the same (clade, number) pair twice.
type Registry struct {
	counter int
	numbers map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{numbers: make(map[string]int)}
}

// NewClade issues the next unused clade name and marks it issued with no
// species numbered yet.
func (g *Registry) NewClade() string {
	for {
		name := cladeName(g.counter)
		g.counter++
		if _, taken := g.numbers[name]; taken {
			continue
		}
		g.numbers[name] = unnumberedMark
		return name
	}
}

// NextTaxon issues the next identifier in the clade: (clade, 0) the first
// time, then (clade, 1), (clade, 2), and so on. A clade the registry has
// never seen is initialized on first use.
func (g *Registry) NextTaxon(clade string) biota.TaxonID {
	n, ok := g.numbers[clade]
	if !ok || n == unnumberedMark {
		g.numbers[clade] = 0
		return biota.TaxonID{Clade: clade, Number: 0}
	}
	n++
	g.numbers[clade] = n
	return biota.TaxonID{Clade: clade, Number: n}
}

// Clades returns the number of clade names issued.
func (g *Registry) Clades() int {
	return len(g.numbers)
}

// cladeName maps a non-negative ordinal onto the clade progression
// A..Z, AA..ZZ, AAA...; a bijective base-26 encoding of ordinal+1 rather
// than a recomputed alphabet product, so overflow costs nothing at scale.
func cladeName(n int) string {
	buf := make([]byte, 0, 4)
	n++
	for n > 0 {
		n--
		buf = append(buf, byte('A'+n%26))
		n /= 26
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}
