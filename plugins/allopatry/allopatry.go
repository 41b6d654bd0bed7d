// Package allopatry implements the reference collaborators for the
// reconciliation engine: a zone provider whose habitat timeline is scripted
// as ordered stages of labels, and a species that speciates allopatrically
// when path reconciliation fragments its range.
//
// The system carries no spatial geometry, so continuity between ticks is
// resolved by label instead of by overlap. Labels form families via dotted
// prefixes: "coast", "coast.north" and "coast.south" all belong to the
// family "coast". Within one path update a prior zone whose exact label
// reappears carries over as the same object; new labels in its family become
// split destinations; a prior zone whose label vanished follows its family's
// surviving zones (a merge) or retires with the family.
package allopatry

import (
	"fmt"
	"strings"

	"cladecore/pkg/biota"
)

// Metric names the provider contributes to the temporal record.
const (
	MetricZonesCreated = "zones_created"
	MetricZonesRetired = "zones_retired"
	MetricZoneSplits   = "zone_splits"
	MetricZoneMerges   = "zone_merges"
)

// Zone is a labeled habitat region. Zones are identity-compared by the
// engine; every CreateZones call mints fresh objects and UpdatePaths decides
// which prior objects live on.
type Zone struct {
	provider *Provider
	label    string
}

// Provider reports the provider that produced this zone.
func (z *Zone) Provider() biota.ZoneProvider { return z.provider }

// Label returns the zone's scripted label.
func (z *Zone) Label() string { return z.label }

func (z *Zone) String() string { return z.label }

// Provider is a ZoneProvider driven by a scripted timeline: each CreateZones
// call materializes the next stage of labels, and once the script is
// exhausted the last stage repeats forever. Providers are not safe for
// concurrent use; the engine invokes collaborators sequentially.
type Provider struct {
	name   string
	stages [][]string
	cursor int
	dest   map[biota.Zone][]biota.Zone
}

// NewProvider builds a provider named name from ordered stages of zone
// labels. At least one stage is required, labels are trimmed, and a label
// may not repeat within a stage.
func NewProvider(name string, stages ...[]string) (*Provider, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("provider name required")
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("at least one stage required")
	}
	cleaned := make([][]string, len(stages))
	for i, stage := range stages {
		seen := make(map[string]struct{}, len(stage))
		labels := make([]string, 0, len(stage))
		for _, label := range stage {
			label = strings.TrimSpace(label)
			if label == "" {
				return nil, fmt.Errorf("stage %d: label required", i+1)
			}
			if _, dup := seen[label]; dup {
				return nil, fmt.Errorf("stage %d: duplicate label %q", i+1, label)
			}
			seen[label] = struct{}{}
			labels = append(labels, label)
		}
		if len(labels) == 0 {
			return nil, fmt.Errorf("stage %d: at least one label required", i+1)
		}
		cleaned[i] = labels
	}
	return &Provider{name: strings.TrimSpace(name), stages: cleaned}, nil
}

// ParseStages parses a scripted timeline from a flag-friendly string:
// stages separated by semicolons, labels within a stage by commas. Blank
// labels are skipped; a stage with no labels at all is an error.
//
//	"valley;valley,valley.rift" -> two stages
func ParseStages(raw string) ([][]string, error) {
	parts := strings.Split(raw, ";")
	stages := make([][]string, 0, len(parts))
	for i, part := range parts {
		var labels []string
		for _, label := range strings.Split(part, ",") {
			if label = strings.TrimSpace(label); label != "" {
				labels = append(labels, label)
			}
		}
		if len(labels) == 0 {
			return nil, fmt.Errorf("stage %d has no labels", i+1)
		}
		stages = append(stages, labels)
	}
	return stages, nil
}

// Name returns the provider's name.
func (p *Provider) Name() string { return p.name }

// CreateZones materializes the next stage of the script as fresh zone
// objects. The final stage repeats once the script runs out, so a provider
// keeps answering however long the simulation runs.
func (p *Provider) CreateZones(time float64) ([]biota.Zone, error) {
	stage := p.stages[p.cursor]
	if p.cursor < len(p.stages)-1 {
		p.cursor++
	}
	zones := make([]biota.Zone, len(stage))
	for i, label := range stage {
		zones[i] = &Zone{provider: p, label: label}
	}
	return zones, nil
}

// UpdatePaths resolves continuity between prior and candidate zones by
// label. Exact matches carry the prior object forward; candidates without a
// match enter as new zones. Each prior zone's destinations are then derived
// from its family: carried zones fan out into the family's newcomers,
// unmatched zones follow the family's survivors, and zones whose family
// vanished retire. The destination map feeds Destinations until the next
// call.
func (p *Provider) UpdatePaths(time float64, prior, candidates []biota.Zone, metrics biota.Metrics) ([]biota.Zone, error) {
	priorZones, err := p.own(prior)
	if err != nil {
		return nil, err
	}
	candZones, err := p.own(candidates)
	if err != nil {
		return nil, err
	}

	carried := make(map[string]*Zone, len(priorZones))
	for _, z := range priorZones {
		carried[z.label] = z
	}
	candLabels := make(map[string]struct{}, len(candZones))
	for _, c := range candZones {
		candLabels[c.label] = struct{}{}
	}

	// Assemble the output in candidate order, swapping in the prior object
	// wherever the label survived so its existence interval continues.
	out := make([]biota.Zone, 0, len(candZones))
	outByFamily := make(map[string][]biota.Zone)
	newByFamily := make(map[string][]biota.Zone)
	for _, c := range candZones {
		z := biota.Zone(c)
		if prev, ok := carried[c.label]; ok {
			z = prev
		} else {
			metrics.Add(MetricZonesCreated, 1)
			newByFamily[family(c.label)] = append(newByFamily[family(c.label)], z)
		}
		out = append(out, z)
		outByFamily[family(c.label)] = append(outByFamily[family(c.label)], z)
	}

	dest := make(map[biota.Zone][]biota.Zone, len(priorZones))
	origins := make(map[biota.Zone]int)
	for _, z := range priorZones {
		fam := family(z.label)
		var targets []biota.Zone
		switch {
		case hasLabel(candLabels, z.label):
			targets = append([]biota.Zone{z}, newByFamily[fam]...)
		case len(outByFamily[fam]) > 0:
			targets = outByFamily[fam]
		default:
			metrics.Add(MetricZonesRetired, 1)
		}
		if len(targets) > 1 {
			metrics.Add(MetricZoneSplits, 1)
		}
		for _, t := range targets {
			origins[t]++
		}
		dest[z] = targets
	}
	for _, n := range origins {
		if n > 1 {
			metrics.Add(MetricZoneMerges, 1)
		}
	}
	p.dest = dest
	return out, nil
}

// Destinations reports where zone flowed during the most recent UpdatePaths:
// the zone itself if it carried over, its split or merge targets otherwise.
// Retired and unknown zones have no destinations.
func (p *Provider) Destinations(zone biota.Zone) []biota.Zone {
	return append([]biota.Zone(nil), p.dest[zone]...)
}

// own narrows zones to this provider's concrete type so labels are
// reachable. The engine partitions zones by provider identity before
// delegating, so a mismatch means a foreign zone claimed this provider.
func (p *Provider) own(zones []biota.Zone) ([]*Zone, error) {
	out := make([]*Zone, 0, len(zones))
	for _, z := range zones {
		zz, ok := z.(*Zone)
		if !ok || zz.provider != p {
			return nil, fmt.Errorf("zone %v was not created by provider %s", z, p.name)
		}
		out = append(out, zz)
	}
	return out, nil
}

func hasLabel(set map[string]struct{}, label string) bool {
	_, ok := set[label]
	return ok
}

// family returns the label's dotted prefix, or the whole label when it has
// none. "coast.north" and "coast" share the family "coast".
func family(label string) string {
	before, _, _ := strings.Cut(label, ".")
	return before
}
