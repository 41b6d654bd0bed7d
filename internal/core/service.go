package core

import (
	"fmt"
	"time"

	"cladecore/pkg/biota"
)

// Operation names observed on metrics, traces, and audit entries.
const (
	opRunOneStep       = "run_one_step"
	opIntroduceSpecies = "introduce_species"
)

// noSpeciesMessage is the warning logged when a tick runs before any
// species has ever been introduced.
const noSpeciesMessage = "no species exist; introduce species to the service"

// Service owns the simulation bookkeeping for one run: the zone and
// species ledgers, the temporal record of per-tick diagnostics, and the
// identifier registry. Each RunOneStep call advances one tick, delegating
// zone continuity and species evolution to collaborators and reconciling
// their results. A Service is single-threaded by contract: collaborators
// run sequentially in a fixed order (provider registration order, species
// ledger insertion order), and nothing blocks or cancels mid-tick.
type Service struct {
	providers []biota.ZoneProvider
	zones     *Ledger[biota.Zone]
	species   *Ledger[biota.Species]
	record    *Record
	registry  *Registry

	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
}

// NewService constructs a service whose record starts at initialTime and
// whose zone ledger is seeded by asking every provider for its zones at
// that time. Provider order is preserved and observable: it fixes the
// order path reconciliation runs in every tick.
func NewService(initialTime float64, providers []biota.ZoneProvider, opts ...ServiceOption) (*Service, error) {
	s := &Service{
		providers: append([]biota.ZoneProvider(nil), providers...),
		zones:     NewLedger[biota.Zone](),
		species:   NewLedger[biota.Species](),
		record:    NewRecord(initialTime),
		registry:  NewRegistry(),
		logger:    noopLogger{},
		metrics:   noopMetrics{},
		tracer:    noopTracer{},
		audit:     noopAudit{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	for i, p := range s.providers {
		zs, err := p.CreateZones(initialTime)
		if err != nil {
			return nil, fmt.Errorf("seed zones from provider %d at %v: %w", i, initialTime, err)
		}
		s.zones.Reconcile(initialTime, zs)
	}
	return s, nil
}

// run wraps one public operation with tracing, metrics, audit, and
// outcome logging.
func (s *Service) run(op string, detail map[string]any, fn func() error) error {
	span := s.tracer.Start(op)
	start := time.Now()
	err := fn()
	s.metrics.Observe(op, err == nil, time.Since(start))
	span.End(err)
	status := AuditStatusSuccess
	if err != nil {
		status = AuditStatusError
		s.logger.Error(op+" failed", "error", err)
	} else {
		s.logger.Debug(op + " completed")
	}
	s.audit.Record(AuditEntry{
		Operation: op,
		Status:    status,
		SimTime:   s.record.LatestTime(),
		Detail:    detail,
		At:        time.Now().UTC(),
	})
	return err
}

// RunOneStep advances the simulation by dt. It records the new time,
// reconciles every provider's zones through the provider's own path
// logic, then evolves every species extant at the prior time and
// allocates identifiers for their children. dt must move time strictly
// forward. The zone phase always completes before species processing
// begins; a species-phase failure leaves the completed zone updates in
// place and the species ledger, record, and registry untouched for the
// tick.
func (s *Service) RunOneStep(dt float64) error {
	return s.run(opRunOneStep, map[string]any{"dt": dt}, func() error {
		return s.step(dt)
	})
}

func (s *Service) step(dt float64) error {
	tick := s.record.LatestTime() + dt
	if err := s.record.Advance(tick); err != nil {
		return err
	}
	prior := s.record.PriorTime()

	zoneMetrics := biota.Metrics{}
	union, err := s.updatedZones(tick, prior, zoneMetrics)
	if err != nil {
		return err
	}
	// names are checked before the reconcile so reconcile+merge stays
	// all-or-nothing
	if err := s.record.ValidateNames(zoneMetrics); err != nil {
		return err
	}
	s.zones.Reconcile(tick, union)
	if err := s.record.Merge(zoneMetrics); err != nil {
		return err
	}

	if s.species.Len() == 0 {
		s.logger.Warn(noSpeciesMessage)
		return nil
	}
	survivors, speciesMetrics, err := s.evolvedSpecies(tick, prior, dt)
	if err != nil {
		return err
	}
	s.species.Reconcile(tick, survivors)
	return s.record.Merge(speciesMetrics)
}

// updatedZones gathers every provider's candidate zones at tick,
// partitions prior and candidate zones by owning provider, delegates path
// reconciliation, and returns the union of all destinations deduplicated
// by identity in first-seen order.
func (s *Service) updatedZones(tick, prior float64, metrics biota.Metrics) ([]biota.Zone, error) {
	priorZones := s.zones.At(prior)
	var candidates []biota.Zone
	for i, p := range s.providers {
		zs, err := p.CreateZones(tick)
		if err != nil {
			return nil, fmt.Errorf("provider %d create zones: %w", i, err)
		}
		candidates = append(candidates, zs...)
	}
	seen := make(map[biota.Zone]struct{})
	var union []biota.Zone
	for i, p := range s.providers {
		dest, err := p.UpdatePaths(tick, zonesOwnedBy(priorZones, p), zonesOwnedBy(candidates, p), metrics)
		if err != nil {
			return nil, fmt.Errorf("provider %d update paths: %w", i, err)
		}
		for _, z := range dest {
			if _, dup := seen[z]; dup {
				continue
			}
			seen[z] = struct{}{}
			union = append(union, z)
		}
	}
	return union, nil
}

// zonesOwnedBy filters zones to those whose owning provider is p.
func zonesOwnedBy(zones []biota.Zone, p biota.ZoneProvider) []biota.Zone {
	var out []biota.Zone
	for _, z := range zones {
		if z.Provider() == p {
			out = append(out, z)
		}
	}
	return out
}

// evolvedSpecies runs the species phase for one tick without mutating any
// service state: it evolves every species extant at prior in ledger
// order, collects survivors and children, validates the children's
// lineage, and only then issues identifiers. Any failure before the
// return leaves ledger, record, and registry exactly as they were.
func (s *Service) evolvedSpecies(tick, prior, dt float64) ([]biota.Species, biota.Metrics, error) {
	metrics := biota.Metrics{}
	extant := s.species.At(prior)
	survivors := make([]biota.Species, 0, len(extant))
	var children []biota.Species
	for _, sp := range extant {
		kids, err := sp.Evolve(tick, dt, metrics)
		if err != nil {
			return nil, nil, fmt.Errorf("evolve species %s: %w", idLabel(sp), err)
		}
		if sp.Extant() {
			survivors = append(survivors, sp)
		}
		survivors = append(survivors, kids...)
		children = append(children, kids...)
	}
	if err := s.record.ValidateNames(metrics); err != nil {
		return nil, nil, err
	}

	seen := make(map[biota.Species]struct{}, len(children))
	for _, child := range children {
		if _, dup := seen[child]; dup {
			return nil, nil, fmt.Errorf("child species returned more than once")
		}
		seen[child] = struct{}{}
		if id, ok := child.Identifier(); ok {
			return nil, nil, fmt.Errorf("child species already identified as %s", id)
		}
		parent := child.Parent()
		if parent == nil {
			return nil, nil, LineageError{}
		}
		if _, ok := parent.Identifier(); !ok {
			return nil, nil, LineageError{Parent: parent}
		}
	}
	for _, child := range children {
		pid, _ := child.Parent().Identifier()
		id := s.registry.NextTaxon(pid.Clade)
		if err := child.SetIdentifier(id); err != nil {
			return nil, nil, fmt.Errorf("assign %s: %w", id, err)
		}
	}
	return survivors, metrics, nil
}

// IntroduceSpecies registers a new root species at the current latest
// time. The species must not already be tracked, must not carry an
// identifier assigned elsewhere, and must occupy at least one zone; a
// violation fails before any ledger or registry state changes. On success
// the species founds a fresh clade and receives its (clade, 0)
// identifier.
func (s *Service) IntroduceSpecies(sp biota.Species) error {
	return s.run(opIntroduceSpecies, nil, func() error {
		return s.introduce(sp)
	})
}

func (s *Service) introduce(sp biota.Species) error {
	if sp == nil {
		return fmt.Errorf("species cannot be nil")
	}
	if s.species.Contains(sp) {
		id, _ := sp.Identifier()
		return DuplicateSpeciesError{ID: id}
	}
	if id, ok := sp.Identifier(); ok {
		return DuplicateSpeciesError{ID: id}
	}
	if len(sp.Zones()) == 0 {
		return ErrUnzonedSpecies
	}
	clade := s.registry.NewClade()
	id := s.registry.NextTaxon(clade)
	if err := sp.SetIdentifier(id); err != nil {
		return fmt.Errorf("assign %s: %w", id, err)
	}
	at := s.record.LatestTime()
	s.species.Reconcile(at, []biota.Species{sp})
	s.logger.Info("species introduced", "id", id.String(), "time", at)
	return nil
}

// LatestTime returns the most recent recorded simulation time.
func (s *Service) LatestTime() float64 {
	return s.record.LatestTime()
}

// ZonesAt returns the zones extant at time, in ledger insertion order.
func (s *Service) ZonesAt(time float64) []biota.Zone {
	return s.zones.At(time)
}

// SpeciesAt returns the species extant at time, in ledger insertion
// order.
func (s *Service) SpeciesAt(time float64) []biota.Species {
	return s.species.At(time)
}

// SpeciesWithIdentifier returns the tracked species selected by key: a
// TaxonID selects one species, a clade string selects that whole clade,
// and an int selects every species sharing that number across clades. An
// unrecognized key shape returns an IdentifierQueryError; a recognized
// key with no match returns an empty result and no error.
func (s *Service) SpeciesWithIdentifier(key any) ([]biota.Species, error) {
	match, err := identifierMatcher(key)
	if err != nil {
		return nil, err
	}
	var out []biota.Species
	for _, e := range s.species.Entries() {
		if id, ok := e.Entity.Identifier(); ok && match(id) {
			out = append(out, e.Entity)
		}
	}
	return out, nil
}

func identifierMatcher(key any) (func(biota.TaxonID) bool, error) {
	switch k := key.(type) {
	case biota.TaxonID:
		return func(id biota.TaxonID) bool { return id == k }, nil
	case string:
		return func(id biota.TaxonID) bool { return id.Clade == k }, nil
	case int:
		return func(id biota.TaxonID) bool { return id.Number == k }, nil
	default:
		return nil, IdentifierQueryError{Key: key}
	}
}

// RecordTable returns the tabular snapshot of the temporal record.
func (s *Service) RecordTable() Table {
	return s.record.Table()
}

// SpeciesTable returns the species ledger snapshot: identifier columns
// plus the existence interval, one row per species in insertion order.
func (s *Service) SpeciesTable() Table {
	cols := []Column{
		{Name: "clade", Kind: ColumnString},
		{Name: "number", Kind: ColumnInt},
		{Name: "time_appeared", Kind: ColumnFloat},
		{Name: "latest_time", Kind: ColumnFloat},
	}
	entries := s.species.Entries()
	rows := make([]map[string]any, len(entries))
	for i, e := range entries {
		id, _ := e.Entity.Identifier()
		rows[i] = map[string]any{
			"clade":         id.Clade,
			"number":        id.Number,
			"time_appeared": e.Appeared,
			"latest_time":   e.Latest,
		}
	}
	return Table{Columns: cols, Rows: rows}
}

// ZonesTable returns the zone ledger snapshot: the existence interval per
// zone, one row per zone in insertion order.
func (s *Service) ZonesTable() Table {
	cols := []Column{
		{Name: "time_appeared", Kind: ColumnFloat},
		{Name: "latest_time", Kind: ColumnFloat},
	}
	entries := s.zones.Entries()
	rows := make([]map[string]any, len(entries))
	for i, e := range entries {
		rows[i] = map[string]any{
			"time_appeared": e.Appeared,
			"latest_time":   e.Latest,
		}
	}
	return Table{Columns: cols, Rows: rows}
}

func idLabel(sp biota.Species) string {
	if id, ok := sp.Identifier(); ok {
		return id.String()
	}
	return "unidentified"
}
