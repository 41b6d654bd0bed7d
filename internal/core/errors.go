package core

import (
	"errors"
	"fmt"

	"cladecore/pkg/biota"
)

// ErrUnzonedSpecies is returned by IntroduceSpecies when the species
// occupies no zones.
var ErrUnzonedSpecies = errors.New("species occupies no zones")

// DuplicateSpeciesError is returned by IntroduceSpecies when the species is
// already tracked by this service, or already carries an identifier assigned
// by another one.
type DuplicateSpeciesError struct {
	ID biota.TaxonID
}

func (e DuplicateSpeciesError) Error() string {
	return fmt.Sprintf("species %s already introduced", e.ID)
}

// IdentifierQueryError is returned by SpeciesWithIdentifier when the key is
// not one of the accepted shapes (TaxonID, clade string, or number).
type IdentifierQueryError struct {
	Key any
}

func (e IdentifierQueryError) Error() string {
	return fmt.Sprintf("identifier key %v (%T) is not a TaxonID, clade string, or number", e.Key, e.Key)
}

// TimeOrderError is returned when a tick's time does not strictly exceed
// the latest recorded time. Simulation time only moves forward.
type TimeOrderError struct {
	Time   float64
	Latest float64
}

func (e TimeOrderError) Error() string {
	return fmt.Sprintf("time %v does not advance past %v", e.Time, e.Latest)
}

// ReservedColumnError is returned when a metrics contribution uses a name
// the record cannot accept as a column.
type ReservedColumnError struct {
	Name string
}

func (e ReservedColumnError) Error() string {
	if e.Name == "" {
		return "metric name is empty"
	}
	return fmt.Sprintf("metric name %q is reserved", e.Name)
}

// LineageError is returned when an evolved child species cannot be placed
// in a clade because its parent is missing or unidentified.
type LineageError struct {
	Parent biota.Species
}

func (e LineageError) Error() string {
	if e.Parent == nil {
		return "child species has no parent"
	}
	return "child species parent has no identifier"
}
