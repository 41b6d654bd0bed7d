package biota

import "fmt"

// TaxonID identifies a species lineage: the clade name shared by every
// descendant of one introduction, plus a number unique within that clade.
// The engine allocates clades A..Z, then AA..ZZ and so on, and numbers
// each clade's species 0, 1, 2, ... in order of appearance.
type TaxonID struct {
	Clade  string
	Number int
}

// String renders the identifier as "<clade>.<number>", e.g. "A.0".
func (id TaxonID) String() string {
	return fmt.Sprintf("%s.%d", id.Clade, id.Number)
}

// Taxon is an embeddable write-once identifier slot for Species
// implementations. The zero value is ready to use.
type Taxon struct {
	id       TaxonID
	assigned bool
}

// Identifier returns the assigned identifier and whether assignment has
// happened yet.
func (t *Taxon) Identifier() (TaxonID, bool) {
	return t.id, t.assigned
}

// SetIdentifier stores id. It fails once an identifier has been assigned;
// the engine treats that failure as a collaborator contract violation.
func (t *Taxon) SetIdentifier(id TaxonID) error {
	if t.assigned {
		return fmt.Errorf("identifier already assigned as %s", t.id)
	}
	t.id = id
	t.assigned = true
	return nil
}
