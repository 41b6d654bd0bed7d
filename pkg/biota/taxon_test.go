package biota

import "testing"

func TestTaxonIDString(t *testing.T) {
	cases := []struct {
		id   TaxonID
		want string
	}{
		{TaxonID{Clade: "A", Number: 0}, "A.0"},
		{TaxonID{Clade: "Z", Number: 41}, "Z.41"},
		{TaxonID{Clade: "AB", Number: 7}, "AB.7"},
	}
	for _, tc := range cases {
		if got := tc.id.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestTaxonAssignOnce(t *testing.T) {
	var tx Taxon
	if id, ok := tx.Identifier(); ok {
		t.Fatalf("zero-value taxon reports identifier %v", id)
	}
	first := TaxonID{Clade: "A", Number: 0}
	if err := tx.SetIdentifier(first); err != nil {
		t.Fatalf("first assignment: %v", err)
	}
	id, ok := tx.Identifier()
	if !ok || id != first {
		t.Fatalf("Identifier() = %v, %v after assignment", id, ok)
	}
	if err := tx.SetIdentifier(TaxonID{Clade: "B", Number: 3}); err == nil {
		t.Fatal("expected reassignment to fail")
	}
	if id, _ := tx.Identifier(); id != first {
		t.Fatalf("identifier mutated by rejected reassignment: %v", id)
	}
}
