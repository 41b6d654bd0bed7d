package core

import (
	"encoding/json"
	"math"
)

// ColumnKind describes the value type carried by a table column.
type ColumnKind string

// Column kinds used by the tabular snapshots.
const (
	ColumnFloat  ColumnKind = "float"
	ColumnInt    ColumnKind = "int"
	ColumnString ColumnKind = "string"
)

// Column describes one column of a tabular snapshot.
type Column struct {
	Name string     `json:"name"`
	Kind ColumnKind `json:"kind"`
}

// Table is a read-only tabular snapshot of a ledger or record, shaped for
// external presentation: an ordered column schema plus one map per row.
// Float cells may hold NaN (the record's missing-value sentinel); renderers
// decide how to print it. On the JSON wire NaN travels as null, since JSON
// has no NaN literal.
type Table struct {
	Columns []Column         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// ColumnNames returns the schema names in order.
func (t Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

type tableWire struct {
	Columns []Column         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// MarshalJSON encodes the table with NaN float cells replaced by null.
func (t Table) MarshalJSON() ([]byte, error) {
	wire := tableWire{Columns: t.Columns, Rows: make([]map[string]any, len(t.Rows))}
	for i, row := range t.Rows {
		out := make(map[string]any, len(row))
		for name, v := range row {
			if f, ok := v.(float64); ok && math.IsNaN(f) {
				out[name] = nil
				continue
			}
			out[name] = v
		}
		wire.Rows[i] = out
	}
	return json.Marshal(wire)
}

// UnmarshalJSON restores a table from its wire form: null cells in float
// columns become NaN again, and cells in int columns are narrowed from the
// float64 the JSON decoder produces.
func (t *Table) UnmarshalJSON(data []byte) error {
	var wire tableWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	kinds := make(map[string]ColumnKind, len(wire.Columns))
	for _, c := range wire.Columns {
		kinds[c.Name] = c.Kind
	}
	for _, row := range wire.Rows {
		for name, v := range row {
			switch kinds[name] {
			case ColumnFloat:
				if v == nil {
					row[name] = math.NaN()
				}
			case ColumnInt:
				if f, ok := v.(float64); ok {
					row[name] = int(f)
				}
			}
		}
	}
	t.Columns = wire.Columns
	t.Rows = wire.Rows
	return nil
}
