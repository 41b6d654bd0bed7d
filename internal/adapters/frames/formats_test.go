package frames

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"cladecore/internal/core"
)

func recordTable() core.Table {
	return core.Table{
		Columns: []core.Column{
			{Name: "time", Kind: core.ColumnFloat},
			{Name: "zones_created", Kind: core.ColumnFloat},
		},
		Rows: []map[string]any{
			{"time": 0.0, "zones_created": math.NaN()},
			{"time": 1.0, "zones_created": 2.0},
		},
	}
}

func TestRenderCSVEmptiesNaNCells(t *testing.T) {
	payload, err := RenderCSV(recordTable())
	if err != nil {
		t.Fatalf("RenderCSV: %v", err)
	}
	want := "time,zones_created\n0,\n1,2\n"
	if string(payload) != want {
		t.Fatalf("csv = %q, want %q", payload, want)
	}
}

func TestRenderJSONUsesNulls(t *testing.T) {
	payload, err := RenderJSON(recordTable())
	if err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}
	var doc struct {
		Columns []core.Column    `json:"columns"`
		Rows    []map[string]any `json:"rows"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(doc.Columns) != 2 || len(doc.Rows) != 2 {
		t.Fatalf("document shape = %d columns %d rows", len(doc.Columns), len(doc.Rows))
	}
	if v, ok := doc.Rows[0]["zones_created"]; !ok || v != nil {
		t.Fatalf("rows[0][zones_created] = %v, want null", v)
	}
	if got := doc.Rows[1]["zones_created"]; got != 2.0 {
		t.Fatalf("rows[1][zones_created] = %v, want 2", got)
	}
}

func TestRenderHTMLTabulates(t *testing.T) {
	payload := string(RenderHTML("record", recordTable()))
	for _, fragment := range []string{
		"<title>record</title>",
		"<h1>record</h1>",
		"<th>time</th>",
		"<th>zones_created</th>",
		"<td></td>",
		"<td>2</td>",
	} {
		if !strings.Contains(payload, fragment) {
			t.Fatalf("html missing %q:\n%s", fragment, payload)
		}
	}
}

func TestParseFormats(t *testing.T) {
	formats, err := ParseFormats("")
	if err != nil {
		t.Fatalf("ParseFormats(empty): %v", err)
	}
	if len(formats) != 2 || formats[0] != FormatCSV || formats[1] != FormatJSON {
		t.Fatalf("default formats = %v", formats)
	}

	formats, err = ParseFormats("HTML, csv,csv")
	if err != nil {
		t.Fatalf("ParseFormats: %v", err)
	}
	if len(formats) != 2 || formats[0] != FormatHTML || formats[1] != FormatCSV {
		t.Fatalf("formats = %v, want [html csv]", formats)
	}

	if _, err := ParseFormats("csv,parquet"); err == nil {
		t.Fatal("expected error for unsupported format")
	}

	formats, err = ParseFormats(" , ,")
	if err != nil {
		t.Fatalf("ParseFormats(blanks): %v", err)
	}
	if len(formats) != 2 {
		t.Fatalf("blank list formats = %v, want defaults", formats)
	}
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{math.NaN(), ""},
		{3.0, "3"},
		{3.5, "3.5"},
		{7, "7"},
		{int64(8), "8"},
		{"B", "B"},
		{true, "true"},
	}
	for _, tc := range cases {
		if got := formatValue(tc.in); got != tc.want {
			t.Fatalf("formatValue(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
