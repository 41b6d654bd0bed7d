// Package frames renders tabular simulation snapshots into exportable
// documents and runs the asynchronous export worker that stores them.
package frames

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"cladecore/internal/core"
)

// Format identifies a rendering of a tabular snapshot.
type Format string

// Formats the renderer supports.
const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// DefaultFormats is used when a request names no formats.
var DefaultFormats = []Format{FormatCSV, FormatJSON}

// ParseFormats turns a comma-separated flag value into a deduplicated
// format list. An empty value yields DefaultFormats.
func ParseFormats(raw string) ([]Format, error) {
	if strings.TrimSpace(raw) == "" {
		return append([]Format(nil), DefaultFormats...), nil
	}
	var out []Format
	seen := make(map[Format]struct{})
	for _, part := range strings.Split(raw, ",") {
		format := Format(strings.ToLower(strings.TrimSpace(part)))
		if format == "" {
			continue
		}
		if _, err := extensionFor(format); err != nil {
			return nil, err
		}
		if _, dup := seen[format]; dup {
			continue
		}
		out = append(out, format)
		seen[format] = struct{}{}
	}
	if len(out) == 0 {
		return append([]Format(nil), DefaultFormats...), nil
	}
	return out, nil
}

// RenderCSV encodes the table as CSV: one header row of column names, then
// one line per row. NaN cells render as empty fields.
func RenderCSV(table core.Table) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(table.ColumnNames()); err != nil {
		return nil, err
	}
	for _, row := range table.Rows {
		record := make([]string, len(table.Columns))
		for i, column := range table.Columns {
			record[i] = formatValue(row[column.Name])
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderJSON encodes the table as a JSON document of columns and rows.
// NaN cells travel as null.
func RenderJSON(table core.Table) ([]byte, error) {
	payload, err := json.Marshal(table)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return payload, nil
}

// RenderHTML builds a minimal standalone HTML report for the table.
func RenderHTML(title string, table core.Table) []byte {
	buf := &strings.Builder{}
	buf.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>")
	buf.WriteString(title)
	buf.WriteString("</title></head><body><h1>")
	buf.WriteString(title)
	buf.WriteString("</h1><table>")
	buf.WriteString("<thead><tr>")
	for _, column := range table.Columns {
		buf.WriteString("<th>")
		buf.WriteString(column.Name)
		buf.WriteString("</th>")
	}
	buf.WriteString("</tr></thead><tbody>")
	for _, row := range table.Rows {
		buf.WriteString("<tr>")
		for _, column := range table.Columns {
			buf.WriteString("<td>")
			buf.WriteString(formatValue(row[column.Name]))
			buf.WriteString("</td>")
		}
		buf.WriteString("</tr>")
	}
	buf.WriteString("</tbody></table></body></html>")
	return []byte(buf.String())
}

func render(format Format, title string, table core.Table) ([]byte, string, error) {
	switch format {
	case FormatCSV:
		payload, err := RenderCSV(table)
		return payload, "text/csv", err
	case FormatJSON:
		payload, err := RenderJSON(table)
		return payload, "application/json", err
	case FormatHTML:
		return RenderHTML(title, table), "text/html", nil
	default:
		return nil, "", fmt.Errorf("unsupported export format %s", format)
	}
}

func extensionFor(format Format) (string, error) {
	switch format {
	case FormatCSV, FormatJSON, FormatHTML:
		return string(format), nil
	default:
		return "", fmt.Errorf("unsupported export format %s", format)
	}
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case float64:
		if math.IsNaN(v) {
			return ""
		}
		return fmt.Sprintf("%g", v)
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
