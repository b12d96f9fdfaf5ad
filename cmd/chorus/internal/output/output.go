// Package output renders command results as aligned tables or indented JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// Table holds rows for tabular display.
type Table struct {
	Headers []string
	Rows    [][]string
}

// AddRow appends a row. Missing cells are shown as "-".
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Write displays the table with an underlined header.
func (t *Table) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	rules := make([]string, len(t.Headers))
	for i, h := range t.Headers {
		rules[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(rules, "\t"))

	for _, row := range t.Rows {
		cells := make([]string, len(t.Headers))
		for i := range cells {
			cells[i] = "-"
			if i < len(row) && row[i] != "" {
				cells[i] = row[i]
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// Render writes v as JSON when format is "json" and the table otherwise.
func Render(w io.Writer, format string, v any, table *Table) error {
	switch format {
	case FormatJSON:
		return JSON(w, v)
	case FormatTable, "":
		return table.Write(w)
	default:
		return fmt.Errorf("unsupported output format %q, use table or json", format)
	}
}

// Truncate shortens s to maxLen runes, marking the cut with "...".
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}

// Deref returns *s or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
