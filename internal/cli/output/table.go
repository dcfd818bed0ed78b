package output

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
)

// TableFormatter formats data as an aligned table.
type TableFormatter struct {
	NoHeaders bool
}

// Format renders a *Table or a flat map[string]any as KEY/VALUE rows.
// Anything else falls back to JSON.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	switch v := data.(type) {
	case nil:
		return nil
	case *Table:
		return v.RenderWithOptions(w, f.NoHeaders)
	case Table:
		return v.RenderWithOptions(w, f.NoHeaders)
	case map[string]any:
		return mapToTable(v).RenderWithOptions(w, f.NoHeaders)
	default:
		return (&JSONFormatter{}).Format(w, data)
	}
}

// mapToTable converts a map to a key-value table sorted by key.
func mapToTable(m map[string]any) *Table {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := &Table{Headers: []string{"KEY", "VALUE"}}
	for _, k := range keys {
		table.AddRow(k, formatValue(m[k]))
	}
	return table
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case string:
		if x == "" {
			return "-"
		}
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

// Table represents tabular data.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render renders the table to the writer.
func (t *Table) Render(w io.Writer) error {
	return t.RenderWithOptions(w, false)
}

// RenderWithOptions renders the table with options.
func (t *Table) RenderWithOptions(w io.Writer, noHeaders bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if !noHeaders && len(t.Headers) > 0 {
		writeRow(tw, t.Headers)
	}
	for _, row := range t.Rows {
		writeRow(tw, row)
	}

	return tw.Flush()
}

func writeRow(w io.Writer, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			io.WriteString(w, "\t")
		}
		io.WriteString(w, cell)
	}
	io.WriteString(w, "\n")
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// SetHeaders sets the table headers.
func (t *Table) SetHeaders(headers ...string) {
	t.Headers = headers
}
