package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/openduck/internal/session"
)

// renderResult renders a projected result set in the requested format.
func renderResult(w io.Writer, labels []string, rows [][]any, format string) error {
	switch format {
	case "json":
		return renderJSON(w, labels, rows)
	case "csv":
		return renderCSV(w, labels, rows)
	case "md", "markdown":
		return renderMarkdown(w, labels, rows)
	default:
		return renderTable(w, labels, rows)
	}
}

func renderTable(w io.Writer, labels []string, rows [][]any) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(labels))
	for i, label := range labels {
		headerRow[i] = label
	}
	t.AppendHeader(headerRow)

	for _, row := range rows {
		out := make(table.Row, len(labels))
		for i := range labels {
			out[i] = cellString(row, i)
		}
		t.AppendRow(out)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return nil
}

func renderJSON(w io.Writer, labels []string, rows [][]any) error {
	results := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		entry := make(map[string]any, len(labels))
		for i, label := range labels {
			var v any
			if i < len(row) {
				v = row[i]
			}
			entry[label] = v
		}
		results = append(results, entry)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func renderCSV(w io.Writer, labels []string, rows [][]any) error {
	_, _ = fmt.Fprintln(w, strings.Join(labels, ","))
	for _, row := range rows {
		values := make([]string, len(labels))
		for i := range labels {
			values[i] = escapeCSV(cellString(row, i))
		}
		_, _ = fmt.Fprintln(w, strings.Join(values, ","))
	}
	return nil
}

func renderMarkdown(w io.Writer, labels []string, rows [][]any) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(labels, " | "))
	seps := make([]string, len(labels))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, row := range rows {
		values := make([]string, len(labels))
		for i := range labels {
			values[i] = cellString(row, i)
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(values, " | "))
	}
	return nil
}

func cellString(row []any, i int) string {
	if i >= len(row) {
		return ""
	}
	return session.Stringify(row[i])
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
