package session

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Label decorations. Purely presentational: the column index, not the
// label, addresses the column.
const (
	labelAsc    = " ▲"
	labelDesc   = " ▼"
	labelFilter = " 🔍"
)

// Project computes the display projection of a cached result set:
// filters compose as AND over case-insensitive substring matches of the
// stringified cells, at most one column sorts (stable, nulls lowest),
// and labels are decorated with the active sort and filter markers.
//
// Project is pure: it never mutates columns, rows, or state, and
// identical inputs always produce identical output.
func Project(columns []string, rows [][]any, state map[int]*ColumnState) ([]string, [][]any) {
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		if matchesFilters(row, state) {
			out = append(out, row)
		}
	}

	for col, st := range state {
		if st.Sort == SortNone || col >= len(columns) {
			continue
		}
		desc := st.Sort == SortDesc
		sort.SliceStable(out, func(i, j int) bool {
			c := compareCells(cellAt(out[i], col), cellAt(out[j], col))
			if desc {
				return c > 0
			}
			return c < 0
		})
		break
	}

	labels := make([]string, len(columns))
	for i, name := range columns {
		labels[i] = name
		if st, ok := state[i]; ok {
			switch st.Sort {
			case SortAsc:
				labels[i] += labelAsc
			case SortDesc:
				labels[i] += labelDesc
			}
			if st.Filter != "" {
				labels[i] += labelFilter
			}
		}
	}

	return labels, out
}

func matchesFilters(row []any, state map[int]*ColumnState) bool {
	for col, st := range state {
		if st.Filter == "" {
			continue
		}
		cell := strings.ToLower(Stringify(cellAt(row, col)))
		if !strings.Contains(cell, strings.ToLower(st.Filter)) {
			return false
		}
	}
	return true
}

func cellAt(row []any, col int) any {
	if col < 0 || col >= len(row) {
		return nil
	}
	return row[col]
}

// compareCells orders two cell values: nil sorts lowest, two numeric
// cells compare numerically, everything else compares on the
// stringified value.
func compareCells(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	if fa, aok := toFloat(a); aok {
		if fb, bok := toFloat(b); bok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(Stringify(a), Stringify(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Stringify renders a cell for filtering and display. NULL cells render
// as the literal "NULL", matching the result renderer.
func Stringify(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
