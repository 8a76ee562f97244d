package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject_NoState(t *testing.T) {
	columns := []string{"id", "total"}
	rows := [][]any{{1, 9.5}, {2, 3.0}}

	labels, out := Project(columns, rows, map[int]*ColumnState{})
	assert.Equal(t, []string{"id", "total"}, labels)
	assert.Equal(t, rows, out)
}

func TestProject_FilterSubstringCaseInsensitive(t *testing.T) {
	columns := []string{"id", "name"}
	rows := [][]any{
		{1, "Orders"},
		{2, "customers"},
		{3, "order_items"},
	}
	state := map[int]*ColumnState{
		0: {},
		1: {Filter: "ORDER"},
	}

	labels, out := Project(columns, rows, state)
	require.Len(t, out, 2)
	assert.Equal(t, "Orders", out[0][1])
	assert.Equal(t, "order_items", out[1][1])
	assert.Equal(t, "name 🔍", labels[1])
}

func TestProject_FiltersCompose(t *testing.T) {
	columns := []string{"id", "total"}
	rows := [][]any{{1, 9.5}, {2, 3.0}, {12, 9.0}}
	state := map[int]*ColumnState{
		0: {Filter: "1"},
		1: {Filter: "9"},
	}

	_, out := Project(columns, rows, state)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0][0])
	assert.Equal(t, 12, out[1][0])
}

func TestProject_FilterMatchesNullLiteral(t *testing.T) {
	columns := []string{"v"}
	rows := [][]any{{nil}, {"value"}}
	state := map[int]*ColumnState{0: {Filter: "null"}}

	_, out := Project(columns, rows, state)
	require.Len(t, out, 1)
	assert.Nil(t, out[0][0])
}

func TestProject_SortNumericDesc(t *testing.T) {
	columns := []string{"id", "total"}
	rows := [][]any{{1, 9.5}, {2, 3.0}, {3, 30.0}}
	state := map[int]*ColumnState{1: {Sort: SortDesc}}

	labels, out := Project(columns, rows, state)
	require.Len(t, out, 3)
	assert.Equal(t, 3, out[0][0])
	assert.Equal(t, 1, out[1][0])
	assert.Equal(t, 2, out[2][0])
	assert.Equal(t, "total ▼", labels[1])
}

func TestProject_SortNullsLowest(t *testing.T) {
	columns := []string{"v"}
	rows := [][]any{{"b"}, {nil}, {"a"}}

	_, asc := Project(columns, rows, map[int]*ColumnState{0: {Sort: SortAsc}})
	assert.Equal(t, [][]any{{nil}, {"a"}, {"b"}}, asc)

	_, desc := Project(columns, rows, map[int]*ColumnState{0: {Sort: SortDesc}})
	assert.Equal(t, [][]any{{"b"}, {"a"}, {nil}}, desc)
}

func TestProject_SortStable(t *testing.T) {
	columns := []string{"k", "seq"}
	rows := [][]any{{"a", 1}, {"b", 2}, {"a", 3}, {"b", 4}}
	state := map[int]*ColumnState{0: {Sort: SortAsc}}

	_, out := Project(columns, rows, state)
	assert.Equal(t, [][]any{{"a", 1}, {"a", 3}, {"b", 2}, {"b", 4}}, out)
}

func TestProject_FilterThenSort(t *testing.T) {
	columns := []string{"id", "total"}
	rows := [][]any{{1, 9.5}, {2, 3.0}, {3, 9.0}}
	state := map[int]*ColumnState{
		0: {Sort: SortDesc},
		1: {Filter: "9"},
	}

	labels, out := Project(columns, rows, state)
	require.Len(t, out, 2)
	assert.Equal(t, 3, out[0][0])
	assert.Equal(t, 1, out[1][0])
	assert.Equal(t, "id ▼", labels[0])
	assert.Equal(t, "total 🔍", labels[1])
}

func TestProject_Pure(t *testing.T) {
	columns := []string{"id"}
	rows := [][]any{{3}, {1}, {2}}
	state := map[int]*ColumnState{0: {Sort: SortAsc, Filter: ""}}

	first, firstRows := Project(columns, rows, state)
	second, secondRows := Project(columns, rows, state)

	assert.Equal(t, first, second)
	assert.Equal(t, firstRows, secondRows)

	// The cache order is never touched.
	assert.Equal(t, [][]any{{3}, {1}, {2}}, rows)
	assert.Equal(t, []string{"id"}, columns)
}

func TestCompareCells(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want int
	}{
		{"both nil", nil, nil, 0},
		{"nil lowest", nil, 0, -1},
		{"nil lowest reversed", "x", nil, 1},
		{"ints", 2, 10, -1},
		{"floats", 10.5, 2.0, 1},
		{"int vs float", 3, 3.0, 0},
		{"numeric strings", "9", "10", -1},
		{"mixed falls back to text", "abc", 5, 1},
		{"text", "apple", "banana", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compareCells(tt.a, tt.b)
			switch {
			case tt.want < 0:
				assert.Negative(t, got)
			case tt.want > 0:
				assert.Positive(t, got)
			default:
				assert.Zero(t, got)
			}
		})
	}
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "NULL", Stringify(nil))
	assert.Equal(t, "42", Stringify(42))
	assert.Equal(t, "9.5", Stringify(9.5))
	assert.Equal(t, "hello", Stringify("hello"))
}
