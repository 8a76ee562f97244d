package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	err := renderResult(&buf, []string{"id", "total ▼"}, [][]any{{1, 9.5}, {2, nil}}, "table")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "id")
	assert.Contains(t, out, "total ▼")
	assert.Contains(t, out, "9.5")
	assert.Contains(t, out, "NULL")
	assert.Contains(t, out, "(2 rows)")
}

func TestRenderTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderResult(&buf, []string{"id"}, nil, "table"))
	assert.Equal(t, "(0 rows)\n", buf.String())
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	err := renderResult(&buf, []string{"id", "name"}, [][]any{{1, "acme"}}, "json")
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, float64(1), decoded[0]["id"])
	assert.Equal(t, "acme", decoded[0]["name"])
}

func TestRenderCSV(t *testing.T) {
	var buf bytes.Buffer
	err := renderResult(&buf, []string{"id", "name"}, [][]any{
		{1, "plain"},
		{2, `has "quotes", and comma`},
		{3, nil},
	}, "csv")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "id,name", lines[0])
	assert.Equal(t, "1,plain", lines[1])
	assert.Equal(t, `2,"has ""quotes"", and comma"`, lines[2])
	assert.Equal(t, "3,NULL", lines[3])
}

func TestRenderMarkdown(t *testing.T) {
	var buf bytes.Buffer
	err := renderResult(&buf, []string{"id", "name"}, [][]any{{1, "acme"}}, "md")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "| id | name |", lines[0])
	assert.Equal(t, "| --- | --- |", lines[1])
	assert.Equal(t, "| 1 | acme |", lines[2])
}

func TestRenderUnknownFormatFallsBackToTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderResult(&buf, []string{"id"}, [][]any{{1}}, "weird"))
	assert.Contains(t, buf.String(), "(1 rows)")
}

func TestVersionCommand(t *testing.T) {
	cmd := NewVersionCommand("0.1.0")
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	cmd.Run(cmd, nil)
	assert.Contains(t, buf.String(), "OpenDuck v0.1.0")
}
