package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/openduck/internal/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), DefaultFileName), testutil.NewTestLogger(t))
}

func TestLoad_MissingFileCreatesEmptyDocument(t *testing.T) {
	s := newTestStore(t)

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, doc.History)
	assert.Empty(t, doc.SavedQueries)
	assert.Empty(t, doc.Connections)

	// The empty document is persisted immediately.
	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	var onDisk Document
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.NotNil(t, onDisk.History)
	assert.NotNil(t, onDisk.SavedQueries)
	assert.NotNil(t, onDisk.Connections)
}

func TestLoad_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := New(path, testutil.NewTestLogger(t))
	_, err := s.Load()

	var corrupt *CorruptError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, path, corrupt.Path)

	// The corrupt file must survive untouched.
	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "{not json", string(data))
}

func TestAppendHistory_AppendOnlyInOrder(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AppendHistory("SELECT 1;"))
	require.NoError(t, s.AppendHistory("  SELECT 2;  "))
	require.NoError(t, s.AppendHistory("SELECT 1;"))

	doc, err := s.Load()
	require.NoError(t, err)
	require.Len(t, doc.History, 3)
	assert.Equal(t, "SELECT 1;", doc.History[0].SQL)
	assert.Equal(t, "SELECT 2;", doc.History[1].SQL)
	assert.Equal(t, "SELECT 1;", doc.History[2].SQL)
	for _, e := range doc.History {
		assert.False(t, e.Timestamp.IsZero())
	}
}

func TestUpsertSavedQuery_Idempotent(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.UpsertSavedQuery("daily", "SELECT 1;"))
	require.NoError(t, s.UpsertSavedQuery("other", "SELECT 2;"))
	require.NoError(t, s.UpsertSavedQuery("daily", "SELECT 42;"))

	doc, err := s.Load()
	require.NoError(t, err)
	require.Len(t, doc.SavedQueries, 2)

	// Overwriting keeps the original position.
	assert.Equal(t, "daily", doc.SavedQueries[0].Name)
	assert.Equal(t, "SELECT 42;", doc.SavedQueries[0].SQL)
	assert.Equal(t, "other", doc.SavedQueries[1].Name)
}

func TestUpsertConnection_ReplacesById(t *testing.T) {
	s := newTestStore(t)

	desc := ConnectionDescriptor{
		ID:     "warehouse",
		Type:   TypeDirect,
		Driver: "sqlserver",
		Host:   "db.example.com",
		Port:   1433,
	}
	require.NoError(t, s.UpsertConnection(desc))

	desc.Host = "db2.example.com"
	require.NoError(t, s.UpsertConnection(desc))

	doc, err := s.Load()
	require.NoError(t, err)
	require.Len(t, doc.Connections, 1)
	assert.Equal(t, "db2.example.com", doc.Connections[0].Host)
}

func TestDeleteConnection(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.UpsertConnection(ConnectionDescriptor{ID: "a", Type: TypeBridge}))
	require.NoError(t, s.UpsertConnection(ConnectionDescriptor{ID: "b", Type: TypeDirect}))

	require.NoError(t, s.DeleteConnection("a"))

	doc, err := s.Load()
	require.NoError(t, err)
	require.Len(t, doc.Connections, 1)
	assert.Equal(t, "b", doc.Connections[0].ID)

	// Deleting an unknown id is a no-op.
	require.NoError(t, s.DeleteConnection("nope"))
}

func TestSave_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", DefaultFileName)
	s := New(path, nil)

	require.NoError(t, s.Save(&Document{}))

	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestDocument_JSONShape(t *testing.T) {
	s := newTestStore(t)
	s.now = func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, s.AppendHistory("SELECT 1;"))
	require.NoError(t, s.UpsertConnection(ConnectionDescriptor{
		ID:          "pg",
		DisplayName: "Local PG",
		Type:        TypeBridge,
		Driver:      "postgres",
		Host:        "localhost",
		Port:        5432,
		User:        "duck",
		Database:    "analytics",
	}))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "history")
	assert.Contains(t, raw, "saved_queries")
	assert.Contains(t, raw, "connections")

	conns := raw["connections"].([]any)
	require.Len(t, conns, 1)
	conn := conns[0].(map[string]any)
	assert.Equal(t, "embedded-bridge", conn["type"])
	assert.Equal(t, "Local PG", conn["display_name"])
}

func TestMutation_FailsOnCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))

	s := New(path, testutil.NewTestLogger(t))
	err := s.AppendHistory("SELECT 1;")

	var corrupt *CorruptError
	require.True(t, errors.As(err, &corrupt))

	// Mutations never write over a corrupt document.
	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "[]", string(data))
}
