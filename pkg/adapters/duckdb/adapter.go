// Package duckdb provides the embedded DuckDB engine adapter for OpenDuck.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/openduck/pkg/adapter"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

func init() {
	adapter.Register("duckdb", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// DialectName returns the SQL dialect for this adapter.
func (a *Adapter) DialectName() string {
	return "duckdb"
}

// Connect establishes a connection to DuckDB.
// Use ":memory:" as the path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg

	return nil
}

// Tables lists base tables in the main catalog, ordered by name.
func (a *Adapter) Tables(ctx context.Context) ([]string, error) {
	return a.QueryTableNames(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
}

// TablesInCatalog lists base tables scoped to an attached catalog,
// ordered by name. Used after ATTACH to enumerate a bridged backend.
func (a *Adapter) TablesInCatalog(ctx context.Context, catalog string) ([]string, error) {
	return a.QueryTableNames(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_catalog = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, catalog)
}

// TableQuery returns a starter query for previewing a table.
func (a *Adapter) TableQuery(table string) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT 100;", quoteIdent(table))
}

// quoteIdent double-quotes an identifier unless it is already qualified.
func quoteIdent(name string) string {
	if strings.Contains(name, ".") || strings.Contains(name, `"`) {
		return name
	}
	return `"` + name + `"`
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
