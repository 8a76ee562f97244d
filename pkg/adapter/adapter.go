// Package adapter provides database adapter interfaces and implementations
// for OpenDuck's query workbench.
package adapter

import (
	"context"
	"database/sql"
)

// Config holds the configuration for connecting to a database.
type Config struct {
	// Driver specifies the database driver (e.g., "duckdb", "postgres", "sqlserver")
	Driver string

	// Path is the file path for file-based databases (e.g., DuckDB)
	// Use ":memory:" for in-memory databases
	Path string

	// Host is the hostname for network-based databases
	Host string

	// Port is the port number for network-based databases
	Port int

	// Database is the database name
	Database string

	// Username for authentication
	Username string

	// Password for authentication
	Password string

	// Options contains additional driver-specific options
	Options map[string]string
}

// Rows wraps sql.Rows to provide a consistent interface across adapters.
type Rows struct {
	*sql.Rows
}

// Adapter defines the interface that all database adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Exec executes a SQL statement that doesn't return rows (e.g., INSERT, CREATE).
	Exec(ctx context.Context, sql string) error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string) (*Rows, error)

	// Tables lists the base tables reachable through this connection,
	// ordered by name.
	Tables(ctx context.Context) ([]string, error)

	// TableQuery returns a starter query that previews the given table
	// in this adapter's SQL dialect.
	TableQuery(table string) string

	// DialectName returns the SQL dialect name for this adapter.
	DialectName() string
}
