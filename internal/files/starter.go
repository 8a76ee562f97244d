// Package files maps data files to the starter SQL that previews them
// on the embedded engine.
package files

import (
	"fmt"
	"path/filepath"
	"strings"
)

// supportedSuffixes are the data-file suffixes the engine can query
// directly or attach.
var supportedSuffixes = []string{
	".parquet", ".arrow", ".duckdb", ".csv", ".csv.gz",
	".json", ".jsonl", ".sqlite", ".sqlite3", ".db", ".xlsx", ".xls",
}

// Supported reports whether the engine knows how to query the file.
func Supported(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	for _, suffix := range supportedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// StarterSQL returns the SQL that previews a data file on the embedded
// engine: attach statements for database files, reader functions for
// everything else.
func StarterSQL(path string) string {
	p := filepath.ToSlash(path)
	name := strings.ToLower(filepath.Base(path))

	switch {
	case strings.HasSuffix(name, ".duckdb"):
		return fmt.Sprintf("ATTACH '%s' AS other;\nSHOW TABLES;", p)
	case strings.HasSuffix(name, ".sqlite"),
		strings.HasSuffix(name, ".sqlite3"),
		strings.HasSuffix(name, ".db"):
		return fmt.Sprintf("INSTALL sqlite;\nLOAD sqlite;\nATTACH '%s' AS sqlite_db (TYPE SQLITE);\nSHOW TABLES FROM sqlite_db;", p)
	case strings.HasSuffix(name, ".xlsx"), strings.HasSuffix(name, ".xls"):
		return fmt.Sprintf("SELECT * FROM read_excel('%s') LIMIT 100;", p)
	case strings.HasSuffix(name, ".csv"), strings.HasSuffix(name, ".csv.gz"):
		return fmt.Sprintf("SELECT * FROM read_csv_auto('%s') LIMIT 100;", p)
	case strings.HasSuffix(name, ".json"), strings.HasSuffix(name, ".jsonl"):
		return fmt.Sprintf("SELECT * FROM read_json_auto('%s') LIMIT 100;", p)
	default:
		return fmt.Sprintf("SELECT * FROM '%s' LIMIT 100;", p)
	}
}
