package duckdb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/openduck/pkg/adapter"
)

// LoadBridge installs and loads the DuckDB extension that bridges to an
// external backend (e.g. "postgres"). INSTALL and LOAD are idempotent,
// so calling this for every connect is safe.
func (a *Adapter) LoadBridge(ctx context.Context, extension string) error {
	if err := a.Exec(ctx, fmt.Sprintf("INSTALL %s;", extension)); err != nil {
		return fmt.Errorf("failed to install %s extension: %w", extension, err)
	}
	if err := a.Exec(ctx, fmt.Sprintf("LOAD %s;", extension)); err != nil {
		return fmt.Errorf("failed to load %s extension: %w", extension, err)
	}
	return nil
}

// Attach binds an external database into the engine under the given
// alias. Any stale alias with the same name is detached first, so a
// reconnect under the same descriptor id replaces the old binding.
func (a *Adapter) Attach(ctx context.Context, alias, extensionType string, cfg adapter.Config) error {
	if err := a.Detach(ctx, alias); err != nil {
		return err
	}

	dsn := bridgeDSN(cfg)
	stmt := fmt.Sprintf("ATTACH '%s' AS %s (TYPE %s);", dsn, alias, extensionType)
	if err := a.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to attach %s: %w", alias, err)
	}

	a.Logger.Debug("attached external database",
		slog.String("alias", alias),
		slog.String("type", extensionType),
		slog.String("host", cfg.Host))
	return nil
}

// Detach removes an attached alias. Detaching an alias that was never
// attached is a no-op.
func (a *Adapter) Detach(ctx context.Context, alias string) error {
	if err := a.Exec(ctx, fmt.Sprintf("DETACH DATABASE IF EXISTS %s;", alias)); err != nil {
		return fmt.Errorf("failed to detach %s: %w", alias, err)
	}
	return nil
}

// bridgeDSN builds the key=value connection string the postgres
// extension expects inside ATTACH.
func bridgeDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	parts := []string{
		fmt.Sprintf("host=%s", host),
		fmt.Sprintf("port=%d", port),
		fmt.Sprintf("dbname=%s", cfg.Database),
	}
	if cfg.Username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", cfg.Username))
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", cfg.Password))
	}
	return strings.Join(parts, " ")
}
