// Package registry maintains the mapping from connection descriptors to
// live runtime handles and routes SQL execution to the right backend.
//
// One embedded DuckDB engine is always available under the sentinel ref
// "default". External backends are either bridged into the engine via
// its ATTACH mechanism or, when bridging is unavailable, reached by a
// direct protocol client.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/openduck/internal/store"
	"github.com/leapstack-labs/openduck/pkg/adapter"
	"github.com/leapstack-labs/openduck/pkg/adapters/duckdb"
)

// DefaultRef is the connection ref that always routes to the embedded
// engine.
const DefaultRef = "default"

// Result is the outcome of one executed statement.
type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

// RowProducing reports whether the statement returned a result set.
// DDL and other statements come back with no columns.
func (r *Result) RowProducing() bool {
	return len(r.Columns) > 0
}

// Active is the runtime handle for one connected descriptor.
// It is never persisted; it is rebuilt from descriptors at startup.
type Active struct {
	Descriptor store.ConnectionDescriptor

	// Alias is set for bridged backends: the engine-side name the
	// external database is attached under.
	Alias string

	// Adapter is set for directly-addressed backends and must be
	// closed on disconnect.
	Adapter adapter.Adapter

	// Tables is the base-table list captured at connect time.
	Tables []string
}

// Bridged reports whether this connection runs through the engine.
func (a *Active) Bridged() bool { return a.Alias != "" }

// Engine is the embedded-engine surface the registry depends on:
// ordinary adapter operations plus the bridging mechanism. The duckdb
// adapter is the production implementation.
type Engine interface {
	adapter.Adapter
	LoadBridge(ctx context.Context, extension string) error
	Attach(ctx context.Context, alias, extensionType string, cfg adapter.Config) error
	Detach(ctx context.Context, alias string) error
	TablesInCatalog(ctx context.Context, catalog string) ([]string, error)
}

// Registry owns the embedded engine and all bound external connections.
type Registry struct {
	mu             sync.RWMutex
	engine         Engine
	conns          map[string]*Active
	store          *store.Store
	logger         *slog.Logger
	connectTimeout time.Duration
}

// Options configures a Registry.
type Options struct {
	// EnginePath is the DuckDB database path; empty means in-memory.
	EnginePath string

	// ConnectTimeout bounds direct protocol connects.
	ConnectTimeout time.Duration

	Store  *store.Store
	Logger *slog.Logger
}

// New opens the embedded engine and returns a registry with no bound
// external connections.
func New(ctx context.Context, opts Options) (*Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	engine := duckdb.New(logger)
	if err := engine.Connect(ctx, adapter.Config{Driver: "duckdb", Path: opts.EnginePath}); err != nil {
		return nil, fmt.Errorf("failed to open embedded engine: %w", err)
	}

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Registry{
		engine:         engine,
		conns:          make(map[string]*Active),
		store:          opts.Store,
		logger:         logger,
		connectTimeout: timeout,
	}, nil
}

// Engine exposes the embedded engine adapter. The engine connection is
// owned by the registry; other components receive it by reference and
// must not open their own.
func (r *Registry) Engine() Engine { return r.engine }

// Close shuts down all external connections and the engine.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, active := range r.conns {
		r.teardown(active)
		delete(r.conns, id)
	}
	return r.engine.Close()
}

// Connect establishes a live handle for the descriptor, persists the
// descriptor, and returns the backend's base-table list. Reconnecting
// under an existing id replaces the previous handle and descriptor.
func (r *Registry) Connect(ctx context.Context, desc store.ConnectionDescriptor) ([]string, error) {
	if desc.ID == "" {
		return nil, &ConnectError{ID: desc.ID, Err: fmt.Errorf("descriptor id is required")}
	}
	if desc.ID == DefaultRef {
		return nil, &ConnectError{ID: desc.ID, Err: fmt.Errorf("%q is reserved for the embedded engine", DefaultRef)}
	}

	active, err := r.dial(ctx, desc)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if prev, ok := r.conns[desc.ID]; ok {
		r.teardown(prev)
	}
	r.conns[desc.ID] = active
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.UpsertConnection(desc); err != nil {
			r.logger.Warn("failed to persist connection descriptor",
				slog.String("id", desc.ID), slog.Any("error", err))
		}
	}

	r.logger.Info("connected",
		slog.String("id", desc.ID),
		slog.String("type", desc.Type),
		slog.Int("tables", len(active.Tables)))
	return active.Tables, nil
}

// dial builds the runtime handle without touching the connection map.
func (r *Registry) dial(ctx context.Context, desc store.ConnectionDescriptor) (*Active, error) {
	switch desc.Type {
	case store.TypeBridge:
		return r.dialBridged(ctx, desc)
	case store.TypeDirect:
		return r.dialDirect(ctx, desc)
	default:
		return nil, &ConnectError{ID: desc.ID, Err: fmt.Errorf("unknown connection type %q", desc.Type)}
	}
}

func (r *Registry) dialBridged(ctx context.Context, desc store.ConnectionDescriptor) (*Active, error) {
	driver := desc.Driver
	if driver == "" {
		driver = "postgres"
	}

	if err := r.engine.LoadBridge(ctx, driver); err != nil {
		// Bridging unavailable (offline engine, missing extension).
		// Fall back to a direct protocol client for this descriptor.
		r.logger.Warn("bridge extension unavailable, falling back to direct connection",
			slog.String("id", desc.ID), slog.Any("error", err))
		return r.dialDirect(ctx, desc)
	}

	alias := AliasFor(desc.ID)
	cfg := descriptorConfig(desc)

	if err := r.engine.Attach(ctx, alias, driver, cfg); err != nil {
		return nil, &ConnectError{ID: desc.ID, Err: err}
	}

	tables, err := r.engine.TablesInCatalog(ctx, alias)
	if err != nil {
		// Never leave a half-attached alias behind.
		if derr := r.engine.Detach(ctx, alias); derr != nil {
			r.logger.Debug("detach after failed connect", slog.String("alias", alias), slog.Any("error", derr))
		}
		return nil, &ConnectError{ID: desc.ID, Err: err}
	}

	return &Active{Descriptor: desc, Alias: alias, Tables: tables}, nil
}

func (r *Registry) dialDirect(ctx context.Context, desc store.ConnectionDescriptor) (*Active, error) {
	driver := desc.Driver
	if driver == "" {
		driver = "sqlserver"
	}

	cfg := descriptorConfig(desc)
	cfg.Driver = driver

	a, err := adapter.New(cfg, r.logger)
	if err != nil {
		return nil, &ConnectError{ID: desc.ID, Err: err}
	}

	dialCtx, cancel := context.WithTimeout(ctx, r.connectTimeout)
	defer cancel()

	if err := a.Connect(dialCtx, cfg); err != nil {
		return nil, &ConnectError{ID: desc.ID, Err: err}
	}

	tables, err := a.Tables(dialCtx)
	if err != nil {
		_ = a.Close()
		return nil, &ConnectError{ID: desc.ID, Err: err}
	}

	return &Active{Descriptor: desc, Adapter: a, Tables: tables}, nil
}

// Disconnect tears down the handle for id and deletes its descriptor
// from the store so startup recovery will not retry it. Disconnecting
// an unknown id is a no-op.
func (r *Registry) Disconnect(id string) error {
	r.mu.Lock()
	active, ok := r.conns[id]
	if ok {
		r.teardown(active)
		delete(r.conns, id)
	}
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.DeleteConnection(id); err != nil {
			return fmt.Errorf("failed to delete connection descriptor: %w", err)
		}
	}

	if ok {
		r.logger.Info("disconnected", slog.String("id", id))
	}
	return nil
}

// teardown releases a handle best-effort: the alias may already be gone
// and a dead socket cannot be closed cleanly, so failures are logged at
// debug and swallowed.
func (r *Registry) teardown(active *Active) {
	if active.Bridged() {
		if err := r.engine.Detach(context.Background(), active.Alias); err != nil {
			r.logger.Debug("detach failed", slog.String("alias", active.Alias), slog.Any("error", err))
		}
		return
	}
	if active.Adapter != nil {
		if err := active.Adapter.Close(); err != nil {
			r.logger.Debug("close failed", slog.String("id", active.Descriptor.ID), slog.Any("error", err))
		}
	}
}

// ConnectAll attempts to connect every persisted descriptor. Failures
// are collected per descriptor id; one bad saved connection never
// prevents the rest from becoming available. The error return is
// reserved for the store itself being unreadable.
func (r *Registry) ConnectAll(ctx context.Context) (map[string]error, error) {
	failures := make(map[string]error)
	if r.store == nil {
		return failures, nil
	}

	doc, err := r.store.Load()
	if err != nil {
		return nil, err
	}

	var (
		mu sync.Mutex
		eg errgroup.Group
	)
	for _, desc := range doc.Connections {
		eg.Go(func() error {
			if _, err := r.Connect(ctx, desc); err != nil {
				mu.Lock()
				failures[desc.ID] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()
	return failures, nil
}

// Lookup returns the live handle for a descriptor id.
func (r *Registry) Lookup(id string) (*Active, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	active, ok := r.conns[id]
	return active, ok
}

// List returns the ids of all live connections, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve checks that a connection ref is routable. It is the
// precondition the executor runs before any history or session
// mutation.
func (r *Registry) Resolve(ref string) error {
	if ref == DefaultRef {
		return nil
	}
	if _, ok := r.Lookup(ref); !ok {
		return &RoutingError{Ref: ref}
	}
	return nil
}

// Tables returns the table list captured at connect time. The engine
// ref answers live from the engine catalog.
func (r *Registry) Tables(ctx context.Context, ref string) ([]string, error) {
	if ref == DefaultRef {
		return r.engine.Tables(ctx)
	}
	active, ok := r.Lookup(ref)
	if !ok {
		return nil, &RoutingError{Ref: ref}
	}
	return active.Tables, nil
}

// TableQuery returns the starter query previewing a table on the given
// connection, in the backend's own dialect.
func (r *Registry) TableQuery(ref, table string) (string, error) {
	if ref == DefaultRef {
		return r.engine.TableQuery(table), nil
	}
	active, ok := r.Lookup(ref)
	if !ok {
		return "", &RoutingError{Ref: ref}
	}
	if active.Bridged() {
		return r.engine.TableQuery(active.Alias + "." + table), nil
	}
	return active.Adapter.TableQuery(table), nil
}

// Execute routes sql to the backend behind ref and collects the full
// result set. ref "default" always routes to the embedded engine;
// bridged refs also run on the engine, which resolves the attached
// alias itself. database/sql hands each call a pooled connection, so
// concurrent sessions never share statement state.
func (r *Registry) Execute(ctx context.Context, ref, sqlText string) (*Result, error) {
	var target adapter.Adapter = r.engine
	if ref != DefaultRef {
		active, ok := r.Lookup(ref)
		if !ok {
			return nil, &RoutingError{Ref: ref}
		}
		if !active.Bridged() {
			target = active.Adapter
		}
	}

	start := time.Now()
	rows, err := target.Query(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result, err := collect(rows.Rows)
	if err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

// collect drains a result set into memory, column names first.
func collect(rows *sql.Rows) (*Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Result{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			// []byte is unreadable in a projection; store text.
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// AliasFor derives the engine-side attach alias for a descriptor id.
func AliasFor(id string) string {
	var b strings.Builder
	b.WriteString("conn_")
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func descriptorConfig(desc store.ConnectionDescriptor) adapter.Config {
	return adapter.Config{
		Driver:   desc.Driver,
		Host:     desc.Host,
		Port:     desc.Port,
		Database: desc.Database,
		Username: desc.User,
		Password: desc.Password,
	}
}
