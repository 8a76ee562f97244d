package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/openduck/internal/config"
	"github.com/leapstack-labs/openduck/internal/registry"
	"github.com/leapstack-labs/openduck/internal/session"
	"github.com/leapstack-labs/openduck/internal/store"
)

type configKey struct{}
type loggerKey struct{}

// WithApp stores the loaded config and logger in the command context.
// Called once by the root command's PersistentPreRunE.
func WithApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) context.Context {
	ctx = context.WithValue(ctx, configKey{}, cfg)
	ctx = context.WithValue(ctx, loggerKey{}, logger)
	return ctx
}

func getConfig(cmd *cobra.Command) *config.Config {
	if cfg, ok := cmd.Context().Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	cfg, _ := config.Load("", nil)
	return cfg
}

func getLogger(cmd *cobra.Command) *slog.Logger {
	if logger, ok := cmd.Context().Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.New(slog.DiscardHandler)
}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Store    *store.Store
	Registry *registry.Registry
	Executor *session.Executor

	// Startup holds per-descriptor connect failures from startup
	// recovery. A failing saved connection never blocks the others.
	Startup map[string]error
}

// NewCommandContext builds the full workbench core: config store,
// connection registry (embedded engine opened, saved connections
// reconnected), and executor. Returns a cleanup function that must be
// called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig(cmd)
	logger := getLogger(cmd)

	st, err := newStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	reg, err := registry.New(cmd.Context(), registry.Options{
		EnginePath:     cfg.EnginePath,
		ConnectTimeout: cfg.ConnectTimeout,
		Store:          st,
		Logger:         logger,
	})
	if err != nil {
		return nil, nil, err
	}

	startup, err := reg.ConnectAll(cmd.Context())
	if err != nil {
		_ = reg.Close()
		return nil, nil, err
	}
	for id, err := range startup {
		logger.Warn("saved connection failed to reconnect",
			slog.String("id", id), slog.Any("error", err))
	}

	cleanup := func() {
		_ = reg.Close()
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Store:    st,
		Registry: reg,
		Executor: session.NewExecutor(reg, st, logger),
		Startup:  startup,
	}, cleanup, nil
}

// NewCommandContextWithoutEngine builds only the config store. Useful
// for commands that never execute SQL (history, saved list).
func NewCommandContextWithoutEngine(cmd *cobra.Command) (*CommandContext, error) {
	cfg := getConfig(cmd)
	logger := getLogger(cmd)

	st, err := newStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &CommandContext{Cfg: cfg, Logger: logger, Store: st}, nil
}

func newStore(cfg *config.Config, logger *slog.Logger) (*store.Store, error) {
	dir := filepath.Dir(cfg.StorePath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return store.New(cfg.StorePath, logger), nil
}
