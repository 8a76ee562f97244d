// Package cli provides the command-line interface for OpenDuck.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/openduck/internal/cli/commands"
	"github.com/leapstack-labs/openduck/internal/config"

	// Register direct-protocol adapters.
	_ "github.com/leapstack-labs/openduck/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/openduck/pkg/adapters/sqlserver"
)

// Version information (set at build time).
var (
	Version = "0.1.0"
)

var cfgFile string

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "openduck",
		Short: "OpenDuck - Interactive SQL workbench",
		Long: `OpenDuck is an interactive SQL workbench built with Go and DuckDB.

Browse data files and live database connections, run SQL through the
embedded analytical engine (optionally bridged to external servers),
and keep history, saved queries, and connections across sessions.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := newLogger(cfg)
			cmd.SetContext(commands.WithApp(cmd.Context(), cfg, logger))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Built with Go and DuckDB
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./openduck.yaml)")
	rootCmd.PersistentFlags().String("workspace", "", "Workspace directory holding the config store")
	rootCmd.PersistentFlags().String("store-path", "", "Config store document path")
	rootCmd.PersistentFlags().String("engine-path", "", "DuckDB database path (empty for in-memory)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Default output format (table|json|csv|md)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewConnectionsCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewSavedCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(Version))

	return rootCmd
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
