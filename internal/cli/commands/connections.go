package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/openduck/internal/store"
)

// NewConnectionsCommand creates the connections command group.
func NewConnectionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connections",
		Aliases: []string{"conn"},
		Short:   "Manage external database connections",
		Long: `Manage external database connections.

Connections are persisted by id and reconnected automatically at
startup. A bridged connection is attached into the embedded engine; a
direct connection uses the backend's native protocol.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConnectionsList(cmd)
		},
	}

	cmd.AddCommand(newConnectionsAddCommand())
	cmd.AddCommand(newConnectionsRemoveCommand())
	cmd.AddCommand(newConnectionsTablesCommand())

	return cmd
}

func runConnectionsList(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	doc, err := cmdCtx.Store.Load()
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Name", "Type", "Driver", "Host", "Database", "Status"})

	for _, desc := range doc.Connections {
		status := "connected"
		if _, ok := cmdCtx.Registry.Lookup(desc.ID); !ok {
			status = "unavailable"
			if err, failed := cmdCtx.Startup[desc.ID]; failed {
				status = fmt.Sprintf("error: %v", err)
			}
		}
		t.AppendRow(table.Row{desc.ID, desc.DisplayName, desc.Type, desc.Driver, desc.Host, desc.Database, status})
	}
	t.Render()
	return nil
}

func newConnectionsAddCommand() *cobra.Command {
	desc := store.ConnectionDescriptor{}

	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Connect an external database and persist its descriptor",
		Example: `  # Bridge a postgres database into the engine
  openduck connections add crm --type embedded-bridge --driver postgres \
    --host db1 --port 5432 --user app --password secret --database crm

  # Connect SQL Server directly
  openduck connections add sales --type direct --driver sqlserver \
    --host db2 --port 1433 --user app --password secret --database sales`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			desc.ID = args[0]
			if desc.DisplayName == "" {
				desc.DisplayName = desc.ID
			}

			tables, err := cmdCtx.Registry.Connect(cmd.Context(), desc)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Connected %q (%d tables)\n", desc.ID, len(tables))
			for _, t := range tables {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", t)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&desc.DisplayName, "name", "", "Display name (default: id)")
	cmd.Flags().StringVar(&desc.Type, "type", store.TypeBridge, "Connection type: embedded-bridge or direct")
	cmd.Flags().StringVar(&desc.Driver, "driver", "postgres", "Backend driver: postgres or sqlserver")
	cmd.Flags().StringVar(&desc.Host, "host", "localhost", "Backend host")
	cmd.Flags().IntVar(&desc.Port, "port", 0, "Backend port (default per driver)")
	cmd.Flags().StringVar(&desc.User, "user", "", "Username")
	cmd.Flags().StringVar(&desc.Password, "password", "", "Password")
	cmd.Flags().StringVar(&desc.Database, "database", "", "Database name")

	return cmd
}

func newConnectionsRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Disconnect and forget a connection",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cmdCtx.Registry.Disconnect(args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %q\n", args[0])
			return nil
		},
	}
}

func newConnectionsTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables <id>",
		Short: "List base tables on a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			tables, err := cmdCtx.Registry.Tables(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, t := range tables {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}
