package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/openduck/internal/registry"
	"github.com/leapstack-labs/openduck/internal/session"
)

// NewSavedCommand creates the saved command group.
func NewSavedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Manage saved named queries",
		Long: `Manage saved named queries.

Names are unique: saving under an existing name replaces the stored
SQL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSavedList(cmd)
		},
	}

	cmd.AddCommand(newSavedSetCommand())
	cmd.AddCommand(newSavedRunCommand())

	return cmd
}

func runSavedList(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return err
	}

	doc, err := cmdCtx.Store.Load()
	if err != nil {
		return err
	}

	if len(doc.SavedQueries) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "(no saved queries)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Saved", "SQL"})
	for _, q := range doc.SavedQueries {
		t.AppendRow(table.Row{q.Name, q.Timestamp.Format(time.RFC3339), q.SQL})
	}
	t.Render()
	return nil
}

func newSavedSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> <SQL...>",
		Short: "Save a query under a name (overwrites an existing name)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, err := NewCommandContextWithoutEngine(cmd)
			if err != nil {
				return err
			}

			name := args[0]
			sqlText := strings.Join(args[1:], " ")
			if err := cmdCtx.Store.UpsertSavedQuery(name, sqlText); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved %q\n", name)
			return nil
		},
	}
}

func newSavedRunCommand() *cobra.Command {
	var connection string
	var format string

	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Execute a saved query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			doc, err := cmdCtx.Store.Load()
			if err != nil {
				return err
			}

			var sqlText string
			for _, q := range doc.SavedQueries {
				if q.Name == args[0] {
					sqlText = q.SQL
					break
				}
			}
			if sqlText == "" {
				return fmt.Errorf("no saved query named %q", args[0])
			}

			if format == "" {
				format = cmdCtx.Cfg.Output
			}

			sess := session.New(connection)
			sess.SetSQL(sqlText)

			exec, err := cmdCtx.Executor.Run(cmd.Context(), sess)
			if err != nil {
				return err
			}
			status, _ := exec.Wait(cmd.Context())

			labels, rows := sess.Project()
			if err := renderResult(cmd.OutOrStdout(), labels, rows, format); err != nil {
				return err
			}
			if status == session.StatusFailed {
				return fmt.Errorf("query failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&connection, "connection", "c", registry.DefaultRef, "Connection id (default: embedded engine)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: table, json, csv, md")
	return cmd
}
