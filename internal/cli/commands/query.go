package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/openduck/internal/files"
	"github.com/leapstack-labs/openduck/internal/registry"
	"github.com/leapstack-labs/openduck/internal/session"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Connection string
	Format     string
	Input      string
	File       string
	Filters    []string
	Sort       string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Execute SQL against the embedded engine or a connection",
		Long: `Execute SQL through the workbench core.

The query runs on the embedded DuckDB engine by default, or on a bound
connection selected with --connection. Results can be filtered and
sorted per column without re-running the query.

When invoked without arguments on a terminal, enters interactive REPL
mode.`,
		Example: `  # Query the embedded engine
  openduck query "SELECT 42 AS answer"

  # Query a data file
  openduck query --file sales.csv

  # Query a bound connection
  openduck query -c crm "SELECT * FROM customers LIMIT 10"

  # Filter column 1 and sort column 0 descending
  openduck query "SELECT * FROM 'sales.parquet'" --filter 1=9 --sort 0:desc

  # Interactive mode
  openduck query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Connection, "connection", "c", registry.DefaultRef, "Connection id (default: embedded engine)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: table, json, csv, md")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	cmd.Flags().StringVar(&opts.File, "file", "", "Preview a data file using its starter query")
	cmd.Flags().StringArrayVar(&opts.Filters, "filter", nil, "Column filter as INDEX=TEXT (repeatable)")
	cmd.Flags().StringVar(&opts.Sort, "sort", "", "Column sort as INDEX:asc|desc")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	var sqlText string
	switch {
	case len(args) > 0:
		sqlText = strings.Join(args, " ")
	case opts.File != "":
		if !files.Supported(opts.File) {
			return fmt.Errorf("unsupported data file: %s", opts.File)
		}
		sqlText = files.StarterSQL(opts.File)
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlText = string(content)
	case !isTerminal(os.Stdin):
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlText = string(content)
	default:
		// No input, TTY detected - enter REPL mode
		return runREPL(cmd, cmdCtx, opts)
	}

	format := opts.Format
	if format == "" {
		format = cmdCtx.Cfg.Output
	}

	sess := session.New(opts.Connection)
	sess.SetSQL(sqlText)

	exec, err := cmdCtx.Executor.Run(cmd.Context(), sess)
	if err != nil {
		return err
	}
	if exec == nil {
		return nil
	}

	status, err := exec.Wait(cmd.Context())
	if err != nil && status == session.StatusRunning {
		exec.Cancel()
		return err
	}

	if err := applyColumnState(sess, opts); err != nil {
		return err
	}

	labels, rows := sess.Project()
	if err := renderResult(cmd.OutOrStdout(), labels, rows, format); err != nil {
		return err
	}

	switch status {
	case session.StatusSucceeded:
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Time: %.4fs\n", sess.Duration().Seconds())
		return nil
	case session.StatusFailed:
		return fmt.Errorf("query failed")
	case session.StatusCancelled:
		return fmt.Errorf("query cancelled")
	default:
		return nil
	}
}

// applyColumnState maps --filter and --sort flags onto the session's
// column state.
func applyColumnState(sess *session.Session, opts *QueryOptions) error {
	for _, f := range opts.Filters {
		idx, text, ok := strings.Cut(f, "=")
		if !ok {
			return fmt.Errorf("invalid --filter %q (want INDEX=TEXT)", f)
		}
		col, err := strconv.Atoi(idx)
		if err != nil {
			return fmt.Errorf("invalid --filter column %q", idx)
		}
		if err := sess.SetFilter(col, text); err != nil {
			return err
		}
	}

	if opts.Sort != "" {
		idx, dir, ok := strings.Cut(opts.Sort, ":")
		if !ok {
			return fmt.Errorf("invalid --sort %q (want INDEX:asc|desc)", opts.Sort)
		}
		col, err := strconv.Atoi(idx)
		if err != nil {
			return fmt.Errorf("invalid --sort column %q", idx)
		}
		var sort session.Sort
		switch strings.ToLower(dir) {
		case "asc":
			sort = session.SortAsc
		case "desc":
			sort = session.SortDesc
		default:
			return fmt.Errorf("invalid --sort direction %q", dir)
		}
		if err := sess.SetSort(col, sort); err != nil {
			return err
		}
	}
	return nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
