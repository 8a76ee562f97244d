package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/openduck/internal/files"
	"github.com/leapstack-labs/openduck/internal/registry"
	"github.com/leapstack-labs/openduck/internal/session"
)

const replPrompt = "openduck> "
const replContinue = "     ...> "

// runREPL drives the interactive workbench loop: one live session,
// multi-line SQL buffered until a semicolon, dot-commands for
// connection switching and non-destructive filter/sort over the last
// result.
func runREPL(cmd *cobra.Command, cmdCtx *CommandContext, opts *QueryOptions) error {
	historyFile := filepath.Join(filepath.Dir(cmdCtx.Cfg.StorePath), ".openduck_repl_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newReplCompleter(cmd, cmdCtx),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "OpenDuck workbench (store: %s)\n", cmdCtx.Store.Path())
	for id, err := range cmdCtx.Startup {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: saved connection %q failed: %v\n", id, err)
	}
	_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	sess := session.New(opts.Connection)
	format := opts.Format
	if format == "" {
		format = cmdCtx.Cfg.Output
	}

	// Restore the most recent query into the session buffer.
	if doc, err := cmdCtx.Store.Load(); err == nil && len(doc.History) > 0 {
		last := doc.History[len(doc.History)-1].SQL
		sess.SetSQL(last)
		_, _ = fmt.Fprintf(out, "Restored last query (.last re-runs it):\n  %s\n\n", last)
	}

	var buffer strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buffer.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") && buffer.Len() == 0 {
			if line == ".quit" || line == ".exit" {
				break
			}
			handleDotCommand(cmd, cmdCtx, sess, line, format)
			continue
		}

		buffer.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buffer.WriteString(" ")
			rl.SetPrompt(replContinue)
			continue
		}
		rl.SetPrompt(replPrompt)

		sqlText := buffer.String()
		buffer.Reset()

		runAndRender(cmd, cmdCtx, sess, sqlText, format)
		_, _ = fmt.Fprintln(out)
	}

	return nil
}

// runAndRender executes SQL on the REPL session and renders the
// projection plus a metadata line.
func runAndRender(cmd *cobra.Command, cmdCtx *CommandContext, sess *session.Session, sqlText, format string) {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	sess.SetSQL(sqlText)
	exec, err := cmdCtx.Executor.Run(cmd.Context(), sess)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		return
	}
	if exec == nil {
		return
	}

	_, _ = fmt.Fprintln(out, "Executing...")
	status, _ := exec.Wait(cmd.Context())

	labels, rows := sess.Project()
	if err := renderResult(out, labels, rows, format); err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		return
	}
	if status == session.StatusSucceeded {
		_, _ = fmt.Fprintf(out, "Time: %.4fs\n", sess.Duration().Seconds())
	}
}

func handleDotCommand(cmd *cobra.Command, cmdCtx *CommandContext, sess *session.Session, line, format string) {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	parts := strings.Fields(line)

	switch strings.ToLower(parts[0]) {
	case ".help":
		printREPLHelp(out)

	case ".connections":
		ids := cmdCtx.Registry.List()
		_, _ = fmt.Fprintf(out, "default (embedded engine)\n")
		for _, id := range ids {
			_, _ = fmt.Fprintln(out, id)
		}

	case ".use":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .use <connection-id|default>")
			return
		}
		if err := cmdCtx.Registry.Resolve(parts[1]); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return
		}
		sess.SetConnectionRef(parts[1])
		_, _ = fmt.Fprintf(out, "Using %s\n", parts[1])

	case ".tables":
		tables, err := cmdCtx.Registry.Tables(cmd.Context(), sess.ConnectionRef())
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return
		}
		for _, t := range tables {
			_, _ = fmt.Fprintln(out, t)
		}

	case ".preview":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .preview <table>")
			return
		}
		sqlText, err := cmdCtx.Registry.TableQuery(sess.ConnectionRef(), parts[1])
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return
		}
		runAndRender(cmd, cmdCtx, sess, sqlText, format)

	case ".open":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .open <data-file>")
			return
		}
		if !files.Supported(parts[1]) {
			_, _ = fmt.Fprintf(errOut, "Error: unsupported data file %q\n", parts[1])
			return
		}
		sess.SetConnectionRef(registry.DefaultRef)
		runAndRender(cmd, cmdCtx, sess, files.StarterSQL(parts[1]), format)

	case ".filter":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .filter <column> [text]")
			return
		}
		col, err := strconv.Atoi(parts[1])
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: invalid column %q\n", parts[1])
			return
		}
		text := strings.Join(parts[2:], " ")
		if err := sess.SetFilter(col, text); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return
		}
		reproject(cmd, sess, format)

	case ".sort":
		if len(parts) < 3 {
			_, _ = fmt.Fprintln(errOut, "Usage: .sort <column> asc|desc|none")
			return
		}
		col, err := strconv.Atoi(parts[1])
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: invalid column %q\n", parts[1])
			return
		}
		var dir session.Sort
		switch strings.ToLower(parts[2]) {
		case "asc":
			dir = session.SortAsc
		case "desc":
			dir = session.SortDesc
		case "none":
			dir = session.SortNone
		default:
			_, _ = fmt.Fprintf(errOut, "Error: invalid direction %q\n", parts[2])
			return
		}
		if err := sess.SetSort(col, dir); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return
		}
		reproject(cmd, sess, format)

	case ".save":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .save <name>")
			return
		}
		sqlText := strings.TrimSpace(sess.SQL())
		if sqlText == "" {
			_, _ = fmt.Fprintln(errOut, "Nothing to save: run a query first")
			return
		}
		if err := cmdCtx.Store.UpsertSavedQuery(parts[1], sqlText); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return
		}
		_, _ = fmt.Fprintf(out, "Saved %q\n", parts[1])

	case ".last":
		doc, err := cmdCtx.Store.Load()
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return
		}
		if len(doc.History) == 0 {
			_, _ = fmt.Fprintln(errOut, "History is empty")
			return
		}
		runAndRender(cmd, cmdCtx, sess, doc.History[len(doc.History)-1].SQL, format)

	case ".clear":
		fmt.Print("\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", parts[0])
	}
}

func reproject(cmd *cobra.Command, sess *session.Session, format string) {
	labels, rows := sess.Project()
	if err := renderResult(cmd.OutOrStdout(), labels, rows, format); err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help                  Show this help message
  .connections           List live connections
  .use <id|default>      Switch the session's connection
  .tables                List base tables on the current connection
  .preview <table>       Run the starter query for a table
  .open <file>           Preview a data file on the embedded engine
  .filter <col> [text]   Filter a result column (empty text clears)
  .sort <col> <dir>      Sort a result column (asc, desc, none)
  .save <name>           Save the session's SQL under a name
  .last                  Re-run the most recent history entry
  .clear                 Clear the screen
  .quit / .exit          Exit

Tips:
  - SQL statements must end with a semicolon (;)
  - Filters and sorts re-project the cached result without re-running
`
	_, _ = fmt.Fprintln(w, help)
}

// newReplCompleter completes table names on the current engine plus
// dot-commands.
func newReplCompleter(cmd *cobra.Command, cmdCtx *CommandContext) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface

	if tables, err := cmdCtx.Registry.Tables(cmd.Context(), registry.DefaultRef); err == nil {
		for _, t := range tables {
			items = append(items, readline.PcItem(t))
		}
	}

	items = append(items,
		readline.PcItem(".help"),
		readline.PcItem(".connections"),
		readline.PcItem(".use"),
		readline.PcItem(".tables"),
		readline.PcItem(".preview"),
		readline.PcItem(".open"),
		readline.PcItem(".filter"),
		readline.PcItem(".sort"),
		readline.PcItem(".save"),
		readline.PcItem(".last"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)

	return readline.NewPrefixCompleter(items...)
}
