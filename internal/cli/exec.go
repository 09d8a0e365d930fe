package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/roach88/sqlcompile/internal/queryir"
	"github.com/roach88/sqlcompile/internal/querysql"
	"github.com/roach88/sqlcompile/internal/store"
)

// ExecutedStatement is the outcome of running one request.
type ExecutedStatement struct {
	File         string   `json:"file"`
	Statement    string   `json:"statement"`
	SQL          string   `json:"sql"`
	Params       []any    `json:"params"`
	Columns      []string `json:"columns,omitempty"`
	Rows         [][]any  `json:"rows,omitempty"`
	AffectedRows *int64   `json:"affected_rows,omitempty"`
	InsertID     *int64   `json:"insert_id,omitempty"`
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <request-file|dir>",
		Short: "Compile requests and run them against a database",
		Long: `Compile request documents with the database's dialect and execute
them in file-name order.

Find and count print their result rows; other statements print the
affected-row count and, for inserts, the last insert id.

Examples:
  sqlcompile exec --dialect sqlite --dsn app.db ./requests
  SQLCOMPILE_DSN='user:pw@tcp(localhost:3306)/hr' sqlcompile exec find.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runExec(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	ctx := cmd.Context()

	loadResult, loadErrors := LoadRequests(path, LoadModeFailFast)
	if len(loadErrors) > 0 {
		code, message := parseError(loadErrors[0])
		return outputExecError(formatter, code, message)
	}

	st, err := opts.openStore(ctx)
	if err != nil {
		return outputExecError(formatter, ErrCodeConnect, err.Error())
	}
	defer closeStore(st)

	formatter.VerboseLog("Connected with driver %s (%s dialect)", st.Driver(), st.Dialect().Name())
	checkServer(ctx, st, formatter)

	executed := make([]ExecutedStatement, 0, len(loadResult.Requests))
	for _, req := range loadResult.Requests {
		q, err := st.FillColumns(ctx, req.Query)
		if err != nil {
			return outputExecError(formatter, ErrCodeIntrospect, fmt.Sprintf("%s: %v", req.Path, err))
		}

		start := time.Now()
		outcome, err := st.Run(ctx, q)
		if err != nil {
			code := ErrCodeExecute
			if c := querysql.CodeOf(err); c != "" {
				code = MapCompileCode(c)
			}
			return outputExecError(formatter, code, fmt.Sprintf("%s: %v", req.Path, err))
		}
		formatter.VerboseLog("Ran %s in %s", req.Path, time.Since(start))

		executed = append(executed, executedStatement(req.Path, q, outcome))
	}

	if formatter.Format == "json" {
		return formatter.Success(executed)
	}

	for _, stmt := range executed {
		if err := printExecuted(formatter.Writer, stmt); err != nil {
			return err
		}
	}
	fmt.Fprintf(formatter.Writer, "%s Executed %d statement(s)\n", passMark(), len(executed))
	return nil
}

// checkServer logs compatibility caveats of the connected engine.
// A failed version lookup does not stop execution.
func checkServer(ctx context.Context, st *store.Store, formatter *OutputFormatter) {
	info, err := st.Server(ctx)
	if err != nil {
		slog.Warn("server version unavailable", "error", err)
		return
	}
	formatter.VerboseLog("Server version %s", info.Raw)
	for _, note := range info.Notes() {
		slog.Warn(note, "driver", info.Driver)
	}
}

func executedStatement(path string, q queryir.Query, outcome store.Outcome) ExecutedStatement {
	stmt := ExecutedStatement{
		File:      path,
		Statement: queryir.Name(q),
		SQL:       outcome.Fragment.SQL,
		Params:    paramTrees(outcome.Fragment.Params),
	}
	if outcome.Rows != nil {
		stmt.Columns = outcome.Rows.Columns
		stmt.Rows = outcome.Rows.Values
	}
	if outcome.Result != nil {
		affected := outcome.Result.AffectedRows
		stmt.AffectedRows = &affected
		if outcome.Result.InsertID != 0 {
			id := outcome.Result.InsertID
			stmt.InsertID = &id
		}
	}
	return stmt
}

// printExecuted writes one statement and its outcome as text.
func printExecuted(w io.Writer, stmt ExecutedStatement) error {
	fmt.Fprintf(w, "%s (%s)\n", stmt.File, stmt.Statement)
	fmt.Fprintf(w, "  %s\n", stmt.SQL)
	fmt.Fprintf(w, "  params: %s\n", formatParams(stmt.Params))

	switch {
	case stmt.Columns != nil:
		if len(stmt.Rows) == 0 {
			fmt.Fprintln(w, "  (no rows)")
			break
		}
		data := pterm.TableData{stmt.Columns}
		for _, row := range stmt.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = formatCell(v)
			}
			data = append(data, cells)
		}
		if err := renderTable(w, data); err != nil {
			return err
		}
	case stmt.AffectedRows != nil:
		fmt.Fprintf(w, "  affected rows: %d\n", *stmt.AffectedRows)
		if stmt.InsertID != nil {
			fmt.Fprintf(w, "  insert id: %d\n", *stmt.InsertID)
		}
	}
	fmt.Fprintln(w)
	return nil
}

// renderTable writes data with a header row.
func renderTable(w io.Writer, data pterm.TableData) error {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

// formatCell renders a scanned value for a text table.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(val)
	}
}

// outputExecError outputs an execution error.
func outputExecError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Database and compile errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
