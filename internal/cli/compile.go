package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlcompile/internal/ir"
	"github.com/roach88/sqlcompile/internal/queryir"
	"github.com/roach88/sqlcompile/internal/querysql"
	"github.com/roach88/sqlcompile/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
	Watch  bool   // recompile on file changes
}

// CompiledStatement is one compiled request.
type CompiledStatement struct {
	File      string   `json:"file"`
	Statement string   `json:"statement"`
	SQL       string   `json:"sql"`
	Params    []any    `json:"params"`
	Warnings  []string `json:"warnings,omitempty"`
}

// CompilationResult holds every statement compiled in one run.
type CompilationResult struct {
	Dialect    string              `json:"dialect"`
	Statements []CompiledStatement `json:"statements"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <request-file|dir>",
		Short: "Compile requests to parameterized SQL",
		Long: `Compile YAML, JSON or CUE request documents to SQL text plus an
ordered parameter list.

When a data source is configured, requests without a column list get
their table's columns from the database catalog, and upserts without
update columns get the non-primary-key columns.

With --watch the command keeps running and recompiles whenever a request
file under the path changes.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Watch {
				return watchCompile(opts, args[0], cmd)
			}
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "recompile when request files change")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	// Use shared loader with collect-all mode
	loadResult, loadErrors := LoadRequests(path, LoadModeCollectAll)

	// Handle load errors (path not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := parseError(loadErrors[0])
		return outputCompileError(formatter, code, message, nil)
	}

	formatter.VerboseLog("Found %d request file(s) in %s", loadResult.FileCount, path)

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	c, err := opts.compiler()
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	requests := loadResult.Requests
	if opts.DSN != "" {
		filled, code, err := fillFromCatalog(cmd.Context(), opts.RootOptions, requests)
		if err != nil {
			return outputCompileError(formatter, code, err.Error(), nil)
		}
		requests = filled
	}

	result := &CompilationResult{
		Dialect:    c.Dialect().Name(),
		Statements: make([]CompiledStatement, 0, len(requests)),
	}
	var compileErrors []error
	for _, req := range requests {
		formatter.VerboseLog("Compiling %s: %s", queryir.Name(req.Query), req.Path)

		stmt, err := compileRequest(c, req)
		if err != nil {
			compileErrors = append(compileErrors, err)
			continue
		}
		result.Statements = append(result.Statements, stmt)
	}

	if len(compileErrors) > 0 {
		return outputCompileErrors(formatter, compileErrors)
	}

	// Write to file if --output specified
	if opts.Output != "" {
		if err := writeStatementsToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// compileRequest compiles one request and lints it.
func compileRequest(c *querysql.SQLCompiler, req RequestFile) (CompiledStatement, error) {
	f, err := c.CompileQuery(req.Query)
	if err != nil {
		return CompiledStatement{}, &LoadError{
			Code:    MapCompileCode(querysql.CodeOf(err)),
			Message: err.Error(),
			Path:    req.Path,
		}
	}

	stmt := CompiledStatement{
		File:      req.Path,
		Statement: queryir.Name(req.Query),
		SQL:       f.SQL,
		Params:    paramTrees(f.Params),
	}
	if v := queryir.Validate(req.Query); !v.Clean {
		stmt.Warnings = v.Warnings
	}
	return stmt, nil
}

// fillFromCatalog completes each request's column lists from the
// configured database. On failure it also returns the CLI error code.
func fillFromCatalog(ctx context.Context, opts *RootOptions, requests []RequestFile) ([]RequestFile, string, error) {
	st, err := opts.openStore(ctx)
	if err != nil {
		return nil, ErrCodeConnect, err
	}
	defer closeStore(st)

	out := make([]RequestFile, len(requests))
	for i, req := range requests {
		q, err := st.FillColumns(ctx, req.Query)
		if err != nil {
			return nil, ErrCodeIntrospect, fmt.Errorf("%s: %w", req.Path, err)
		}
		out[i] = RequestFile{Path: req.Path, Query: q}
	}
	return out, "", nil
}

// paramTrees renders bound parameters as JSON-compatible literals.
func paramTrees(params []ir.Value) []any {
	out := make([]any, len(params))
	for i, p := range params {
		out[i] = ir.LiteralTree(p)
	}
	return out
}

// formatParams renders parameters on one line for text output.
func formatParams(params []any) string {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%v", params)
	}
	return string(data)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "%s Compiled %d statement(s) for %s\n\n",
		passMark(), len(result.Statements), result.Dialect)

	for _, stmt := range result.Statements {
		fmt.Fprintf(formatter.Writer, "%s (%s)\n", stmt.File, stmt.Statement)
		fmt.Fprintf(formatter.Writer, "  %s\n", stmt.SQL)
		fmt.Fprintf(formatter.Writer, "  params: %s\n", formatParams(stmt.Params))
		for _, w := range stmt.Warnings {
			fmt.Fprintf(formatter.Writer, "  warning: %s\n", w)
		}
		fmt.Fprintln(formatter.Writer)
	}

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote statements to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseError(err)
			cliErrors[i] = CLIError{
				Code:    code,
				Message: message,
				Details: errorPath(err),
			}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}
		if err := formatter.Encode(response); err != nil {
			return err
		}

		// Compilation errors are command-level errors (exit code 2)
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintf(formatter.Writer, "%s Compilation failed\n", failMark())
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			switch {
			case loadErr.Pos.IsValid():
				fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
					loadErr.Pos.Filename(),
					loadErr.Pos.Line(),
					loadErr.Pos.Column())
			case loadErr.Path != "":
				fmt.Fprintln(formatter.Writer, loadErr.Path)
			}
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// errorPath returns the file an error refers to, or nil.
func errorPath(err error) interface{} {
	var loadErr *LoadError
	if errors.As(err, &loadErr) && loadErr.Path != "" {
		return map[string]string{"file": loadErr.Path}
	}
	return nil
}

// writeStatementsToFile writes the compilation result to a file as indented JSON.
func writeStatementsToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling statements: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}

// closeStore closes st, logging any failure.
func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Warn("closing database", "error", err)
	}
}
