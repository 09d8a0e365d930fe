package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/sqlcompile/internal/queryir"
	"github.com/roach88/sqlcompile/internal/querysql"
	"github.com/roach88/sqlcompile/internal/request"
	"github.com/roach88/sqlcompile/internal/store"
)

// Harness is the test execution engine.
// It compiles scenario cases and, for executing scenarios, runs them
// against an isolated in-memory database.
type Harness struct {
	compiler *querysql.SQLCompiler
	store    *store.Store // nil unless the scenario executes
	logger   *slog.Logger

	// queries holds the decoded request of each case, nil when decoding
	// failed. Assertions recompile from here.
	queries []queryir.Query
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
// 1. Resolve the dialect
// 2. Create a fresh in-memory database and run setup (executing scenarios only)
// 3. Decode, lint, compile and execute each case; check its expect clause
// 4. Evaluate assertions
//
// An error is returned only when the scenario cannot run at all; case and
// assertion failures are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	dialect, err := querysql.DialectByName(scenario.Dialect)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		compiler: querysql.NewSQLCompiler(dialect),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	if scenario.Execute {
		st, err := store.Open(ctx, store.DriverSQLite, ":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
		h.store = st

		if err := h.executeSetup(ctx, scenario.Setup); err != nil {
			return nil, fmt.Errorf("failed to execute setup: %w", err)
		}
	}

	result := NewResult()
	for i, c := range scenario.Cases {
		cr := h.executeCase(ctx, c)
		result.Cases = append(result.Cases, cr)
		for _, msg := range checkExpect(c, cr) {
			result.AddError(fmt.Sprintf("case %d (%s): %s", i, c.Name, msg))
		}
	}

	actx := &AssertionContext{
		Ctx:      ctx,
		Store:    h.store,
		Compiler: h.compiler,
		Queries:  h.queries,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeSetup runs raw setup statements in order.
func (h *Harness) executeSetup(ctx context.Context, setup []string) error {
	for i, stmt := range setup {
		if _, err := h.store.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("setup step %d: %w", i, err)
		}
		h.logger.Info("setup step completed", "step", i)
	}
	return nil
}

// executeCase decodes, lints and compiles one request, then executes it
// when the scenario has a database.
func (h *Harness) executeCase(ctx context.Context, c Case) CaseResult {
	cr := CaseResult{Name: c.Name}

	q, err := request.Decode(request.Normalize(c.Request))
	if err != nil {
		h.queries = append(h.queries, nil)
		cr.Error = errorText(err)
		return cr
	}

	if h.store != nil {
		filled, err := h.store.FillColumns(ctx, q)
		if err != nil {
			h.queries = append(h.queries, q)
			cr.Error = err.Error()
			return cr
		}
		q = filled
	}
	h.queries = append(h.queries, q)

	if doc, err := request.Marshal(q); err == nil {
		cr.Request = string(doc)
	}
	if v := queryir.Validate(q); !v.Clean {
		cr.Warnings = v.Warnings
	}

	f, err := h.compiler.CompileQuery(q)
	if err != nil {
		cr.Error = errorText(err)
		return cr
	}
	cr.SQL = f.SQL
	cr.Params = f.Params

	h.logger.Info("case compiled",
		"case", c.Name,
		"statement", queryir.Name(q),
		"params", len(f.Params),
	)

	if h.store == nil {
		return cr
	}

	switch queryir.Name(q) {
	case "find", "count":
		rows, err := h.store.Query(ctx, f)
		if err != nil {
			cr.Error = err.Error()
			return cr
		}
		cr.Rows = &rows
	default:
		res, err := h.store.Exec(ctx, f)
		if err != nil {
			cr.Error = err.Error()
			return cr
		}
		cr.Result = &res
	}
	return cr
}

// errorText is the compile error code, or the message for other errors.
func errorText(err error) string {
	if code := querysql.CodeOf(err); code != "" {
		return string(code)
	}
	return err.Error()
}

// checkExpect compares a case result to its expect clause.
func checkExpect(c Case, cr CaseResult) []string {
	exp := c.Expect
	if exp == nil {
		return nil
	}

	var errs []string
	if exp.Error != "" {
		if cr.Error != exp.Error {
			errs = append(errs, fmt.Sprintf("expected error %s, got %s", exp.Error, describeError(cr.Error)))
		}
		return errs
	}
	if cr.Error != "" {
		return append(errs, fmt.Sprintf("unexpected error: %s", cr.Error))
	}

	if exp.SQL != "" {
		if cr.SQL != exp.SQL {
			errs = append(errs, fmt.Sprintf("sql mismatch\n  expected: %s\n  actual:   %s", exp.SQL, cr.SQL))
		}
		if msg := compareParams(exp.Params, cr.Params); msg != "" {
			errs = append(errs, msg)
		}
	}

	if exp.Warnings != nil && !slices.Equal(exp.Warnings, cr.Warnings) {
		errs = append(errs, fmt.Sprintf("warnings mismatch\n  expected: %q\n  actual:   %q", exp.Warnings, cr.Warnings))
	}

	if exp.Rows != nil {
		if cr.Rows == nil {
			errs = append(errs, "expected rows, statement returned none")
		} else if msg := matchRows(exp.Rows, cr.Rows.Records()); msg != "" {
			errs = append(errs, msg)
		}
	}

	if exp.AffectedRows != nil {
		switch {
		case cr.Result == nil:
			errs = append(errs, "expected affected_rows, statement returned rows")
		case cr.Result.AffectedRows != *exp.AffectedRows:
			errs = append(errs, fmt.Sprintf("expected %d affected rows, got %d", *exp.AffectedRows, cr.Result.AffectedRows))
		}
	}

	return errs
}

func describeError(got string) string {
	if got == "" {
		return "no error"
	}
	return got
}
