package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/sqlcompile/internal/ir"
)

// Snapshot renders the compiled output of a scenario as canonical JSON.
//
// The snapshot holds, per case, the canonical request, SQL, params, error
// code, warnings and (for executing scenarios) the rows or affected-row
// count. Identical inputs always produce identical bytes.
func Snapshot(scenarioName, dialect string, result *Result) ([]byte, error) {
	if dialect == "" {
		dialect = "mysql"
	}

	cases := make([]any, len(result.Cases))
	for i, cr := range result.Cases {
		cases[i] = caseSnapshot(cr)
	}

	return ir.MarshalCanonical(map[string]any{
		"scenario_name": scenarioName,
		"dialect":       dialect,
		"cases":         cases,
	})
}

// caseSnapshot converts a CaseResult to a map[string]any for canonical JSON
// serialization. ir.MarshalCanonical only handles literals and primitives.
func caseSnapshot(cr CaseResult) map[string]any {
	m := map[string]any{"name": cr.Name}
	if cr.Request != "" {
		m["request"] = cr.Request
	}
	if cr.Error != "" {
		m["error"] = cr.Error
	}
	if cr.SQL != "" {
		m["sql"] = cr.SQL
		params := make([]any, len(cr.Params))
		for i, p := range cr.Params {
			params[i] = ir.LiteralTree(p)
		}
		m["params"] = params
	}
	if len(cr.Warnings) > 0 {
		warnings := make([]any, len(cr.Warnings))
		for i, w := range cr.Warnings {
			warnings[i] = w
		}
		m["warnings"] = warnings
	}
	if cr.Rows != nil {
		rows := make([]any, len(cr.Rows.Values))
		for i, row := range cr.Rows.Values {
			cells := make([]any, len(row))
			for j, cell := range row {
				cells[j] = scannedTree(cell)
			}
			rows[i] = cells
		}
		columns := make([]any, len(cr.Rows.Columns))
		for i, c := range cr.Rows.Columns {
			columns[i] = c
		}
		m["columns"] = columns
		m["rows"] = rows
	}
	if cr.Result != nil {
		m["affected_rows"] = cr.Result.AffectedRows
	}
	return m
}

// scannedTree lifts a scanned driver value to its literal tree.
func scannedTree(v any) any {
	lit, err := ir.FromAny(v)
	if err != nil {
		return map[string]any{"$unknown": err.Error()}
	}
	return ir.LiteralTree(lit)
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := assertSnapshot(t, scenario.Name, scenario.Dialect, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()
	return assertSnapshot(t, scenarioName, "", result)
}

func assertSnapshot(t *testing.T, name, dialect string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, dialect, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)

	return nil
}
