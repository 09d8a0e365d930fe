package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios compile a list of request documents and compare the resulting
// SQL, params and error codes against expectations. Executing scenarios
// also run every statement against a fresh in-memory SQLite database.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Dialect selects the SQL dialect: "mysql" (default) or "sqlite".
	// Executing scenarios must use sqlite.
	Dialect string `yaml:"dialect,omitempty"`

	// Execute runs each compiled statement against an in-memory database.
	Execute bool `yaml:"execute,omitempty"`

	// Setup contains raw SQL run before the first case (e.g. CREATE TABLE).
	// Only allowed when Execute is set.
	Setup []string `yaml:"setup,omitempty"`

	// Cases are compiled (and executed) in order.
	Cases []Case `yaml:"cases"`

	// Assertions validate properties across all cases or the final
	// database state.
	// Supported types: final_state, placeholder_parity, idempotent
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Case is one request and its expected outcome.
type Case struct {
	// Name identifies the case within the scenario.
	Name string `yaml:"name"`

	// Request is a request document (see package request).
	Request map[string]interface{} `yaml:"request"`

	// Expect specifies the expected outcome.
	// If nil, the case only contributes to the golden snapshot.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected compile (and execute) result.
type ExpectClause struct {
	// SQL is the exact expected statement. When set, Params is compared
	// too (a missing params list means no params).
	SQL string `yaml:"sql,omitempty"`

	// Params are the expected bound values, as request literals.
	Params []interface{} `yaml:"params,omitempty"`

	// Error is the expected compile error code (e.g. UNKNOWN_COLUMN).
	Error string `yaml:"error,omitempty"`

	// Warnings are the expected lint warnings, compared exactly when set.
	Warnings []string `yaml:"warnings,omitempty"`

	// Rows are the expected result rows of an executed find or count.
	// Each row is a subset match; the row count must be equal.
	Rows []map[string]interface{} `yaml:"rows,omitempty"`

	// AffectedRows is the expected affected-row count of an executed
	// insert, upsert, update or remove.
	AffectedRows *int64 `yaml:"affected_rows,omitempty"`
}

// Assertion validates a property of the whole scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_state": Query table and verify expected rows
	// - "placeholder_parity": Every compiled statement has one param per "?"
	// - "idempotent": Compiling every request again yields identical output
	Type string `yaml:"type"`

	// Table is the table name (used by final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies equality filters (used by final_state).
	Where map[string]interface{} `yaml:"where,omitempty"`

	// Expect contains expected rows in primary-key order (used by
	// final_state). Subset match - only specified fields are validated.
	Expect []map[string]interface{} `yaml:"expect,omitempty"`

	// Count is the expected number of matching rows (used by final_state).
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState        = "final_state"
	AssertPlaceholderParity = "placeholder_parity"
	AssertIdempotent        = "idempotent"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "case:" vs "cases:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch s.Dialect {
	case "", "mysql":
		if s.Execute {
			return fmt.Errorf("execute requires dialect sqlite")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unknown dialect %q", s.Dialect)
	}

	if len(s.Setup) > 0 && !s.Execute {
		return fmt.Errorf("setup requires execute: true")
	}

	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("cases[%d]: duplicate case name %q", i, c.Name)
		}
		seen[c.Name] = true
		if len(c.Request) == 0 {
			return fmt.Errorf("cases[%d]: request is required", i)
		}
		if c.Expect != nil && c.Expect.Error != "" && c.Expect.SQL != "" {
			return fmt.Errorf("cases[%d].expect: sql and error are mutually exclusive", i)
		}
		if c.Expect != nil && !s.Execute && (c.Expect.Rows != nil || c.Expect.AffectedRows != nil) {
			return fmt.Errorf("cases[%d].expect: rows and affected_rows require execute: true", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, s.Execute); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, execute bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalState:
		if !execute {
			return fmt.Errorf("assertions[%d]: final_state requires execute: true", index)
		}
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if a.Expect == nil && a.Count == nil {
			return fmt.Errorf("assertions[%d]: expect or count is required for final_state", index)
		}
		if a.Count != nil && *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for final_state", index)
		}
	case AssertPlaceholderParity, AssertIdempotent:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
