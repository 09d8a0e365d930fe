package harness

import (
	"github.com/roach88/sqlcompile/internal/ir"
	"github.com/roach88/sqlcompile/internal/store"
)

// CaseResult is the observed outcome of one case.
type CaseResult struct {
	Name string `json:"name"`

	// Request is the decoded request in canonical JSON form.
	Request string `json:"request,omitempty"`

	SQL    string     `json:"sql,omitempty"`
	Params []ir.Value `json:"-"`

	// Error is the compile error code, or the error text for failures
	// outside the compiler.
	Error string `json:"error,omitempty"`

	Warnings []string `json:"warnings,omitempty"`

	Rows   *store.Rows   `json:"rows,omitempty"`
	Result *store.Result `json:"result,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Cases holds one entry per scenario case, in order.
	Cases []CaseResult `json:"cases"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Cases:  []CaseResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
