package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlcompile/internal/queryir"
	"github.com/roach88/sqlcompile/internal/querysql"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // treat lint warnings as failures
}

// ValidationIssue is one problem found in a request file.
type ValidationIssue struct {
	File    string `json:"file"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <request-file|dir>",
		Short: "Check requests without printing SQL",
		Long: `Decode and compile request documents, reporting errors and lint
warnings without producing output files.

Warnings flag requests that compile but probably do not do what was
meant, such as an offset without a limit or a remove without a selection.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on lint warnings")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadRequests(path, LoadModeCollectAll)

	// Handle load errors (path not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := parseError(loadErrors[0])
		return outputValidateError(formatter, code, message, nil)
	}

	formatter.VerboseLog("Found %d request file(s) in %s", loadResult.FileCount, path)

	c, err := opts.compiler()
	if err != nil {
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	requests := loadResult.Requests
	if opts.DSN != "" {
		filled, code, err := fillFromCatalog(cmd.Context(), opts.RootOptions, requests)
		if err != nil {
			return outputValidateError(formatter, code, err.Error(), nil)
		}
		requests = filled
	}

	result := validateRequests(c, requests, formatter)

	// Decode failures are validation errors too
	for _, err := range loadErrors {
		result.Errors = append(result.Errors, issueFromError(err))
	}
	result.Valid = len(result.Errors) == 0 && (!opts.Strict || len(result.Warnings) == 0)

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// validateRequests compiles and lints every request.
func validateRequests(c *querysql.SQLCompiler, requests []RequestFile, formatter *OutputFormatter) ValidationResult {
	var result ValidationResult
	for _, req := range requests {
		formatter.VerboseLog("Validating %s: %s", queryir.Name(req.Query), req.Path)

		if _, err := c.CompileQuery(req.Query); err != nil {
			result.Errors = append(result.Errors, ValidationIssue{
				File:    req.Path,
				Code:    MapCompileCode(querysql.CodeOf(err)),
				Message: err.Error(),
			})
			continue
		}
		for _, w := range queryir.Validate(req.Query).Warnings {
			result.Warnings = append(result.Warnings, ValidationIssue{File: req.Path, Message: w})
		}
	}
	return result
}

// issueFromError converts a load error to a validation issue.
func issueFromError(err error) ValidationIssue {
	code, message := parseError(err)
	issue := ValidationIssue{Code: code, Message: message}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		issue.File = loadErr.Path
		if loadErr.Pos.IsValid() {
			issue.Line = loadErr.Pos.Line()
		}
	}
	return issue
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	printWarnings(formatter.Writer, result.Warnings)
	fmt.Fprintf(formatter.Writer, "%s All requests valid\n", passMark())
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Errors before validation starts are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs a failed validation.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	failures := len(result.Errors)
	first := ValidationIssue{Code: ErrCodeGeneric, Message: "lint warnings in strict mode"}
	if failures > 0 {
		first = result.Errors[0]
	} else {
		failures = len(result.Warnings)
	}

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    first.Code,
				Message: first.Message,
			},
		}
		if err := formatter.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", failures))
	}

	// Text format
	fmt.Fprintf(formatter.Writer, "%s Validation failed\n", failMark())
	fmt.Fprintln(formatter.Writer)

	for _, issue := range result.Errors {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s line %d\n", issue.File, issue.Line)
		} else if issue.File != "" {
			fmt.Fprintln(formatter.Writer, issue.File)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}
	printWarnings(formatter.Writer, result.Warnings)

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", failures))
}

func printWarnings(w io.Writer, warnings []ValidationIssue) {
	for _, issue := range warnings {
		fmt.Fprintf(w, "warning: %s: %s\n", issue.File, issue.Message)
	}
}

// ValidateRequests validates the requests at path for a dialect.
// This is a helper function for external callers.
func ValidateRequests(path, dialect string) (ValidationResult, error) {
	loadResult, loadErrors := LoadRequests(path, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		return ValidationResult{}, loadErrors[0]
	}

	d, err := querysql.DialectByName(dialect)
	if err != nil {
		return ValidationResult{}, err
	}

	// Create a silent formatter for validateRequests
	silentFormatter := &OutputFormatter{Format: "text", Verbose: false, Writer: io.Discard}
	result := validateRequests(querysql.NewSQLCompiler(d), loadResult.Requests, silentFormatter)
	for _, err := range loadErrors {
		result.Errors = append(result.Errors, issueFromError(err))
	}
	result.Valid = len(result.Errors) == 0
	return result, nil
}
