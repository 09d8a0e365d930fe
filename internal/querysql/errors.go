package querysql

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes compile errors.
type ErrorCode string

const (
	// CodeMalformedAST indicates a node is not what the compiler expected at
	// that position (nil child, empty junction).
	CodeMalformedAST ErrorCode = "MALFORMED_AST"

	// CodeUnknownOperator indicates a predicate type the compiler does not
	// recognize.
	CodeUnknownOperator ErrorCode = "UNKNOWN_OPERATOR"

	// CodeUnknownColumn indicates a key outside the column universe.
	CodeUnknownColumn ErrorCode = "UNKNOWN_COLUMN"

	// CodeContradictoryProjection indicates include/exclude directives
	// resolve to zero columns.
	CodeContradictoryProjection ErrorCode = "CONTRADICTORY_PROJECTION"

	// CodeEmptyValueList indicates an IN / NOT IN with no values.
	CodeEmptyValueList ErrorCode = "EMPTY_VALUE_LIST"

	// CodeInvalidBound indicates a negative or non-integer limit/offset.
	CodeInvalidBound ErrorCode = "INVALID_BOUND"

	// CodeInvalidIdentifier indicates an empty table or column name.
	CodeInvalidIdentifier ErrorCode = "INVALID_IDENTIFIER"

	// CodeMissingClause indicates a required part of a request is absent.
	CodeMissingClause ErrorCode = "MISSING_CLAUSE"
)

// CompileError is returned by every compiler in this package.
//
// Compile errors are never wrapped on their way out of an assembler, so the
// caller sees exactly the error the failing sub-compiler produced.
type CompileError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Node names the clause or key that failed, when known.
	Node string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	switch {
	case e.Message == "":
		return string(e.Code)
	case e.Node != "":
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Node)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Is reports whether target is the sentinel for e's code.
func (e *CompileError) Is(target error) bool {
	t, ok := target.(*CompileError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Node == "" && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrMalformedAST            = &CompileError{Code: CodeMalformedAST}
	ErrUnknownOperator         = &CompileError{Code: CodeUnknownOperator}
	ErrUnknownColumn           = &CompileError{Code: CodeUnknownColumn}
	ErrContradictoryProjection = &CompileError{Code: CodeContradictoryProjection}
	ErrEmptyValueList          = &CompileError{Code: CodeEmptyValueList}
	ErrInvalidBound            = &CompileError{Code: CodeInvalidBound}
	ErrInvalidIdentifier       = &CompileError{Code: CodeInvalidIdentifier}
	ErrMissingClause           = &CompileError{Code: CodeMissingClause}
)

// CodeOf returns the code of the first CompileError in err's chain, or ""
// when there is none.
func CodeOf(err error) ErrorCode {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// NewError creates a CompileError. Decoders outside this package use it to
// report structural problems with the same codes the compiler uses.
func NewError(code ErrorCode, node, format string, args ...any) *CompileError {
	return &CompileError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Node:    node,
	}
}
