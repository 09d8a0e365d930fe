package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/sqlcompile/internal/queryir"
	"github.com/roach88/sqlcompile/internal/querysql"
	"github.com/roach88/sqlcompile/internal/request"
)

// LoadMode controls how errors are handled while loading request files.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// RequestFile is one decoded request document.
type RequestFile struct {
	Path  string
	Query queryir.Query
}

// LoadResult contains the requests loaded from a file or directory.
type LoadResult struct {
	Requests  []RequestFile
	FileCount int // number of request files found
}

// LoadError represents an error that occurred while loading requests.
type LoadError struct {
	Code    string
	Message string
	Path    string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadRequests decodes the request document at path, or every request
// document under path when it is a directory.
func LoadRequests(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("request path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing request path: %v", err)}}
	}

	files := []string{path}
	if info.IsDir() {
		files, err = FindRequestFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
		if len(files) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no request files found in %s", path)}}
		}
	}

	result := &LoadResult{FileCount: len(files)}
	var errs []error
	for _, file := range files {
		q, err := request.Load(file)
		if err != nil {
			errs = append(errs, convertRequestError(err, file))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Requests = append(result.Requests, RequestFile{Path: file, Query: q})
	}
	return result, errs
}

// FindRequestFiles walks dir and returns every request document in
// lexical order. Directories named golden are skipped.
func FindRequestFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != dir && info.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}
		if _, err := request.FormatFromPath(path); err == nil {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// convertRequestError converts a request decoding error to a LoadError.
func convertRequestError(err error, path string) *LoadError {
	var compileErr *querysql.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapCompileCode(compileErr.Code),
			Message: compileErr.Error(),
			Path:    path,
		}
	}

	loadErr := &LoadError{
		Code:    ErrCodeLoadFailed,
		Message: err.Error(),
		Path:    path,
	}
	for _, cueErr := range cueerrors.Errors(err) {
		if positions := cueerrors.Positions(cueErr); len(positions) > 0 {
			loadErr.Code = ErrCodeBuildFailed
			loadErr.Message = cueErr.Error()
			loadErr.Pos = positions[0]
			break
		}
	}
	return loadErr
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No request files found
	ErrCodeLoadFailed  = "E004" // Request file could not be read or parsed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE evaluation failed
	ErrCodeWriteFailed = "E007" // File write error

	// Compile errors, one per querysql.ErrorCode
	ErrCodeMalformedAST            = "E101"
	ErrCodeUnknownOperator         = "E102"
	ErrCodeUnknownColumn           = "E103"
	ErrCodeContradictoryProjection = "E104"
	ErrCodeEmptyValueList          = "E105"
	ErrCodeInvalidBound            = "E106"
	ErrCodeInvalidIdentifier       = "E107"
	ErrCodeMissingClause           = "E108"

	// Database errors
	ErrCodeConnect    = "E201" // Could not open the database
	ErrCodeIntrospect = "E202" // Catalog lookup failed
	ErrCodeExecute    = "E203" // Statement execution failed
)

// MapCompileCode maps a compiler error code to a CLI error code.
func MapCompileCode(code querysql.ErrorCode) string {
	switch code {
	case querysql.CodeMalformedAST:
		return ErrCodeMalformedAST
	case querysql.CodeUnknownOperator:
		return ErrCodeUnknownOperator
	case querysql.CodeUnknownColumn:
		return ErrCodeUnknownColumn
	case querysql.CodeContradictoryProjection:
		return ErrCodeContradictoryProjection
	case querysql.CodeEmptyValueList:
		return ErrCodeEmptyValueList
	case querysql.CodeInvalidBound:
		return ErrCodeInvalidBound
	case querysql.CodeInvalidIdentifier:
		return ErrCodeInvalidIdentifier
	case querysql.CodeMissingClause:
		return ErrCodeMissingClause
	default:
		return ErrCodeGeneric
	}
}

// parseError extracts a CLI error code and message from an error.
func parseError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var compileErr *querysql.CompileError
	if errors.As(err, &compileErr) {
		return MapCompileCode(compileErr.Code), compileErr.Error()
	}
	return ErrCodeGeneric, err.Error()
}
