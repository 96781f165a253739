package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/catgraph/internal/graphspec"
)

// LoadError represents an error that occurred while loading a graph
// definition.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadGraph compiles a graph definition from a single directory (every .cue
// file of its package) or from a list of CUE files unified in order.
// Every failure is a *LoadError.
func LoadGraph(paths []string) (*graphspec.Plan, error) {
	if len(paths) == 0 {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: "no graph path given"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("graph path not found: %s", p)}
		} else if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error accessing %s: %v", p, err)}
		}
	}

	if len(paths) == 1 {
		if info, _ := os.Stat(paths[0]); info.IsDir() {
			return loadDir(paths[0])
		}
	}
	for _, p := range paths {
		if filepath.Ext(p) != ".cue" {
			return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("not a CUE file: %s", p)}
		}
	}
	plan, err := graphspec.LoadFiles(paths...)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return plan, nil
}

func loadDir(dir string) (*graphspec.Plan, error) {
	files, err := graphspec.FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}
	plan, err := graphspec.LoadDir(dir)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return plan, nil
}

// convertCompileError converts a graph compile error to a LoadError with
// position info.
func convertCompileError(err error) *LoadError {
	var compileErr *graphspec.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeLoadFailed,
		Message: err.Error(),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	// Graph definition errors
	ErrCodeInvalidCategory = "E101" // Bad category, object or morphism definition
	ErrCodeInvalidFunctor  = "E102" // Bad functor definition
	ErrCodeInvalidProperty = "E104" // Property value that cannot be stored (e.g., float)

	// Engine errors
	ErrCodeConfig          = "E201" // Config could not be resolved or stores opened
	ErrCodeStore           = "E202" // Store call failed
	ErrCodeMissing         = "E203" // Construct id resolves nowhere
	ErrCodeFunctorInvalid  = "E204" // Functor declarations are inconsistent
	ErrCodeDrift           = "E205" // Back-references disagree with foreign keys
	ErrCodeScenarioFailed  = "E206" // One or more scenarios failed
	ErrCodeBadArgument     = "E207" // Unknown operator, type or policy
)

// MapFieldToErrorCode maps a compile error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeBuildFailed
	case strings.Contains(field, ".properties"):
		return ErrCodeInvalidProperty
	case strings.HasPrefix(field, "functor"):
		return ErrCodeInvalidFunctor
	case strings.HasPrefix(field, "category"):
		return ErrCodeInvalidCategory
	default:
		return ErrCodeGeneric
	}
}
