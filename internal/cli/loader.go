package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/aspect/internal/plan"
)

// LoadMode controls how errors are handled during plan loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult is a loaded plans directory.
type LoadResult struct {
	Plan      *plan.Plan
	FileCount int
}

// LoadError is an error found while loading plans.
type LoadError struct {
	Code    string
	Rule    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Rule != "" {
		msg = fmt.Sprintf("rule %q: %s", e.Rule, msg)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Line returns the source line of the error, or 0.
func (e *LoadError) Line() int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// LoadPlans loads and compiles the CUE plans in dir. A nil result means
// the directory itself could not be loaded; otherwise the result holds
// every rule that compiled and the errors hold the rest.
func LoadPlans(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("plans directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing plans directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{Plan: &plan.Plan{}, FileCount: len(cueFiles)}
	var errs []error

	rules := value.LookupPath(cue.ParsePath("rule"))
	if !rules.Exists() {
		return result, []error{&LoadError{Code: ErrCodeNoRules, Message: "no rules found in plans"}}
	}
	iter, err := rules.Fields()
	if err != nil {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating rules: %v", err)}}
	}
	for iter.Next() {
		r, err := plan.CompileRule(iter.Value())
		if err != nil {
			errs = append(errs, convertCompileError(err, iter.Label()))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.Plan.Rules = append(result.Plan.Rules, *r)
	}

	if len(result.Plan.Rules) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoRules, Message: "no rules found in plans"})
	}
	return result, errs
}

// FindCUEFiles returns the .cue files directly in dir. Subdirectories are
// separate CUE packages and are not loaded with dir.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

func convertCompileError(err error, rule string) *LoadError {
	var compileErr *plan.CompileError
	if errors.As(err, &compileErr) {
		if compileErr.Rule != "" {
			rule = compileErr.Rule
		}
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Rule:    rule,
			Field:   compileErr.Field,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Rule: rule, Message: err.Error()}
}

// Error code constants, unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeNoRules     = "E008" // No rules in plans

	// Rule errors
	ErrCodeSelect      = "E101" // Invalid select clause
	ErrCodeHooks       = "E102" // Missing or malformed hooks
	ErrCodeHookKind    = "E103" // Unknown hook kind
	ErrCodeHookAction  = "E104" // Invalid action for the hook
	ErrCodeHookValue   = "E105" // Non-concrete hook value
	ErrCodeNoMember    = "E110" // Selection names no member
	ErrCodeUnknownCall = "E120" // Unknown catalog member
)

// MapFieldToErrorCode maps a compile error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeBuildFailed
	case field == "select" || strings.HasPrefix(field, "select."):
		return ErrCodeSelect
	case field == "hooks":
		return ErrCodeHooks
	case strings.HasPrefix(field, "hooks[") && strings.HasSuffix(field, ".on"):
		return ErrCodeHookKind
	case strings.HasPrefix(field, "hooks[") && strings.HasSuffix(field, ".action"):
		return ErrCodeHookAction
	case strings.HasPrefix(field, "hooks[") && strings.HasSuffix(field, ".value"):
		return ErrCodeHookValue
	default:
		return ErrCodeGeneric
	}
}
