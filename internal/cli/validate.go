package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/aspect/internal/plan"
	"github.com/roach88/aspect/internal/testservice"
)

// ValidationIssue is one problem found in a plans directory.
type ValidationIssue struct {
	Code    string `json:"code"`
	Rule    string `json:"rule,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Rules  int               `json:"rules"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plans-dir>",
		Short: "Validate interception plans",
		Long: `Validate the CUE interception plans in a directory.

Every rule is compiled; all errors are reported, not just the first. A
rule whose select names no member of the test service is an error too.

Exit codes:
  0 - All rules valid
  1 - One or more rules invalid
  2 - Command error (directory not found, no CUE files, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	issues, rules, err := ValidatePlansDir(dir)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
		}
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "validate", err)
	}
	formatter.VerboseLog("Compiled %d rule(s) in %s", rules, dir)

	result := ValidationResult{Valid: len(issues) == 0, Rules: rules, Errors: issues}
	if result.Valid {
		if formatter.JSON() {
			return formatter.Success(result)
		}
		fmt.Fprintf(formatter.Writer, "✓ All %d rule(s) valid\n", rules)
		return nil
	}

	if formatter.JSON() {
		if err := formatter.Failure(result, issues[0].Code, issues[0].Message); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Validation failed")
		fmt.Fprintln(formatter.Writer)
		for _, issue := range issues {
			if issue.Line > 0 {
				fmt.Fprintf(formatter.Writer, "line %d\n", issue.Line)
			}
			if issue.Rule != "" {
				fmt.Fprintf(formatter.Writer, "  %s: rule %q: %s\n\n", issue.Code, issue.Rule, issue.Message)
			} else {
				fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
			}
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
}

// ValidatePlansDir validates every rule in dir. The returned error is set
// only when the directory cannot be loaded at all.
func ValidatePlansDir(dir string) ([]ValidationIssue, int, error) {
	result, loadErrs := LoadPlans(dir, LoadModeCollectAll)
	if result == nil {
		return nil, 0, loadErrs[0]
	}

	var issues []ValidationIssue
	for _, err := range loadErrs {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			issues = append(issues, ValidationIssue{
				Code:    loadErr.Code,
				Rule:    loadErr.Rule,
				Field:   loadErr.Field,
				Message: loadErr.Message,
				Line:    loadErr.Line(),
			})
			continue
		}
		issues = append(issues, ValidationIssue{Code: ErrCodeGeneric, Message: err.Error()})
	}
	for _, r := range result.Plan.Rules {
		if msg := unmatchedSelection(r.Select); msg != "" {
			issues = append(issues, ValidationIssue{Code: ErrCodeNoMember, Rule: r.ID, Field: "select", Message: msg})
		}
	}
	return issues, len(result.Plan.Rules), nil
}

// unmatchedSelection reports a name-based selection that covers no member
// of the test service.
func unmatchedSelection(s plan.Select) string {
	if s.All || s.AllMembers {
		return ""
	}
	if s.Member != "" && len(testservice.Members.Named(s.Member)) == 0 {
		return fmt.Sprintf("member %q is not a member of %v", s.Member, testservice.Members.Interface())
	}
	if s.Match != nil {
		for _, d := range testservice.Members.Members() {
			if s.Match.MatchString(d.Signature.Name()) {
				return ""
			}
		}
		return fmt.Sprintf("match %q selects no member of %v", s.Match.String(), testservice.Members.Interface())
	}
	return ""
}
