package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/aspect/internal/trace"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <plans-dir>",
		Short: "Compile plans to canonical JSON",
		Long: `Compile the CUE interception plans in a directory and print the
compiled rules as canonical JSON, in registration order.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	result, loadErrs := LoadPlans(dir, LoadModeCollectAll)
	if len(loadErrs) > 0 {
		code := ErrCodeGeneric
		var loadErr *LoadError
		if errors.As(loadErrs[0], &loadErr) {
			code = loadErr.Code
		}
		_ = formatter.Error(code, loadErrs[0].Error(), len(loadErrs))
		if result == nil {
			return WrapExitError(ExitCommandError, "compile", loadErrs[0])
		}
		return NewExitError(ExitFailure, fmt.Sprintf("compilation failed with %d error(s)", len(loadErrs)))
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, dir)

	value := result.Plan.Value()
	data, err := trace.MarshalCanonical(value)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to marshal plan", err)
	}
	fingerprint, err := result.Plan.Fingerprint()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to fingerprint plan", err)
	}
	formatter.VerboseLog("Plan fingerprint: %s", fingerprint)

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
		if formatter.JSON() {
			return formatter.Success(map[string]any{
				"rules":       len(result.Plan.Rules),
				"output":      opts.Output,
				"fingerprint": fingerprint,
			})
		}
		fmt.Fprintf(formatter.Writer, "✓ Compiled %d rule(s) to %s\n", len(result.Plan.Rules), opts.Output)
		return nil
	}

	if formatter.JSON() {
		value["fingerprint"] = trace.String(fingerprint)
		return formatter.Success(value)
	}
	fmt.Fprintln(formatter.Writer, string(data))
	return nil
}
