package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/aspect/internal/engine"
	"github.com/roach88/aspect/internal/harness"
	"github.com/roach88/aspect/internal/store"
	"github.com/roach88/aspect/internal/testservice"
	"github.com/roach88/aspect/internal/trace"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Plans    []string
	Database string
}

// CallResult is the JSON payload of the call command.
type CallResult struct {
	Member string         `json:"member"`
	Value  trace.Value    `json:"value,omitempty"`
	Error  string         `json:"error,omitempty"`
	Events []trace.Object `json:"events"`
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <member> [args...]",
		Short: "Call one test service member through the interceptor",
		Long: `Call one member of the test service through an intercepted proxy
and print the resulting trace.

Arguments are parsed as YAML scalars, so 3 is an int, true a bool and
anything else a string. Run "aspect members" for the member names.

Examples:
  aspect call Return --plans ./plans
  aspect call "Perform(int)" 3 --plans ./plans --db ./calls.db
  aspect call "PerformAsync[string]" hello --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Plans, "plans", nil, "CUE plans directory (repeatable)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "also record the call in this SQLite database")
	return cmd
}

func runCall(opts *CallOptions, name string, rawArgs []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	entry, ok := testservice.Lookup(name)
	if !ok {
		_ = formatter.Error(ErrCodeUnknownCall, fmt.Sprintf("unknown member %q", name), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown member %q", name))
	}
	if len(rawArgs) != entry.Arity {
		msg := fmt.Sprintf("%s takes %d arguments, got %d", name, entry.Arity, len(rawArgs))
		_ = formatter.Error(ErrCodeUnknownCall, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	args, err := parseArgs(rawArgs)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid argument", err)
	}

	ctx := context.Background()
	runOpts := []harness.Option{harness.WithLogger(formatter.Logger())}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()

		// Later calls append to the recorded trace.
		last, err := st.LastSeq(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read database", err)
		}
		runOpts = append(runOpts,
			harness.WithStore(st),
			harness.WithClock(engine.NewClockAt(last)),
			harness.WithCallIDs(engine.UUIDv7Generator{}),
		)
	}

	scenario := &harness.Scenario{
		Name:  "call",
		Plans: opts.Plans,
		Calls: []harness.CallStep{{Call: name, Args: args}},
	}
	result, err := harness.Run(ctx, scenario, runOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "call failed to run", err)
	}

	out := CallResult{Member: name, Events: make([]trace.Object, len(result.Events))}
	for i, e := range result.Events {
		out.Events[i] = e.Value()
	}
	// The completed event carries the call's outcome.
	for i := len(result.Events) - 1; i >= 0; i-- {
		if e := result.Events[i]; e.Kind == trace.KindCompleted {
			out.Value, out.Error = e.Result, e.Error
			break
		}
	}

	if formatter.JSON() {
		if out.Error != "" {
			if err := formatter.Failure(out, ErrCodeGeneric, out.Error); err != nil {
				return err
			}
			return NewExitError(ExitFailure, out.Error)
		}
		return formatter.Success(out)
	}

	w := formatter.Writer
	for _, e := range result.Events {
		fmt.Fprintln(w, e.String())
	}
	if out.Error != "" {
		fmt.Fprintf(w, "✗ %s failed: %s\n", name, out.Error)
		return NewExitError(ExitFailure, out.Error)
	}
	value, err := trace.MarshalCanonical(out.Value)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "✓ %s = %s\n", name, value)
	return nil
}

// parseArgs decodes each argument as a YAML scalar.
func parseArgs(raw []string) ([]any, error) {
	args := make([]any, len(raw))
	for i, s := range raw {
		var v any
		if err := yaml.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args[i] = v
	}
	return args, nil
}
