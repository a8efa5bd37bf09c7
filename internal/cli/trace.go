package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/aspect/internal/store"
	"github.com/roach88/aspect/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Member   string // optional filter: member name or signature
}

// TraceCall is one recorded call in the trace output.
type TraceCall struct {
	ID      string      `json:"id"`
	Seq     int64       `json:"seq"`
	Member  string      `json:"member"`
	Args    trace.Array `json:"args"`
	Outcome string      `json:"outcome"` // "value", "failure" or "pending"
	Result  trace.Value `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Calls     int `json:"calls"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Member string      `json:"member,omitempty"`
	Calls  []TraceCall `json:"calls"`
	Stats  TraceStats  `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show calls recorded in a database",
		Long: `Show the intercepted calls recorded in a database by "aspect call --db"
or "aspect test --db", in the order they started.

Examples:
  aspect trace --db ./calls.db
  aspect trace --db ./calls.db --member Perform
  aspect trace --db ./calls.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Member, "member", "", "filter to one member name or signature")
	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var calls []store.Call
	if opts.Member != "" {
		calls, err = st.ReadMemberTrace(ctx, opts.Member)
	} else {
		calls, err = st.ReadTrace(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	result := buildTrace(calls)
	result.Member = opts.Member
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	if len(calls) == 0 {
		if opts.Member != "" {
			fmt.Fprintf(w, "No calls recorded for member: %s\n", opts.Member)
		} else {
			fmt.Fprintln(w, "No calls recorded.")
		}
		return nil
	}
	writeTraceText(w, result, opts.Verbose)
	return nil
}

func buildTrace(calls []store.Call) TraceResult {
	result := TraceResult{Calls: make([]TraceCall, 0, len(calls))}
	for _, c := range calls {
		tc := TraceCall{ID: c.ID, Seq: c.Seq, Member: c.Member, Args: c.Args, Outcome: "pending"}
		result.Stats.Calls++
		if c.Outcome == nil {
			result.Stats.Pending++
		} else {
			result.Stats.Completed++
			tc.Outcome = c.Outcome.State
			tc.Result = c.Outcome.Result
			tc.Error = c.Outcome.Error
			if c.Outcome.State == "failure" {
				result.Stats.Failed++
			}
		}
		result.Calls = append(result.Calls, tc)
	}
	return result
}

func writeTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintln(w, "Calls:")
	for _, c := range result.Calls {
		fmt.Fprintf(w, "  [%d] %s%s", c.Seq, c.Member, formatArgs(c.Args))
		switch c.Outcome {
		case "value":
			fmt.Fprintf(w, " -> %s", formatValue(c.Result))
		case "failure":
			fmt.Fprintf(w, " -> error: %s", c.Error)
		default:
			fmt.Fprint(w, " -> pending")
		}
		if verbose {
			fmt.Fprintf(w, " (%s)", c.ID)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d calls, %d completed, %d failed, %d pending\n",
		result.Stats.Calls, result.Stats.Completed, result.Stats.Failed, result.Stats.Pending)
}

func formatArgs(args trace.Array) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = formatValue(a)
	}
	return " " + strings.Join(parts, ", ")
}

func formatValue(v trace.Value) string {
	if v == nil {
		return "null"
	}
	b, err := trace.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
