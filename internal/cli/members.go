package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/aspect/internal/testservice"
)

// MemberInfo describes one callable member of the test service.
type MemberInfo struct {
	Name      string `json:"name"`
	Signature string `json:"signature"`
	Kind      string `json:"kind"`
	Arity     int    `json:"arity"`
	Async     bool   `json:"async"`
	Exempt    bool   `json:"exempt"`
	Promoted  bool   `json:"promoted"`
}

// NewMembersCommand creates the members command.
func NewMembersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "members",
		Short: "List the test service members",
		Long: `List the members of the test service that "aspect call" and scenario
files can name. Exempt members are never intercepted by blanket rules.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMembers(rootOpts, cmd)
		},
	}
}

// ListMembers returns every catalog member, sorted by name.
func ListMembers() []MemberInfo {
	names := testservice.Names()
	out := make([]MemberInfo, 0, len(names))
	for _, name := range names {
		entry, _ := testservice.Lookup(name)
		sig := entry.Signature
		info := MemberInfo{
			Name:      name,
			Signature: sig.String(),
			Kind:      sig.Kind().String(),
			Arity:     entry.Arity,
			Async:     sig.Async(),
			Exempt:    testservice.Members.Exempt(sig),
		}
		if decl, ok := testservice.Members.Lookup(sig); ok {
			info.Promoted = !testservice.Members.Declared(decl)
		}
		out = append(out, info)
	}
	return out
}

func runMembers(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	members := ListMembers()
	if formatter.JSON() {
		return formatter.Success(members)
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIGNATURE\tKIND\tFLAGS")
	for _, m := range members {
		var flags string
		if m.Exempt {
			flags += "exempt "
		}
		if m.Promoted {
			flags += "promoted"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Name, m.Signature, m.Kind, flags)
	}
	return tw.Flush()
}
