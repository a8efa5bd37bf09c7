// Command aspect validates and compiles interception plans, runs
// conformance scenarios against the test service and reads recorded call
// traces.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/aspect/internal/cli"
)

var version = "dev"

func main() {
	cmd := cli.NewRootCommand()
	cmd.Version = version

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
