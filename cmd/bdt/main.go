// Command bdt generates test scenarios from coverage models and tracks
// their results in a SQLite ledger.
package main

import (
	"fmt"
	"os"

	"github.com/agent-next/behavior-driven-testing/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
