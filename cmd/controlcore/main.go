// Command controlcore compiles declarative Control Specifications to
// deterministic analytical SQL, executes them against evidence files,
// and records pass/fail verdicts in a tamper-evident ledger.
package main

import (
	"fmt"
	"os"

	"github.com/attestable/controlcore/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
