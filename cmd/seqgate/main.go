// Command seqgate runs, tests and inspects ordered-dispatch scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/seqgate/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
