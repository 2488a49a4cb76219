// Command veneer compiles component manifests, renders components and runs
// rendering scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/veneer/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
