// Command medibox runs the medicine box backend.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/medibox/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
