// Command twinshot replays browser scenarios against a base and a test
// host and fails when their screenshots differ beyond a threshold.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/twinshot/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
