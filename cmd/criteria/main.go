// Command criteria parses, evaluates and projects criteria expressions.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/criteria/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands report their own failures; only cobra's usage errors
		// reach stderr here.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
