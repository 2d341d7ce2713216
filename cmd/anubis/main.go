// Command anubis is the entry point for the Anubis build system CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/forrestthewoods/anubis/internal/cmd"
)

func main() {
	rootCmd := cmd.NewRootCmd()

	if err := rootCmd.Execute(); err != nil {
		var exitErr *cmd.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cmd.ExitBuildFailure)
	}
}
