// Command nostrcal is a NIP-52 calendar and booking client.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/nostrcal/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		// Commands report their own failures through the formatter;
		// anything else (flag parsing, unknown commands) is printed here.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(cli.ExitCommandError)
		}
		os.Exit(exitErr.Code)
	}
}
