// Command vaultledger maintains the off-chain vault ledger.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/vaultledger/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	err := cmd.Execute()
	if err == nil {
		return
	}

	if !cli.Reported(err) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	// Errors cobra raises itself (unknown flags, wrong arg counts) are usage errors.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		os.Exit(cli.ExitCommandError)
	}
	os.Exit(exitErr.Code)
}
