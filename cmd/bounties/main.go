// Command bounties runs and administers recurring swap vaults.
package main

import (
	"fmt"
	"os"

	"github.com/PrismoFinance/bounties/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}

	// Rejected requests were already reported in the selected format
	code := cli.GetExitCode(err)
	if code != cli.ExitFailure {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(code)
}
