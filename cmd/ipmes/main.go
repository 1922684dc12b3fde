// Command ipmes matches behavioral patterns against provenance event streams.
package main

import (
	"fmt"
	"os"

	"github.com/littleponywork/IPMES/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
