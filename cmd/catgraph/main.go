// Command catgraph builds, queries and checks category graphs federated
// across several stores.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/catgraph/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
