// Command citex is the CLI for the citation pipeline: it can run the API
// server or worker in-process, drive extractions against a remote server,
// and manage the database schema.
package main

import (
	"fmt"
	"os"

	"github.com/clausehound/citex/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
