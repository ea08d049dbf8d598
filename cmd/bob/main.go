// Command bob is the task-graph pipeline orchestrator CLI.
package main

import (
	"os"

	"github.com/dioko-ai/bob/internal/cli"
)

// Build information set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=$(git rev-parse --short HEAD)"
var (
	version = "dev" //nolint:gochecknoglobals // Set at build time
	commit  = ""    //nolint:gochecknoglobals // Set at build time
	date    = ""    //nolint:gochecknoglobals // Set at build time
)

func main() {
	os.Exit(cli.Execute(cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}))
}
