// Command evercast runs the unattended playback service and manages its catalogue.
package main

import (
	"fmt"
	"os"

	"github.com/stwalsh4118/evercast/cmd/evercast/commands"
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
