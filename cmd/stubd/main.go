// stubd CLI - Command-line interface for the stubd stub server
package main

import (
	"os"

	"github.com/getmockd/stubd/pkg/cli"
)

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	os.Exit(cli.Execute(cli.BuildInfo{Version: Version, Commit: Commit, BuildDate: BuildDate}))
}
