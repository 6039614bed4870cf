// paneferry - dual-pane file transfers between local and SFTP filesystems.
package main

import (
	"fmt"
	"os"

	"github.com/paneferry/paneferry/internal/cli"
	"github.com/paneferry/paneferry/internal/version"
)

// Version information
var (
	Version   = "v0.3.0"
	BuildTime = "unknown"
)

func main() {
	version.Version = Version
	version.BuildTime = BuildTime
	cli.Version = Version
	cli.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
