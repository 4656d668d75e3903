package main

import (
	"os"

	"github.com/gamesniff/gamesniff/cmd/gamesniff/cmds"
	"github.com/gamesniff/gamesniff/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.GamesniffVersion.Build = Build
	}
	if err := cmds.New(false).Execute(); err != nil {
		os.Exit(1)
	}
}
