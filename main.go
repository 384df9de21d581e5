// Package main is the welkin CLI entry point.
package main

import (
	"os"

	"github.com/dsisson/welkin/cmd"
)

// set with ldflags at build time
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
