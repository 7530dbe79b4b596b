package main

import (
	"errors"
	"os"

	"github.com/aescanero/sparkcopilot/internal/cli"
)

var (
	// Version is set by build flags
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := cli.NewRootCmd(Version, BuildTime).Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
