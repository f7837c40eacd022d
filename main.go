package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/ekaya-inc/ekaya-catalog/pkg/cli"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// A .env in the working directory supplies target credentials during
	// local development; variables already set win.
	_ = godotenv.Load()

	if err := cli.Execute(Version); err != nil {
		os.Exit(1)
	}
}
