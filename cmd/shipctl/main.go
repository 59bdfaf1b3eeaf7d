package main

import (
	"os"

	"github.com/davidthor/shipctl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
