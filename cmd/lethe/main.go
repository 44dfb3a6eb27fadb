package main

import (
	"os"

	"github.com/lethe-mem/lethe/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
