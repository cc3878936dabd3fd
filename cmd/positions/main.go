package main

import (
	"os"

	"github.com/rustyeddy/positions/cmd/positions/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
