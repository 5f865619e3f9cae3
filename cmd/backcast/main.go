package main

import (
	"os"

	"github.com/quantlab/backcast/cmd/backcast/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
