package main

import (
	"os"

	"github.com/redmiedge/sensordash/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
