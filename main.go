package main

import (
	"os"

	"github.com/spigell/h1b-finder/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
