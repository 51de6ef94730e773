package main

import (
	"os"

	"github.com/denismitr/portfoliocad/cmd/portfoliocad/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
