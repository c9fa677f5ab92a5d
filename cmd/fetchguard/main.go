package main

import (
	"os"

	"github.com/upb/fetchguard/cmd/fetchguard/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
