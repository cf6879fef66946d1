package main

import (
	"os"

	"github.com/Malick1802/signal-stride-forex-sub005/cmd/monitor/commands"
)

// main is the entry point for the monitor CLI: go run ./cmd/monitor [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
