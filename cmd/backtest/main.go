package main

import (
	"os"

	"signalbacktest/cmd/backtest/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
