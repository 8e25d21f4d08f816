package commands

import (
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest prediction signals against realized returns",
	Long: `Runs the signal backtest over a predictions file without starting the api.

Example:
  go run ./cmd/backtest run --csv predictions.csv
  go run ./cmd/backtest run --csv predictions.csv --mode probability --json`,
	SilenceUsage: true,
}

// Execute is called by main.main
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline progress")
}
