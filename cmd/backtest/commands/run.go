package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"signalbacktest/api"
	"signalbacktest/internal/domain"
	"signalbacktest/internal/logger"
	"signalbacktest/internal/repository"
	"signalbacktest/internal/service"
	"signalbacktest/internal/util"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a backtest and print the results",
		Long: `Loads observations from a csv file and prints the global stats and
per stock performance.

Flags:
  --csv          predictions file (required)
  --mode         quantile | probability
  --top-pct      long fraction for quantile mode
  --bottom-pct   short fraction for quantile mode
  --score        expression ranked instead of the raw prediction
  --start/--end  inclusive date range (YYYY-MM-DD)
  --horizon      derive returns from Close this many rows ahead
  --json         print every table as json`,
		RunE: runBacktest,
	}

	runCsvPath   string
	runMode      string
	runTopPct    float64
	runBottomPct float64
	runScore     string
	runStart     string
	runEnd       string
	runHorizon   int
	runJson      bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	defaults := util.DefaultConfig().Trading
	runCmd.Flags().StringVar(&runCsvPath, "csv", "", "predictions csv (required)")
	runCmd.Flags().StringVar(&runMode, "mode", defaults.Mode, "trading mode (quantile|probability)")
	runCmd.Flags().Float64Var(&runTopPct, "top-pct", defaults.TopPct, "fraction of assets held long each date")
	runCmd.Flags().Float64Var(&runBottomPct, "bottom-pct", defaults.BottomPct, "fraction of assets held short each date")
	runCmd.Flags().StringVar(&runScore, "score", "", "score expression over prediction, probUp, probDown, probFlat")
	runCmd.Flags().StringVar(&runStart, "start", "", "first date (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&runEnd, "end", "", "last date (YYYY-MM-DD)")
	runCmd.Flags().IntVar(&runHorizon, "horizon", 0, "holding horizon in rows, 0 uses the Target column")
	runCmd.Flags().BoolVar(&runJson, "json", false, "print json instead of a summary")

	runCmd.MarkFlagRequired("csv")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	if runHorizon < 0 {
		return fmt.Errorf("horizon cannot be negative, got %d", runHorizon)
	}
	start, err := util.ParseOptionalDate(runStart)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	end, err := util.ParseOptionalDate(runEnd)
	if err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}

	lg := zap.NewNop().Sugar()
	if verbose {
		lg = logger.New()
	}
	ctx := logger.NewContext(context.Background(), lg)

	backtestService := service.NewBacktestService(
		repository.NewCsvObservationRepository(runCsvPath, runHorizon),
	)
	snapshot, err := backtestService.Backtest(ctx, service.BacktestInput{
		Start: start,
		End:   end,
		Options: service.TradingOptions{
			Mode:            runMode,
			TopPct:          runTopPct,
			BottomPct:       runBottomPct,
			ScoreExpression: runScore,
		},
	})
	if err != nil {
		return err
	}

	if runJson {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(api.NewBacktestResponse(snapshot, nil))
	}
	printSummary(cmd.OutOrStdout(), snapshot)
	return nil
}

func formatRate(f float64) string {
	if math.IsNaN(f) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", f*100)
}

func printSummary(w io.Writer, snapshot *service.BacktestSnapshot) {
	stats := snapshot.Stats()
	days := snapshot.PortfolioPerformance()

	fmt.Fprintln(w, "=== Backtest ===")
	if len(days) > 0 {
		fmt.Fprintf(w, "Period:        %s ~ %s (%d days)\n", util.FormatDate(days[0].Date), util.FormatDate(days[len(days)-1].Date), len(days))
	}
	fmt.Fprintf(w, "Total return:  %.2f%%\n", stats.TotalReturn*100)
	fmt.Fprintf(w, "Sharpe:        %.4f\n", stats.Sharpe)
	fmt.Fprintf(w, "Win rate:      %s\n", formatRate(stats.WinRate))
	fmt.Fprintf(w, "Max drawdown:  %.2f%%\n", stats.MaxDrawdown*100)
	fmt.Fprintf(w, "Trades:        %d\n", stats.TotalTrades)
	fmt.Fprintf(w, "Avg trade:     %s\n", formatRate(stats.AvgTrade))

	perf := snapshot.StockPerformance()
	if len(perf) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-10s %7s %9s %10s %10s %8s\n", "Ticker", "Trades", "Win rate", "Avg", "Total", "Sharpe")
	for _, p := range perf {
		printAssetLine(w, p)
	}
}

func printAssetLine(w io.Writer, p domain.AssetPerformance) {
	fmt.Fprintf(w, "%-10s %7d %9s %9.2f%% %9.2f%% %8.2f\n",
		p.Asset, p.Trades, formatRate(p.WinRate), p.AvgReturn*100, p.TotalReturn*100, p.Sharpe)
}
