package calculator

import (
	"fmt"
	"math"
	"sort"

	"signalbacktest/internal/domain"

	"github.com/montanaflynn/stats"
)

const tradingDaysPerYear = 252

func tradedReturns(rows []domain.StrategyRow) []float64 {
	out := []float64{}
	for _, r := range rows {
		if r.Traded {
			out = append(out, r.StrategyReturn)
		}
	}
	return out
}

// WinRate is the fraction of traded rows with a positive return,
// NaN when nothing was traded
func WinRate(rows []domain.StrategyRow) float64 {
	returns := tradedReturns(rows)
	if len(returns) == 0 {
		return math.NaN()
	}
	return winFraction(returns)
}

func winFraction(returns []float64) float64 {
	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns))
}

// AvgTrade is the mean traded return, NaN when nothing was traded
func AvgTrade(rows []domain.StrategyRow) (float64, error) {
	returns := tradedReturns(rows)
	if len(returns) == 0 {
		return math.NaN(), nil
	}
	mean, err := stats.Mean(returns)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate mean trade: %w", err)
	}
	return mean, nil
}

// sharpeRatio is mean/sample stdev, or 0 with fewer than two
// returns or no dispersion
func sharpeRatio(returns []float64) (float64, error) {
	if len(returns) < 2 {
		return 0, nil
	}
	mean, err := stats.Mean(returns)
	if err != nil {
		return 0, err
	}
	stdev, err := stats.StandardDeviationSample(returns)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate stdev: %w", err)
	}
	if stdev == 0 || math.IsNaN(stdev) {
		return 0, nil
	}
	return mean / stdev, nil
}

// PortfolioSharpe is the per-trade sharpe ratio over all traded rows.
// it is not annualized, unlike AssetSharpe
func PortfolioSharpe(rows []domain.StrategyRow) (float64, error) {
	return sharpeRatio(tradedReturns(rows))
}

// AssetSharpe annualizes the per-trade ratio by sqrt(252)
func AssetSharpe(returns []float64) (float64, error) {
	s, err := sharpeRatio(returns)
	if err != nil {
		return 0, err
	}
	return s * math.Sqrt(tradingDaysPerYear), nil
}

func TotalTrades(rows []domain.StrategyRow) int {
	return len(tradedReturns(rows))
}

// CalculateStats summarizes the run. rows are the per-asset strategy
// rows and days the portfolio series built from them
func CalculateStats(rows []domain.StrategyRow, days []domain.PortfolioDay) (*domain.StatsSnapshot, error) {
	avgTrade, err := AvgTrade(rows)
	if err != nil {
		return nil, err
	}
	sharpe, err := PortfolioSharpe(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate sharpe: %w", err)
	}

	totalReturn := 0.0
	if len(days) > 0 {
		totalReturn = days[len(days)-1].CumulativeReturn
	}

	return &domain.StatsSnapshot{
		TotalReturn: totalReturn,
		Sharpe:      sharpe,
		WinRate:     WinRate(rows),
		MaxDrawdown: MaxDrawdown(days),
		TotalTrades: TotalTrades(rows),
		AvgTrade:    avgTrade,
	}, nil
}

// CalculateAssetPerformance returns one entry per asset that traded
// at least once, ordered by asset
func CalculateAssetPerformance(rows []domain.StrategyRow) ([]domain.AssetPerformance, error) {
	byAsset := RowsByAsset(rows)
	assets := make([]string, 0, len(byAsset))
	for asset := range byAsset {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	out := []domain.AssetPerformance{}
	for _, asset := range assets {
		series := byAsset[asset]
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].Date.Before(series[j].Date)
		})
		returns := []float64{}
		totalReturn := 0.0
		for _, r := range series {
			if r.Traded {
				returns = append(returns, r.StrategyReturn)
				totalReturn = r.CumulativeReturn
			}
		}
		if len(returns) == 0 {
			continue
		}

		avgReturn, err := stats.Mean(returns)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate mean return for %s: %w", asset, err)
		}
		sharpe, err := AssetSharpe(returns)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate sharpe for %s: %w", asset, err)
		}

		out = append(out, domain.AssetPerformance{
			Asset:       asset,
			Trades:      len(returns),
			WinRate:     winFraction(returns),
			AvgReturn:   avgReturn,
			TotalReturn: totalReturn,
			Sharpe:      sharpe,
		})
	}

	return out, nil
}
