package domain

import "time"

type StrategyRow struct {
	Asset          string
	Date           time.Time
	Prediction     *float64
	Probabilities  *ClassProbabilities
	RealizedReturn float64

	Weight         float64
	StrategyReturn float64
	Traded         bool

	// compounded over traded rows only, carried across
	// untraded rows. 0 before the first trade
	CumulativeReturn float64
}

// Clone copies the row including the values behind Prediction
// and Probabilities
func (r StrategyRow) Clone() StrategyRow {
	if r.Prediction != nil {
		p := *r.Prediction
		r.Prediction = &p
	}
	if r.Probabilities != nil {
		p := *r.Probabilities
		r.Probabilities = &p
	}
	return r
}

type PortfolioDay struct {
	Date                time.Time
	MeanReturn          float64
	TotalReturn         float64
	ActivePositionCount int
	TotalPositionCount  int
	CumulativeReturn    float64
}

// StatsSnapshot - WinRate and AvgTrade are NaN when
// there were no trades
type StatsSnapshot struct {
	TotalReturn float64
	Sharpe      float64
	WinRate     float64
	MaxDrawdown float64
	TotalTrades int
	AvgTrade    float64
}

type AssetPerformance struct {
	Asset       string
	Trades      int
	WinRate     float64
	AvgReturn   float64
	TotalReturn float64
	Sharpe      float64
}
