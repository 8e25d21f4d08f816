package api

import (
	"context"
	"fmt"
	"math"

	"signalbacktest/internal/domain"
	"signalbacktest/internal/service"
	"signalbacktest/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type portfolioReturnResponse struct {
	Date                   string  `json:"Date"`
	DailyReturnEqualWeight float64 `json:"DailyReturn_EqualWeight"`
	DailyReturnSum         float64 `json:"DailyReturn_Sum"`
	TotalPositions         int     `json:"TotalPositions"`
	ActivePositions        int     `json:"ActivePositions"`
	CumulativeReturn       float64 `json:"CumulativeReturn"`
}

type dailyReturnResponse struct {
	Date             string   `json:"Date"`
	Ticker           string   `json:"Ticker"`
	Prediction       *float64 `json:"Prediction"`
	ProbDown         *float64 `json:"Prob_Down,omitempty"`
	ProbFlat         *float64 `json:"Prob_Flat,omitempty"`
	ProbUp           *float64 `json:"Prob_Up,omitempty"`
	Target           float64  `json:"Target"`
	Weight           float64  `json:"Weight"`
	StrategyReturn   float64  `json:"StrategyReturn"`
	CumulativeReturn float64  `json:"CumulativeReturn"`
}

type stockPerformanceResponse struct {
	Ticker      string  `json:"ticker"`
	Trades      int     `json:"trades"`
	WinRate     float64 `json:"winRate"`
	AvgReturn   float64 `json:"avgReturn"`
	TotalReturn float64 `json:"totalReturn"`
	Sharpe      float64 `json:"sharpe"`
}

// NaN has no json encoding, so undefined stats are null
type globalStatsResponse struct {
	TotalReturn float64  `json:"totalReturn"`
	Sharpe      float64  `json:"sharpe"`
	WinRate     *float64 `json:"winRate"`
	MaxDrawdown float64  `json:"maxDrawdown"`
	TotalTrades int      `json:"totalTrades"`
	AvgTrade    *float64 `json:"avgTrade"`
}

func nullableFloat(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func round(f float64, places int32) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return decimal.NewFromFloat(f).Round(places).InexactFloat64()
}

func portfolioReturnsResponse(days []domain.PortfolioDay) []portfolioReturnResponse {
	out := make([]portfolioReturnResponse, 0, len(days))
	for _, d := range days {
		out = append(out, portfolioReturnResponse{
			Date:                   util.FormatDate(d.Date),
			DailyReturnEqualWeight: d.MeanReturn,
			DailyReturnSum:         d.TotalReturn,
			TotalPositions:         d.TotalPositionCount,
			ActivePositions:        d.ActivePositionCount,
			CumulativeReturn:       d.CumulativeReturn,
		})
	}
	return out
}

func dailyReturnsResponse(rows []domain.StrategyRow) []dailyReturnResponse {
	out := make([]dailyReturnResponse, 0, len(rows))
	for _, r := range rows {
		item := dailyReturnResponse{
			Date:             util.FormatDate(r.Date),
			Ticker:           r.Asset,
			Prediction:       r.Prediction,
			Target:           r.RealizedReturn,
			Weight:           r.Weight,
			StrategyReturn:   r.StrategyReturn,
			CumulativeReturn: r.CumulativeReturn,
		}
		if p := r.Probabilities; p != nil {
			item.ProbDown = &p.Down
			item.ProbFlat = &p.Flat
			item.ProbUp = &p.Up
		}
		out = append(out, item)
	}
	return out
}

// matches the precision the dashboard table shows
func stockPerformancesResponse(perf []domain.AssetPerformance) []stockPerformanceResponse {
	out := make([]stockPerformanceResponse, 0, len(perf))
	for _, p := range perf {
		out = append(out, stockPerformanceResponse{
			Ticker:      p.Asset,
			Trades:      p.Trades,
			WinRate:     round(p.WinRate, 2),
			AvgReturn:   round(p.AvgReturn, 4),
			TotalReturn: round(p.TotalReturn, 4),
			Sharpe:      round(p.Sharpe, 2),
		})
	}
	return out
}

func statsResponse(s domain.StatsSnapshot) globalStatsResponse {
	return globalStatsResponse{
		TotalReturn: s.TotalReturn,
		Sharpe:      s.Sharpe,
		WinRate:     nullableFloat(s.WinRate),
		MaxDrawdown: s.MaxDrawdown,
		TotalTrades: s.TotalTrades,
		AvgTrade:    nullableFloat(s.AvgTrade),
	}
}

func (m ApiHandler) getPortfolioPerformance(c *gin.Context) {
	snapshot, ok := m.requireSnapshot(c)
	if !ok {
		return
	}
	c.JSON(200, gin.H{
		"portfolioReturns": portfolioReturnsResponse(snapshot.PortfolioPerformance()),
	})
}

func (m ApiHandler) getDailyReturnsPerStock(c *gin.Context) {
	snapshot, ok := m.requireSnapshot(c)
	if !ok {
		return
	}
	c.JSON(200, gin.H{
		"dailyReturns": dailyReturnsResponse(snapshot.DailyReturnsPerStock()),
	})
}

func (m ApiHandler) getStockPerformance(c *gin.Context) {
	snapshot, ok := m.requireSnapshot(c)
	if !ok {
		return
	}
	c.JSON(200, gin.H{
		"stockPerformance": stockPerformancesResponse(snapshot.StockPerformance()),
	})
}

func (m ApiHandler) getGlobalStats(c *gin.Context) {
	snapshot, ok := m.requireSnapshot(c)
	if !ok {
		return
	}
	c.JSON(200, statsResponse(snapshot.Stats()))
}

type backtestRequest struct {
	Mode            *string  `json:"mode"`
	TopPct          *float64 `json:"topPct"`
	BottomPct       *float64 `json:"bottomPct"`
	ScoreExpression *string  `json:"scoreExpression"`
	Start           string   `json:"start"`
	End             string   `json:"end"`
}

type BacktestResponse struct {
	Stats              globalStatsResponse        `json:"stats"`
	PortfolioReturns   []portfolioReturnResponse  `json:"portfolioReturns"`
	DailyReturns       []dailyReturnResponse      `json:"dailyReturns"`
	StockPerformance   []stockPerformanceResponse `json:"stockPerformance"`
	PerformanceProfile *domain.PerformanceProfile `json:"performanceProfile,omitempty"`
}

// NewBacktestResponse renders every table of the snapshot.
// profile may be nil
func NewBacktestResponse(snapshot *service.BacktestSnapshot, profile *domain.PerformanceProfile) BacktestResponse {
	return BacktestResponse{
		Stats:              statsResponse(snapshot.Stats()),
		PortfolioReturns:   portfolioReturnsResponse(snapshot.PortfolioPerformance()),
		DailyReturns:       dailyReturnsResponse(snapshot.DailyReturnsPerStock()),
		StockPerformance:   stockPerformancesResponse(snapshot.StockPerformance()),
		PerformanceProfile: profile,
	}
}

// options fall back to the server defaults for any field
// the request leaves out
func (m ApiHandler) backtestInput(req backtestRequest) (*service.BacktestInput, error) {
	opts := m.DefaultOptions
	if req.Mode != nil {
		opts.Mode = *req.Mode
	}
	if req.TopPct != nil {
		opts.TopPct = *req.TopPct
	}
	if req.BottomPct != nil {
		opts.BottomPct = *req.BottomPct
	}
	if req.ScoreExpression != nil {
		opts.ScoreExpression = *req.ScoreExpression
	}

	start, err := util.ParseOptionalDate(req.Start)
	if err != nil {
		return nil, domain.NewInputError("failed to parse start: %s", err.Error())
	}
	end, err := util.ParseOptionalDate(req.End)
	if err != nil {
		return nil, domain.NewInputError("failed to parse end: %s", err.Error())
	}

	return &service.BacktestInput{
		Start:   start,
		End:     end,
		Options: opts,
	}, nil
}

func (m ApiHandler) backtest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		returnErrorJsonCode(fmt.Errorf("failed to read request body: %w", err), c, 400)
		return
	}

	in, err := m.backtestInput(req)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	profile := domain.NewPerformanceProfile()
	ctx := context.WithValue(c.Request.Context(), domain.ContextProfileKey, profile)

	snapshot, err := m.BacktestService.Backtest(ctx, *in)
	if err != nil {
		returnErrorJson(fmt.Errorf("failed to run backtest: %w", err), c)
		return
	}
	profile.Add("finished backtest")

	out := NewBacktestResponse(snapshot, profile)
	profile.Add("built response")
	profile.End()

	c.JSON(200, out)
}
