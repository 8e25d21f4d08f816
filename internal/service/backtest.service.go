package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"signalbacktest/internal/calculator"
	"signalbacktest/internal/domain"
	"signalbacktest/internal/logger"
	"signalbacktest/internal/repository"
	"signalbacktest/internal/util"
)

type TradingOptions struct {
	Mode      string
	TopPct    float64
	BottomPct float64
	// optional, ranks the quantile variant by this instead
	// of the raw prediction
	ScoreExpression string
}

func NewSignalConverter(opts TradingOptions) (calculator.SignalConverter, error) {
	switch opts.Mode {
	case util.TradingModeQuantile:
		if err := util.ValidatePct("topPct", opts.TopPct); err != nil {
			return nil, domain.NewInputError("%s", err.Error())
		}
		if err := util.ValidatePct("bottomPct", opts.BottomPct); err != nil {
			return nil, domain.NewInputError("%s", err.Error())
		}
		c := calculator.NewQuantileConverter(opts.TopPct, opts.BottomPct)
		if opts.ScoreExpression != "" {
			c.Score = calculator.NewScoreExpression(opts.ScoreExpression)
		}
		return c, nil
	case util.TradingModeProbability:
		return calculator.ProbabilityConverter{}, nil
	}
	return nil, domain.NewInputError("unknown trading mode %q", opts.Mode)
}

// BacktestSnapshot is the full result of one run. it is never
// modified after Run returns; accessors hand out copies
type BacktestSnapshot struct {
	rows             []domain.StrategyRow
	portfolio        []domain.PortfolioDay
	stats            domain.StatsSnapshot
	stockPerformance []domain.AssetPerformance
}

// PortfolioPerformance is ordered by date
func (s *BacktestSnapshot) PortfolioPerformance() []domain.PortfolioDay {
	return append([]domain.PortfolioDay{}, s.portfolio...)
}

// DailyReturnsPerStock is ordered by asset, then date
func (s *BacktestSnapshot) DailyReturnsPerStock() []domain.StrategyRow {
	out := make([]domain.StrategyRow, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r.Clone())
	}
	return out
}

func (s *BacktestSnapshot) Stats() domain.StatsSnapshot {
	return s.stats
}

// StockPerformance lists assets with at least one trade
func (s *BacktestSnapshot) StockPerformance() []domain.AssetPerformance {
	return append([]domain.AssetPerformance{}, s.stockPerformance...)
}

// Run executes the pipeline over an in-memory batch
func Run(ctx context.Context, observations []domain.Observation, converter calculator.SignalConverter) (*BacktestSnapshot, error) {
	log := logger.FromContext(ctx)

	if err := ValidateObservations(observations); err != nil {
		return nil, err
	}

	rows, err := calculator.BuildStrategyRows(observations, converter)
	if err != nil {
		return nil, fmt.Errorf("failed to build strategy rows: %w", err)
	}
	log.Debugw("built strategy rows", "rows", len(rows))

	portfolio := calculator.AggregatePortfolio(rows)
	log.Debugw("aggregated portfolio", "days", len(portfolio))

	stats, err := calculator.CalculateStats(rows, portfolio)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate stats: %w", err)
	}
	stockPerformance, err := calculator.CalculateAssetPerformance(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate stock performance: %w", err)
	}

	return &BacktestSnapshot{
		rows:             rows,
		portfolio:        portfolio,
		stats:            *stats,
		stockPerformance: stockPerformance,
	}, nil
}

// ValidateObservations rejects batches that cannot produce a
// meaningful report
func ValidateObservations(observations []domain.Observation) error {
	if len(observations) == 0 {
		return domain.NewInputError("no observations to backtest")
	}

	seen := map[string]struct{}{}
	for _, o := range observations {
		if o.Asset == "" {
			return domain.NewInputError("observation on %s has no asset", util.FormatDate(o.Date))
		}
		key := o.Asset + "|" + util.FormatDate(o.Date)
		if _, ok := seen[key]; ok {
			return domain.NewInputError("duplicate observation for %s on %s", o.Asset, util.FormatDate(o.Date))
		}
		seen[key] = struct{}{}

		if math.IsNaN(o.RealizedReturn) || math.IsInf(o.RealizedReturn, 0) {
			return domain.NewInputError("non-finite realized return for %s on %s", o.Asset, util.FormatDate(o.Date))
		}
		if p := o.Probabilities; p != nil {
			for _, v := range []float64{p.Down, p.Flat, p.Up} {
				if !(v >= 0 && v <= 1) {
					return domain.NewInputError("probability %f for %s on %s is outside [0, 1]", v, o.Asset, util.FormatDate(o.Date))
				}
			}
		}
	}

	return nil
}

type BacktestInput struct {
	Start   *time.Time
	End     *time.Time
	Options TradingOptions
}

type BacktestService interface {
	Backtest(ctx context.Context, in BacktestInput) (*BacktestSnapshot, error)
}

type backtestServiceHandler struct {
	ObservationRepository repository.ObservationRepository
}

func NewBacktestService(observationRepository repository.ObservationRepository) BacktestService {
	return backtestServiceHandler{
		ObservationRepository: observationRepository,
	}
}

// Backtest loads the observations in range and runs the pipeline
func (h backtestServiceHandler) Backtest(ctx context.Context, in BacktestInput) (*BacktestSnapshot, error) {
	if in.Start != nil && in.End != nil && in.End.Before(*in.Start) {
		return nil, domain.NewInputError("end date cannot be before start date")
	}

	converter, err := NewSignalConverter(in.Options)
	if err != nil {
		return nil, err
	}

	observations, err := h.ObservationRepository.List(ctx, repository.ListObservationsInput{
		Start: in.Start,
		End:   in.End,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	domain.GetPerformanceProfile(ctx).Add("loaded observations")
	logger.FromContext(ctx).Infow("running backtest", "observations", len(observations), "mode", in.Options.Mode)

	return Run(ctx, observations, converter)
}
