package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"signalbacktest/api"
	"signalbacktest/internal/logger"
	"signalbacktest/internal/repository"
	"signalbacktest/internal/service"
	"signalbacktest/internal/util"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func CloseDependencies(handler *api.ApiHandler) {
	if handler.Db == nil {
		return
	}
	err := handler.Db.Close()
	if err != nil {
		log.Fatalf("failed to close db: %v", err)
	}
}

func TradingOptionsFromConfig(cfg util.TradingConfig) service.TradingOptions {
	return service.TradingOptions{
		Mode:            cfg.Mode,
		TopPct:          cfg.TopPct,
		BottomPct:       cfg.BottomPct,
		ScoreExpression: cfg.ScoreExpression,
	}
}

// NewObservationRepository returns the db handle too when the
// source is postgres, so the caller can close it
func NewObservationRepository(cfg util.Config) (repository.ObservationRepository, *sql.DB, error) {
	switch cfg.Data.Source {
	case util.DataSourcePostgres:
		dbConn, err := sql.Open("postgres", cfg.Data.Db.ToConnectionStr())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to db: %w", err)
		}
		return repository.NewPostgresObservationRepository(dbConn), dbConn, nil
	case util.DataSourceCsv:
		return repository.NewCsvObservationRepository(cfg.Data.CsvPath, cfg.Trading.HoldingHorizon), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown data source %q", cfg.Data.Source)
}

// InitializeDependencies wires the api and runs the startup backtest
// that the read routes serve
func InitializeDependencies() (*api.ApiHandler, *util.Config, error) {
	cfg, err := util.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	lg, err := logger.Build(logger.Options{
		Env:      os.Getenv("SIM_ENV"),
		Level:    cfg.Logging.Level,
		Encoding: cfg.Logging.Encoding,
	})
	if err != nil {
		return nil, nil, err
	}
	zap.ReplaceGlobals(lg.Desugar())
	ctx := logger.NewContext(context.Background(), lg)

	observationRepository, dbConn, err := NewObservationRepository(*cfg)
	if err != nil {
		return nil, nil, err
	}

	backtestService := service.NewBacktestService(observationRepository)
	defaultOptions := TradingOptionsFromConfig(cfg.Trading)

	snapshot, err := backtestService.Backtest(ctx, service.BacktestInput{
		Options: defaultOptions,
	})
	if err != nil {
		if dbConn != nil {
			dbConn.Close()
		}
		return nil, nil, fmt.Errorf("failed to run startup backtest: %w", err)
	}
	lg.Infow(
		"loaded backtest results",
		"source", cfg.Data.Source,
		"mode", defaultOptions.Mode,
		"totalTrades", snapshot.Stats().TotalTrades,
	)

	apiHandler := &api.ApiHandler{
		BacktestService: backtestService,
		DefaultOptions:  defaultOptions,
		Snapshot:        snapshot,
		Logger:          lg,
		Db:              dbConn,
	}

	return apiHandler, cfg, nil
}
