package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"signalbacktest/internal/domain"
	"signalbacktest/internal/repository"
	mock_repository "signalbacktest/internal/repository/mocks"
	"signalbacktest/internal/service"
	"signalbacktest/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func floatPtr(f float64) *float64 {
	return &f
}

func testObservations() []domain.Observation {
	return []domain.Observation{
		{
			Asset:          "AAPL",
			Date:           util.NewDate(2025, 1, 2),
			Prediction:     floatPtr(1),
			Probabilities:  &domain.ClassProbabilities{Down: 0.1, Flat: 0.8, Up: 0.1},
			RealizedReturn: 0.01,
		},
		{
			Asset:          "MSFT",
			Date:           util.NewDate(2025, 1, 2),
			Prediction:     floatPtr(-1),
			Probabilities:  &domain.ClassProbabilities{Down: 0.1, Flat: 0.8, Up: 0.1},
			RealizedReturn: -0.02,
		},
	}
}

func defaultOptions() service.TradingOptions {
	return service.TradingOptions{
		Mode:      util.TradingModeQuantile,
		TopPct:    0.5,
		BottomPct: 0.5,
	}
}

func newTestHandler(t *testing.T, repo repository.ObservationRepository, withSnapshot bool) ApiHandler {
	t.Helper()
	handler := ApiHandler{
		BacktestService: service.NewBacktestService(repo),
		DefaultOptions:  defaultOptions(),
		Logger:          zap.NewNop().Sugar(),
	}
	if withSnapshot {
		converter, err := service.NewSignalConverter(defaultOptions())
		require.NoError(t, err)
		snapshot, err := service.Run(context.Background(), testObservations(), converter)
		require.NoError(t, err)
		handler.Snapshot = snapshot
	}
	return handler
}

func doRequest(t *testing.T, handler ApiHandler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := handler.InitializeRouterEngine()

	req, err := http.NewRequest(method, path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestReadRoutes(t *testing.T) {
	t.Run("routes are unavailable before results load", func(t *testing.T) {
		handler := newTestHandler(t, nil, false)
		for _, path := range []string{
			"/backtest/daily-returns",
			"/backtest/daily-returns-per-stock",
			"/backtest/performance-per-stock",
			"/backtest/global-stats",
		} {
			w := doRequest(t, handler, http.MethodGet, path, nil)
			require.Equal(t, 503, w.Code, path)
		}
	})

	t.Run("daily returns", func(t *testing.T) {
		handler := newTestHandler(t, nil, true)
		w := doRequest(t, handler, http.MethodGet, "/backtest/daily-returns", nil)
		require.Equal(t, 200, w.Code)

		var out struct {
			PortfolioReturns []portfolioReturnResponse `json:"portfolioReturns"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		require.Len(t, out.PortfolioReturns, 1)

		day := out.PortfolioReturns[0]
		require.Equal(t, "2025-01-02", day.Date)
		require.Equal(t, 2, day.ActivePositions)
		require.Equal(t, 2, day.TotalPositions)
		require.InDelta(t, 0.015, day.DailyReturnEqualWeight, 1e-12)
		require.InDelta(t, 0.03, day.DailyReturnSum, 1e-12)
		require.InDelta(t, 0.015, day.CumulativeReturn, 1e-12)
	})

	t.Run("daily returns per stock keep prediction and probabilities", func(t *testing.T) {
		handler := newTestHandler(t, nil, true)
		w := doRequest(t, handler, http.MethodGet, "/backtest/daily-returns-per-stock", nil)
		require.Equal(t, 200, w.Code)

		var out struct {
			DailyReturns []dailyReturnResponse `json:"dailyReturns"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		require.Len(t, out.DailyReturns, 2)

		msft := out.DailyReturns[1]
		require.Equal(t, "MSFT", msft.Ticker)
		require.Equal(t, -1.0, msft.Weight)
		require.Equal(t, -1.0, *msft.Prediction)
		require.Equal(t, 0.8, *msft.ProbFlat)
		require.InDelta(t, 0.02, msft.StrategyReturn, 1e-12)
	})

	t.Run("performance per stock is rounded", func(t *testing.T) {
		handler := newTestHandler(t, nil, true)
		w := doRequest(t, handler, http.MethodGet, "/backtest/performance-per-stock", nil)
		require.Equal(t, 200, w.Code)

		var out struct {
			StockPerformance []stockPerformanceResponse `json:"stockPerformance"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		require.Equal(t, "", cmp.Diff([]stockPerformanceResponse{
			{Ticker: "AAPL", Trades: 1, WinRate: 1, AvgReturn: 0.01, TotalReturn: 0.01, Sharpe: 0},
			{Ticker: "MSFT", Trades: 1, WinRate: 1, AvgReturn: 0.02, TotalReturn: 0.02, Sharpe: 0},
		}, out.StockPerformance))
	})

	t.Run("global stats", func(t *testing.T) {
		handler := newTestHandler(t, nil, true)
		w := doRequest(t, handler, http.MethodGet, "/backtest/global-stats", nil)
		require.Equal(t, 200, w.Code)

		out := globalStatsResponse{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		require.Equal(t, 2, out.TotalTrades)
		require.Equal(t, 1.0, *out.WinRate)
		require.InDelta(t, 0.015, *out.AvgTrade, 1e-12)
		require.Equal(t, 0.0, out.MaxDrawdown)
	})
}

func TestBacktestRoute(t *testing.T) {
	t.Run("overrides mode and serializes undefined stats as null", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mock_repository.NewMockObservationRepository(ctrl)
		repo.EXPECT().
			List(gomock.Any(), repository.ListObservationsInput{
				Start: func() *time.Time { d := util.NewDate(2025, 1, 1); return &d }(),
			}).
			Return(testObservations(), nil)

		handler := newTestHandler(t, repo, false)
		body := []byte(`{"mode": "probability", "start": "2025-01-01"}`)
		w := doRequest(t, handler, http.MethodPost, "/backtest", body)
		require.Equal(t, 200, w.Code, w.Body.String())

		var raw struct {
			Stats map[string]any `json:"stats"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
		require.Nil(t, raw.Stats["winRate"])
		require.Nil(t, raw.Stats["avgTrade"])
		require.Equal(t, 0.0, raw.Stats["totalTrades"])

		out := BacktestResponse{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		require.Len(t, out.DailyReturns, 2)
		require.Empty(t, out.StockPerformance)
		require.NotNil(t, out.PerformanceProfile)
		require.Len(t, out.PerformanceProfile.Events, 3)
	})

	t.Run("invalid pct is rejected before loading", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mock_repository.NewMockObservationRepository(ctrl)

		handler := newTestHandler(t, repo, false)
		w := doRequest(t, handler, http.MethodPost, "/backtest", []byte(`{"topPct": 0}`))
		require.Equal(t, 400, w.Code)
	})

	t.Run("bad date", func(t *testing.T) {
		handler := newTestHandler(t, nil, false)
		w := doRequest(t, handler, http.MethodPost, "/backtest", []byte(`{"start": "01/02/2025"}`))
		require.Equal(t, 400, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		handler := newTestHandler(t, nil, false)
		w := doRequest(t, handler, http.MethodPost, "/backtest", []byte(`{"topPct": "high"`))
		require.Equal(t, 400, w.Code)
	})

	t.Run("repository failure is a server error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		repo := mock_repository.NewMockObservationRepository(ctrl)
		repo.EXPECT().
			List(gomock.Any(), gomock.Any()).
			Return(nil, fmt.Errorf("connection refused"))

		handler := newTestHandler(t, repo, false)
		w := doRequest(t, handler, http.MethodPost, "/backtest", []byte(`{}`))
		require.Equal(t, 500, w.Code)
	})
}
