package api

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"signalbacktest/internal/domain"
	"signalbacktest/internal/logger"
	"signalbacktest/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ApiHandler struct {
	BacktestService service.BacktestService
	DefaultOptions  service.TradingOptions
	// built once at startup and only read afterwards
	Snapshot *service.BacktestSnapshot
	Logger   *zap.SugaredLogger
	// nil unless observations come from postgres
	Db *sql.DB
}

func (m ApiHandler) InitializeRouterEngine() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(m.logRequestMiddleware)

	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(200, map[string]string{"message": "welcome to signalbacktest"})
	})
	router.GET("/backtest/daily-returns", m.getPortfolioPerformance)
	router.GET("/backtest/daily-returns-per-stock", m.getDailyReturnsPerStock)
	router.GET("/backtest/performance-per-stock", m.getStockPerformance)
	router.GET("/backtest/global-stats", m.getGlobalStats)
	router.POST("/backtest", m.backtest)

	return router
}

func (m ApiHandler) StartApi(port int) error {
	router := m.InitializeRouterEngine()
	return router.Run(fmt.Sprintf(":%d", port))
}

func returnErrorJson(err error, c *gin.Context) {
	code := 500
	var inputErr domain.InputError
	if errors.As(err, &inputErr) {
		code = 400
	}
	returnErrorJsonCode(err, c, code)
}

func returnErrorJsonCode(err error, c *gin.Context, code int) {
	l := logger.FromContext(c.Request.Context())
	if code >= 500 {
		l.Errorw("request failed", "error", err.Error())
	} else {
		l.Warnw("bad request", "error", err.Error())
	}
	c.AbortWithStatusJSON(code, gin.H{
		"error": err.Error(),
	})
}

func (m ApiHandler) baseLogger() *zap.SugaredLogger {
	if m.Logger != nil {
		return m.Logger
	}
	return zap.S()
}

func (m ApiHandler) logRequestMiddleware(c *gin.Context) {
	requestID := uuid.New()
	c.Set("requestID", requestID.String())

	l := m.baseLogger().With("requestID", requestID.String())
	c.Request = c.Request.WithContext(logger.NewContext(c.Request.Context(), l))

	start := time.Now().UTC()
	c.Next()

	l.Infow(
		"handled request",
		"method", c.Request.Method,
		"route", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"durationMs", time.Since(start).Milliseconds(),
	)
}

func (m ApiHandler) requireSnapshot(c *gin.Context) (*service.BacktestSnapshot, bool) {
	if m.Snapshot == nil {
		returnErrorJsonCode(fmt.Errorf("backtest results are not loaded"), c, 503)
		return nil, false
	}
	return m.Snapshot, true
}
