package logger

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options override the SIM_ENV defaults. empty fields keep them
type Options struct {
	Env      string
	Level    string
	Encoding string
}

// Build returns a development logger for dev, a nop logger for
// test and a production json logger tagged with SIM_ENV otherwise
func Build(opts Options) (*zap.SugaredLogger, error) {
	env := strings.ToLower(opts.Env)
	if env == "test" {
		return zap.NewNop().Sugar(), nil
	}

	cfg := zap.NewProductionConfig()
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg.InitialFields = map[string]interface{}{"SIM_ENV": opts.Env}
	}

	if opts.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}
	switch opts.Encoding {
	case "":
	case "json", "console":
		cfg.Encoding = opts.Encoding
	default:
		return nil, fmt.Errorf("invalid log encoding %q", opts.Encoding)
	}

	logger, err := cfg.Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Sugar(), nil
}

// New builds the SIM_ENV default logger and panics if it cannot
func New() *zap.SugaredLogger {
	l, err := Build(Options{Env: os.Getenv("SIM_ENV")})
	if err != nil {
		panic(err)
	}
	return l
}

type contextKey string

const ContextKey contextKey = "LOGGER"

func NewContext(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, ContextKey, l)
}

func FromContext(ctx context.Context) *zap.SugaredLogger {
	l, ok := ctx.Value(ContextKey).(*zap.SugaredLogger)
	if !ok {
		l = zap.S()
		l.Debug("no logger found in ctx - using global")
	}
	return l
}

func init() {
	logger := New()
	zap.ReplaceGlobals(logger.Desugar())
}
