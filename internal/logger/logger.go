package logger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envVar = "MAXTRADE_ENV"

func New() *zap.SugaredLogger {
	var (
		logger *zap.Logger
		err    error
	)
	opts := []zap.Option{
		zap.AddStacktrace(zap.ErrorLevel),
	}

	if strings.ToLower(os.Getenv(envVar)) == "dev" {
		logger, err = zap.NewDevelopment(opts...)
	} else {
		opts = append(opts, zap.Fields(zap.Field{
			Key:    envVar,
			Type:   zapcore.StringType,
			String: os.Getenv(envVar),
		}))
		logger, err = zap.NewProduction(opts...)
	}

	if err != nil {
		panic(fmt.Errorf("failed to initialize logger: %w", err))
	}

	return logger.Sugar()
}

// NewNop is for tests and callers that want silence
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

type contextKey struct{}

func NewContext(ctx context.Context, logger *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

var missingLoggerWarning sync.Once

// FromContext falls back to the global logger, warning the first time
// that happens
func FromContext(ctx context.Context) *zap.SugaredLogger {
	logger, ok := ctx.Value(contextKey{}).(*zap.SugaredLogger)
	if !ok || logger == nil {
		logger = zap.S()
		missingLoggerWarning.Do(func() {
			logger.Warn("no logger found in ctx - using global logger")
		})
	}
	return logger
}

func init() {
	logger := New()
	zap.ReplaceGlobals(logger.Desugar())
}
