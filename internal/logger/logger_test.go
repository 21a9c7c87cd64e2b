package logger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	t.Run("returns the stored logger", func(t *testing.T) {
		l := NewNop()
		ctx := NewContext(context.Background(), l)
		require.Same(t, l, FromContext(ctx))
	})

	t.Run("falls back when ctx has no logger", func(t *testing.T) {
		require.NotNil(t, FromContext(context.Background()))
	})

	t.Run("warns about a missing logger only once", func(t *testing.T) {
		core, observed := observer.New(zapcore.WarnLevel)
		restore := zap.ReplaceGlobals(zap.New(core))
		defer restore()
		missingLoggerWarning = sync.Once{}

		for i := 0; i < 3; i++ {
			FromContext(context.Background()).Info("hello")
		}
		require.Equal(t, 1, observed.FilterMessage("no logger found in ctx - using global logger").Len())
	})
}
