package l1_service

import (
	"context"
	"errors"
	"testing"
	"time"

	"maxtrade/internal/domain"
	mock_repository "maxtrade/internal/repository/mocks"
	"maxtrade/internal/util"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func bar(symbol string, ts time.Time, close float64) domain.Bar {
	return domain.Bar{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    100,
	}
}

func Test_priceServiceHandler_LoadPriceCache(t *testing.T) {
	t.Run("load cache with warm-up", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		barRepository := mock_repository.NewMockBarRepository(ctrl)

		h := priceServiceHandler{
			BarRepository: barRepository,
			MaxParallel:   2,
		}

		start := util.NewDate(2024, 1, 10)
		end := util.NewDate(2024, 1, 12)

		barRepository.EXPECT().
			List(gomock.Any(), "AAPL", util.NewDate(2024, 1, 5), end).
			Return([]domain.Bar{
				bar("AAPL", util.NewDate(2024, 1, 8), 1),
				bar("AAPL", util.NewDate(2024, 1, 10), 2),
				bar("AAPL", util.NewDate(2024, 1, 12), 3),
			}, nil)
		barRepository.EXPECT().
			List(gomock.Any(), "MSFT", util.NewDate(2024, 1, 5), end).
			Return([]domain.Bar{
				bar("MSFT", util.NewDate(2024, 1, 11), 10),
			}, nil)
		barRepository.EXPECT().
			List(gomock.Any(), "TSLA", util.NewDate(2024, 1, 5), end).
			Return([]domain.Bar{}, nil)

		pc, err := h.LoadPriceCache(context.Background(), LoadPriceCacheInput{
			Symbols:    []string{"msft", "AAPL", "TSLA", "AAPL"},
			Start:      start,
			End:        end,
			WarmupDays: 5,
		})
		require.NoError(t, err)

		require.Equal(t, "", cmp.Diff([]time.Time{
			util.NewDate(2024, 1, 10),
			util.NewDate(2024, 1, 11),
			util.NewDate(2024, 1, 12),
		}, pc.TradingDays()))
		require.Equal(t, []string{"TSLA"}, pc.MissingSymbols())
		require.Equal(t, []string{"AAPL", "MSFT"}, pc.Symbols())
	})

	t.Run("repository error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		barRepository := mock_repository.NewMockBarRepository(ctrl)
		h := priceServiceHandler{BarRepository: barRepository, MaxParallel: 1}

		barRepository.EXPECT().
			List(gomock.Any(), "AAPL", gomock.Any(), gomock.Any()).
			Return(nil, errors.New("disk on fire"))

		_, err := h.LoadPriceCache(context.Background(), LoadPriceCacheInput{
			Symbols: []string{"AAPL"},
			Start:   util.NewDate(2024, 1, 1),
			End:     util.NewDate(2024, 2, 1),
		})
		require.ErrorContains(t, err, "disk on fire")
	})
}

func TestPriceCache(t *testing.T) {
	pc := NewPriceCacheFromBars([]domain.Bar{
		bar("AAPL", util.NewDate(2024, 1, 2), 1),
		bar("AAPL", util.NewDate(2024, 1, 3), 2),
		bar("AAPL", util.NewDate(2024, 1, 5), 3),
		bar("AAPL", util.NewDate(2024, 1, 8), 4),
		// after end, must never be visible
		bar("AAPL", util.NewDate(2024, 2, 1), 999),
	}, util.NewDate(2024, 1, 3), util.NewDate(2024, 1, 31))

	t.Run("window never looks ahead", func(t *testing.T) {
		w := pc.Window("AAPL", util.NewDate(2024, 1, 4), 10)
		require.Len(t, w, 2)
		require.Equal(t, 2.0, w[len(w)-1].Close)

		w = pc.Window("AAPL", util.NewDate(2024, 1, 8), 2)
		require.Equal(t, []float64{3, 4}, domain.PriceSeries{Bars: w}.Closes())

		w = pc.Window("AAPL", util.NewDate(2030, 1, 1), 0)
		require.Len(t, w, 4)
	})

	t.Run("bar at exact timestamp", func(t *testing.T) {
		_, ok := pc.BarAt("AAPL", util.NewDate(2024, 1, 4))
		require.False(t, ok)
		b, ok := pc.BarAt("AAPL", util.NewDate(2024, 1, 5))
		require.True(t, ok)
		require.Equal(t, 3.0, b.Close)
	})

	t.Run("last close carries forward", func(t *testing.T) {
		c, ok := pc.LastClose("AAPL", util.NewDate(2024, 1, 7))
		require.True(t, ok)
		require.Equal(t, 3.0, c)
		_, ok = pc.LastClose("AAPL", util.NewDate(2024, 1, 1))
		require.False(t, ok)
		_, ok = pc.LastClose("MSFT", util.NewDate(2024, 1, 7))
		require.False(t, ok)
	})

	t.Run("trading days exclude warm-up", func(t *testing.T) {
		require.Equal(t, "", cmp.Diff([]time.Time{
			util.NewDate(2024, 1, 3),
			util.NewDate(2024, 1, 5),
			util.NewDate(2024, 1, 8),
		}, pc.TradingDays()))
	})
}
