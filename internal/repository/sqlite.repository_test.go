package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"maxtrade/internal/domain"
	"maxtrade/internal/util"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSqliteBarRepository(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSqlite(":memory:")
	require.NoError(t, err)
	defer db.Close()

	repo := NewSqliteBarRepository(db)
	require.NoError(t, repo.Add(ctx, testBars()))
	require.NoError(t, repo.Add(ctx, []domain.Bar{newTestBar("AAPL", util.NewDate(2024, 1, 4), 120)}))

	bars, err := repo.List(ctx, "AAPL", util.NewDate(2024, 1, 2), util.NewDate(2024, 1, 4))
	require.NoError(t, err)
	require.Equal(t, "", cmp.Diff([]domain.Bar{
		newTestBar("AAPL", util.NewDate(2024, 1, 2), 100),
		newTestBar("AAPL", util.NewDate(2024, 1, 3), 101),
		newTestBar("AAPL", util.NewDate(2024, 1, 4), 120),
	}, bars))

	symbols, err := repo.ListSymbols(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"AAPL", "MSFT"}, symbols)
}

func TestSqliteFundamentalsRepository(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSqlite(filepath.Join(t.TempDir(), "maxtrade.db"))
	require.NoError(t, err)
	defer db.Close()

	repo := NewSqliteFundamentalsRepository(db)
	require.NoError(t, repo.Add(ctx, []domain.Fundamentals{
		{Symbol: "AAPL", AsOf: util.NewDate(2023, 12, 31), PeRatio: util.Ptr(30.0), Roe: util.Ptr(0.25)},
		{Symbol: "AAPL", AsOf: util.NewDate(2024, 3, 31), PeRatio: util.Ptr(25.0)},
	}))

	f, err := repo.Get(ctx, "AAPL", util.NewDate(2023, 1, 1))
	require.NoError(t, err)
	require.Nil(t, f)

	f, err = repo.Get(ctx, "AAPL", util.NewDate(2024, 1, 15))
	require.NoError(t, err)
	require.Equal(t, "", cmp.Diff(&domain.Fundamentals{
		Symbol:  "AAPL",
		AsOf:    util.NewDate(2023, 12, 31),
		PeRatio: util.Ptr(30.0),
		Roe:     util.Ptr(0.25),
	}, f))
}

func TestBacktestResultRepository(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSqlite(":memory:")
	require.NoError(t, err)
	defer db.Close()

	handler := backtestResultRepositoryHandler{
		Db:  db,
		Now: func() time.Time { return util.NewDate(2024, 6, 1) },
	}

	id := uuid.MustParse("6a8a4c52-5b43-5d0e-8d07-6c1d1e6d5e10")
	result := domain.BacktestResult{
		ID:             id,
		StrategyID:     "momentum",
		Symbols:        []string{"AAPL"},
		StartDate:      util.NewDate(2024, 1, 1),
		EndDate:        util.NewDate(2024, 3, 1),
		InitialCapital: 1000,
		Status:         domain.BacktestStatus_Completed,
		Metrics:        &domain.BacktestMetrics{TotalReturn: 1.5},
		EquityCurve: []domain.EquityPoint{
			{Timestamp: util.NewDate(2024, 1, 2), Equity: 1000},
		},
		Trades: []domain.Trade{},
	}
	require.NoError(t, handler.Add(ctx, result))

	got, err := handler.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "", cmp.Diff(result, *got))

	summaries, err := handler.List(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []BacktestResultSummary{{
		ID:         id,
		StrategyID: "momentum",
		Status:     domain.BacktestStatus_Completed,
		CreatedAt:  util.NewDate(2024, 6, 1),
	}}, summaries)

	_, err = handler.Get(ctx, uuid.New())
	require.Equal(t, domain.ErrorCode_NotFound, domain.ErrorCodeOf(err))
}
