package repository

import (
	"context"
	"sort"
	"time"

	"maxtrade/internal/domain"
)

// FundamentalsRepository returns the latest snapshot dated on or before
// asOf, or nil when there is none
type FundamentalsRepository interface {
	Get(ctx context.Context, symbol string, asOf time.Time) (*domain.Fundamentals, error)
}

type memoryFundamentalsRepositoryHandler struct {
	snapshots map[string][]domain.Fundamentals
}

func NewMemoryFundamentalsRepository(snapshots []domain.Fundamentals) FundamentalsRepository {
	bySymbol := map[string][]domain.Fundamentals{}
	for _, f := range snapshots {
		f.Symbol = normalizeSymbol(f.Symbol)
		bySymbol[f.Symbol] = append(bySymbol[f.Symbol], f)
	}
	for _, series := range bySymbol {
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].AsOf.Before(series[j].AsOf)
		})
	}
	return &memoryFundamentalsRepositoryHandler{snapshots: bySymbol}
}

func (h memoryFundamentalsRepositoryHandler) Get(ctx context.Context, symbol string, asOf time.Time) (*domain.Fundamentals, error) {
	series := h.snapshots[normalizeSymbol(symbol)]
	idx := sort.Search(len(series), func(i int) bool {
		return series[i].AsOf.After(asOf)
	})
	if idx == 0 {
		return nil, nil
	}
	out := series[idx-1]
	return &out, nil
}
