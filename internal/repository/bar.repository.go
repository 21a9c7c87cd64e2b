package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"maxtrade/internal/domain"
)

// BarRepository is the historical data provider. List returns bars for
// symbol with start <= timestamp <= end, ascending
type BarRepository interface {
	List(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
	ListSymbols(ctx context.Context) ([]string, error)
}

// BarWriter is implemented by the stores that bars can be imported into
type BarWriter interface {
	Add(ctx context.Context, bars []domain.Bar) error
}

type memoryBarRepositoryHandler struct {
	bars map[string][]domain.Bar
}

func NewMemoryBarRepository(bars []domain.Bar) (BarRepository, error) {
	grouped, err := groupBars(bars)
	if err != nil {
		return nil, err
	}
	return &memoryBarRepositoryHandler{bars: grouped}, nil
}

func (h memoryBarRepositoryHandler) List(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	return sliceBars(h.bars[normalizeSymbol(symbol)], start, end), nil
}

func (h memoryBarRepositoryHandler) ListSymbols(ctx context.Context) ([]string, error) {
	symbols := []string{}
	for symbol := range h.bars {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// groupBars validates bars and splits them into per-symbol ascending
// series. duplicate timestamps for a symbol are rejected
func groupBars(bars []domain.Bar) (map[string][]domain.Bar, error) {
	out := map[string][]domain.Bar{}
	for _, bar := range bars {
		bar.Symbol = normalizeSymbol(bar.Symbol)
		bar.Timestamp = bar.Timestamp.UTC()
		if err := bar.Validate(); err != nil {
			return nil, fmt.Errorf("invalid bar: %w", err)
		}
		out[bar.Symbol] = append(out[bar.Symbol], bar)
	}
	for symbol, series := range out {
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].Timestamp.Before(series[j].Timestamp)
		})
		for i := 1; i < len(series); i++ {
			if !series[i].Timestamp.After(series[i-1].Timestamp) {
				return nil, fmt.Errorf("duplicate bar for %s at %s", symbol, series[i].Timestamp.Format(time.RFC3339))
			}
		}
	}
	return out, nil
}

// sliceBars copies the [start, end] range out of an ascending series
func sliceBars(series []domain.Bar, start, end time.Time) []domain.Bar {
	lo := sort.Search(len(series), func(i int) bool {
		return !series[i].Timestamp.Before(start)
	})
	hi := sort.Search(len(series), func(i int) bool {
		return series[i].Timestamp.After(end)
	})
	out := []domain.Bar{}
	if lo < hi {
		out = append(out, series[lo:hi]...)
	}
	return out
}
