package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"maxtrade/internal/domain"

	"github.com/parquet-go/parquet-go"
)

// barParquetRecord is the on-disk schema, one file per symbol
type barParquetRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"`
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    float64 `parquet:"volume"`
}

type ParquetBarRepository interface {
	BarRepository
	BarWriter
}

type parquetBarRepositoryHandler struct {
	Dir       string
	Cache     map[string][]domain.Bar
	ReadMutex *sync.RWMutex
}

func NewParquetBarRepository(dir string) ParquetBarRepository {
	return &parquetBarRepositoryHandler{
		Dir:       dir,
		Cache:     map[string][]domain.Bar{},
		ReadMutex: &sync.RWMutex{},
	}
}

func (h parquetBarRepositoryHandler) path(symbol string) string {
	return filepath.Join(h.Dir, normalizeSymbol(symbol)+".parquet")
}

func (h parquetBarRepositoryHandler) load(symbol string) ([]domain.Bar, error) {
	symbol = normalizeSymbol(symbol)
	h.ReadMutex.RLock()
	series, ok := h.Cache[symbol]
	h.ReadMutex.RUnlock()
	if ok {
		return series, nil
	}

	records, err := parquet.ReadFile[barParquetRecord](h.path(symbol))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet bars for %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(records))
	for _, r := range records {
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: time.UnixMilli(r.Timestamp).UTC(),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
		})
	}
	grouped, err := groupBars(bars)
	if err != nil {
		return nil, fmt.Errorf("corrupt parquet bars for %s: %w", symbol, err)
	}
	series = grouped[symbol]

	h.ReadMutex.Lock()
	h.Cache[symbol] = series
	h.ReadMutex.Unlock()

	return series, nil
}

func (h parquetBarRepositoryHandler) List(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	series, err := h.load(symbol)
	if err != nil {
		return nil, err
	}
	return sliceBars(series, start, end), nil
}

func (h parquetBarRepositoryHandler) ListSymbols(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(h.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list parquet dir %s: %w", h.Dir, err)
	}
	symbols := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".parquet") {
			continue
		}
		symbols = append(symbols, strings.TrimSuffix(e.Name(), ".parquet"))
	}
	sort.Strings(symbols)
	return symbols, nil
}

// Add merges bars into each symbol's file. incoming bars replace
// existing ones with the same timestamp
func (h parquetBarRepositoryHandler) Add(ctx context.Context, bars []domain.Bar) error {
	incoming, err := groupBars(bars)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(h.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create parquet dir: %w", err)
	}

	for symbol, series := range incoming {
		existing, err := h.load(symbol)
		if err != nil {
			return err
		}
		merged := mergeBars(existing, series)

		records := make([]barParquetRecord, 0, len(merged))
		for _, b := range merged {
			records = append(records, barParquetRecord{
				Symbol:    symbol,
				Timestamp: b.Timestamp.UnixMilli(),
				Open:      b.Open,
				High:      b.High,
				Low:       b.Low,
				Close:     b.Close,
				Volume:    b.Volume,
			})
		}
		if err := parquet.WriteFile(h.path(symbol), records); err != nil {
			return fmt.Errorf("failed to write parquet bars for %s: %w", symbol, err)
		}

		h.ReadMutex.Lock()
		h.Cache[symbol] = merged
		h.ReadMutex.Unlock()
	}

	return nil
}

func mergeBars(existing, incoming []domain.Bar) []domain.Bar {
	byTime := map[int64]domain.Bar{}
	for _, b := range existing {
		byTime[b.Timestamp.UnixMilli()] = b
	}
	for _, b := range incoming {
		byTime[b.Timestamp.UnixMilli()] = b
	}
	out := make([]domain.Bar, 0, len(byTime))
	for _, b := range byTime {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
