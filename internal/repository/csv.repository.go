package repository

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"maxtrade/internal/domain"

	"github.com/gocarina/gocsv"
)

type barCsvRow struct {
	Date   string  `csv:"date"`
	Symbol string  `csv:"symbol"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

type fundamentalsCsvRow struct {
	Date    string `csv:"date"`
	Symbol  string `csv:"symbol"`
	PeRatio string `csv:"pe_ratio"`
	PbRatio string `csv:"pb_ratio"`
	Roe     string `csv:"roe"`
}

type tradeCsvRow struct {
	Timestamp      string `csv:"timestamp"`
	Symbol         string `csv:"symbol"`
	Side           string `csv:"side"`
	Quantity       int64  `csv:"quantity"`
	RequestedPrice string `csv:"requested_price"`
	FilledPrice    string `csv:"filled_price"`
	Commission     string `csv:"commission"`
	RealizedPnl    string `csv:"realized_pnl"`
}

// ReadBarsCsv parses rows of date,symbol,open,high,low,close,volume.
// dates are YYYY-MM-DD or RFC3339
func ReadBarsCsv(r io.Reader) ([]domain.Bar, error) {
	rows := []barCsvRow{}
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse bars csv: %w", err)
	}

	bars := make([]domain.Bar, 0, len(rows))
	for i, row := range rows {
		ts, err := parseCsvTime(row.Date)
		if err != nil {
			return nil, fmt.Errorf("bars csv row %d: %w", i+1, err)
		}
		bars = append(bars, domain.Bar{
			Symbol:    normalizeSymbol(row.Symbol),
			Timestamp: ts,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		})
	}
	return bars, nil
}

func ReadBarsCsvFile(path string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bars csv %s: %w", path, err)
	}
	defer f.Close()
	return ReadBarsCsv(f)
}

func ReadFundamentalsCsv(r io.Reader) ([]domain.Fundamentals, error) {
	rows := []fundamentalsCsvRow{}
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse fundamentals csv: %w", err)
	}

	out := make([]domain.Fundamentals, 0, len(rows))
	for i, row := range rows {
		ts, err := parseCsvTime(row.Date)
		if err != nil {
			return nil, fmt.Errorf("fundamentals csv row %d: %w", i+1, err)
		}
		f := domain.Fundamentals{
			Symbol: normalizeSymbol(row.Symbol),
			AsOf:   ts,
		}
		if f.PeRatio, err = parseOptionalFloat(row.PeRatio); err != nil {
			return nil, fmt.Errorf("fundamentals csv row %d pe_ratio: %w", i+1, err)
		}
		if f.PbRatio, err = parseOptionalFloat(row.PbRatio); err != nil {
			return nil, fmt.Errorf("fundamentals csv row %d pb_ratio: %w", i+1, err)
		}
		if f.Roe, err = parseOptionalFloat(row.Roe); err != nil {
			return nil, fmt.Errorf("fundamentals csv row %d roe: %w", i+1, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func ReadFundamentalsCsvFile(path string) ([]domain.Fundamentals, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fundamentals csv %s: %w", path, err)
	}
	defer f.Close()
	return ReadFundamentalsCsv(f)
}

// NewCsvBarRepository loads the whole file up front; csv inputs are
// expected to fit in memory
func NewCsvBarRepository(path string) (BarRepository, error) {
	bars, err := ReadBarsCsvFile(path)
	if err != nil {
		return nil, err
	}
	return NewMemoryBarRepository(bars)
}

func NewCsvFundamentalsRepository(path string) (FundamentalsRepository, error) {
	snapshots, err := ReadFundamentalsCsvFile(path)
	if err != nil {
		return nil, err
	}
	return NewMemoryFundamentalsRepository(snapshots), nil
}

func WriteTradesCsv(w io.Writer, trades []domain.Trade) error {
	rows := make([]tradeCsvRow, 0, len(trades))
	for _, t := range trades {
		row := tradeCsvRow{
			Timestamp:      t.Timestamp.UTC().Format(time.RFC3339),
			Symbol:         t.Symbol,
			Side:           string(t.Side),
			Quantity:       t.Quantity,
			RequestedPrice: t.RequestedPrice.String(),
			FilledPrice:    t.FilledPrice.String(),
			Commission:     t.Commission.String(),
		}
		if t.RealizedPnl != nil {
			row.RealizedPnl = t.RealizedPnl.String()
		}
		rows = append(rows, row)
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write trades csv: %w", err)
	}
	return nil
}

func parseCsvTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation("2006-01-02", s, time.UTC); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t.UTC(), nil
}

func parseOptionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
