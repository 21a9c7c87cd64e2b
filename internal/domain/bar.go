package domain

import (
	"fmt"
	"time"
)

// Bar is one OHLCV sample for a symbol
type Bar struct {
	Symbol    string    `json:"symbol" csv:"symbol"`
	Timestamp time.Time `json:"timestamp" csv:"-"`
	Open      float64   `json:"open" csv:"open"`
	High      float64   `json:"high" csv:"high"`
	Low       float64   `json:"low" csv:"low"`
	Close     float64   `json:"close" csv:"close"`
	Volume    float64   `json:"volume" csv:"volume"`
}

// Validate checks the per-bar OHLCV invariants. ordering across
// bars is checked by whoever assembles the series
func (b Bar) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("bar is missing symbol")
	}
	if b.Timestamp.IsZero() {
		return fmt.Errorf("bar for %s is missing timestamp", b.Symbol)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar for %s on %s has negative volume %f", b.Symbol, b.Timestamp.Format(time.DateOnly), b.Volume)
	}
	if b.Open <= 0 || b.Close <= 0 {
		return fmt.Errorf("bar for %s on %s has non-positive price", b.Symbol, b.Timestamp.Format(time.DateOnly))
	}
	if b.Low > b.Open || b.Low > b.Close || b.High < b.Open || b.High < b.Close {
		return fmt.Errorf("bar for %s on %s violates low <= open,close <= high", b.Symbol, b.Timestamp.Format(time.DateOnly))
	}
	return nil
}

// PriceSeries is the ordered bar sequence for one symbol
type PriceSeries struct {
	Symbol string
	Bars   []Bar
}

func (p PriceSeries) Closes() []float64 {
	out := make([]float64, len(p.Bars))
	for i, b := range p.Bars {
		out[i] = b.Close
	}
	return out
}

// Fundamentals is a point-in-time snapshot of externally computed
// ratios. nil fields are unknown
type Fundamentals struct {
	Symbol  string    `json:"symbol"`
	AsOf    time.Time `json:"asOf"`
	PeRatio *float64  `json:"peRatio"`
	PbRatio *float64  `json:"pbRatio"`
	Roe     *float64  `json:"roe"`
}
