package l2_service

import (
	"math"

	"github.com/markcheno/go-talib"
	"github.com/montanaflynn/stats"
)

const (
	macdFastPeriod = 12
	macdSlowPeriod = 26
	// trailing closes fed to the emas; bounded so the value is a
	// function of a fixed window rather than of all loaded history
	macdWindow = 2 * macdSlowPeriod
)

// every function here takes closes ascending with the asOf bar last and
// returns nil when there is not enough history

func momentum(closes []float64, n int) *float64 {
	if n < 1 || len(closes) < n+1 {
		return nil
	}
	start := closes[len(closes)-1-n]
	end := closes[len(closes)-1]
	if start == 0 {
		return nil
	}
	out := (end - start) / start * 100
	return &out
}

func rsi(closes []float64, n int) *float64 {
	if n < 2 || len(closes) < n+1 {
		return nil
	}
	window := closes[len(closes)-n-1:]

	flat := true
	for _, c := range window[1:] {
		if c != window[0] {
			flat = false
			break
		}
	}
	// no gains and no losses. talib reports 0 here, which reads as
	// maximally oversold
	if flat {
		out := 50.0
		return &out
	}

	series := talib.Rsi(window, n)
	if len(series) == 0 {
		return nil
	}
	out := series[len(series)-1]
	return &out
}

func macd(closes []float64) *float64 {
	if len(closes) < macdSlowPeriod {
		return nil
	}
	window := closes
	if len(window) > macdWindow {
		window = window[len(window)-macdWindow:]
	}
	fast := talib.Ema(window, macdFastPeriod)
	slow := talib.Ema(window, macdSlowPeriod)
	if len(fast) == 0 || len(slow) == 0 {
		return nil
	}
	out := fast[len(fast)-1] - slow[len(slow)-1]
	return &out
}

func dailyReturns(closes []float64) []float64 {
	out := make([]float64, 0, len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out
}

// annualizedVolatility is the sample stdev of the last n daily returns
// scaled by sqrt(252)
func annualizedVolatility(closes []float64, n int) *float64 {
	if n < 2 || len(closes) < n+1 {
		return nil
	}
	returns := dailyReturns(closes[len(closes)-n-1:])
	if len(returns) < 2 {
		return nil
	}
	stdev, err := stats.StandardDeviationSample(returns)
	if err != nil {
		return nil
	}
	out := stdev * math.Sqrt(252)
	return &out
}

// TrailingReturns returns up to n daily returns ending at the last close
func TrailingReturns(closes []float64, n int) []float64 {
	if len(closes) > n+1 {
		closes = closes[len(closes)-n-1:]
	}
	return dailyReturns(closes)
}
