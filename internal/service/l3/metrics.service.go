package l3_service

import (
	"math"

	"maxtrade/internal/domain"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
)

const tradingDaysPerYear = 252

type CalculateMetricsInput struct {
	InitialCapital    float64
	EquityCurve       []domain.EquityPoint
	Trades            []domain.Trade
	RebalanceCount    int
	SkippedRebalances int
}

// CalculateMetrics reduces one run's equity curve and trade log. it
// never divides by zero; undefined ratios come back as 0
func CalculateMetrics(in CalculateMetricsInput) domain.BacktestMetrics {
	out := domain.BacktestMetrics{
		FinalEquity:       in.InitialCapital,
		TotalTrades:       len(in.Trades),
		RebalanceCount:    in.RebalanceCount,
		SkippedRebalances: in.SkippedRebalances,
	}
	if len(in.EquityCurve) > 0 {
		out.FinalEquity = in.EquityCurve[len(in.EquityCurve)-1].Equity
	}
	if in.InitialCapital > 0 {
		out.TotalReturn = (out.FinalEquity - in.InitialCapital) / in.InitialCapital * 100
	}

	returns := equityReturns(in.EquityCurve)
	out.SharpeRatio, out.SharpeAvailable = sharpeRatio(returns)
	if len(returns) >= 2 {
		if stdev, err := stats.StandardDeviationSample(returns); err == nil {
			out.AnnualizedVolatility = stdev * math.Sqrt(tradingDaysPerYear) * 100
		}
	}
	out.AnnualizedReturn = annualizedReturn(in.InitialCapital, out.FinalEquity, len(returns))
	out.MaxDrawdown = maxDrawdown(in.EquityCurve)

	totalCommission := decimal.Zero
	for _, t := range in.Trades {
		totalCommission = totalCommission.Add(t.Commission)
		if !t.IsClosing() {
			continue
		}
		out.ClosedTrades++
		if t.RealizedPnl.IsPositive() {
			out.WinningTrades++
		} else if t.RealizedPnl.IsNegative() {
			out.LosingTrades++
		}
	}
	out.TotalCommission = totalCommission.InexactFloat64()
	if out.ClosedTrades > 0 {
		out.WinRate = float64(out.WinningTrades) / float64(out.ClosedTrades) * 100
	}

	return out
}

func equityReturns(curve []domain.EquityPoint) []float64 {
	returns := []float64{}
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	return returns
}

func sharpeRatio(returns []float64) (float64, bool) {
	if len(returns) < 2 {
		return 0, false
	}
	mean, err := stats.Mean(returns)
	if err != nil {
		return 0, false
	}
	stdev, err := stats.StandardDeviationSample(returns)
	if err != nil || stdev == 0 || math.IsNaN(stdev) {
		return 0, false
	}
	return mean / stdev * math.Sqrt(tradingDaysPerYear), true
}

// maxDrawdown is a percent in [0, 100] measured from a running peak
func maxDrawdown(curve []domain.EquityPoint) float64 {
	peak := 0.0
	worst := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - p.Equity) / peak * 100
		if dd > worst {
			worst = dd
		}
	}
	return math.Min(worst, 100)
}

func annualizedReturn(initial, final float64, numReturns int) float64 {
	if initial <= 0 || final <= 0 || numReturns == 0 {
		return 0
	}
	years := float64(numReturns) / tradingDaysPerYear
	r := (math.Pow(final/initial, 1/years) - 1) * 100
	if math.IsInf(r, 0) || math.IsNaN(r) {
		return 0
	}
	return r
}
