package l3_service

import (
	"fmt"
	"math"
	"sort"

	"maxtrade/internal/domain"
	l2_service "maxtrade/internal/service/l2"

	"github.com/montanaflynn/stats"
)

type ComputeTargetAllocationInput struct {
	Snapshots map[string]*domain.FactorSnapshot
	Scorer    *l2_service.CriteriaScorer
	Config    domain.StrategyConfig
	// marked portfolio value, used by fixed sizing
	TotalEquity float64
	// trailing daily returns per symbol, used by kelly sizing
	Returns map[string][]float64
}

// ComputeTargetAllocation filters, scores, ranks and sizes. symbols with
// any required factor unavailable, or with no positive contribution, are
// left out. an empty allocation means all cash
func ComputeTargetAllocation(in ComputeTargetAllocationInput) (*domain.TargetAllocation, error) {
	symbols := make([]string, 0, len(in.Snapshots))
	for symbol := range in.Snapshots {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	candidates := []l2_service.CriteriaScore{}
	for _, symbol := range symbols {
		snapshot := in.Snapshots[symbol]
		if snapshot == nil {
			continue
		}
		score := in.Scorer.Score(snapshot)
		if !score.Available || !score.Qualifies {
			continue
		}
		candidates = append(candidates, score)
	}
	l2_service.RankScores(candidates)

	maxPositions := in.Config.EffectiveMaxPositions()
	if len(candidates) > maxPositions {
		candidates = candidates[:maxPositions]
	}

	out := domain.NewTargetAllocation()
	if len(candidates) == 0 {
		return out, nil
	}

	weights, err := sizePositions(in, candidates, maxPositions)
	if err != nil {
		return nil, err
	}

	for _, c := range candidates {
		w := weights[c.Symbol]
		if w <= 0 {
			continue
		}
		out.Weights[c.Symbol] = w
		out.Ranking = append(out.Ranking, c.Symbol)
		out.Scores[c.Symbol] = c.Score
	}

	if total := out.TotalWeight(); total > 1+1e-9 {
		return nil, domain.NewInternalInvariantError("target weights sum to %f", total)
	}

	return out, nil
}

func sizePositions(in ComputeTargetAllocationInput, selected []l2_service.CriteriaScore, maxPositions int) (map[string]float64, error) {
	n := float64(len(selected))
	weights := map[string]float64{}

	switch in.Config.PositionSizing {
	case domain.PositionSizing_EqualWeight, "":
		for _, s := range selected {
			weights[s.Symbol] = 1 / n
		}

	case domain.PositionSizing_Percent:
		w := in.Config.PositionPercent / 100
		if w*n > 1 {
			w = 1 / n
		}
		for _, s := range selected {
			weights[s.Symbol] = w
		}

	case domain.PositionSizing_Fixed:
		if in.TotalEquity <= 0 {
			return weights, nil
		}
		w := in.Config.PositionAmount / in.TotalEquity
		if w*n > 1 {
			w = 1 / n
		}
		for _, s := range selected {
			weights[s.Symbol] = w
		}

	case domain.PositionSizing_Kelly:
		maxWeight := 1 / float64(maxPositions)
		for _, s := range selected {
			weights[s.Symbol] = kellyFraction(in.Returns[s.Symbol], maxWeight)
		}

	default:
		return nil, domain.NewConfigurationError("invalid position sizing %q", in.Config.PositionSizing)
	}

	return weights, nil
}

// kellyFraction is mean/variance of returns clipped to [0, maxWeight]
func kellyFraction(returns []float64, maxWeight float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, err := stats.Mean(returns)
	if err != nil || mean <= 0 {
		return 0
	}
	variance, err := stats.SampleVariance(returns)
	if err != nil {
		return 0
	}
	if variance == 0 {
		return maxWeight
	}
	f := mean / variance
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	return math.Min(f, maxWeight)
}

func describeAllocation(t *domain.TargetAllocation) string {
	if t.IsEmpty() {
		return "all cash"
	}
	out := ""
	for i, symbol := range t.Ranking {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%.4f", symbol, t.Weights[symbol])
	}
	return out
}
