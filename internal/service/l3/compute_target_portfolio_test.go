package l3_service

import (
	"testing"

	"maxtrade/internal/domain"
	l2_service "maxtrade/internal/service/l2"
	"maxtrade/internal/util"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

// momentumSnapshots builds one snapshot per symbol with only momentum set.
// a nil value leaves momentum unavailable
func momentumSnapshots(values map[string]*float64) map[string]*domain.FactorSnapshot {
	out := map[string]*domain.FactorSnapshot{}
	for symbol, v := range values {
		s := domain.NewFactorSnapshot(symbol, testStart)
		s.Set("momentum", v)
		out[symbol] = s
	}
	return out
}

func TestComputeTargetAllocation(t *testing.T) {
	scorer, err := l2_service.NewCriteriaScorer([]domain.Criterion{{Factor: "momentum", Weight: 1}})
	require.NoError(t, err)

	ranked := momentumSnapshots(map[string]*float64{
		"A": util.Ptr(0.3),
		"B": util.Ptr(0.2),
		"C": util.Ptr(0.1),
	})
	third := 1.0 / 3

	type testCase struct {
		name        string
		snapshots   map[string]*domain.FactorSnapshot
		config      domain.StrategyConfig
		totalEquity float64
		returns     map[string][]float64
		expected    *domain.TargetAllocation
	}

	for _, tc := range []testCase{
		{
			name:      "equal weight",
			snapshots: ranked,
			config:    domain.StrategyConfig{PositionSizing: domain.PositionSizing_EqualWeight},
			expected: &domain.TargetAllocation{
				Weights: map[string]float64{"A": third, "B": third, "C": third},
				Ranking: []string{"A", "B", "C"},
				Scores:  map[string]float64{"A": 0.3, "B": 0.2, "C": 0.1},
			},
		},
		{
			name:      "percent over 100 renormalizes",
			snapshots: ranked,
			config: domain.StrategyConfig{
				PositionSizing:  domain.PositionSizing_Percent,
				PositionPercent: 50,
			},
			expected: &domain.TargetAllocation{
				Weights: map[string]float64{"A": third, "B": third, "C": third},
				Ranking: []string{"A", "B", "C"},
				Scores:  map[string]float64{"A": 0.3, "B": 0.2, "C": 0.1},
			},
		},
		{
			name:      "percent under 100 keeps cash",
			snapshots: ranked,
			config: domain.StrategyConfig{
				PositionSizing:  domain.PositionSizing_Percent,
				PositionPercent: 20,
			},
			expected: &domain.TargetAllocation{
				Weights: map[string]float64{"A": 0.2, "B": 0.2, "C": 0.2},
				Ranking: []string{"A", "B", "C"},
				Scores:  map[string]float64{"A": 0.3, "B": 0.2, "C": 0.1},
			},
		},
		{
			name:      "fixed dollar amount becomes a weight",
			snapshots: ranked,
			config: domain.StrategyConfig{
				PositionSizing: domain.PositionSizing_Fixed,
				PositionAmount: 2000,
			},
			totalEquity: 10000,
			expected: &domain.TargetAllocation{
				Weights: map[string]float64{"A": 0.2, "B": 0.2, "C": 0.2},
				Ranking: []string{"A", "B", "C"},
				Scores:  map[string]float64{"A": 0.3, "B": 0.2, "C": 0.1},
			},
		},
		{
			name:      "fixed with no equity is all cash",
			snapshots: ranked,
			config: domain.StrategyConfig{
				PositionSizing: domain.PositionSizing_Fixed,
				PositionAmount: 2000,
			},
			expected: domain.NewTargetAllocation(),
		},
		{
			name:      "kelly clips and drops negative edge",
			snapshots: ranked,
			config: domain.StrategyConfig{
				PositionSizing: domain.PositionSizing_Kelly,
				MaxPositions:   3,
			},
			returns: map[string][]float64{
				// zero variance gets the cap
				"A": {0.01, 0.01, 0.01, 0.01},
				"B": {-0.01, -0.02, 0.01},
				// mean/variance of 300 is clipped to the cap
				"C": {0.02, 0.03, 0.01, 0.02},
			},
			expected: &domain.TargetAllocation{
				Weights: map[string]float64{"A": third, "C": third},
				Ranking: []string{"A", "C"},
				Scores:  map[string]float64{"A": 0.3, "C": 0.1},
			},
		},
		{
			name:      "kelly without enough history is all cash",
			snapshots: ranked,
			config: domain.StrategyConfig{
				PositionSizing: domain.PositionSizing_Kelly,
				MaxPositions:   3,
			},
			returns:  map[string][]float64{"A": {0.01}},
			expected: domain.NewTargetAllocation(),
		},
		{
			name:      "truncates to max positions",
			snapshots: ranked,
			config:    domain.StrategyConfig{MaxPositions: 2},
			expected: &domain.TargetAllocation{
				Weights: map[string]float64{"A": 0.5, "B": 0.5},
				Ranking: []string{"A", "B"},
				Scores:  map[string]float64{"A": 0.3, "B": 0.2},
			},
		},
		{
			name: "ties break by symbol",
			snapshots: momentumSnapshots(map[string]*float64{
				"MSFT": util.Ptr(0.1),
				"AAPL": util.Ptr(0.1),
				"GOOG": util.Ptr(0.1),
			}),
			config: domain.StrategyConfig{MaxPositions: 2},
			expected: &domain.TargetAllocation{
				Weights: map[string]float64{"AAPL": 0.5, "GOOG": 0.5},
				Ranking: []string{"AAPL", "GOOG"},
				Scores:  map[string]float64{"AAPL": 0.1, "GOOG": 0.1},
			},
		},
		{
			name: "unavailable and non-positive symbols are left out",
			snapshots: momentumSnapshots(map[string]*float64{
				"A": util.Ptr(0.3),
				"D": nil,
				"E": util.Ptr(-0.2),
				"F": util.Ptr(0.0),
			}),
			expected: &domain.TargetAllocation{
				Weights: map[string]float64{"A": 1},
				Ranking: []string{"A"},
				Scores:  map[string]float64{"A": 0.3},
			},
		},
		{
			name:      "nothing qualifies is all cash",
			snapshots: momentumSnapshots(map[string]*float64{"A": util.Ptr(-0.1), "B": nil}),
			expected:  domain.NewTargetAllocation(),
		},
		{
			name:      "no snapshots is all cash",
			snapshots: map[string]*domain.FactorSnapshot{},
			expected:  domain.NewTargetAllocation(),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := ComputeTargetAllocation(ComputeTargetAllocationInput{
				Snapshots:   tc.snapshots,
				Scorer:      scorer,
				Config:      tc.config,
				TotalEquity: tc.totalEquity,
				Returns:     tc.returns,
			})
			require.NoError(t, err)
			require.Equal(t, "", cmp.Diff(tc.expected, actual, cmpopts.EquateApprox(0, 1e-9)))
			require.LessOrEqual(t, actual.TotalWeight(), 1+1e-9)
		})
	}

	t.Run("unknown sizing is a configuration error", func(t *testing.T) {
		_, err := ComputeTargetAllocation(ComputeTargetAllocationInput{
			Snapshots: ranked,
			Scorer:    scorer,
			Config:    domain.StrategyConfig{PositionSizing: "martingale"},
		})
		require.Equal(t, domain.ErrorCode_Configuration, domain.ErrorCodeOf(err))
	})
}

func TestKellyFraction(t *testing.T) {
	require.Equal(t, 0.0, kellyFraction(nil, 0.5))
	require.Equal(t, 0.0, kellyFraction([]float64{0.01}, 0.5))
	require.Equal(t, 0.5, kellyFraction([]float64{0.01, 0.01, 0.01}, 0.5))
	require.Equal(t, 0.0, kellyFraction([]float64{-0.01, -0.02, 0.01}, 0.5))
	// mean 0.001, sample variance 0.04/3
	require.InDelta(t, 0.075, kellyFraction([]float64{0.101, -0.099, 0.101, -0.099}, 0.5), 1e-9)
}
