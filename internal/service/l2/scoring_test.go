package l2_service

import (
	"testing"

	"maxtrade/internal/domain"
	"maxtrade/internal/util"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func snapshotOf(symbol string, values map[string]float64) *domain.FactorSnapshot {
	s := domain.NewFactorSnapshot(symbol, util.NewDate(2024, 1, 1))
	for k, v := range values {
		v := v
		s.Set(k, &v)
	}
	return s
}

func TestParseExpression(t *testing.T) {
	t.Run("inputs", func(t *testing.T) {
		e, err := ParseExpression("max(momentum_60, 0) / volatility + 0.001")
		require.NoError(t, err)
		names := []string{}
		for _, in := range e.Inputs {
			names = append(names, in.Name)
		}
		require.Equal(t, []string{"momentum_60", "volatility"}, names)
	})

	t.Run("unknown identifier", func(t *testing.T) {
		_, err := ParseExpression("1 / earnings")
		require.Equal(t, domain.ErrorCode_Configuration, domain.ErrorCodeOf(err))
	})

	t.Run("unknown function", func(t *testing.T) {
		_, err := ParseExpression("exp(momentum)")
		require.ErrorContains(t, err, "unknown function")
	})

	t.Run("syntax error", func(t *testing.T) {
		_, err := ParseExpression("1 / (pe_ratio")
		require.Equal(t, domain.ErrorCode_Configuration, domain.ErrorCodeOf(err))
	})
}

func TestExpression_Evaluate(t *testing.T) {
	e, err := ParseExpression("1 / pe_ratio")
	require.NoError(t, err)

	v, err := e.Evaluate(map[string]*float64{"pe_ratio": util.Ptr(20.0)})
	require.NoError(t, err)
	require.InDelta(t, 0.05, *v, 1e-12)

	v, err = e.Evaluate(map[string]*float64{"pe_ratio": nil})
	require.NoError(t, err)
	require.Nil(t, v)

	// division by zero is not finite
	v, _ = e.Evaluate(map[string]*float64{"pe_ratio": util.Ptr(0.0)})
	require.Nil(t, v)

	e, err = ParseExpression("abs(momentum) + min(rsi, 2)")
	require.NoError(t, err)
	v, err = e.Evaluate(map[string]*float64{"momentum": util.Ptr(-3.0), "rsi": util.Ptr(70.0)})
	require.NoError(t, err)
	require.Equal(t, 5.0, *v)
}

func TestCriteriaScorer(t *testing.T) {
	t.Run("weighted sum with band", func(t *testing.T) {
		scorer, err := NewCriteriaScorer([]domain.Criterion{
			{Factor: "momentum", Weight: 2},
			{Factor: "rsi", Weight: 1, Max: util.Ptr(70.0)},
		})
		require.NoError(t, err)
		require.Equal(t, []domain.FactorSpec{
			{Name: "momentum", Kind: domain.FactorKind_Momentum},
			{Name: "rsi", Kind: domain.FactorKind_Rsi},
		}, scorer.RequiredFactors())

		inBand := scorer.Score(snapshotOf("A", map[string]float64{"momentum": 5, "rsi": 60}))
		require.True(t, inBand.Available)
		require.True(t, inBand.Qualifies)
		require.Equal(t, 70.0, inBand.Score)

		// rsi out of band zeroes only its contribution
		outOfBand := scorer.Score(snapshotOf("B", map[string]float64{"momentum": 5, "rsi": 80}))
		require.True(t, outOfBand.Qualifies)
		require.Equal(t, 10.0, outOfBand.Score)
	})

	t.Run("no positive contribution excludes", func(t *testing.T) {
		scorer, err := NewCriteriaScorer([]domain.Criterion{{Factor: "momentum", Weight: 1}})
		require.NoError(t, err)
		s := scorer.Score(snapshotOf("A", map[string]float64{"momentum": -5}))
		require.True(t, s.Available)
		require.False(t, s.Qualifies)
		require.Equal(t, -5.0, s.Score)
	})

	t.Run("missing factor is unavailable", func(t *testing.T) {
		scorer, err := NewCriteriaScorer([]domain.Criterion{{Expression: "1 / pe_ratio", Name: "ey", Weight: 1}})
		require.NoError(t, err)
		s := scorer.Score(snapshotOf("A", map[string]float64{}))
		require.False(t, s.Available)
		require.False(t, s.Qualifies)
		require.Contains(t, s.Values, "ey")
	})

	t.Run("no criteria qualifies everything", func(t *testing.T) {
		scorer, err := NewCriteriaScorer(nil)
		require.NoError(t, err)
		s := scorer.Score(snapshotOf("A", nil))
		require.True(t, s.Qualifies)
		require.Equal(t, 0.0, s.Score)
	})

	t.Run("invalid criterion", func(t *testing.T) {
		_, err := NewCriteriaScorer([]domain.Criterion{{Factor: "momentum", Expression: "rsi", Weight: 1}})
		require.Equal(t, domain.ErrorCode_Configuration, domain.ErrorCodeOf(err))
	})
}

func TestRankScores(t *testing.T) {
	scores := []CriteriaScore{
		{Symbol: "C", Score: 1},
		{Symbol: "B", Score: 2},
		{Symbol: "A", Score: 1},
	}
	RankScores(scores)
	symbols := []string{}
	for _, s := range scores {
		symbols = append(symbols, s.Symbol)
	}
	require.Equal(t, "", cmp.Diff([]string{"B", "A", "C"}, symbols))
}
