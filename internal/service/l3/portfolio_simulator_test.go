package l3_service

import (
	"testing"

	"maxtrade/internal/domain"
	"maxtrade/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.True(t, dec(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}

func TestCommissionModel_For(t *testing.T) {
	c := CommissionModel{Rate: dec("0.001"), Minimum: dec("1")}
	requireDecimal(t, "1", c.For(dec("500")))
	requireDecimal(t, "9.9", c.For(dec("9900")))
}

func TestRebalance(t *testing.T) {
	ts := util.NewDate(2024, 3, 1)
	commission := CommissionModel{Rate: dec("0.001"), Minimum: dec("1")}

	t.Run("buy from cash leaves commission and remainder in cash", func(t *testing.T) {
		portfolio := domain.NewPortfolio(dec("10000"))
		target := domain.NewTargetAllocation()
		target.Weights["AAPL"] = 1
		target.Ranking = []string{"AAPL"}

		result, err := Rebalance(RebalanceInput{
			Portfolio:  portfolio,
			Target:     target,
			Prices:     map[string]decimal.Decimal{"AAPL": dec("100")},
			Timestamp:  ts,
			Commission: commission,
		})
		require.NoError(t, err)

		require.Len(t, result.Trades, 1)
		trade := result.Trades[0]
		require.Equal(t, domain.OrderSide_Buy, trade.Side)
		require.Equal(t, int64(99), trade.Quantity)
		requireDecimal(t, "9.9", trade.Commission)
		require.Nil(t, trade.RealizedPnl)
		require.Equal(t, ts, trade.Timestamp)

		require.Equal(t, int64(99), portfolio.Quantity("AAPL"))
		requireDecimal(t, "90.1", portfolio.Cash)
		requireDecimal(t, "100", portfolio.Positions["AAPL"].AverageCost)
	})

	t.Run("sell to empty target realizes loss and removes position", func(t *testing.T) {
		portfolio := domain.NewPortfolio(decimal.Zero)
		portfolio.Positions["B"] = &domain.Position{Symbol: "B", Quantity: 10, AverageCost: dec("100")}

		result, err := Rebalance(RebalanceInput{
			Portfolio:  portfolio,
			Target:     domain.NewTargetAllocation(),
			Prices:     map[string]decimal.Decimal{"B": dec("50")},
			Timestamp:  ts,
			Commission: CommissionModel{Rate: decimal.Zero, Minimum: dec("1")},
		})
		require.NoError(t, err)

		require.Len(t, result.Trades, 1)
		trade := result.Trades[0]
		require.Equal(t, domain.OrderSide_Sell, trade.Side)
		require.Equal(t, int64(10), trade.Quantity)
		require.NotNil(t, trade.RealizedPnl)
		requireDecimal(t, "-501", *trade.RealizedPnl)

		require.Empty(t, portfolio.Positions)
		requireDecimal(t, "499", portfolio.Cash)
	})

	t.Run("tiny position with no cash can still be liquidated", func(t *testing.T) {
		portfolio := domain.NewPortfolio(decimal.Zero)
		portfolio.Positions["PENNY"] = &domain.Position{Symbol: "PENNY", Quantity: 2, AverageCost: dec("1")}

		result, err := Rebalance(RebalanceInput{
			Portfolio:  portfolio,
			Target:     domain.NewTargetAllocation(),
			Prices:     map[string]decimal.Decimal{"PENNY": dec("0.25")},
			Timestamp:  ts,
			Commission: CommissionModel{Rate: dec("0.001"), Minimum: dec("1")},
		})
		require.NoError(t, err)

		require.Len(t, result.Trades, 1)
		trade := result.Trades[0]
		require.Equal(t, domain.OrderSide_Sell, trade.Side)
		require.Equal(t, int64(2), trade.Quantity)
		// commission is capped at the 0.5 the sale frees up
		requireDecimal(t, "0.5", trade.Commission)
		requireDecimal(t, "-2", *trade.RealizedPnl)

		require.Empty(t, portfolio.Positions)
		requireDecimal(t, "0", portfolio.Cash)
	})

	t.Run("cash is conserved across sells and buys", func(t *testing.T) {
		portfolio := domain.NewPortfolio(dec("1000"))
		portfolio.Positions["A"] = &domain.Position{Symbol: "A", Quantity: 80, AverageCost: dec("10")}
		target := domain.NewTargetAllocation()
		target.Weights["A"] = 0.25
		target.Weights["B"] = 0.75
		target.Ranking = []string{"B", "A"}

		cashBefore := portfolio.Cash
		result, err := Rebalance(RebalanceInput{
			Portfolio:  portfolio,
			Target:     target,
			Prices:     map[string]decimal.Decimal{"A": dec("20"), "B": dec("25")},
			Timestamp:  ts,
			Commission: commission,
		})
		require.NoError(t, err)
		require.Len(t, result.Orders, len(result.Trades))

		// sells come first
		require.Equal(t, domain.OrderSide_Sell, result.Trades[0].Side)
		require.Equal(t, "A", result.Trades[0].Symbol)

		bought, sold, fees := decimal.Zero, decimal.Zero, decimal.Zero
		for _, trade := range result.Trades {
			fees = fees.Add(trade.Commission)
			if trade.Side == domain.OrderSide_Buy {
				bought = bought.Add(trade.Notional())
			} else {
				sold = sold.Add(trade.Notional())
			}
		}
		require.True(t, portfolio.Cash.Add(bought).Equal(cashBefore.Add(sold).Sub(fees)))
		require.False(t, portfolio.Cash.IsNegative())
		require.NoError(t, portfolio.CheckInvariants())

		// total value 2600: A -> floor(650/20) = 32, B -> floor(1950/25) = 78
		require.Equal(t, int64(32), portfolio.Quantity("A"))
		require.LessOrEqual(t, portfolio.Quantity("B"), int64(78))
		require.Greater(t, portfolio.Quantity("B"), int64(70))
	})

	t.Run("missing price leaves portfolio untouched", func(t *testing.T) {
		portfolio := domain.NewPortfolio(dec("1000"))
		portfolio.Positions["A"] = &domain.Position{Symbol: "A", Quantity: 5, AverageCost: dec("10")}
		target := domain.NewTargetAllocation()
		target.Weights["B"] = 1
		target.Ranking = []string{"B"}

		_, err := Rebalance(RebalanceInput{
			Portfolio:  portfolio,
			Target:     target,
			Prices:     map[string]decimal.Decimal{"B": dec("10")},
			Timestamp:  ts,
			Commission: commission,
		})
		require.Error(t, err)
		require.True(t, domain.IsDataUnavailable(err))
		require.Equal(t, int64(5), portfolio.Quantity("A"))
		requireDecimal(t, "1000", portfolio.Cash)
	})

	t.Run("never buys more than cash covers", func(t *testing.T) {
		portfolio := domain.NewPortfolio(dec("100.5"))
		target := domain.NewTargetAllocation()
		target.Weights["A"] = 1
		target.Ranking = []string{"A"}

		result, err := Rebalance(RebalanceInput{
			Portfolio:  portfolio,
			Target:     target,
			Prices:     map[string]decimal.Decimal{"A": dec("50")},
			Timestamp:  ts,
			Commission: CommissionModel{Rate: decimal.Zero, Minimum: dec("5")},
		})
		require.NoError(t, err)
		// 2 shares would need 105 with the minimum commission
		require.Len(t, result.Trades, 1)
		require.Equal(t, int64(1), result.Trades[0].Quantity)
		requireDecimal(t, "45.5", portfolio.Cash)
	})
}
