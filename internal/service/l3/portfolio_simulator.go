package l3_service

import (
	"sort"
	"time"

	"maxtrade/internal/domain"

	"github.com/shopspring/decimal"
)

type CommissionModel struct {
	Rate    decimal.Decimal
	Minimum decimal.Decimal
}

// For is max(minimum, rate * notional)
func (c CommissionModel) For(notional decimal.Decimal) decimal.Decimal {
	return decimal.Max(c.Minimum, c.Rate.Mul(notional))
}

type RebalanceInput struct {
	Portfolio *domain.Portfolio
	Target    *domain.TargetAllocation
	// execution price per symbol; must cover held and target symbols
	Prices     map[string]decimal.Decimal
	Timestamp  time.Time
	Commission CommissionModel
}

type RebalanceResult struct {
	Orders []domain.Order
	Trades []domain.Trade
}

// RequiredSymbols is every symbol a rebalance needs a price for
func RequiredSymbols(portfolio *domain.Portfolio, target *domain.TargetAllocation) []string {
	seen := map[string]bool{}
	for _, symbol := range portfolio.HeldSymbols() {
		seen[symbol] = true
	}
	for symbol, w := range target.Weights {
		if w > 0 {
			seen[symbol] = true
		}
	}
	out := make([]string, 0, len(seen))
	for symbol := range seen {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Rebalance moves the portfolio toward target weights, long only and in
// whole shares. sells run before buys so their proceeds fund the buys.
// the portfolio is only replaced once every trade has been applied
func Rebalance(in RebalanceInput) (*RebalanceResult, error) {
	symbols := RequiredSymbols(in.Portfolio, in.Target)
	for _, symbol := range symbols {
		price, ok := in.Prices[symbol]
		if !ok || !price.IsPositive() {
			return nil, domain.NewDataUnavailableError("no execution price for %s on %s", symbol, in.Timestamp.Format(time.DateOnly))
		}
	}

	work := in.Portfolio.DeepCopy()
	totalValue, err := work.TotalValue(in.Prices)
	if err != nil {
		return nil, domain.NewDataUnavailableError("failed to value portfolio: %s", err.Error())
	}

	targetQuantity := map[string]int64{}
	for _, symbol := range symbols {
		w := decimal.NewFromFloat(in.Target.Weights[symbol])
		targetQuantity[symbol] = w.Mul(totalValue).Div(in.Prices[symbol]).Floor().IntPart()
	}

	result := &RebalanceResult{
		Orders: []domain.Order{},
		Trades: []domain.Trade{},
	}

	for _, symbol := range symbols {
		held := work.Quantity(symbol)
		delta := targetQuantity[symbol] - held
		if delta >= 0 {
			continue
		}
		// clamp so we never go short
		quantity := -delta
		if quantity > held {
			quantity = held
		}
		price := in.Prices[symbol]
		notional := price.Mul(decimal.NewFromInt(quantity))
		commission := in.Commission.For(notional)
		// a minimum commission above what the sale frees up takes
		// everything available, so any position can still be closed
		if available := work.Cash.Add(notional); commission.GreaterThan(available) {
			commission = available
		}

		position := work.Positions[symbol]
		realizedPnl := price.Sub(position.AverageCost).Mul(decimal.NewFromInt(quantity)).Sub(commission)

		work.Cash = work.Cash.Add(notional).Sub(commission)
		position.Quantity -= quantity
		if position.Quantity == 0 {
			delete(work.Positions, symbol)
		}

		result.add(symbol, domain.OrderSide_Sell, quantity, price, commission, &realizedPnl, in.Timestamp)
	}

	for _, symbol := range symbols {
		held := work.Quantity(symbol)
		delta := targetQuantity[symbol] - held
		if delta <= 0 {
			continue
		}
		price := in.Prices[symbol]
		quantity := affordableQuantity(work.Cash, price, in.Commission)
		if quantity > delta {
			quantity = delta
		}
		if quantity <= 0 {
			continue
		}

		notional := price.Mul(decimal.NewFromInt(quantity))
		commission := in.Commission.For(notional)
		work.Cash = work.Cash.Sub(notional).Sub(commission)

		position, ok := work.Positions[symbol]
		if !ok {
			position = &domain.Position{Symbol: symbol}
			work.Positions[symbol] = position
		}
		newQuantity := position.Quantity + quantity
		position.AverageCost = position.AverageCost.Mul(decimal.NewFromInt(position.Quantity)).
			Add(notional).
			Div(decimal.NewFromInt(newQuantity))
		position.Quantity = newQuantity

		result.add(symbol, domain.OrderSide_Buy, quantity, price, commission, nil, in.Timestamp)
	}

	work.Mark(in.Prices)
	if err := work.CheckInvariants(); err != nil {
		return nil, err
	}

	*in.Portfolio = *work
	return result, nil
}

// affordableQuantity is the largest q with price*q + commission(price*q) <= cash
func affordableQuantity(cash, price decimal.Decimal, c CommissionModel) int64 {
	if !cash.IsPositive() {
		return 0
	}
	byRate := cash.Div(price.Mul(decimal.NewFromInt(1).Add(c.Rate))).Floor().IntPart()
	byMinimum := cash.Sub(c.Minimum).Div(price).Floor().IntPart()
	q := byRate
	if byMinimum < q {
		q = byMinimum
	}
	// decimal division rounds; step down until the fill is affordable
	for q > 0 {
		notional := price.Mul(decimal.NewFromInt(q))
		if notional.Add(c.For(notional)).LessThanOrEqual(cash) {
			break
		}
		q--
	}
	return q
}

func (r *RebalanceResult) add(symbol string, side domain.OrderSide, quantity int64, price, commission decimal.Decimal, realizedPnl *decimal.Decimal, ts time.Time) {
	r.Orders = append(r.Orders, domain.Order{
		Symbol:         symbol,
		Side:           side,
		Quantity:       quantity,
		RequestedPrice: price,
		CreatedAt:      ts,
	})
	r.Trades = append(r.Trades, domain.Trade{
		Symbol:         symbol,
		Side:           side,
		Quantity:       quantity,
		RequestedPrice: price,
		FilledPrice:    price,
		Timestamp:      ts,
		Commission:     commission,
		RealizedPnl:    realizedPnl,
	})
}
