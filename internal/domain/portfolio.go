package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is the running simulation state of one backtest. it is
// owned by a single run and never shared
type Portfolio struct {
	Positions map[string]*Position `json:"positions"`
	Cash      decimal.Decimal      `json:"cash"`
}

func NewPortfolio(cash decimal.Decimal) *Portfolio {
	return &Portfolio{
		Positions: map[string]*Position{},
		Cash:      cash,
	}
}

// HeldSymbols is sorted so callers iterate deterministically
func (p Portfolio) HeldSymbols() []string {
	symbols := []string{}
	for symbol := range p.Positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

func (p Portfolio) Quantity(symbol string) int64 {
	if position, ok := p.Positions[symbol]; ok {
		return position.Quantity
	}
	return 0
}

func (p Portfolio) DeepCopy() *Portfolio {
	newPortfolio := &Portfolio{
		Cash:      p.Cash,
		Positions: map[string]*Position{},
	}
	for symbol, position := range p.Positions {
		newPortfolio.Positions[symbol] = position.DeepCopy()
	}

	return newPortfolio
}

// TotalValue marks every position with priceMap. it fails rather than
// guessing when a held symbol has no price
func (p Portfolio) TotalValue(priceMap map[string]decimal.Decimal) (decimal.Decimal, error) {
	totalValue := p.Cash
	for symbol, position := range p.Positions {
		price, ok := priceMap[symbol]
		if !ok {
			return decimal.Zero, fmt.Errorf("cannot compute portfolio total value: price map missing %s", symbol)
		}
		totalValue = totalValue.Add(price.Mul(decimal.NewFromInt(position.Quantity)))
	}

	return totalValue, nil
}

// MarkedValue uses each position's last known price
func (p Portfolio) MarkedValue() decimal.Decimal {
	totalValue := p.Cash
	for _, position := range p.Positions {
		totalValue = totalValue.Add(position.MarketValue())
	}
	return totalValue
}

// Mark updates last known prices for held symbols present in priceMap
func (p *Portfolio) Mark(priceMap map[string]decimal.Decimal) {
	for symbol, position := range p.Positions {
		if price, ok := priceMap[symbol]; ok {
			position.LastPrice = price
		}
	}
}

// CheckInvariants reports simulator bugs: negative cash or quantities
func (p Portfolio) CheckInvariants() error {
	if p.Cash.IsNegative() {
		return NewInternalInvariantError("cash went negative: %s", p.Cash.String())
	}
	for _, symbol := range p.HeldSymbols() {
		position := p.Positions[symbol]
		if position.Quantity < 0 {
			return NewInternalInvariantError("position %s has negative quantity %d", symbol, position.Quantity)
		}
		if position.Quantity == 0 {
			return NewInternalInvariantError("position %s has zero quantity but was not removed", symbol)
		}
		if position.AverageCost.IsNegative() {
			return NewInternalInvariantError("position %s has negative average cost %s", symbol, position.AverageCost.String())
		}
	}
	return nil
}

type Position struct {
	Symbol      string          `json:"symbol"`
	Quantity    int64           `json:"quantity"`
	AverageCost decimal.Decimal `json:"averageCost"`
	LastPrice   decimal.Decimal `json:"lastPrice"`
}

func (p Position) DeepCopy() *Position {
	return &Position{
		Symbol:      p.Symbol,
		Quantity:    p.Quantity,
		AverageCost: p.AverageCost,
		LastPrice:   p.LastPrice,
	}
}

func (p Position) MarketValue() decimal.Decimal {
	return p.LastPrice.Mul(decimal.NewFromInt(p.Quantity))
}

type OrderSide string

const (
	OrderSide_Buy  OrderSide = "buy"
	OrderSide_Sell OrderSide = "sell"
)

// Order is immutable once created
type Order struct {
	Symbol         string          `json:"symbol"`
	Side           OrderSide       `json:"side"`
	Quantity       int64           `json:"quantity"`
	RequestedPrice decimal.Decimal `json:"requestedPrice"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func (o Order) Notional() decimal.Decimal {
	return o.RequestedPrice.Mul(decimal.NewFromInt(o.Quantity))
}

// Trade is a filled order. RealizedPnl is only set for sells
type Trade struct {
	Symbol         string           `json:"symbol"`
	Side           OrderSide        `json:"side"`
	Quantity       int64            `json:"quantity"`
	RequestedPrice decimal.Decimal  `json:"requestedPrice"`
	FilledPrice    decimal.Decimal  `json:"filledPrice"`
	Timestamp      time.Time        `json:"timestamp"`
	Commission     decimal.Decimal  `json:"commission"`
	RealizedPnl    *decimal.Decimal `json:"realizedPnl,omitempty"`
}

func (t Trade) Notional() decimal.Decimal {
	return t.FilledPrice.Mul(decimal.NewFromInt(t.Quantity))
}

func (t Trade) IsClosing() bool {
	return t.Side == OrderSide_Sell && t.RealizedPnl != nil
}
