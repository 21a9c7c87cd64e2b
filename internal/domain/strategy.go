package domain

import (
	"fmt"
	"strings"
)

type PositionSizing string

const (
	PositionSizing_EqualWeight PositionSizing = "equal_weight"
	PositionSizing_Percent     PositionSizing = "percent"
	PositionSizing_Fixed       PositionSizing = "fixed"
	PositionSizing_Kelly       PositionSizing = "kelly"
)

func NewPositionSizing(s string) (PositionSizing, error) {
	switch PositionSizing(strings.ToLower(strings.TrimSpace(s))) {
	case "", PositionSizing_EqualWeight:
		return PositionSizing_EqualWeight, nil
	case PositionSizing_Percent:
		return PositionSizing_Percent, nil
	case PositionSizing_Fixed:
		return PositionSizing_Fixed, nil
	case PositionSizing_Kelly:
		return PositionSizing_Kelly, nil
	}
	return "", fmt.Errorf("invalid position sizing %q", s)
}

type RebalanceFrequency string

const (
	RebalanceFrequency_Daily     RebalanceFrequency = "daily"
	RebalanceFrequency_Weekly    RebalanceFrequency = "weekly"
	RebalanceFrequency_Monthly   RebalanceFrequency = "monthly"
	RebalanceFrequency_Quarterly RebalanceFrequency = "quarterly"
	RebalanceFrequency_Never     RebalanceFrequency = "never"
)

func NewRebalanceFrequency(s string) (RebalanceFrequency, error) {
	switch RebalanceFrequency(strings.ToLower(strings.TrimSpace(s))) {
	case RebalanceFrequency_Daily:
		return RebalanceFrequency_Daily, nil
	case RebalanceFrequency_Weekly:
		return RebalanceFrequency_Weekly, nil
	case "", RebalanceFrequency_Monthly:
		return RebalanceFrequency_Monthly, nil
	case RebalanceFrequency_Quarterly:
		return RebalanceFrequency_Quarterly, nil
	case RebalanceFrequency_Never:
		return RebalanceFrequency_Never, nil
	}
	return "", fmt.Errorf("invalid rebalance frequency %q", s)
}

type ExecutionPrice string

const (
	// fills at the open of the bar after the decision bar
	ExecutionPrice_NextOpen ExecutionPrice = "next_open"
	// fills at the close of the decision bar
	ExecutionPrice_Close ExecutionPrice = "close"
)

func NewExecutionPrice(s string) (ExecutionPrice, error) {
	switch ExecutionPrice(strings.ToLower(strings.TrimSpace(s))) {
	case "", ExecutionPrice_NextOpen:
		return ExecutionPrice_NextOpen, nil
	case ExecutionPrice_Close:
		return ExecutionPrice_Close, nil
	}
	return "", fmt.Errorf("invalid execution price %q", s)
}

const DefaultMaxPositions = 10

// StrategyConfig controls how a strategy turns factor snapshots into
// target positions. zero values fall back to engine defaults
type StrategyConfig struct {
	StrategyID         string             `json:"strategyId"`
	MaxPositions       int                `json:"maxPositions,omitempty"`
	PositionSizing     PositionSizing     `json:"positionSizing"`
	RebalanceFrequency RebalanceFrequency `json:"rebalanceFrequency"`

	// percent sizing: per-position weight in percent (0, 100]
	PositionPercent float64 `json:"positionPercent,omitempty"`
	// fixed sizing: dollars per position
	PositionAmount float64 `json:"positionAmount,omitempty"`
	// kelly sizing: number of trailing daily returns used for edge/variance
	KellyLookback int `json:"kellyLookback,omitempty"`

	Criteria []Criterion `json:"criteria,omitempty"`

	CommissionRate    *float64       `json:"commissionRate,omitempty"`
	CommissionMinimum *float64       `json:"commissionMinimum,omitempty"`
	ExecutionPrice    ExecutionPrice `json:"executionPrice,omitempty"`
}

// Validate checks the fields that do not depend on the strategy registry
func (c StrategyConfig) Validate() error {
	if c.MaxPositions < 0 {
		return fmt.Errorf("maxPositions must be >= 1 when set, got %d", c.MaxPositions)
	}
	if _, err := NewPositionSizing(string(c.PositionSizing)); err != nil {
		return err
	}
	if _, err := NewRebalanceFrequency(string(c.RebalanceFrequency)); err != nil {
		return err
	}
	if _, err := NewExecutionPrice(string(c.ExecutionPrice)); err != nil {
		return err
	}
	switch c.PositionSizing {
	case PositionSizing_Percent:
		if c.PositionPercent <= 0 || c.PositionPercent > 100 {
			return fmt.Errorf("percent sizing requires positionPercent in (0, 100], got %f", c.PositionPercent)
		}
	case PositionSizing_Fixed:
		if c.PositionAmount <= 0 {
			return fmt.Errorf("fixed sizing requires positionAmount > 0, got %f", c.PositionAmount)
		}
	}
	if c.KellyLookback < 0 {
		return fmt.Errorf("kellyLookback must be >= 0, got %d", c.KellyLookback)
	}
	if c.CommissionRate != nil && (*c.CommissionRate < 0 || *c.CommissionRate >= 1) {
		return fmt.Errorf("commissionRate must be in [0, 1), got %f", *c.CommissionRate)
	}
	if c.CommissionMinimum != nil && *c.CommissionMinimum < 0 {
		return fmt.Errorf("commissionMinimum must be >= 0, got %f", *c.CommissionMinimum)
	}
	for _, criterion := range c.Criteria {
		if err := criterion.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c StrategyConfig) EffectiveMaxPositions() int {
	if c.MaxPositions <= 0 {
		return DefaultMaxPositions
	}
	return c.MaxPositions
}

// TargetAllocation is the output of one strategy evaluation. Ranking
// lists the selected symbols best first
type TargetAllocation struct {
	Weights map[string]float64 `json:"weights"`
	Ranking []string           `json:"ranking"`
	Scores  map[string]float64 `json:"scores"`
}

func NewTargetAllocation() *TargetAllocation {
	return &TargetAllocation{
		Weights: map[string]float64{},
		Ranking: []string{},
		Scores:  map[string]float64{},
	}
}

func (t TargetAllocation) IsEmpty() bool {
	return len(t.Weights) == 0
}

func (t TargetAllocation) TotalWeight() float64 {
	sum := 0.0
	for _, symbol := range t.Ranking {
		sum += t.Weights[symbol]
	}
	return sum
}
