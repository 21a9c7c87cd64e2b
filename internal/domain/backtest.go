package domain

import (
	"time"

	"github.com/google/uuid"
)

type BacktestStatus string

const (
	BacktestStatus_Pending   BacktestStatus = "pending"
	BacktestStatus_Running   BacktestStatus = "running"
	BacktestStatus_Completed BacktestStatus = "completed"
	BacktestStatus_Failed    BacktestStatus = "failed"
)

type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

type FailureReason struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type BacktestMetrics struct {
	TotalReturn          float64 `json:"totalReturn"`
	SharpeRatio          float64 `json:"sharpeRatio"`
	SharpeAvailable      bool    `json:"sharpeAvailable"`
	MaxDrawdown          float64 `json:"maxDrawdown"`
	WinRate              float64 `json:"winRate"`
	TotalTrades          int     `json:"totalTrades"`
	ClosedTrades         int     `json:"closedTrades"`
	WinningTrades        int     `json:"winningTrades"`
	LosingTrades         int     `json:"losingTrades"`
	FinalEquity          float64 `json:"finalEquity"`
	AnnualizedReturn     float64 `json:"annualizedReturn"`
	AnnualizedVolatility float64 `json:"annualizedVolatility"`
	TotalCommission      float64 `json:"totalCommission"`
	RebalanceCount       int     `json:"rebalanceCount"`
	SkippedRebalances    int     `json:"skippedRebalances"`
}

// BacktestResult is the persisted artifact of one run. field names are
// part of the external contract
type BacktestResult struct {
	ID             uuid.UUID        `json:"id"`
	StrategyID     string           `json:"strategyId"`
	Symbols        []string         `json:"symbols"`
	StartDate      time.Time        `json:"startDate"`
	EndDate        time.Time        `json:"endDate"`
	InitialCapital float64          `json:"initialCapital"`
	Config         StrategyConfig   `json:"config"`
	Status         BacktestStatus   `json:"status"`
	Failure        *FailureReason   `json:"failure,omitempty"`
	Metrics        *BacktestMetrics `json:"metrics,omitempty"`
	EquityCurve    []EquityPoint    `json:"equityCurve"`
	Trades         []Trade          `json:"trades"`
}

func (r BacktestResult) Failed() bool {
	return r.Status == BacktestStatus_Failed
}
