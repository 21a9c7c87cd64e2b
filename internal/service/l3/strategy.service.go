package l3_service

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"maxtrade/internal/config"
	"maxtrade/internal/domain"
	l2_service "maxtrade/internal/service/l2"

	"github.com/shopspring/decimal"
)

// Strategy is one named evaluator variant. all strategies share the
// weighted-criteria evaluation and differ only in criteria and defaults
type Strategy struct {
	ID          string                `json:"id"`
	Description string                `json:"description"`
	Criteria    []domain.Criterion    `json:"criteria"`
	Defaults    domain.StrategyConfig `json:"defaults"`
	// custom strategies carry no criteria of their own
	RequiresCriteria bool `json:"requiresCriteria"`
}

func builtinStrategies() []Strategy {
	return []Strategy{
		{
			ID:          "momentum",
			Description: "trailing price momentum",
			Criteria: []domain.Criterion{
				{Factor: string(domain.FactorKind_Momentum), Weight: 1},
			},
		},
		{
			ID:          "value",
			Description: "cheap on earnings and book",
			Criteria: []domain.Criterion{
				{Expression: "1 / pe_ratio", Name: "earnings_yield", Weight: 0.6},
				{Expression: "1 / pb_ratio", Name: "book_yield", Weight: 0.4},
			},
		},
		{
			ID:          "quality",
			Description: "high return on equity, low volatility",
			Criteria: []domain.Criterion{
				{Factor: string(domain.FactorKind_Roe), Weight: 0.7},
				{Expression: "1 / volatility", Name: "inverse_volatility", Weight: 0.3},
			},
		},
		{
			ID:          "low_volatility",
			Description: "lowest annualized volatility",
			Criteria: []domain.Criterion{
				{Expression: "1 / volatility", Name: "inverse_volatility", Weight: 1},
			},
		},
		{
			ID:          "equal_weight",
			Description: "hold the universe equally, alphabetically capped at maxPositions",
			Criteria:    []domain.Criterion{},
		},
		{
			ID:               "custom",
			Description:      "criteria supplied in the request",
			Criteria:         []domain.Criterion{},
			RequiresCriteria: true,
		},
	}
}

func StrategyFromPreset(p config.StrategyPreset) Strategy {
	defaults := p.ToConfig()
	criteria := defaults.Criteria
	defaults.Criteria = nil
	return Strategy{
		ID:          p.ID,
		Description: p.Description,
		Criteria:    criteria,
		Defaults:    defaults,
	}
}

type EngineDefaults struct {
	MaxPositions      int
	ExecutionPrice    domain.ExecutionPrice
	CommissionRate    float64
	CommissionMinimum float64
	KellyLookback     int
}

// ResolvedStrategy is a request config with every default filled in
type ResolvedStrategy struct {
	Strategy   Strategy
	Config     domain.StrategyConfig
	Scorer     *l2_service.CriteriaScorer
	Commission CommissionModel
}

type StrategyService interface {
	Register(s Strategy) error
	Get(id string) (*Strategy, error)
	List() []Strategy
	Resolve(cfg domain.StrategyConfig) (*ResolvedStrategy, error)
}

type strategyServiceHandler struct {
	mu         *sync.RWMutex
	strategies map[string]Strategy
	Defaults   EngineDefaults
}

func NewStrategyService(defaults EngineDefaults, presets []Strategy) (StrategyService, error) {
	h := strategyServiceHandler{
		mu:         &sync.RWMutex{},
		strategies: map[string]Strategy{},
		Defaults:   defaults,
	}
	for _, s := range builtinStrategies() {
		if err := h.Register(s); err != nil {
			return nil, err
		}
	}
	for _, s := range presets {
		if err := h.Register(s); err != nil {
			return nil, fmt.Errorf("failed to register strategy preset: %w", err)
		}
	}
	return h, nil
}

func (h strategyServiceHandler) Register(s Strategy) error {
	id := strings.ToLower(strings.TrimSpace(s.ID))
	if id == "" {
		return domain.NewConfigurationError("strategy id is required")
	}
	if _, err := l2_service.NewCriteriaScorer(s.Criteria); err != nil {
		return fmt.Errorf("strategy %s has invalid criteria: %w", id, err)
	}
	s.ID = id

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.strategies[id]; ok {
		return domain.NewConfigurationError("strategy %s is already registered", id)
	}
	h.strategies[id] = s
	return nil
}

func (h strategyServiceHandler) Get(id string) (*Strategy, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.strategies[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return nil, domain.NewConfigurationError("unknown strategy %q", id)
	}
	return &s, nil
}

func (h strategyServiceHandler) List() []Strategy {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Strategy, 0, len(h.strategies))
	for _, s := range h.strategies {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// Resolve layers request fields over strategy defaults over engine
// defaults. request criteria replace the strategy's criteria entirely
func (h strategyServiceHandler) Resolve(cfg domain.StrategyConfig) (*ResolvedStrategy, error) {
	strategy, err := h.Get(cfg.StrategyID)
	if err != nil {
		return nil, err
	}

	out := cfg
	out.StrategyID = strategy.ID
	if out.MaxPositions == 0 {
		out.MaxPositions = strategy.Defaults.MaxPositions
	}
	if out.MaxPositions == 0 {
		out.MaxPositions = h.Defaults.MaxPositions
	}
	if out.PositionSizing == "" {
		out.PositionSizing = strategy.Defaults.PositionSizing
		if out.PositionPercent == 0 {
			out.PositionPercent = strategy.Defaults.PositionPercent
		}
		if out.PositionAmount == 0 {
			out.PositionAmount = strategy.Defaults.PositionAmount
		}
	}
	if out.RebalanceFrequency == "" {
		out.RebalanceFrequency = strategy.Defaults.RebalanceFrequency
	}
	if out.ExecutionPrice == "" {
		out.ExecutionPrice = h.Defaults.ExecutionPrice
	}
	if out.KellyLookback == 0 {
		out.KellyLookback = h.Defaults.KellyLookback
	}
	if len(out.Criteria) == 0 {
		out.Criteria = strategy.Criteria
	}
	if strategy.RequiresCriteria && len(out.Criteria) == 0 {
		return nil, domain.NewConfigurationError("strategy %s requires criteria", strategy.ID)
	}

	if out.PositionSizing, err = domain.NewPositionSizing(string(out.PositionSizing)); err != nil {
		return nil, domain.ConfigurationError{Err: err}
	}
	if out.RebalanceFrequency, err = domain.NewRebalanceFrequency(string(out.RebalanceFrequency)); err != nil {
		return nil, domain.ConfigurationError{Err: err}
	}
	if out.ExecutionPrice, err = domain.NewExecutionPrice(string(out.ExecutionPrice)); err != nil {
		return nil, domain.ConfigurationError{Err: err}
	}
	if err := out.Validate(); err != nil {
		return nil, domain.ConfigurationError{Err: err}
	}

	scorer, err := l2_service.NewCriteriaScorer(out.Criteria)
	if err != nil {
		return nil, err
	}

	commission := CommissionModel{
		Rate:    decimal.NewFromFloat(h.Defaults.CommissionRate),
		Minimum: decimal.NewFromFloat(h.Defaults.CommissionMinimum),
	}
	if out.CommissionRate != nil {
		commission.Rate = decimal.NewFromFloat(*out.CommissionRate)
	}
	if out.CommissionMinimum != nil {
		commission.Minimum = decimal.NewFromFloat(*out.CommissionMinimum)
	}

	return &ResolvedStrategy{
		Strategy:   *strategy,
		Config:     out,
		Scorer:     scorer,
		Commission: commission,
	}, nil
}
