package l2_service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"maxtrade/internal/domain"
	"maxtrade/internal/repository"
)

type FactorDefaults struct {
	MomentumPeriod   int
	RsiPeriod        int
	VolatilityPeriod int
}

// FactorService computes factor snapshots. each value depends only on
// the bars in the window with timestamp <= AsOf
type FactorService interface {
	Compute(ctx context.Context, in ComputeFactorsInput) (*domain.FactorSnapshot, error)
	ComputeMany(ctx context.Context, in ComputeManyInput) (map[string]*domain.FactorSnapshot, error)
	ResolveFactors(names []string) ([]domain.FactorSpec, error)
	RequiredBars(factors []domain.FactorSpec) int
}

type ComputeFactorsInput struct {
	Symbol  string
	Window  []domain.Bar
	AsOf    time.Time
	Factors []domain.FactorSpec
}

type factorServiceHandler struct {
	FundamentalsRepository repository.FundamentalsRepository
	Defaults               FactorDefaults
}

func NewFactorService(fundamentalsRepository repository.FundamentalsRepository, defaults FactorDefaults) FactorService {
	return &factorServiceHandler{
		FundamentalsRepository: fundamentalsRepository,
		Defaults:               defaults,
	}
}

func (h factorServiceHandler) period(spec domain.FactorSpec) int {
	if spec.Period > 0 {
		return spec.Period
	}
	switch spec.Kind {
	case domain.FactorKind_Momentum:
		return h.Defaults.MomentumPeriod
	case domain.FactorKind_Rsi:
		return h.Defaults.RsiPeriod
	case domain.FactorKind_Volatility:
		return h.Defaults.VolatilityPeriod
	}
	return 0
}

// ResolveFactors parses and dedupes factor names, keeping input order
func (h factorServiceHandler) ResolveFactors(names []string) ([]domain.FactorSpec, error) {
	seen := map[string]bool{}
	out := []domain.FactorSpec{}
	for _, name := range names {
		spec, err := domain.ParseFactorName(name)
		if err != nil {
			return nil, domain.ValidationError{Err: err}
		}
		if seen[spec.Name] {
			continue
		}
		seen[spec.Name] = true
		out = append(out, *spec)
	}
	return out, nil
}

// RequiredBars is how many trailing bars Compute needs for every factor
// in factors to be available
func (h factorServiceHandler) RequiredBars(factors []domain.FactorSpec) int {
	required := 1
	for _, f := range factors {
		n := 0
		switch f.Kind {
		case domain.FactorKind_Momentum, domain.FactorKind_Rsi, domain.FactorKind_Volatility:
			n = h.period(f) + 1
		case domain.FactorKind_Macd:
			n = macdWindow
		}
		if n > required {
			required = n
		}
	}
	return required
}

func (h factorServiceHandler) Compute(ctx context.Context, in ComputeFactorsInput) (*domain.FactorSnapshot, error) {
	snapshot := domain.NewFactorSnapshot(in.Symbol, in.AsOf)

	// a caller handing us future bars is a bug upstream; drop them
	// rather than leak them into a value
	window := in.Window
	idx := sort.Search(len(window), func(i int) bool {
		return window[i].Timestamp.After(in.AsOf)
	})
	window = window[:idx]
	closes := domain.PriceSeries{Symbol: in.Symbol, Bars: window}.Closes()

	var (
		fundamentals       *domain.Fundamentals
		fundamentalsLoaded bool
	)

	for _, spec := range in.Factors {
		var value *float64
		switch spec.Kind {
		case domain.FactorKind_Momentum:
			value = momentum(closes, h.period(spec))
		case domain.FactorKind_Rsi:
			value = rsi(closes, h.period(spec))
		case domain.FactorKind_Macd:
			value = macd(closes)
		case domain.FactorKind_Volatility:
			value = annualizedVolatility(closes, h.period(spec))
		case domain.FactorKind_PeRatio, domain.FactorKind_PbRatio, domain.FactorKind_Roe:
			if !fundamentalsLoaded {
				f, err := h.loadFundamentals(ctx, in.Symbol, in.AsOf)
				if err != nil {
					return nil, err
				}
				fundamentals = f
				fundamentalsLoaded = true
			}
			value = fundamentalValue(fundamentals, spec.Kind)
		default:
			return nil, fmt.Errorf("unsupported factor kind %s", spec.Kind)
		}
		snapshot.Set(spec.Name, value)
	}

	return snapshot, nil
}

func (h factorServiceHandler) loadFundamentals(ctx context.Context, symbol string, asOf time.Time) (*domain.Fundamentals, error) {
	if h.FundamentalsRepository == nil {
		return nil, nil
	}
	f, err := h.FundamentalsRepository.Get(ctx, symbol, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to get fundamentals for %s: %w", symbol, err)
	}
	// a snapshot dated after asOf would be look-ahead
	if f != nil && f.AsOf.After(asOf) {
		return nil, nil
	}
	return f, nil
}

func fundamentalValue(f *domain.Fundamentals, kind domain.FactorKind) *float64 {
	if f == nil {
		return nil
	}
	var v *float64
	switch kind {
	case domain.FactorKind_PeRatio:
		v = f.PeRatio
	case domain.FactorKind_PbRatio:
		v = f.PbRatio
	case domain.FactorKind_Roe:
		v = f.Roe
	}
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
