package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"maxtrade/internal/domain"
	"maxtrade/internal/logger"
	"maxtrade/internal/repository"
	l1_service "maxtrade/internal/service/l1"
	l2_service "maxtrade/internal/service/l2"
	l3_service "maxtrade/internal/service/l3"
	"maxtrade/internal/util"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

/**

EngineApp is the boundary the api and cli talk to. it validates input,
caps concurrent runs, applies the wall-clock limit and persists results.
each run gets its own portfolio inside the backtest service, so runs
never share mutable state

*/

type EngineApp interface {
	RunBacktest(ctx context.Context, in RunBacktestInput) (*domain.BacktestResult, error)
	RunBacktests(ctx context.Context, in []RunBacktestInput) ([]*domain.BacktestResult, error)
	Screen(ctx context.Context, in ScreenInput) ([]domain.ScreenResult, error)
	ComputeFactors(ctx context.Context, in ComputeFactorsInput) (*domain.FactorSnapshot, error)
	GetBacktest(ctx context.Context, id uuid.UUID) (*domain.BacktestResult, error)
	ListBacktests(ctx context.Context, limit int) ([]repository.BacktestResultSummary, error)
	ListStrategies() []l3_service.Strategy
}

type RunBacktestInput struct {
	Symbols        []string              `json:"symbols"`
	StartDate      time.Time             `json:"startDate"`
	EndDate        time.Time             `json:"endDate"`
	InitialCapital float64               `json:"initialCapital"`
	Config         domain.StrategyConfig `json:"config"`
}

type ScreenInput struct {
	// empty screens every symbol the bar repository knows
	Symbols  []string
	Criteria []domain.Criterion
	Limit    int
	AsOf     *time.Time
}

type ComputeFactorsInput struct {
	Symbol string
	// empty means every category
	Categories []string
	AsOf       *time.Time
}

type EngineSettings struct {
	MaxConcurrentRuns int
	RunTimeout        time.Duration
	WarmupDays        int
}

type engineAppHandler struct {
	BarRepository            repository.BarRepository
	BacktestResultRepository repository.BacktestResultRepository
	PriceService             l1_service.PriceService
	FactorService            l2_service.FactorService
	StrategyService          l3_service.StrategyService
	BacktestService          l3_service.BacktestService
	ScreenerService          l3_service.ScreenerService
	Settings                 EngineSettings
	Now                      func() time.Time

	sem chan struct{}
}

// NewEngineApp wires the services together. backtestResultRepository
// may be nil, in which case results are not persisted
func NewEngineApp(
	barRepository repository.BarRepository,
	backtestResultRepository repository.BacktestResultRepository,
	priceService l1_service.PriceService,
	factorService l2_service.FactorService,
	strategyService l3_service.StrategyService,
	backtestService l3_service.BacktestService,
	screenerService l3_service.ScreenerService,
	settings EngineSettings,
) EngineApp {
	if settings.MaxConcurrentRuns < 1 {
		settings.MaxConcurrentRuns = 1
	}
	return &engineAppHandler{
		BarRepository:            barRepository,
		BacktestResultRepository: backtestResultRepository,
		PriceService:             priceService,
		FactorService:            factorService,
		StrategyService:          strategyService,
		BacktestService:          backtestService,
		ScreenerService:          screenerService,
		Settings:                 settings,
		Now:                      time.Now,
		sem:                      make(chan struct{}, settings.MaxConcurrentRuns),
	}
}

// BacktestID is derived from the inputs so identical requests map to
// the same stored result
func BacktestID(in RunBacktestInput) (uuid.UUID, error) {
	hash, err := util.HashJson(in)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, hash), nil
}

func (h engineAppHandler) RunBacktest(ctx context.Context, in RunBacktestInput) (*domain.BacktestResult, error) {
	in.Symbols = normalizeSymbols(in.Symbols)
	in.Config.StrategyID = strings.ToLower(strings.TrimSpace(in.Config.StrategyID))
	for _, symbol := range in.Symbols {
		if err := ValidateSymbol(symbol); err != nil {
			return nil, err
		}
	}

	runInput := l3_service.RunBacktestInput{
		Symbols:        in.Symbols,
		Start:          in.StartDate,
		End:            in.EndDate,
		InitialCapital: in.InitialCapital,
		Config:         in.Config,
	}
	if err := l3_service.ValidateRunBacktestInput(runInput); err != nil {
		return nil, err
	}
	id, err := BacktestID(in)
	if err != nil {
		return nil, fmt.Errorf("failed to derive backtest id: %w", err)
	}
	runInput.ID = id

	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	case <-ctx.Done():
		return nil, domain.ErrorFromContext(ctx)
	}

	if h.Settings.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Settings.RunTimeout)
		defer cancel()
	}

	profile, endProfile := domain.NewProfile()
	ctx = domain.NewContextWithProfile(ctx, profile)
	log := logger.FromContext(ctx).With("backtestId", id.String())
	ctx = logger.NewContext(ctx, log)

	result, err := h.BacktestService.Run(ctx, runInput)
	endProfile()
	if err != nil {
		return nil, err
	}

	if profileJson, err := profile.ToJsonBytes(); err == nil {
		log.Debugf("profile (%dms): %s", *profile.TotalMs, string(profileJson))
	}

	if h.BacktestResultRepository != nil {
		// the run's own deadline may have fired; still record the outcome
		if err := h.BacktestResultRepository.Add(context.WithoutCancel(ctx), *result); err != nil {
			return nil, fmt.Errorf("failed to persist backtest result: %w", err)
		}
	}

	return result, nil
}

// RunBacktests runs independent backtests concurrently. the semaphore
// in RunBacktest still bounds how many simulate at once
func (h engineAppHandler) RunBacktests(ctx context.Context, in []RunBacktestInput) ([]*domain.BacktestResult, error) {
	if len(in) == 0 {
		return nil, domain.NewValidationError("no backtests requested")
	}
	for i, r := range in {
		err := l3_service.ValidateRunBacktestInput(l3_service.RunBacktestInput{
			Symbols:        r.Symbols,
			Start:          r.StartDate,
			End:            r.EndDate,
			InitialCapital: r.InitialCapital,
			Config:         r.Config,
		})
		if err != nil {
			return nil, domain.NewValidationError("backtest %d: %s", i, err.Error())
		}
	}

	results := make([]*domain.BacktestResult, len(in))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range in {
		i, r := i, r
		g.Go(func() error {
			result, err := h.RunBacktest(gctx, r)
			if err != nil {
				return fmt.Errorf("backtest %d: %w", i, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (h engineAppHandler) Screen(ctx context.Context, in ScreenInput) ([]domain.ScreenResult, error) {
	if in.Limit < 1 || in.Limit > 100 {
		return nil, domain.NewValidationError("limit must be between 1 and 100, got %d", in.Limit)
	}
	universe := normalizeSymbols(in.Symbols)
	if len(universe) == 0 {
		symbols, err := h.BarRepository.ListSymbols(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list symbols: %w", err)
		}
		universe = symbols
	}

	profile, endProfile := domain.NewProfile()
	ctx = domain.NewContextWithProfile(ctx, profile)
	defer endProfile()

	return h.ScreenerService.Screen(ctx, l3_service.ScreenInput{
		Universe: universe,
		Criteria: in.Criteria,
		Limit:    in.Limit,
		AsOf:     in.AsOf,
	})
}

// ComputeFactors is a point-in-time snapshot for one symbol, as of the
// newest bar unless AsOf is given
func (h engineAppHandler) ComputeFactors(ctx context.Context, in ComputeFactorsInput) (*domain.FactorSnapshot, error) {
	symbol := strings.ToUpper(strings.TrimSpace(in.Symbol))
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	names, err := domain.FactorNamesForCategories(in.Categories)
	if err != nil {
		return nil, domain.ValidationError{Err: err}
	}
	factors, err := h.FactorService.ResolveFactors(names)
	if err != nil {
		return nil, err
	}

	end := h.Now().UTC()
	if in.AsOf != nil {
		end = *in.AsOf
	}
	lookback := h.FactorService.RequiredBars(factors)
	warmup := h.Settings.WarmupDays
	if minWarmup := lookback*2 + 10; warmup < minWarmup {
		warmup = minWarmup
	}

	pc, err := h.PriceService.LoadPriceCache(ctx, l1_service.LoadPriceCacheInput{
		Symbols:    []string{symbol},
		Start:      end,
		End:        end,
		WarmupDays: warmup,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load prices for %s: %w", symbol, err)
	}

	asOf := end
	if in.AsOf == nil {
		latest, ok := pc.LatestTimestamp()
		if !ok {
			return nil, domain.NewNotFoundError("no bars for %s", symbol)
		}
		asOf = latest
	}
	window := pc.Window(symbol, asOf, lookback)
	if len(window) == 0 {
		return nil, domain.NewNotFoundError("no bars for %s on or before %s", symbol, util.FormatDate(asOf))
	}

	return h.FactorService.Compute(ctx, l2_service.ComputeFactorsInput{
		Symbol:  symbol,
		Window:  window,
		AsOf:    asOf,
		Factors: factors,
	})
}

func (h engineAppHandler) GetBacktest(ctx context.Context, id uuid.UUID) (*domain.BacktestResult, error) {
	if h.BacktestResultRepository == nil {
		return nil, domain.NewNotFoundError("backtest results are not persisted")
	}
	return h.BacktestResultRepository.Get(ctx, id)
}

func (h engineAppHandler) ListBacktests(ctx context.Context, limit int) ([]repository.BacktestResultSummary, error) {
	if h.BacktestResultRepository == nil {
		return []repository.BacktestResultSummary{}, nil
	}
	if limit < 1 || limit > 100 {
		return nil, domain.NewValidationError("limit must be between 1 and 100, got %d", limit)
	}
	return h.BacktestResultRepository.List(ctx, limit)
}

func (h engineAppHandler) ListStrategies() []l3_service.Strategy {
	return h.StrategyService.List()
}

// ValidateSymbol enforces the 1-10 character symbol rule
func ValidateSymbol(symbol string) error {
	if len(symbol) < 1 || len(symbol) > 10 {
		return domain.NewValidationError("symbol %q must be 1-10 characters", symbol)
	}
	return nil
}

func normalizeSymbols(symbols []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
