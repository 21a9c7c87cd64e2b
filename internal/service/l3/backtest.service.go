package l3_service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"maxtrade/internal/domain"
	"maxtrade/internal/logger"
	l1_service "maxtrade/internal/service/l1"
	l2_service "maxtrade/internal/service/l2"
	"maxtrade/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BacktestSettings struct {
	// runs longer than this many trading days fail with TIMEOUT
	MaxBars    int
	WarmupDays int
}

type RunBacktestInput struct {
	ID             uuid.UUID
	Symbols        []string
	Start          time.Time
	End            time.Time
	InitialCapital float64
	Config         domain.StrategyConfig
}

type BacktestService interface {
	Run(ctx context.Context, in RunBacktestInput) (*domain.BacktestResult, error)
}

type backtestServiceHandler struct {
	PriceService    l1_service.PriceService
	FactorService   l2_service.FactorService
	StrategyService StrategyService
	Settings        BacktestSettings
}

func NewBacktestService(
	priceService l1_service.PriceService,
	factorService l2_service.FactorService,
	strategyService StrategyService,
	settings BacktestSettings,
) BacktestService {
	return &backtestServiceHandler{
		PriceService:    priceService,
		FactorService:   factorService,
		StrategyService: strategyService,
		Settings:        settings,
	}
}

// ValidateRunBacktestInput rejects malformed requests before any data
// is loaded
func ValidateRunBacktestInput(in RunBacktestInput) error {
	if len(in.Symbols) == 0 {
		return domain.NewValidationError("symbol universe is empty")
	}
	for _, symbol := range in.Symbols {
		if strings.TrimSpace(symbol) == "" {
			return domain.NewValidationError("symbols must not be blank")
		}
	}
	if in.Start.IsZero() || in.End.IsZero() {
		return domain.NewValidationError("startDate and endDate are required")
	}
	if in.End.Before(in.Start) {
		return domain.NewValidationError("endDate %s is before startDate %s", util.FormatDate(in.End), util.FormatDate(in.Start))
	}
	if in.InitialCapital <= 0 || math.IsNaN(in.InitialCapital) || math.IsInf(in.InitialCapital, 0) {
		return domain.NewValidationError("initialCapital must be positive, got %f", in.InitialCapital)
	}
	if strings.TrimSpace(in.Config.StrategyID) == "" {
		return domain.NewValidationError("strategyId is required")
	}
	return nil
}

// runState is everything that changes bar to bar. it belongs to one Run
type runState struct {
	strategy  *ResolvedStrategy
	cache     *l1_service.PriceCache
	portfolio *domain.Portfolio
	result    *domain.BacktestResult

	pending   *domain.TargetAllocation
	rebalance int
	skipped   int
}

// Run drives one simulation bar by bar. a ValidationError is returned
// as an error with no result; every other fault after the run starts
// comes back as a failed result carrying whatever curve and trades
// were recorded up to that point
func (h backtestServiceHandler) Run(ctx context.Context, in RunBacktestInput) (*domain.BacktestResult, error) {
	if err := ValidateRunBacktestInput(in); err != nil {
		return nil, err
	}
	profile, endProfile := domain.GetProfile(ctx)
	defer endProfile()
	log := logger.FromContext(ctx)

	result := &domain.BacktestResult{
		ID:             in.ID,
		StrategyID:     strings.ToLower(strings.TrimSpace(in.Config.StrategyID)),
		Symbols:        normalizeSymbols(in.Symbols),
		StartDate:      in.Start,
		EndDate:        in.End,
		InitialCapital: in.InitialCapital,
		Config:         in.Config,
		Status:         domain.BacktestStatus_Pending,
		EquityCurve:    []domain.EquityPoint{},
		Trades:         []domain.Trade{},
	}

	strategy, err := h.StrategyService.Resolve(in.Config)
	if err != nil {
		return failRun(ctx, result, err)
	}
	result.Config = strategy.Config
	result.Status = domain.BacktestStatus_Running

	pc, err := h.PriceService.LoadPriceCache(ctx, l1_service.LoadPriceCacheInput{
		Symbols:    result.Symbols,
		Start:      in.Start,
		End:        in.End,
		WarmupDays: h.warmupDays(strategy),
	})
	if err != nil {
		return failRun(ctx, result, fmt.Errorf("failed to load price cache: %w", err))
	}

	if missing := pc.MissingSymbols(); len(missing) > 0 {
		log.Warnf("no bars for %v, they will never be selected", missing)
	}

	tradingDays := pc.TradingDays()
	if h.Settings.MaxBars > 0 && len(tradingDays) > h.Settings.MaxBars {
		return failRun(ctx, result, domain.TimeoutError{
			Err: fmt.Errorf("run spans %d bars, limit is %d", len(tradingDays), h.Settings.MaxBars),
		})
	}

	state := &runState{
		strategy:  strategy,
		cache:     pc,
		portfolio: domain.NewPortfolio(decimal.NewFromFloat(in.InitialCapital)),
		result:    result,
	}

	_, endSpan := profile.StartNewSpan("simulate")
	for i, day := range tradingDays {
		if err := domain.ErrorFromContext(ctx); err != nil {
			endSpan()
			return failRun(ctx, result, err)
		}
		if err := h.step(ctx, state, tradingDays, i); err != nil {
			endSpan()
			return failRun(ctx, result, fmt.Errorf("failed on %s: %w", util.FormatDate(day), err))
		}
	}
	endSpan()

	// a target chosen on the last bar has no next bar to execute on
	if state.pending != nil {
		state.skipped++
		state.pending = nil
	}

	_, endSpan = profile.StartNewSpan("metrics")
	metrics := CalculateMetrics(CalculateMetricsInput{
		InitialCapital:    in.InitialCapital,
		EquityCurve:       result.EquityCurve,
		Trades:            result.Trades,
		RebalanceCount:    state.rebalance,
		SkippedRebalances: state.skipped,
	})
	endSpan()

	result.Metrics = &metrics
	result.Status = domain.BacktestStatus_Completed

	log.Infof(
		"backtest %s (%s) completed: %d bars, %d trades, %d rebalances, %d skipped, return %.2f%%",
		result.ID, result.StrategyID, len(tradingDays), len(result.Trades), state.rebalance, state.skipped, metrics.TotalReturn,
	)

	return result, nil
}

// warmupDays covers the longest window the strategy reads, in calendar
// days, with room for weekends and holidays
func (h backtestServiceHandler) warmupDays(strategy *ResolvedStrategy) int {
	lookback := h.FactorService.RequiredBars(strategy.Scorer.RequiredFactors())
	if strategy.Config.PositionSizing == domain.PositionSizing_Kelly {
		lookback = max(lookback, strategy.Config.KellyLookback+1)
	}
	return max(h.Settings.WarmupDays, lookback*2+10)
}

// step processes one bar: execute yesterday's pending target at today's
// open, evaluate if today is a boundary, then record equity
func (h backtestServiceHandler) step(ctx context.Context, state *runState, tradingDays []time.Time, i int) error {
	day := tradingDays[i]
	log := logger.FromContext(ctx)

	if state.pending != nil {
		target := state.pending
		state.pending = nil
		if err := state.execute(target, day, openPrice); err != nil {
			return err
		}
	}

	var previous *time.Time
	if i > 0 {
		previous = &tradingDays[i-1]
	}
	if isRebalanceBoundary(state.strategy.Config.RebalanceFrequency, previous, day) {
		target, err := h.evaluate(ctx, state, day)
		if err != nil {
			if !domain.IsDataUnavailable(err) {
				if domain.ErrorCodeOf(err) == domain.ErrorCode_Unknown {
					err = domain.FactorError{Err: err}
				}
				return err
			}
			log.Debugf("skipping rebalance on %s: %s", util.FormatDate(day), err.Error())
			state.skipped++
		} else if state.strategy.Config.ExecutionPrice == domain.ExecutionPrice_Close {
			if err := state.execute(target, day, closePrice); err != nil {
				return err
			}
		} else {
			state.pending = target
		}
	}

	state.recordEquity(day)
	return nil
}

// isRebalanceBoundary reports whether day starts a new period relative
// to the previous trading day. the first bar always rebalances
func isRebalanceBoundary(frequency domain.RebalanceFrequency, previous *time.Time, day time.Time) bool {
	if previous == nil {
		return true
	}
	switch frequency {
	case domain.RebalanceFrequency_Daily:
		return true
	case domain.RebalanceFrequency_Weekly:
		return !util.SameWeek(*previous, day)
	case domain.RebalanceFrequency_Monthly, "":
		return !util.SameMonth(*previous, day)
	case domain.RebalanceFrequency_Quarterly:
		return !util.SameQuarter(*previous, day)
	default:
		return false
	}
}

// evaluate computes snapshots as of day's close and turns them into a
// target. factors are computed sequentially per symbol so the result
// never depends on scheduling
func (h backtestServiceHandler) evaluate(ctx context.Context, state *runState, day time.Time) (*domain.TargetAllocation, error) {
	cfg := state.strategy.Config
	factors := state.strategy.Scorer.RequiredFactors()
	lookback := h.FactorService.RequiredBars(factors)

	snapshots := map[string]*domain.FactorSnapshot{}
	returns := map[string][]float64{}
	for _, symbol := range state.cache.Symbols() {
		window := state.cache.Window(symbol, day, lookback)
		if len(window) == 0 {
			continue
		}
		snapshot, err := h.FactorService.Compute(ctx, l2_service.ComputeFactorsInput{
			Symbol:  symbol,
			Window:  window,
			AsOf:    day,
			Factors: factors,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to compute factors for %s: %w", symbol, err)
		}
		snapshots[symbol] = snapshot

		if cfg.PositionSizing == domain.PositionSizing_Kelly {
			history := state.cache.Window(symbol, day, cfg.KellyLookback+1)
			returns[symbol] = l2_service.TrailingReturns(
				domain.PriceSeries{Symbol: symbol, Bars: history}.Closes(),
				cfg.KellyLookback,
			)
		}
	}

	equity := state.markedEquity(day)
	target, err := ComputeTargetAllocation(ComputeTargetAllocationInput{
		Snapshots:   snapshots,
		Scorer:      state.strategy.Scorer,
		Config:      cfg,
		TotalEquity: equity.InexactFloat64(),
		Returns:     returns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute target allocation: %w", err)
	}

	logger.FromContext(ctx).Debugf("target on %s: %s", util.FormatDate(day), describeAllocation(target))
	return target, nil
}

type priceField func(domain.Bar) float64

func openPrice(b domain.Bar) float64  { return b.Open }
func closePrice(b domain.Bar) float64 { return b.Close }

// execute rebalances toward target using bars stamped exactly day. if
// any required symbol has no bar that day the rebalance is skipped
func (s *runState) execute(target *domain.TargetAllocation, day time.Time, field priceField) error {
	prices := map[string]decimal.Decimal{}
	for _, symbol := range RequiredSymbols(s.portfolio, target) {
		bar, ok := s.cache.BarAt(symbol, day)
		if !ok {
			s.skipped++
			return nil
		}
		prices[symbol] = decimal.NewFromFloat(field(bar))
	}

	rebalanceResult, err := Rebalance(RebalanceInput{
		Portfolio:  s.portfolio,
		Target:     target,
		Prices:     prices,
		Timestamp:  day,
		Commission: s.strategy.Commission,
	})
	if err != nil {
		if domain.IsDataUnavailable(err) {
			s.skipped++
			return nil
		}
		return err
	}

	s.rebalance++
	s.result.Trades = append(s.result.Trades, rebalanceResult.Trades...)
	return nil
}

// markedEquity values held positions at their last close on or before day
func (s *runState) markedEquity(day time.Time) decimal.Decimal {
	prices := map[string]decimal.Decimal{}
	for _, symbol := range s.portfolio.HeldSymbols() {
		if c, ok := s.cache.LastClose(symbol, day); ok {
			prices[symbol] = decimal.NewFromFloat(c)
		}
	}
	s.portfolio.Mark(prices)
	return s.portfolio.MarkedValue()
}

func (s *runState) recordEquity(day time.Time) {
	s.result.EquityCurve = append(s.result.EquityCurve, domain.EquityPoint{
		Timestamp: day,
		Equity:    s.markedEquity(day).InexactFloat64(),
	})
}

// failRun marks result failed with the error's code, keeping the curve
// and trades recorded so far. only validation errors come back bare
func failRun(ctx context.Context, result *domain.BacktestResult, err error) (*domain.BacktestResult, error) {
	code := domain.ErrorCodeOf(err)
	if code == domain.ErrorCode_Validation {
		return nil, err
	}

	logger.FromContext(ctx).Warnf("backtest %s failed with %s: %s", result.ID, code, err.Error())
	result.Status = domain.BacktestStatus_Failed
	result.Failure = &domain.FailureReason{
		Code:    code,
		Message: err.Error(),
	}
	result.Metrics = nil
	return result, nil
}

func normalizeSymbols(symbols []string) []string {
	seen := map[string]bool{}
	out := []string{}
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
