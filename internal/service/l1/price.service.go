package l1_service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"maxtrade/internal/domain"
	"maxtrade/internal/logger"
	"maxtrade/internal/repository"

	"golang.org/x/sync/errgroup"
)

/**

the price cache is loaded once per run and then only answers point-in-time
questions. every read takes an asOf and never returns a bar after it, so
callers cannot accidentally look ahead

warm-up history before Start is loaded so factors are available on the
first rebalance, but it never contributes trading days

*/

type PriceService interface {
	LoadPriceCache(ctx context.Context, in LoadPriceCacheInput) (*PriceCache, error)
}

type LoadPriceCacheInput struct {
	Symbols    []string
	Start      time.Time
	End        time.Time
	WarmupDays int
}

type priceServiceHandler struct {
	BarRepository repository.BarRepository
	MaxParallel   int
}

func NewPriceService(barRepository repository.BarRepository, maxParallel int) PriceService {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &priceServiceHandler{
		BarRepository: barRepository,
		MaxParallel:   maxParallel,
	}
}

type PriceCache struct {
	series      map[string][]domain.Bar
	tradingDays []time.Time
	missing     []string
}

// LoadPriceCache fetches every symbol in parallel. a symbol without
// bars is not an error; it is reported through MissingSymbols
func (h priceServiceHandler) LoadPriceCache(ctx context.Context, in LoadPriceCacheInput) (*PriceCache, error) {
	profile, endProfile := domain.GetProfile(ctx)
	defer endProfile()
	_, endSpan := profile.StartNewSpan("load price cache")
	defer endSpan()

	log := logger.FromContext(ctx)
	warmStart := in.Start.AddDate(0, 0, -in.WarmupDays)

	symbols := dedupeSymbols(in.Symbols)
	results := make([][]domain.Bar, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.MaxParallel)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			bars, err := h.BarRepository.List(gctx, symbol, warmStart, in.End)
			if err != nil {
				return fmt.Errorf("failed to load bars for %s: %w", symbol, err)
			}
			results[i] = bars
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := domain.ErrorFromContext(ctx); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	series := map[string][]domain.Bar{}
	for i, symbol := range symbols {
		series[symbol] = results[i]
	}
	pc := newPriceCache(series, in.Start, in.End)
	if len(pc.missing) > 0 {
		log.Warnf("no bars found for %v between %s and %s", pc.missing, in.Start.Format(time.DateOnly), in.End.Format(time.DateOnly))
	}

	return pc, nil
}

// NewPriceCacheFromBars builds a cache directly from bars. bars outside
// [start, end] are kept as history but never become trading days
func NewPriceCacheFromBars(bars []domain.Bar, start, end time.Time) *PriceCache {
	series := map[string][]domain.Bar{}
	for _, b := range bars {
		symbol := strings.ToUpper(b.Symbol)
		b.Symbol = symbol
		if b.Timestamp.After(end) {
			continue
		}
		series[symbol] = append(series[symbol], b)
	}
	for _, s := range series {
		sort.SliceStable(s, func(i, j int) bool {
			return s[i].Timestamp.Before(s[j].Timestamp)
		})
	}
	return newPriceCache(series, start, end)
}

func newPriceCache(series map[string][]domain.Bar, start, end time.Time) *PriceCache {
	days := map[time.Time]struct{}{}
	missing := []string{}
	for symbol, bars := range series {
		if len(bars) == 0 {
			missing = append(missing, symbol)
			continue
		}
		for _, b := range bars {
			if b.Timestamp.Before(start) || b.Timestamp.After(end) {
				continue
			}
			days[b.Timestamp] = struct{}{}
		}
	}

	tradingDays := make([]time.Time, 0, len(days))
	for d := range days {
		tradingDays = append(tradingDays, d)
	}
	sort.Slice(tradingDays, func(i, j int) bool {
		return tradingDays[i].Before(tradingDays[j])
	})
	sort.Strings(missing)

	return &PriceCache{
		series:      series,
		tradingDays: tradingDays,
		missing:     missing,
	}
}

// TradingDays is the sorted union of bar timestamps within the run
func (pc *PriceCache) TradingDays() []time.Time {
	return pc.tradingDays
}

func (pc *PriceCache) Symbols() []string {
	out := make([]string, 0, len(pc.series))
	for symbol, bars := range pc.series {
		if len(bars) > 0 {
			out = append(out, symbol)
		}
	}
	sort.Strings(out)
	return out
}

func (pc *PriceCache) MissingSymbols() []string {
	return pc.missing
}

// upTo returns the index one past the last bar with timestamp <= asOf
func (pc *PriceCache) upTo(symbol string, asOf time.Time) ([]domain.Bar, int) {
	bars := pc.series[symbol]
	idx := sort.Search(len(bars), func(i int) bool {
		return bars[i].Timestamp.After(asOf)
	})
	return bars, idx
}

// Window returns up to n trailing bars ending at or before asOf. n <= 0
// returns the full history up to asOf
func (pc *PriceCache) Window(symbol string, asOf time.Time, n int) []domain.Bar {
	bars, idx := pc.upTo(symbol, asOf)
	start := 0
	if n > 0 && idx > n {
		start = idx - n
	}
	out := make([]domain.Bar, idx-start)
	copy(out, bars[start:idx])
	return out
}

// BarAt returns the bar stamped exactly ts
func (pc *PriceCache) BarAt(symbol string, ts time.Time) (domain.Bar, bool) {
	bars, idx := pc.upTo(symbol, ts)
	if idx == 0 || !bars[idx-1].Timestamp.Equal(ts) {
		return domain.Bar{}, false
	}
	return bars[idx-1], true
}

// LastClose is the most recent close at or before asOf
func (pc *PriceCache) LastClose(symbol string, asOf time.Time) (float64, bool) {
	bars, idx := pc.upTo(symbol, asOf)
	if idx == 0 {
		return 0, false
	}
	return bars[idx-1].Close, true
}

// LatestTimestamp is the newest bar across all symbols, used by the
// screener for "now"
func (pc *PriceCache) LatestTimestamp() (time.Time, bool) {
	var latest time.Time
	for _, bars := range pc.series {
		if len(bars) > 0 && bars[len(bars)-1].Timestamp.After(latest) {
			latest = bars[len(bars)-1].Timestamp
		}
	}
	return latest, !latest.IsZero()
}

func dedupeSymbols(symbols []string) []string {
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
	sort.Strings(out)
	return out
}
